package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/featherline/pigeonhole/internal/tasks"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the task list",
	}
	cmd.AddCommand(newTasksListCmd(), newTasksAddCmd(), newTasksDoneCmd(), newTasksRemoveCmd())
	return cmd
}

func openTasks(cmd *cobra.Command) (*tasks.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return tasks.NewStore(cfg.TasksFile()), nil
}

func taskID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func newTasksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openTasks(cmd)
			if err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			list, err := st.List(tasks.Status(status))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no tasks")
				return nil
			}
			for _, t := range list {
				fmt.Fprintf(out, "#%d [%s] %s\n", t.ID, t.Status, t.Subject)
				if t.Description != "" {
					fmt.Fprintf(out, "    %s\n", t.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("status", "", "Filter: pending|in_progress|completed (empty for all)")
	return cmd
}

func newTasksAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <subject>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openTasks(cmd)
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			t, err := st.Create(args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task #%d created\n", t.ID)
			return nil
		},
	}
	cmd.Flags().String("description", "", "Longer task description")
	return cmd
}

func newTasksDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openTasks(cmd)
			if err != nil {
				return err
			}
			id, err := taskID(args[0])
			if err != nil {
				return err
			}
			status := tasks.StatusCompleted
			t, err := st.Apply(id, tasks.Update{Status: &status})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task #%d completed: %s\n", t.ID, t.Subject)
			return nil
		},
	}
}

func newTasksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openTasks(cmd)
			if err != nil {
				return err
			}
			id, err := taskID(args[0])
			if err != nil {
				return err
			}
			if err := st.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task #%d deleted\n", id)
			return nil
		},
	}
}
