package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featherline/pigeonhole/internal/cron"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(newJobsListCmd(), newJobsAddCmd(), newJobsRemoveCmd())
	return cmd
}

// openJobs loads the persisted job set without starting the scheduler, so
// the verbs can edit the store while (or without) a daemon running. The
// daemon picks up changes on its next restart.
func openJobs(cmd *cobra.Command) (*cron.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	svc := cron.NewService(cfg.JobsFile(), nil)
	if err := svc.LoadFromDisk(); err != nil {
		return nil, err
	}
	return svc, nil
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openJobs(cmd)
			if err != nil {
				return err
			}
			jobs := svc.ListJobs()
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "no scheduled jobs")
				return nil
			}
			for _, j := range jobs {
				fmt.Fprintf(out, "%s  (%s %s)  [%s chat=%v]  %s\n",
					j.Name, j.Schedule.Type, j.Schedule.Expression, j.Source, j.ChatID, preview(j.Context, 50))
			}
			return nil
		},
	}
}

func newJobsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openJobs(cmd)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			typ, _ := cmd.Flags().GetString("type")
			expr, _ := cmd.Flags().GetString("schedule")
			context, _ := cmd.Flags().GetString("context")
			source, _ := cmd.Flags().GetString("source")
			chatID, _ := cmd.Flags().GetString("chat-id")

			schedule := cron.CronSchedule{Type: cron.ScheduleType(typ), Expression: expr}
			if err := svc.AddJob(name, schedule, context, source, chatIDValue(chatID)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s added (%s %s)\n", name, typ, expr)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Job name, the handle for removal")
	cmd.Flags().String("type", "cron", "Schedule type: cron|every|at")
	cmd.Flags().String("schedule", "", "Cron expression, interval (30m), or time (HH:MM)")
	cmd.Flags().String("context", "", "Text of the message enqueued when the job fires")
	cmd.Flags().String("source", "telegram", "Platform the fired message claims as origin")
	cmd.Flags().String("chat-id", "", "Conversation the fired message belongs to")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("schedule")
	cmd.MarkFlagRequired("context")
	cmd.MarkFlagRequired("chat-id")
	return cmd
}

func newJobsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a scheduled job",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openJobs(cmd)
			if err != nil {
				return err
			}
			if err := svc.RemoveJob(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s removed\n", args[0])
			return nil
		},
	}
}
