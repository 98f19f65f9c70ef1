package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featherline/pigeonhole/internal/config"
	"github.com/featherline/pigeonhole/internal/cron"
	"github.com/featherline/pigeonhole/internal/history"
	"github.com/featherline/pigeonhole/internal/memory"
	"github.com/featherline/pigeonhole/internal/providers"
	"github.com/featherline/pigeonhole/internal/tasks"
	"github.com/featherline/pigeonhole/internal/tools"
)

// buildRegistry wires the full tool set over the configured data
// directory. The scheduler inside is load-only: schedule_job edits the
// persisted job store, and a running daemon applies it on restart.
func buildRegistry(cfg *config.Config) (*tools.Registry, error) {
	q, err := openQueue(cfg)
	if err != nil {
		return nil, err
	}

	hist := history.NewManager(cfg.HistoryDir())
	taskStore := tasks.NewStore(cfg.TasksFile())

	jobs := cron.NewService(cfg.JobsFile(), nil)
	if err := jobs.LoadFromDisk(); err != nil {
		return nil, err
	}

	// A typed-nil provider must not reach the interface fields, so the
	// optional wiring stays behind an explicit check.
	var embedder memory.Embedder
	var transcriber tools.Transcriber
	if p := providers.NewOpenAIProvider(providers.Options{
		APIKey:             cfg.OpenAI.APIKey,
		BaseURL:            cfg.OpenAI.BaseURL,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
		EmbeddingModel:     cfg.OpenAI.EmbeddingModel,
	}); p != nil {
		embedder = p
		transcriber = p
	}

	mem := memory.NewStore(memory.Options{
		EntriesPath:     cfg.MemoryFile(),
		CachePath:       cfg.EmbeddingCacheFile(),
		Embedder:        embedder,
		EmbeddingWeight: cfg.Memory.EmbeddingWeight,
		KeywordWeight:   cfg.Memory.KeywordWeight,
	})

	reg := tools.NewRegistry()
	reg.Register(tools.NewWaitForMessagesTool(q))
	reg.Register(tools.NewCheckInboxTool(q))
	reg.Register(tools.NewClaimMessageTool(q))
	reg.Register(tools.NewMarkProcessedTool(q))
	reg.Register(tools.NewMarkFailedTool(q))
	reg.Register(tools.NewMessageStatsTool(q))
	reg.Register(tools.NewSendReplyTool(q, hist))
	reg.Register(tools.NewConversationHistoryTool(hist))
	reg.Register(tools.NewTranscribeVoiceTool(q, transcriber))
	reg.Register(tools.NewRememberTool(mem))
	reg.Register(tools.NewMemorySearchTool(mem))
	reg.Register(tools.NewCreateTaskTool(taskStore))
	reg.Register(tools.NewListTasksTool(taskStore))
	reg.Register(tools.NewUpdateTaskTool(taskStore))
	reg.Register(tools.NewGetTaskTool(taskStore))
	reg.Register(tools.NewDeleteTaskTool(taskStore))
	reg.Register(tools.NewScheduleJobTool(jobs))
	reg.Register(tools.NewRemoveScheduledJobTool(jobs))
	reg.Register(tools.NewListScheduledJobsTool(jobs))
	return reg, nil
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools an external agent can call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				data, err := json.MarshalIndent(reg.Definitions(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			for _, def := range reg.Definitions() {
				fmt.Fprintf(out, "%-26s %s\n", def.Function.Name, def.Function.Description)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print full definitions with parameter schemas")
	return cmd
}

func newToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool <name>",
		Short: "Execute one tool with JSON parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg)
			if err != nil {
				return err
			}

			rawParams, _ := cmd.Flags().GetString("params")
			if !json.Valid([]byte(rawParams)) {
				return fmt.Errorf("--params is not valid JSON")
			}

			result := reg.Execute(cmd.Context(), args[0], json.RawMessage(rawParams))
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().String("params", "{}", "Tool parameters as a JSON object")
	return cmd
}
