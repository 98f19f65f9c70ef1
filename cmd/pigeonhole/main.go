// Command pigeonhole is the personal message relay: a daemon that moves
// platform messages through a crash-safe on-disk lifecycle, plus verbs for
// operating on the message tree from other processes.
package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/featherline/pigeonhole/internal/config"
	"github.com/featherline/pigeonhole/internal/lifecycle"
	"github.com/featherline/pigeonhole/internal/logging"
	"github.com/featherline/pigeonhole/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pigeonhole",
		Short:         "Personal assistant message relay",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("config", "", "Config file path (default ~/.pigeonhole/config.json)")
	cmd.PersistentFlags().String("base", "", "Data directory, overriding the configured one")
	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error")
	cmd.PersistentFlags().String("log-format", "", "Logging format: text|json")

	cmd.AddCommand(
		newServeCmd(),
		newEnqueueCmd(),
		newSendCmd(),
		newInboxCmd(),
		newClaimCmd(),
		newCommitCmd(),
		newFailCmd(),
		newSweepCmd(),
		newStatsCmd(),
		newHistoryCmd(),
		newJobsCmd(),
		newTasksCmd(),
		newToolsCmd(),
		newToolCmd(),
	)
	return cmd
}

// loadConfig resolves config for a verb: file (or defaults), then the
// --base override, then logging setup from flags or config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if base, _ := cmd.Flags().GetString("base"); base != "" {
		cfg.DataDir = base
	}

	level := cfg.Logging.Level
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	format := cfg.Logging.Format
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		format = v
	}
	if err := logging.Setup(level, format); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openQueue opens the message tree for a one-shot verb.
func openQueue(cfg *config.Config) (*lifecycle.Queue, error) {
	st, err := store.New(cfg.MessagesDir())
	if err != nil {
		return nil, err
	}
	return lifecycle.New(st, lifecycle.Options{
		MaxRetries:   cfg.Lifecycle.MaxRetries,
		CheckLimit:   cfg.Lifecycle.CheckLimit,
		ReplySources: cfg.Lifecycle.ReplySources,
	})
}

// chatIDValue keeps numeric chat ids numeric in records, the way the
// platforms send them.
func chatIDValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
