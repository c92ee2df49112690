package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var minResolutionFlag string
	var workersFlag int

	ctx := newCommandContext(&configFlag, &logLevelFlag, &minResolutionFlag, &workersFlag)

	rootCmd := &cobra.Command{
		Use:   "effect-harvest",
		Short: "Search the effect catalog and download its media",
		Long: "Without a subcommand, effect-harvest searches every configured keyword and,\n" +
			"when download.enabled is set, downloads the qualifying media.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mode := modeSearchOnly
			if cfg.Download.Enabled {
				mode = modeRun
			}
			return runPipeline(cmd, ctx, nil, mode)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&minResolutionFlag, "min-resolution", "", "Minimum download quality (720p, 1080p, 2K, 4K)")
	rootCmd.PersistentFlags().IntVar(&workersFlag, "workers", 0, "Concurrent downloads (default from config)")

	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newDownloadCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newRecordsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
