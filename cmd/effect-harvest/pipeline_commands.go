package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"effectharvest/internal/service"
)

const (
	modeSearchOnly = service.ModeSearchOnly
	modeDownload   = service.ModeDownloadOnly
	modeRun        = service.ModeSearchAndDownload
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search [keyword...]",
		Short: "Search keywords and save the results without downloading",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, args, modeSearchOnly)
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download [keyword...]",
		Short: "Download media from the latest saved descriptor lists",
		Long: "Downloads from the most recent video_urls document recorded for each keyword.\n" +
			"With no keywords, every keyword that has a saved list is processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, args, modeDownload)
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run [keyword...]",
		Short: "Search keywords and download qualifying media",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, args, modeRun)
		},
	}
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, args []string, mode service.Mode) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	keywords := cleanKeywords(args)
	if len(keywords) == 0 && mode != modeDownload {
		keywords = cfg.Keywords
		if len(keywords) == 0 {
			return errors.New("no keywords: pass them as arguments or set keywords in the config file")
		}
	}

	a, err := ctx.openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := a.orchestrator.RunBatch(cmd.Context(), keywords, mode)
	a.progress.finish()
	if report != nil {
		fmt.Fprintln(cmd.OutOrStdout(), renderBatchReport(report))
	}
	if runErr != nil {
		return runErr
	}
	if failed := report.Failed(); failed > 0 && failed == len(report.Keywords) {
		return fmt.Errorf("all %d keyword(s) failed", failed)
	}
	return nil
}

func cleanKeywords(args []string) []string {
	seen := make(map[string]struct{}, len(args))
	out := make([]string, 0, len(args))
	for _, arg := range args {
		kw := strings.TrimSpace(arg)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
