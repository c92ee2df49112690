package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"effectharvest/internal/core/domain"
)

// Mode selects which pipeline stages a run executes.
type Mode string

const (
	// ModeSearchOnly paginates, extracts and persists, but downloads nothing.
	ModeSearchOnly Mode = "search"
	// ModeDownloadOnly downloads from the latest saved descriptor list.
	ModeDownloadOnly Mode = "download"
	// ModeSearchAndDownload runs the whole pipeline.
	ModeSearchAndDownload Mode = "run"
)

// ParseMode validates a mode name.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeSearchOnly, ModeDownloadOnly, ModeSearchAndDownload:
		return Mode(value), nil
	case "":
		return ModeSearchAndDownload, nil
	}
	return "", &domain.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", value)}
}

func (m Mode) searches() bool  { return m != ModeDownloadOnly }
func (m Mode) downloads() bool { return m != ModeSearchOnly }

// OrchestratorOptions holds per-run pipeline settings.
type OrchestratorOptions struct {
	// Query builds the catalog query for a keyword.
	Query func(keyword string) domain.SearchQuery
	// SaveFullResult persists the merged search result document.
	SaveFullResult bool
	// SaveDescriptors persists the descriptor list document.
	SaveDescriptors bool
	MinResolution   domain.Resolution
	Workers         int
	// BeforeDownload is called with the number of descriptors about to be
	// scheduled for a keyword.
	BeforeDownload func(keyword string, total int)
}

// Orchestrator coordinates the search, persist and download workflow.
type Orchestrator struct {
	paginator *Paginator
	scheduler *Scheduler
	store     *ResultStore
	opts      OrchestratorOptions
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	paginator *Paginator,
	scheduler *Scheduler,
	store *ResultStore,
	opts OrchestratorOptions,
	logger *slog.Logger,
) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MinResolution == 0 {
		opts.MinResolution = domain.DefaultResolution
	}
	return &Orchestrator{
		paginator: paginator,
		scheduler: scheduler,
		store:     store,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// RunBatch processes keywords in order. A failing keyword is reported inline
// and the batch moves on; after cancellation the remaining keywords are
// marked with the context error. In download-only mode an empty keyword list
// means every keyword with a saved descriptor list.
func (o *Orchestrator) RunBatch(ctx context.Context, keywords []string, mode Mode) (*domain.BatchReport, error) {
	if mode == ModeDownloadOnly && len(keywords) == 0 {
		indexed, err := o.store.Keywords(ctx, domain.KindDescriptors)
		if err != nil {
			return nil, fmt.Errorf("list saved keywords: %w", err)
		}
		keywords = indexed
	}
	if len(keywords) == 0 {
		return nil, &domain.ValidationError{Field: "keywords", Reason: "at least one keyword is required"}
	}

	report := &domain.BatchReport{
		RunID:     uuid.New().String(),
		StartedAt: o.now().UTC(),
	}
	logger := o.logger.With("run_id", report.RunID)
	logger.Info("starting batch", "mode", string(mode), "keywords", len(keywords))

	for i, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			for _, rest := range keywords[i:] {
				report.Keywords = append(report.Keywords, domain.KeywordReport{Keyword: rest, Err: err})
			}
			break
		}

		kr := o.RunKeyword(ctx, report.RunID, keyword, mode)
		report.Keywords = append(report.Keywords, kr)
		o.logKeyword(logger, i+1, len(keywords), kr)
	}

	report.CompletedAt = o.now().UTC()
	logger.Info("batch complete",
		"keywords", len(report.Keywords),
		"failed", report.Failed(),
		"duration", report.CompletedAt.Sub(report.StartedAt).Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// RunKeyword runs one keyword through the stages selected by mode. Errors
// are carried in the report rather than returned.
func (o *Orchestrator) RunKeyword(ctx context.Context, runID, keyword string, mode Mode) domain.KeywordReport {
	kr := domain.KeywordReport{Keyword: keyword}

	var descriptors []domain.AssetDescriptor
	if mode.searches() {
		var ok bool
		descriptors, ok = o.search(ctx, runID, &kr)
		if !ok {
			return kr
		}
	} else {
		loaded, path, err := o.store.LatestDescriptors(ctx, keyword)
		kr.DescriptorsPath = path
		if err != nil {
			kr.Err = err
			return kr
		}
		descriptors = loaded
		kr.Descriptors = len(loaded)
	}

	if !mode.downloads() || len(descriptors) == 0 {
		return kr
	}

	if o.opts.BeforeDownload != nil {
		o.opts.BeforeDownload(keyword, len(descriptors))
	}
	outcomes := o.scheduler.Run(ctx, keyword, descriptors, o.opts.MinResolution, o.opts.Workers)
	kr.Outcomes = outcomes
	kr.Downloads = domain.Tally(outcomes)
	o.store.RecordOutcomes(context.WithoutCancel(ctx), runID, keyword, outcomes)
	return kr
}

func (o *Orchestrator) search(ctx context.Context, runID string, kr *domain.KeywordReport) ([]domain.AssetDescriptor, bool) {
	query := o.query(kr.Keyword)
	result, err := o.paginator.Run(ctx, query)
	if result == nil {
		kr.Err = err
		return nil, false
	}
	if err != nil {
		kr.Partial = true
		kr.Warning = err
	}
	kr.Items = len(result.Items)

	descriptors := ExtractAssets(result)
	kr.Descriptors = len(descriptors)

	// Partial data is still worth keeping, so saves run even after
	// cancellation.
	saveCtx := context.WithoutCancel(ctx)
	at := result.FetchedAt
	if at.IsZero() {
		at = o.now()
	}

	if o.opts.SaveFullResult {
		path, err := o.store.SaveResult(saveCtx, runID, result, at)
		if err != nil {
			kr.Err = err
			return nil, false
		}
		kr.ResultPath = path
	}
	if o.opts.SaveDescriptors {
		path, err := o.store.SaveDescriptors(saveCtx, runID, kr.Keyword, descriptors, result.Partial, at)
		if err != nil {
			kr.Err = err
			return nil, false
		}
		kr.DescriptorsPath = path
	}
	return descriptors, true
}

func (o *Orchestrator) query(keyword string) domain.SearchQuery {
	if o.opts.Query != nil {
		return o.opts.Query(keyword)
	}
	return domain.SearchQuery{Keyword: keyword, PageSize: 20}
}

func (o *Orchestrator) logKeyword(logger *slog.Logger, n, total int, kr domain.KeywordReport) {
	logger = logger.With("keyword", kr.Keyword, "progress", fmt.Sprintf("%d/%d", n, total))
	if kr.Err != nil {
		level := slog.LevelError
		if errors.Is(kr.Err, context.Canceled) {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "keyword failed", "kind", domain.Kind(kr.Err), "error", kr.Err)
		return
	}
	attrs := []any{
		"items", kr.Items,
		"descriptors", kr.Descriptors,
		"downloaded", kr.Downloads.Downloaded,
		"skipped_low_quality", kr.Downloads.SkippedLowQuality,
		"skipped_exists", kr.Downloads.SkippedExists,
		"failed", kr.Downloads.Failed,
	}
	if kr.Partial {
		logger.Warn("keyword complete with partial results", append(attrs, "error", kr.Warning)...)
		return
	}
	logger.Info("keyword complete", attrs...)
}
