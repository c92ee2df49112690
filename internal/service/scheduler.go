package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"effectharvest/internal/core/domain"
	"effectharvest/internal/core/ports"
	"effectharvest/internal/textutil"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 5

const defaultExtension = "mp4"

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithFileNamer replaces the title-to-file-name function.
func WithFileNamer(namer func(string) string) SchedulerOption {
	return func(s *Scheduler) {
		if namer != nil {
			s.namer = namer
		}
	}
}

// WithOutcomeHook registers fn to observe every outcome as it completes.
// fn is called from worker goroutines and must be safe for concurrent use.
func WithOutcomeHook(fn func(domain.DownloadOutcome)) SchedulerOption {
	return func(s *Scheduler) {
		s.onOutcome = fn
	}
}

// Scheduler downloads qualifying assets with a bounded worker pool.
type Scheduler struct {
	downloader ports.Downloader
	storage    ports.Storage
	logger     *slog.Logger
	namer      func(string) string
	onOutcome  func(domain.DownloadOutcome)
}

// NewScheduler creates a Scheduler.
func NewScheduler(downloader ports.Downloader, storage ports.Storage, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		downloader: downloader,
		storage:    storage,
		logger:     logger,
		namer:      textutil.SanitizeFileName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes every descriptor exactly once and returns one outcome per
// descriptor, in completion order.
//
// Once ctx is cancelled no further descriptors are started; they are
// reported as cancelled. Downloads already streaming are left to finish so
// no truncated files are produced.
func (s *Scheduler) Run(ctx context.Context, keyword string, descriptors []domain.AssetDescriptor, minimum domain.Resolution, concurrency int) []domain.DownloadOutcome {
	if len(descriptors) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = DefaultWorkers
	}

	names := PlanFileNames(keyword, descriptors, s.namer)
	logger := s.logger.With("keyword", keyword)
	logger.Info("starting downloads", "assets", len(descriptors), "workers", concurrency, "min_resolution", minimum.String())

	p := pool.NewWithResults[domain.DownloadOutcome]().WithMaxGoroutines(concurrency)
	var undispatched []domain.DownloadOutcome

	for i, d := range descriptors {
		if err := ctx.Err(); err != nil {
			o := domain.DownloadOutcome{Descriptor: d, Status: domain.StatusCancelled, Err: err}
			s.notify(o)
			undispatched = append(undispatched, o)
			continue
		}
		target := s.storage.AssetPath(keyword, names[i])
		p.Go(func() domain.DownloadOutcome {
			o := s.process(ctx, logger, d, target, minimum)
			s.notify(o)
			return o
		})
	}

	outcomes := p.Wait()
	return append(outcomes, undispatched...)
}

func (s *Scheduler) process(ctx context.Context, logger *slog.Logger, d domain.AssetDescriptor, target string, minimum domain.Resolution) domain.DownloadOutcome {
	outcome := domain.DownloadOutcome{Descriptor: d}

	if err := ctx.Err(); err != nil {
		outcome.Status = domain.StatusCancelled
		outcome.Err = err
		return outcome
	}

	if !MeetsMinimum(d, minimum) {
		logger.Debug("below minimum resolution; skipping",
			"item", d.SourceItemID, "definition", d.QualityLabel, "height", d.HeightPx)
		outcome.Status = domain.StatusSkippedLowQuality
		return outcome
	}

	exists, err := s.storage.AssetExists(target)
	if err != nil {
		return failed(outcome, err, logger)
	}
	if exists {
		logger.Debug("already downloaded; skipping", "path", target)
		outcome.Status = domain.StatusSkippedExists
		return outcome
	}

	// In-flight transfers outlive run cancellation.
	dlCtx := context.WithoutCancel(ctx)

	body, err := s.downloader.Download(dlCtx, d.VideoURL)
	if err != nil {
		return failed(outcome, err, logger)
	}
	defer body.Close()

	written, err := s.storage.SaveAsset(dlCtx, target, body)
	if err != nil {
		var fsErr *domain.FilesystemError
		var transport *domain.TransportError
		if !errors.As(err, &fsErr) && !errors.As(err, &transport) {
			err = &domain.TransportError{Op: "download", URL: d.VideoURL, Err: err}
		}
		return failed(outcome, err, logger)
	}

	logger.Info("downloaded", "path", target, "bytes", written)
	outcome.Status = domain.StatusDownloaded
	outcome.LocalPath = target
	outcome.Bytes = written
	return outcome
}

func failed(outcome domain.DownloadOutcome, err error, logger *slog.Logger) domain.DownloadOutcome {
	logger.Warn("download failed", "item", outcome.Descriptor.SourceItemID, "url", outcome.Descriptor.VideoURL,
		"kind", domain.Kind(err), "error", err)
	outcome.Status = domain.StatusFailed
	outcome.Err = err
	return outcome
}

func (s *Scheduler) notify(o domain.DownloadOutcome) {
	if s.onOutcome != nil {
		s.onOutcome(o)
	}
}

// PlanFileNames assigns every descriptor a file name, deterministically and
// without collisions. Names come from namer applied to the title, or
// <keyword>_<index> when the title is unusable, where <keyword> is spelled
// exactly like the keyword's media directory; a name already taken in the
// batch gets _<index> appended. The same input always yields the same names,
// which is what makes repeated runs skip finished files.
func PlanFileNames(keyword string, descriptors []domain.AssetDescriptor, namer func(string) string) []string {
	if namer == nil {
		namer = textutil.SanitizeFileName
	}
	prefix := textutil.KeywordName(keyword)

	names := make([]string, len(descriptors))
	taken := make(map[string]struct{}, len(descriptors))
	for i, d := range descriptors {
		ext := extension(d.Format)
		base := stripExtension(namer(d.Title), ext)
		if base == "" {
			base = fmt.Sprintf("%s_%d", prefix, i)
		}

		name := base + "." + ext
		if _, dup := taken[strings.ToLower(name)]; dup {
			name = fmt.Sprintf("%s_%d.%s", base, i, ext)
			for n := 2; ; n++ {
				if _, dup := taken[strings.ToLower(name)]; !dup {
					break
				}
				name = fmt.Sprintf("%s_%d_%d.%s", base, i, n, ext)
			}
		}
		taken[strings.ToLower(name)] = struct{}{}
		names[i] = name
	}
	return names
}

func extension(format string) string {
	ext := textutil.SanitizeFileName(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), "."))
	if ext == "" {
		return defaultExtension
	}
	return ext
}

func stripExtension(name, ext string) string {
	suffix := "." + ext
	if len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}
