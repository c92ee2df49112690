package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go/v4"

	"effectharvest/internal/core/domain"
	"effectharvest/internal/core/ports"
)

// PaginatorOptions controls inter-page pacing and page retries.
type PaginatorOptions struct {
	// Delay is the fixed lower bound waited between two page requests.
	Delay time.Duration
	// Jitter is the upper bound of a uniformly random extra wait.
	Jitter time.Duration
	// Attempts is how many times one page may be requested; values below 2
	// mean a single attempt. Only transport errors are retried.
	Attempts int
	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration
}

// Paginator walks the catalog's continuation cursor for one query at a time
// and merges every page into a single result.
type Paginator struct {
	fetcher ports.Fetcher
	opts    PaginatorOptions
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPaginator creates a Paginator over fetcher.
func NewPaginator(fetcher ports.Fetcher, opts PaginatorOptions, logger *slog.Logger) *Paginator {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Paginator{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Run fetches pages starting at offset 0 until the server reports no more
// results or stops advancing the offset.
//
// When a page request fails after at least one page arrived, Run returns the
// pages merged so far (Partial set) together with the error. A failure on
// the first page returns a nil result.
func (p *Paginator) Run(ctx context.Context, query domain.SearchQuery) (*domain.MergedResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	logger := p.logger.With("keyword", query.Keyword)
	var merged *domain.MergedResult
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return p.finish(merged, err)
		}

		pageNo := 1
		if merged != nil {
			pageNo = merged.PageCount + 1
		}
		logger.Debug("fetching page", "page", pageNo, "offset", offset)

		page, err := p.fetch(ctx, query, offset)
		if err != nil {
			if merged != nil {
				logger.Warn("pagination stopped early; keeping pages fetched so far",
					"page", pageNo, "offset", offset, "items", len(merged.Items), "error", err)
			}
			return p.finish(merged, fmt.Errorf("fetch page %d at offset %d: %w", pageNo, offset, err))
		}

		if merged == nil {
			merged = &domain.MergedResult{
				Keyword: query.Keyword,
				Items:   make([]domain.RawItem, 0, len(page.Items)),
			}
		}
		merged.Items = append(merged.Items, page.Items...)
		merged.PageCount++

		if !page.HasMore {
			break
		}
		if page.NextOffset <= offset {
			logger.Warn("catalog did not advance the offset; treating as end of results",
				"offset", offset, "next_offset", page.NextOffset)
			break
		}
		offset = page.NextOffset

		delay := p.nextDelay()
		logger.Debug("waiting before next page", "delay", delay)
		if err := p.sleep(ctx, delay); err != nil {
			return p.finish(merged, err)
		}
	}

	logger.Info("search complete", "pages", merged.PageCount, "items", len(merged.Items))
	return p.finish(merged, nil)
}

func (p *Paginator) finish(merged *domain.MergedResult, err error) (*domain.MergedResult, error) {
	if merged == nil {
		return nil, err
	}
	merged.TotalCount = len(merged.Items)
	merged.Partial = err != nil
	merged.FetchedAt = p.now().UTC()
	return merged, err
}

func (p *Paginator) fetch(ctx context.Context, query domain.SearchQuery, offset int) (*domain.Page, error) {
	attempts := p.opts.Attempts
	if attempts < 2 {
		return p.fetcher.Fetch(ctx, query, offset)
	}
	return retry.DoWithData(
		func() (*domain.Page, error) {
			return p.fetcher.Fetch(ctx, query, offset)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(p.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransportError),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("page request failed; retrying",
				"keyword", query.Keyword, "offset", offset, "attempt", n+1, "error", err)
		}),
	)
}

func (p *Paginator) nextDelay() time.Duration {
	delay := p.opts.Delay
	if p.opts.Jitter > 0 {
		delay += rand.N(p.opts.Jitter)
	}
	return delay
}

func isTransportError(err error) bool {
	var transport *domain.TransportError
	return errors.As(err, &transport)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
