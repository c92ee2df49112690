package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"effectharvest/internal/core/domain"
	"effectharvest/internal/core/ports"
)

// ResultStore persists merged results and descriptor lists and indexes every
// written document. The files are the source of truth; an index failure is
// logged and never fails the save.
type ResultStore struct {
	storage ports.Storage
	index   ports.RecordIndex
	logger  *slog.Logger
}

// NewResultStore creates a ResultStore. index may be nil.
func NewResultStore(storage ports.Storage, index ports.RecordIndex, logger *slog.Logger) *ResultStore {
	return &ResultStore{storage: storage, index: index, logger: logger}
}

// SaveResult writes result and returns the document path.
func (s *ResultStore) SaveResult(ctx context.Context, runID string, result *domain.MergedResult, at time.Time) (string, error) {
	if result == nil {
		return "", &domain.ValidationError{Field: "result", Reason: "must not be nil"}
	}
	path, err := s.storage.SaveSearchResult(ctx, result, at)
	if err != nil {
		return "", fmt.Errorf("save search result for %q: %w", result.Keyword, err)
	}
	s.logger.Info("saved search result", "keyword", result.Keyword, "path", path,
		"items", len(result.Items), "partial", result.Partial)
	s.record(ctx, domain.DocumentRecord{
		RunID:     runID,
		Keyword:   result.Keyword,
		Kind:      domain.KindSearchResult,
		Path:      path,
		ItemCount: len(result.Items),
		Partial:   result.Partial,
		CreatedAt: at,
	})
	return path, nil
}

// SaveDescriptors writes the descriptor list for keyword and returns its path.
func (s *ResultStore) SaveDescriptors(ctx context.Context, runID, keyword string, descriptors []domain.AssetDescriptor, partial bool, at time.Time) (string, error) {
	if descriptors == nil {
		descriptors = []domain.AssetDescriptor{}
	}
	path, err := s.storage.SaveDescriptors(ctx, keyword, descriptors, at)
	if err != nil {
		return "", fmt.Errorf("save descriptors for %q: %w", keyword, err)
	}
	s.logger.Info("saved descriptor list", "keyword", keyword, "path", path, "descriptors", len(descriptors))
	s.record(ctx, domain.DocumentRecord{
		RunID:     runID,
		Keyword:   keyword,
		Kind:      domain.KindDescriptors,
		Path:      path,
		ItemCount: len(descriptors),
		Partial:   partial,
		CreatedAt: at,
	})
	return path, nil
}

// LatestDescriptors loads the most recent descriptor list indexed for
// keyword. It returns the document path alongside the descriptors.
func (s *ResultStore) LatestDescriptors(ctx context.Context, keyword string) ([]domain.AssetDescriptor, string, error) {
	if s.index == nil {
		return nil, "", errors.New("no record index configured")
	}
	rec, err := s.index.LatestDocument(ctx, keyword, domain.KindDescriptors)
	if err != nil {
		return nil, "", fmt.Errorf("look up descriptors for %q: %w", keyword, err)
	}
	if rec == nil {
		return nil, "", &domain.ValidationError{Field: "keyword", Reason: fmt.Sprintf("no saved descriptor list for %q", keyword)}
	}
	descriptors, err := s.storage.LoadDescriptors(ctx, rec.Path)
	if err != nil {
		return nil, rec.Path, err
	}
	return descriptors, rec.Path, nil
}

// LoadDescriptors reads a descriptor list document from path.
func (s *ResultStore) LoadDescriptors(ctx context.Context, path string) ([]domain.AssetDescriptor, error) {
	return s.storage.LoadDescriptors(ctx, path)
}

// Keywords lists keywords that have at least one indexed document of kind.
func (s *ResultStore) Keywords(ctx context.Context, kind domain.DocumentKind) ([]string, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.Keywords(ctx, kind)
}

// History lists indexed documents, newest first. An empty keyword lists all.
func (s *ResultStore) History(ctx context.Context, keyword string, limit int) ([]domain.DocumentRecord, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.ListDocuments(ctx, keyword, limit)
}

// RecordOutcomes indexes download outcomes for a run.
func (s *ResultStore) RecordOutcomes(ctx context.Context, runID, keyword string, outcomes []domain.DownloadOutcome) {
	if s.index == nil || len(outcomes) == 0 {
		return
	}
	if err := s.index.RecordOutcomes(ctx, runID, keyword, outcomes); err != nil {
		s.logger.Warn("failed to index download outcomes", "keyword", keyword, "error", err)
	}
}

func (s *ResultStore) record(ctx context.Context, rec domain.DocumentRecord) {
	if s.index == nil {
		return
	}
	if _, err := s.index.RecordDocument(ctx, rec); err != nil {
		s.logger.Warn("failed to index document", "keyword", rec.Keyword, "path", rec.Path, "error", err)
	}
}
