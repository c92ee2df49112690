package ports

import (
	"context"
	"io"
	"time"

	"effectharvest/internal/core/domain"
)

// Fetcher issues a single paginated query against the effect catalog.
type Fetcher interface {
	// Fetch requests one page starting at offset. It never retries.
	Fetch(ctx context.Context, query domain.SearchQuery, offset int) (*domain.Page, error)
}

// Downloader defines the contract for streaming a remote media asset.
type Downloader interface {
	// Download fetches the asset at videoURL.
	// Returns a ReadCloser that the caller must close.
	Download(ctx context.Context, videoURL string) (io.ReadCloser, error)
}

// Storage defines the contract for persisting documents and media files.
type Storage interface {
	// SaveSearchResult writes the merged result document and returns its path.
	SaveSearchResult(ctx context.Context, result *domain.MergedResult, at time.Time) (string, error)

	// SaveDescriptors writes the descriptor list document and returns its path.
	SaveDescriptors(ctx context.Context, keyword string, descriptors []domain.AssetDescriptor, at time.Time) (string, error)

	// LoadDescriptors reads a descriptor list document back.
	LoadDescriptors(ctx context.Context, path string) ([]domain.AssetDescriptor, error)

	// AssetPath returns where a media file for keyword is stored.
	AssetPath(keyword, fileName string) string

	// AssetExists reports whether a media file is already on disk.
	AssetExists(path string) (bool, error)

	// SaveAsset streams reader into path and returns the bytes written.
	// A partially written file never remains at path.
	SaveAsset(ctx context.Context, path string, reader io.Reader) (int64, error)
}

// RecordIndex keeps a durable index of persisted documents and download outcomes.
type RecordIndex interface {
	RecordDocument(ctx context.Context, rec domain.DocumentRecord) (int64, error)
	LatestDocument(ctx context.Context, keyword string, kind domain.DocumentKind) (*domain.DocumentRecord, error)
	ListDocuments(ctx context.Context, keyword string, limit int) ([]domain.DocumentRecord, error)
	Keywords(ctx context.Context, kind domain.DocumentKind) ([]string, error)
	RecordOutcomes(ctx context.Context, runID, keyword string, outcomes []domain.DownloadOutcome) error
}
