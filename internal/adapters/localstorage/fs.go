package localstorage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"effectharvest/internal/core/domain"
	"effectharvest/internal/textutil"
)

const (
	timestampLayout = "20060102_150405"
	partSuffix      = ".part"
	copyBufferSize  = 32 * 1024
)

// LocalStorage implements ports.Storage on an afero filesystem.
type LocalStorage struct {
	ResultsDir string
	VideoDir   string
	fs         afero.Fs
}

// NewLocalStorage creates a new LocalStorage instance. A nil fs means the OS filesystem.
func NewLocalStorage(fs afero.Fs, resultsDir, videoDir string) *LocalStorage {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalStorage{ResultsDir: resultsDir, VideoDir: videoDir, fs: fs}
}

// SaveSearchResult saves the merged search result as effect_<keyword>_<timestamp>.json.
func (s *LocalStorage) SaveSearchResult(ctx context.Context, result *domain.MergedResult, at time.Time) (string, error) {
	if result == nil {
		return "", errors.New("save search result: nil result")
	}
	return s.writeDocument("effect", result.Keyword, at, result)
}

// SaveDescriptors saves the descriptor list as video_urls_<keyword>_<timestamp>.json.
func (s *LocalStorage) SaveDescriptors(ctx context.Context, keyword string, descriptors []domain.AssetDescriptor, at time.Time) (string, error) {
	if descriptors == nil {
		descriptors = []domain.AssetDescriptor{}
	}
	return s.writeDocument("video_urls", keyword, at, descriptors)
}

// LoadDescriptors reads a descriptor list document.
func (s *LocalStorage) LoadDescriptors(ctx context.Context, path string) ([]domain.AssetDescriptor, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, &domain.FilesystemError{Op: "read", Path: path, Err: err}
	}
	var descriptors []domain.AssetDescriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("decode descriptors %s: %w", path, err)
	}
	return descriptors, nil
}

// AssetPath returns <video_dir>/<keyword>/<fileName>.
func (s *LocalStorage) AssetPath(keyword, fileName string) string {
	return filepath.Join(s.VideoDir, keywordDir(keyword), fileName)
}

// AssetExists reports whether path is already present.
func (s *LocalStorage) AssetExists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, &domain.FilesystemError{Op: "stat", Path: path, Err: err}
	}
	return ok, nil
}

// SaveAsset streams reader into path via a ".part" sibling that is renamed
// into place only after the copy succeeds.
func (s *LocalStorage) SaveAsset(ctx context.Context, path string, reader io.Reader) (int64, error) {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, &domain.FilesystemError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}

	partPath := path + partSuffix
	file, err := s.fs.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &domain.FilesystemError{Op: "create", Path: partPath, Err: err}
	}

	src := &readTracker{r: reader}
	written, copyErr := io.CopyBuffer(file, src, make([]byte, copyBufferSize))
	closeErr := file.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = &domain.FilesystemError{Op: "close", Path: partPath, Err: closeErr}
	}
	if copyErr != nil {
		_ = s.fs.Remove(partPath)
		if src.err != nil {
			return written, fmt.Errorf("read asset stream: %w", src.err)
		}
		var fsErr *domain.FilesystemError
		if errors.As(copyErr, &fsErr) {
			return written, copyErr
		}
		return written, &domain.FilesystemError{Op: "write", Path: partPath, Err: copyErr}
	}

	if err := s.fs.Rename(partPath, path); err != nil {
		_ = s.fs.Remove(partPath)
		return written, &domain.FilesystemError{Op: "rename", Path: path, Err: err}
	}
	return written, nil
}

func (s *LocalStorage) writeDocument(prefix, keyword string, at time.Time, payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("encode %s document: %w", prefix, err)
	}

	if err := s.fs.MkdirAll(s.ResultsDir, 0o755); err != nil {
		return "", &domain.FilesystemError{Op: "mkdir", Path: s.ResultsDir, Err: err}
	}

	path, err := s.documentPath(prefix, keyword, at)
	if err != nil {
		return "", err
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return "", &domain.FilesystemError{Op: "write", Path: tmp, Err: err}
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return "", &domain.FilesystemError{Op: "rename", Path: path, Err: err}
	}
	return path, nil
}

// documentPath picks a name that does not collide with an earlier document
// written in the same second.
func (s *LocalStorage) documentPath(prefix, keyword string, at time.Time) (string, error) {
	base := fmt.Sprintf("%s_%s_%s", prefix, keywordDir(keyword), at.Format(timestampLayout))
	path := filepath.Join(s.ResultsDir, base+".json")
	for n := 2; ; n++ {
		exists, err := afero.Exists(s.fs, path)
		if err != nil {
			return "", &domain.FilesystemError{Op: "stat", Path: path, Err: err}
		}
		if !exists {
			return path, nil
		}
		path = filepath.Join(s.ResultsDir, fmt.Sprintf("%s_%d.json", base, n))
	}
}

func keywordDir(keyword string) string {
	return textutil.KeywordName(keyword)
}

// readTracker remembers read-side failures so they are not reported as disk errors.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
