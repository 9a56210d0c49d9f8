package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"sync"
	"time"

	"github.com/fwojciec/audit"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

// ErrProcessingFailed indicates Gemini rejected an uploaded file.
var ErrProcessingFailed = errors.New("file processing failed")

// FileService is the subset of the Gemini Files API used by [Store].
// *genai.Files satisfies it.
type FileService interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
}

// Interface compliance check.
var _ FileService = (*genai.Files)(nil)

// Store uploads documents and remembers them by absolute path for the
// lifetime of the Store, so the same file is uploaded once. Different files
// that share a base name are uploaded separately.
type Store struct {
	files        FileService
	logger       *slog.Logger
	pollInterval time.Duration
	timeout      time.Duration
	concurrency  int

	mu    sync.Mutex
	cache map[string]*genai.File
}

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger for upload progress.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPollInterval sets how often processing state is checked.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) { s.pollInterval = d }
}

// WithTimeout bounds how long a single file may stay in processing.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithConcurrency sets how many files UploadAll uploads at once.
func WithConcurrency(n int) Option {
	return func(s *Store) { s.concurrency = n }
}

// New creates a [Store] backed by the Gemini API.
func New(ctx context.Context, apiKey string, opts ...Option) (*Store, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return NewWithService(gc.Files, opts...), nil
}

// NewWithService creates a [Store] backed by files.
func NewWithService(files FileService, opts ...Option) *Store {
	s := &Store{
		files:        files,
		logger:       slog.New(slog.DiscardHandler),
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
		concurrency:  defaultConcurrency,
		cache:        make(map[string]*genai.File),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upload uploads the file at path and waits until it is active.
func (s *Store) Upload(ctx context.Context, path string, typ audit.DocumentType) (audit.Document, error) {
	base := filepath.Base(path)
	key := cacheKey(path)

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		s.logger.Debug("using cached upload", "path", key, "uri", cached.URI)
		return ConvertFile(cached, typ), nil
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = defaultMIMEType
	}

	s.logger.Info("uploading document", "file", base, "type", typ, "mime", mimeType)
	f, err := s.files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: base,
	})
	if err != nil {
		return audit.Document{}, fmt.Errorf("gemini: upload %s: %w", base, err)
	}

	f, err = s.waitActive(ctx, f)
	if err != nil {
		return audit.Document{}, fmt.Errorf("gemini: %s: %w", base, err)
	}

	s.mu.Lock()
	s.cache[key] = f
	s.mu.Unlock()
	s.logger.Info("document ready", "file", base, "uri", f.URI)
	return ConvertFile(f, typ), nil
}

func cacheKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// UploadAll uploads paths concurrently. The documents are returned in the
// order of paths; the first failure cancels the remaining uploads.
func (s *Store) UploadAll(ctx context.Context, paths []string, typ audit.DocumentType) ([]audit.Document, error) {
	docs := make([]audit.Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.concurrency, 1))
	for i, p := range paths {
		g.Go(func() error {
			doc, err := s.Upload(ctx, p, typ)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// waitActive polls f until processing finishes.
func (s *Store) waitActive(ctx context.Context, f *genai.File) (*genai.File, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		switch f.State {
		case genai.FileStateActive, genai.FileStateUnspecified, "":
			return f, nil
		case genai.FileStateFailed:
			reason := "unknown error"
			if f.Error != nil && f.Error.Message != "" {
				reason = f.Error.Message
			}
			return nil, fmt.Errorf("%w: %s", ErrProcessingFailed, reason)
		}

		s.logger.Debug("waiting for processing", "name", f.Name, "state", f.State)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		next, err := s.files.Get(ctx, f.Name, nil)
		if err != nil {
			return nil, err
		}
		f = next
	}
}

// ConvertFile maps an uploaded Gemini file to a request document. The
// display name is preferred over the generated resource name.
func ConvertFile(f *genai.File, typ audit.DocumentType) audit.Document {
	name := f.DisplayName
	if name == "" {
		name = f.Name
	}
	return audit.Document{Name: name, URI: f.URI, Type: typ, Status: statusUploaded}
}
