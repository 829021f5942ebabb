package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bijbelzoek/api/internal/logging"
)

// Renderer produces one output format from a Document.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// Record describes one export attempt for the export log.
type Record struct {
	ID         string    `json:"id"`
	Format     Format    `json:"format"`
	Filename   string    `json:"filename"`
	Theme      string    `json:"theme"`
	Bytes      int       `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	RecordSucceeded = "succeeded"
	RecordFailed    = "failed"
)

// Recorder persists export attempts.
type Recorder interface {
	RecordExport(ctx context.Context, rec Record) error
}

// Archiver stores a copy of a finished export and returns its key.
type Archiver interface {
	Archive(ctx context.Context, filename, contentType string, data []byte, at time.Time) (string, error)
}

// Service provides document export functionality
type Service struct {
	builder  *Builder
	pdf      Renderer
	docx     Renderer
	recorder Recorder
	archiver Archiver
	now      func() time.Time
}

type Option func(*Service)

// WithRecorder logs every export attempt to r.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

// WithArchiver uploads every successful export to a.
func WithArchiver(a Archiver) Option { return func(s *Service) { s.archiver = a } }

// WithClock replaces time.Now, which dates the document and its filename.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a new export service
func NewService(builder *Builder, pdf, docx Renderer, opts ...Option) *Service {
	s := &Service{builder: builder, pdf: pdf, docx: docx, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export validates format, builds the document once and renders it. On
// error no partial output is returned.
func (s *Service) Export(ctx context.Context, format string, req Request) (*Result, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	renderer := s.docx
	if f == FormatPDF {
		renderer = s.pdf
	}
	if renderer == nil {
		return nil, fmt.Errorf("%w: %s", ErrRendererNotConfigured, f)
	}

	logger := logging.FromContext(ctx).With("format", f)
	start := s.now()
	doc := s.builder.Build(ctx, req, start)
	rec := Record{
		ID:        uuid.New().String(),
		Format:    f,
		Filename:  Filename(doc.Theme, start, f),
		Theme:     doc.Theme,
		CreatedAt: start,
	}

	data, err := renderer.Render(ctx, doc)
	elapsed := s.now().Sub(start)
	rec.DurationMS = elapsed.Milliseconds()
	if err != nil {
		rec.Status, rec.Error = RecordFailed, err.Error()
		s.record(ctx, rec)
		logger.Error("export failed", "theme", doc.Theme, "err", err)
		return nil, fmt.Errorf("render %s: %w", f, err)
	}

	res := &Result{Data: data, Filename: rec.Filename, MimeType: f.MimeType(), Theme: doc.Theme}
	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, res.Filename, res.MimeType, data, start)
		if err != nil {
			logger.Warn("export archive failed", "filename", res.Filename, "err", err)
		} else {
			res.ArchiveKey = key
		}
	}

	rec.Status, rec.Bytes, rec.ArchiveKey = RecordSucceeded, len(data), res.ArchiveKey
	s.record(ctx, rec)
	logger.Info("export finished", "filename", res.Filename, "bytes", len(data), "duration", elapsed)
	return res, nil
}

// record never fails an export.
func (s *Service) record(ctx context.Context, rec Record) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordExport(ctx, rec); err != nil {
		logging.FromContext(ctx).Warn("export log write failed", "id", rec.ID, "err", err)
	}
}
