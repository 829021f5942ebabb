package app

import (
	"context"

	"bijbelzoek/api/internal/export"
)

// Exporter produces one export document.
type Exporter interface {
	Export(ctx context.Context, format string, req export.Request) (*export.Result, error)
}

// JobQueue exposes the PDF queue.
type JobQueue interface {
	Snapshot() export.QueueSnapshot
	Cancel(id string) error
}

// History lists recorded export attempts.
type History interface {
	ListExports(ctx context.Context, limit int) ([]export.Record, error)
}

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// Service is everything the HTTP layer calls into. Only the exporter is
// required; the other parts are optional.
type Service struct {
	exports Exporter
	queue   JobQueue
	history History
	checks  []namedCheck
}

type namedCheck struct {
	name  string
	check Check
}

type Option func(*Service)

func WithQueue(q JobQueue) Option { return func(s *Service) { s.queue = q } }

func WithHistory(h History) Option { return func(s *Service) { s.history = h } }

// WithCheck adds a readiness check reported under name.
func WithCheck(name string, check Check) Option {
	return func(s *Service) { s.checks = append(s.checks, namedCheck{name, check}) }
}

func NewService(exports Exporter, opts ...Option) *Service {
	s := &Service{exports: exports}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Export(ctx context.Context, format string, req export.Request) (*export.Result, error) {
	return s.exports.Export(ctx, format, req)
}

func (s *Service) Queue() (export.QueueSnapshot, bool) {
	if s.queue == nil {
		return export.QueueSnapshot{}, false
	}
	return s.queue.Snapshot(), true
}

func (s *Service) CancelJob(id string) error {
	if s.queue == nil {
		return export.ErrJobNotFound
	}
	return s.queue.Cancel(id)
}

func (s *Service) History(ctx context.Context, limit int) ([]export.Record, error) {
	if s.history == nil {
		return nil, errHistoryDisabled
	}
	return s.history.ListExports(ctx, limit)
}

// Ping runs every readiness check and returns the failures by name.
func (s *Service) Ping(ctx context.Context) map[string]error {
	out := make(map[string]error, len(s.checks))
	for _, c := range s.checks {
		out[c.name] = c.check(ctx)
	}
	return out
}
