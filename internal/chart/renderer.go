package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"bijbelzoek/api/internal/logging"
)

// Renderer turns chart specs into stacked bar PNGs. Results are memoized in
// a Store and concurrent renders of the same key share one fetch.
type Renderer struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	width   int
	height  int
	group   singleflight.Group
}

type Option func(*Renderer)

// WithTTL sets how long rendered charts stay cached. Zero keeps them until
// the store evicts them.
func WithTTL(ttl time.Duration) Option {
	return func(r *Renderer) { r.ttl = ttl }
}

// WithCanvasSize overrides the raster size.
func WithCanvasSize(width, height int) Option {
	return func(r *Renderer) { r.width, r.height = width, height }
}

func NewRenderer(fetcher Fetcher, store Store, opts ...Option) *Renderer {
	if store == nil {
		store = NullStore{}
	}
	r := &Renderer{
		fetcher: fetcher,
		store:   store,
		ttl:     24 * time.Hour,
		width:   CanvasWidth,
		height:  CanvasHeight,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the chart for spec. A stats failure degrades to an empty
// result that is not cached; only raster errors are returned.
func (r *Renderer) Render(ctx context.Context, spec Spec) (*Rendered, error) {
	spec = spec.Normalized()
	if len(spec.Words) == 0 {
		return &Rendered{Rows: []Row{}, Words: []string{}}, nil
	}

	key := Key(spec.Version, spec.Mode, spec.Words)
	if cached, ok := r.lookup(ctx, key); ok {
		return cached, nil
	}

	// The shared render outlives any single caller; the stats client's own
	// timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (v any, err error) {
		// DoChan would re-panic on its own goroutine, out of any caller's reach.
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("render chart %s: panic: %v", key, rec)
			}
		}()
		if cached, ok := r.lookup(shared, key); ok {
			return cached, nil
		}
		return r.render(shared, key, spec)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logging.FromContext(ctx).Debug("chart render shared", "key", key)
		}
		return res.Val.(*Rendered), nil
	}
}

func (r *Renderer) render(ctx context.Context, key string, spec Spec) (*Rendered, error) {
	logger := logging.FromContext(ctx)

	rows, err := r.fetcher.Fetch(ctx, spec.Version, spec.Mode, spec.Words)
	if err != nil {
		logger.Warn("chart stats unavailable", "key", key, "err", err)
		return &Rendered{Rows: []Row{}, Words: spec.Words}, nil
	}

	out := &Rendered{Rows: rank(rows, spec.Words), Words: spec.Words}
	if len(out.Rows) > 0 {
		img, err := Rasterize(out.Rows, spec.Words, r.width, r.height)
		if err != nil {
			return nil, fmt.Errorf("rasterize chart %s: %w", key, err)
		}
		out.Image = img
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode chart %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, data, r.ttl); err != nil {
		logger.Warn("chart cache write failed", "key", key, "err", err)
	}
	logger.Debug("chart rendered", "key", key, "rows", len(out.Rows), "bytes", len(out.Image))
	return out, nil
}

func (r *Renderer) lookup(ctx context.Context, key string) (*Rendered, bool) {
	data, ok, err := r.store.Get(ctx, key)
	if err != nil {
		logging.FromContext(ctx).Warn("chart cache read failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var out Rendered
	if err := json.Unmarshal(data, &out); err != nil {
		_ = r.store.Delete(ctx, key)
		return nil, false
	}
	if out.Rows == nil {
		out.Rows = []Row{}
	}
	return &out, true
}
