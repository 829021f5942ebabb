package chart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingFetcher struct {
	calls atomic.Int32
	delay time.Duration
	rows  []Row
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context, version, mode string, words []string) ([]Row, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.rows, f.err
}

func sampleRows() []Row {
	return []Row{
		{Book: "Genesis", Counts: map[string]int{"licht": 3, "duisternis": 1}},
		{Book: "Johannes", Counts: map[string]int{"licht": 23, "duisternis": 6}},
		{Book: "Psalmen", Counts: map[string]int{"licht": 11}},
	}
}

func TestKeySortsWords(t *testing.T) {
	tests := []struct {
		version, mode string
		words         []string
		want          string
	}{
		{"HSV", "exact", []string{"licht", "duisternis"}, "HSV|exact|duisternis,licht"},
		{"NBV21", "fuzzy", []string{"b", "a", "c"}, "NBV21|fuzzy|a,b,c"},
		{"HSV", "exact", nil, "HSV|exact|"},
	}
	for _, tt := range tests {
		if got := Key(tt.version, tt.mode, tt.words); got != tt.want {
			t.Errorf("Key(%q, %q, %v) = %q, want %q", tt.version, tt.mode, tt.words, got, tt.want)
		}
	}
}

func TestSpecNormalized(t *testing.T) {
	s := Spec{Words: []string{" licht ", "", "  "}}.Normalized()
	if s.Version != DefaultVersion || s.Mode != DefaultMode {
		t.Errorf("defaults not applied: %+v", s)
	}
	if len(s.Words) != 1 || s.Words[0] != "licht" {
		t.Errorf("Words = %v", s.Words)
	}
	if got := s.DefaultTitle(); got != "Woordfrequentie — HSV" {
		t.Errorf("DefaultTitle = %q", got)
	}
}

func TestRowJSONIsFlat(t *testing.T) {
	var r Row
	if err := json.Unmarshal([]byte(`{"book":"Genesis","licht":4,"duisternis":"x"}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.Book != "Genesis" || r.Counts["licht"] != 4 || r.Counts["duisternis"] != 0 {
		t.Errorf("decoded %+v", r)
	}

	out, err := json.Marshal(Row{Book: "Ruth", Counts: map[string]int{"liefde": 2}})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"book":"Ruth","liefde":2}` {
		t.Errorf("encoded %s", out)
	}
}

func TestRankKeepsTopBooks(t *testing.T) {
	var rows []Row
	for i := range 30 {
		rows = append(rows, Row{Book: fmt.Sprintf("B%02d", i), Counts: map[string]int{"w": i}})
	}
	ranked := rank(rows, []string{"w"})
	if len(ranked) != MaxBooks {
		t.Fatalf("len = %d, want %d", len(ranked), MaxBooks)
	}
	if ranked[0].Book != "B29" || ranked[MaxBooks-1].Book != "B06" {
		t.Errorf("order: first %s last %s", ranked[0].Book, ranked[MaxBooks-1].Book)
	}
}

func TestStatsClientFetch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stats/wordcounts" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"book":"Genesis","licht":3},{"book":"Johannes","licht":23}]}`)
	}))
	defer srv.Close()

	c := NewStatsClient(srv.URL+"/api/stats/", time.Second)
	rows, err := c.Fetch(context.Background(), "HSV", "exact", []string{"licht", "duisternis"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 2 || rows[1].Counts["licht"] != 23 {
		t.Errorf("rows = %+v", rows)
	}
	if gotQuery != "mode=exact&version=HSV&words=licht%2Cduisternis" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestStatsClientNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	rows, err := NewStatsClient(srv.URL, time.Second).Fetch(context.Background(), "HSV", "exact", []string{"licht"})
	if !errors.Is(err, ErrStatsUnavailable) {
		t.Errorf("err = %v, want ErrStatsUnavailable", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}
}

func TestStatsClientEmptyWordsSkipsCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	rows, err := NewStatsClient(srv.URL, time.Second).Fetch(context.Background(), "HSV", "exact", nil)
	if err != nil || rows != nil {
		t.Errorf("Fetch = %v, %v", rows, err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times", hits.Load())
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore(2)
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if data, ok, _ := m.Get(ctx, "a"); !ok || string(data) != "1" {
		t.Fatalf("Get a = %q, %v", data, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Error("expired entry returned")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry not removed, Len = %d", m.Len())
	}
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(2)
	_ = m.Set(ctx, "a", []byte("1"), 0)
	_ = m.Set(ctx, "b", []byte("2"), 0)
	_, _, _ = m.Get(ctx, "a")
	_ = m.Set(ctx, "c", []byte("3"), 0)

	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok, _ := m.Get(ctx, k); !ok {
			t.Errorf("%s missing", k)
		}
	}
}

func TestRasterizeProducesPNG(t *testing.T) {
	img, err := Rasterize(sampleRows(), []string{"licht", "duisternis"}, CanvasWidth, CanvasHeight)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != CanvasWidth || cfg.Height != CanvasHeight {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestNiceStep(t *testing.T) {
	tests := map[float64]float64{0: 1, 0.4: 1, 3: 5, 4.6: 5, 12: 20, 60: 100, 180: 200}
	for raw, want := range tests {
		if got := niceStep(raw); got != want {
			t.Errorf("niceStep(%v) = %v, want %v", raw, got, want)
		}
	}
}

func TestRendererEmptyWordsSkipsFetch(t *testing.T) {
	f := &countingFetcher{rows: sampleRows()}
	r := NewRenderer(f, NewMemoryStore(8))

	out, err := r.Render(context.Background(), Spec{Words: []string{" ", ""}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Image != nil || len(out.Rows) != 0 || len(out.Words) != 0 {
		t.Errorf("out = %+v", out)
	}
	if f.calls.Load() != 0 {
		t.Errorf("fetch called %d times", f.calls.Load())
	}
}

func TestRendererConcurrentRendersShareOneFetch(t *testing.T) {
	f := &countingFetcher{rows: sampleRows(), delay: 50 * time.Millisecond}
	r := NewRenderer(f, NewMemoryStore(8))

	const n = 8
	images := make([][]byte, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			words := []string{"licht", "duisternis"}
			if i%2 == 1 {
				words = []string{"duisternis", "licht"}
			}
			out, err := r.Render(context.Background(), Spec{Version: "HSV", Words: words})
			if err != nil {
				t.Errorf("Render: %v", err)
				return
			}
			images[i] = out.Image
		}()
	}
	wg.Wait()

	if f.calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", f.calls.Load())
	}
	for i := 1; i < n; i++ {
		if images[i] == nil || !bytes.Equal(images[0], images[i]) {
			t.Fatalf("render %d differs from render 0", i)
		}
	}
}

// gatedFetcher blocks until released or until its context ends.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) Fetch(ctx context.Context, version, mode string, words []string) ([]Row, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	select {
	case <-f.release:
		return sampleRows(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRendererCancelledCallerDoesNotDegradeOthers(t *testing.T) {
	f := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	r := NewRenderer(f, NewMemoryStore(8))
	spec := Spec{Version: "HSV", Words: []string{"licht"}}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Render(firstCtx, spec)
		firstErr <- err
	}()
	<-f.started

	second := make(chan *Rendered, 1)
	go func() {
		out, err := r.Render(context.Background(), spec)
		if err != nil {
			t.Errorf("second Render: %v", err)
		}
		second <- out
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first Render err = %v, want context.Canceled", err)
	}

	close(f.release)
	out := <-second
	if out == nil || len(out.Image) == 0 || len(out.Rows) == 0 {
		t.Fatalf("second Render degraded: %+v", out)
	}
	if f.calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", f.calls.Load())
	}

	cached, err := r.Render(context.Background(), spec)
	if err != nil || !bytes.Equal(cached.Image, out.Image) {
		t.Errorf("cached render differs: %v", err)
	}
}

func TestRendererRanksRows(t *testing.T) {
	r := NewRenderer(&countingFetcher{rows: sampleRows()}, nil)
	out, err := r.Render(context.Background(), Spec{Words: []string{"licht", "duisternis"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Rows) != 3 || out.Rows[0].Book != "Johannes" || out.Rows[2].Book != "Genesis" {
		t.Errorf("rows = %+v", out.Rows)
	}
	if len(out.Image) == 0 {
		t.Error("expected image")
	}
}

func TestRendererStatsFailureIsNotCached(t *testing.T) {
	f := &countingFetcher{err: ErrStatsUnavailable}
	r := NewRenderer(f, NewMemoryStore(8))
	spec := Spec{Words: []string{"licht"}}

	for range 2 {
		out, err := r.Render(context.Background(), spec)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if out.Image != nil || len(out.Rows) != 0 {
			t.Errorf("out = %+v, want empty", out)
		}
	}
	if f.calls.Load() != 2 {
		t.Errorf("fetch called %d times, want 2", f.calls.Load())
	}
}

func TestRendererEmptyResultIsCached(t *testing.T) {
	f := &countingFetcher{rows: []Row{}}
	r := NewRenderer(f, NewMemoryStore(8))
	spec := Spec{Words: []string{"zeldzaam"}}

	for range 2 {
		if _, err := r.Render(context.Background(), spec); err != nil {
			t.Fatal(err)
		}
	}
	if f.calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", f.calls.Load())
	}
}
