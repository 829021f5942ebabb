package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"bijbelzoek/api/internal/chart"
	"bijbelzoek/api/internal/logging"
)

const (
	headingNotes  = "Notities"
	headingTexts  = "Teksten"
	headingAI     = "AI-resultaten"
	headingCharts = "Grafieken"

	missingChartData = "Grafiekgegevens ontbreken."

	// chartTableRows bounds the accessible table under each chart.
	chartTableRows = 12
)

// Server charts are placed in a fixed box matching the raster aspect ratio.
var serverChartBox = struct{ Width, Height int }{640, 640 * chart.CanvasHeight / chart.CanvasWidth}

// KindGroup is one AI result kind in display order.
type KindGroup struct {
	Kind  string
	Label string
}

// KindOrder lists the AI result groups in the order they appear. Results of
// any other kind are collected under Overig.
var KindOrder = []KindGroup{
	{"preek", "Preek"},
	{"bijbelstudie", "Bijbelstudie"},
	{"liederen", "Liederen"},
	{"actueelmedia", "Nieuws & Media"},
	{"", "Overig"},
}

// ChartRenderer renders server-computed charts.
type ChartRenderer interface {
	Render(ctx context.Context, spec chart.Spec) (*chart.Rendered, error)
}

// Builder turns requests into Documents.
type Builder struct {
	charts      ChartRenderer
	concurrency int
}

// NewBuilder returns a Builder. With a nil charts renderer every
// server-computed chart degrades to its placeholder.
func NewBuilder(charts ChartRenderer) *Builder {
	return &Builder{charts: charts, concurrency: 4}
}

// Build produces the document tree. It never fails: a chart or AI result
// that cannot be rendered becomes a placeholder.
func (b *Builder) Build(ctx context.Context, req Request, at time.Time) Document {
	return Document{
		Theme:       DeriveTheme(req),
		GeneratedAt: at,
		Sections: []Section{
			notesSection(req.GeneralNotes),
			textsSection(req.FavoriteTexts),
			aiSection(req.AIResults),
			b.chartsSection(ctx, req.FavoriteCharts),
		},
	}
}

func notesSection(notes string) Section {
	s := Section{Heading: headingNotes}
	if notes = strings.TrimSpace(normalizeNewlines(notes)); notes != "" {
		s.Blocks = []Block{paragraph(StyleBody, notes)}
	} else {
		s.Blocks = []Block{placeholder("Geen algemene notities.")}
	}
	return s
}

func textsSection(texts []TextItem) Section {
	s := Section{Heading: headingTexts}
	if len(texts) == 0 {
		s.Blocks = []Block{placeholder("Geen favoriete teksten.")}
		return s
	}
	s.NotesBox = "Extra aantekeningen — Teksten"
	for _, t := range texts {
		sub := Section{Heading: firstNonEmpty(strings.TrimSpace(t.Ref), "Tekst")}
		if body := strings.TrimRight(normalizeNewlines(t.Text), "\n "); strings.TrimSpace(body) != "" {
			sub.Blocks = append(sub.Blocks, paragraph(StyleBody, body))
		} else {
			sub.Blocks = append(sub.Blocks, placeholder("Geen tekst."))
		}
		if note := strings.TrimSpace(normalizeNewlines(t.Note)); note != "" {
			sub.Blocks = append(sub.Blocks, paragraph(StyleMuted, "Notitie: "+note))
		}
		s.Subsections = append(s.Subsections, sub)
	}
	return s
}

func aiSection(results []AIResult) Section {
	s := Section{Heading: headingAI}
	if len(results) == 0 {
		s.Blocks = []Block{placeholder("Nog geen AI-resultaten.")}
		return s
	}

	groups := make(map[string][]AIResult)
	for _, r := range results {
		groups[kindKey(r)] = append(groups[kindKey(r)], r)
	}
	for _, g := range KindOrder {
		list := groups[g.Kind]
		if len(list) == 0 {
			continue
		}
		group := Section{Heading: g.Label}
		for _, r := range list {
			group.Subsections = append(group.Subsections, aiResultSection(r, g.Label))
		}
		s.Subsections = append(s.Subsections, group)
	}
	return s
}

// kindKey maps a result to its KindOrder entry; unknown kinds map to "".
func kindKey(r AIResult) string {
	kind := strings.ToLower(strings.TrimSpace(r.Kind))
	if kind == "" && r.Structured != nil {
		kind = strings.ToLower(strings.TrimSpace(r.Structured.Known.Kind))
	}
	for _, g := range KindOrder {
		if g.Kind == kind {
			return kind
		}
	}
	return ""
}

// aiResultSection prefers structured fields and falls back to what the prose
// parser found, field by field.
func aiResultSection(r AIResult, label string) Section {
	var known KnownFields
	var extra []ExtraField
	if r.Structured != nil {
		known, extra = r.Structured.Known, r.Structured.Extra
	}
	parsed := ParseProse(r.Text)

	s := Section{Heading: firstNonEmpty(strings.TrimSpace(known.Title), strings.TrimSpace(r.Title), label)}

	if summary := firstNonEmpty(known.Summary, parsed.Summary); summary != "" {
		s.Blocks = append(s.Blocks, paragraph(StyleMuted, strings.TrimSpace(normalizeNewlines(summary))))
	}

	outline := known.Outline
	if len(outline) == 0 {
		outline = parsed.Sections
	}
	for _, o := range outline {
		sub := Section{Heading: firstNonEmpty(strings.TrimSpace(o.Title), "-")}
		for _, p := range o.Points {
			sub.Blocks = append(sub.Blocks, paragraph(StyleBullet, p))
		}
		if len(sub.Blocks) == 0 {
			sub.Blocks = []Block{placeholder("Geen punten.")}
		}
		s.Subsections = append(s.Subsections, sub)
	}

	scriptures := known.Scriptures
	if len(scriptures) == 0 {
		scriptures = parsed.Scriptures
	}
	if len(scriptures) > 0 {
		sub := Section{Heading: "Centrale gedeelten"}
		for _, p := range scriptures {
			sub.Blocks = append(sub.Blocks, paragraph(StyleBody, p.Ref))
			if text := strings.TrimSpace(normalizeNewlines(p.Text)); text != "" {
				sub.Blocks = append(sub.Blocks, paragraph(StyleQuote, text))
			}
		}
		s.Subsections = append(s.Subsections, sub)
	}

	questions := known.Questions
	if len(questions) == 0 {
		questions = parsed.Questions
	}
	if len(questions) > 0 {
		sub := Section{Heading: "Gespreksvragen"}
		for _, q := range questions {
			sub.Blocks = append(sub.Blocks, paragraph(StyleBullet, q))
		}
		s.Subsections = append(s.Subsections, sub)
	}

	for _, f := range extra {
		sub := Section{Heading: firstNonEmpty(capitalize(strings.TrimSpace(f.Key)), "Overig")}
		if f.IsList() {
			for _, item := range f.List {
				sub.Blocks = append(sub.Blocks, paragraph(StyleBullet, item))
			}
		} else {
			sub.Blocks = append(sub.Blocks, paragraph(StyleBody, strings.TrimSpace(normalizeNewlines(f.Text))))
		}
		s.Subsections = append(s.Subsections, sub)
	}

	if len(parsed.Other) > 0 {
		sub := Section{Heading: "Overige tekst"}
		for _, line := range parsed.Other {
			sub.Blocks = append(sub.Blocks, paragraph(StyleBody, line))
		}
		s.Subsections = append(s.Subsections, sub)
	}

	if len(s.Blocks) == 0 && len(s.Subsections) == 0 {
		s.Blocks = []Block{placeholder("Geen inhoud.")}
	}
	return s
}

func (b *Builder) chartsSection(ctx context.Context, charts []ChartSpec) Section {
	s := Section{Heading: headingCharts}
	if len(charts) == 0 {
		s.Blocks = []Block{placeholder("Geen favoriete grafieken.")}
		return s
	}
	s.NotesBox = "Extra aantekeningen — Grafieken"

	// Charts render concurrently; each slot is written by one goroutine.
	subs := make([]Section, len(charts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, c := range charts {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					logging.FromContext(gctx).Error("chart section panic", "index", i, "panic", rec)
					subs[i] = brokenChartSection(c)
				}
			}()
			subs[i] = b.chartSection(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	s.Subsections = subs
	return s
}

func (b *Builder) chartSection(ctx context.Context, c ChartSpec) Section {
	spec := chart.Spec{Version: c.Version, Mode: c.Mode, Words: c.Words, Title: c.Title}.Normalized()
	s := Section{Heading: spec.DefaultTitle()}

	if len(spec.Words) > 0 {
		s.Blocks = append(s.Blocks, paragraph(StyleMuted,
			fmt.Sprintf("Versie: %s • Woorden: %s", spec.Version, strings.Join(spec.Words, ", "))))
	}

	img, rows := b.chartImage(ctx, c, spec)
	if img != nil {
		s.Blocks = append(s.Blocks, Block{Type: BlockImage, Image: img})
	} else {
		s.Blocks = append(s.Blocks, placeholder(missingChartData))
	}

	if len(spec.Words) > 0 {
		s.Blocks = append(s.Blocks, paragraph(StyleCaption, "Labels: "+strings.Join(spec.Words, " · ")))
	}
	if len(rows) > 0 {
		s.Blocks = append(s.Blocks, Block{Type: BlockTable, Table: chartTable(rows, spec.Words)})
	}
	if note := strings.TrimSpace(normalizeNewlines(c.Note)); note != "" {
		s.Blocks = append(s.Blocks, paragraph(StyleMuted, "Notitie: "+note))
	}
	return s
}

func brokenChartSection(c ChartSpec) Section {
	spec := chart.Spec{Version: c.Version, Mode: c.Mode, Words: c.Words, Title: c.Title}.Normalized()
	return Section{Heading: spec.DefaultTitle(), Blocks: []Block{placeholder(missingChartData)}}
}

// chartImage uses client image data when present and never fetches stats in
// that case. Otherwise it renders the chart from the stats collaborator.
func (b *Builder) chartImage(ctx context.Context, c ChartSpec, spec chart.Spec) (*Image, []chart.Row) {
	logger := logging.FromContext(ctx)
	alt := "Woordfrequentie: " + strings.Join(spec.Words, ", ")

	if strings.TrimSpace(c.ImageData) != "" {
		data, format, err := decodeDataURL(c.ImageData)
		if err != nil {
			logger.Warn("chart image unusable", "title", spec.DefaultTitle(), "err", err)
			return nil, nil
		}
		w, h := clientImageSize(c.DocxWidth, c.DocxHeight)
		return &Image{Data: data, Format: format, Width: w, Height: h, Alt: alt}, nil
	}

	if len(spec.Words) == 0 || b.charts == nil {
		return nil, nil
	}
	rendered, err := b.charts.Render(ctx, spec)
	if err != nil {
		logger.Warn("chart render failed", "title", spec.DefaultTitle(), "err", err)
		return nil, nil
	}
	rows := rendered.Top(chartTableRows)
	if rendered.Image == nil {
		return nil, rows
	}
	return &Image{
		Data:   rendered.Image,
		Format: "png",
		Width:  serverChartBox.Width,
		Height: serverChartBox.Height,
		Alt:    alt,
	}, rows
}

func chartTable(rows []chart.Row, words []string) *Table {
	t := &Table{Header: append([]string{"Boek"}, words...)}
	for _, r := range rows {
		cells := []string{r.Book}
		for _, w := range words {
			cells = append(cells, strconv.Itoa(r.Counts[w]))
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

var dataURLPrefixes = []struct{ prefix, format string }{
	{"data:image/png;base64,", "png"},
	{"data:image/jpeg;base64,", "jpeg"},
}

// decodeDataURL accepts base64 PNG and JPEG data URLs.
func decodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	for _, p := range dataURLPrefixes {
		if !strings.HasPrefix(s, p.prefix) {
			continue
		}
		payload := strings.TrimRight(s[len(p.prefix):], "=")
		data, err := base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidImageData, err)
		}
		if len(data) == 0 {
			return nil, "", fmt.Errorf("%w: empty image", ErrInvalidImageData)
		}
		return data, p.format, nil
	}
	return nil, "", fmt.Errorf("%w: not a png or jpeg data url", ErrInvalidImageData)
}

// clientImageSize scales the client's chart size to the page: at most 700px
// wide, never enlarged more than 1.35x, never narrower than 580px.
func clientImageSize(srcW, srcH float64) (int, int) {
	if srcW <= 0 {
		srcW = 640
	}
	if srcH <= 0 {
		srcH = 360
	}
	scale := math.Min(700/srcW, 1.35)
	w := max(580, int(math.Round(srcW*scale)))
	h := int(math.Round(srcH * scale))
	return w, max(h, 1)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
