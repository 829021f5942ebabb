// Package export turns a study session (notes, favourite texts, AI write-ups
// and word-frequency charts) into a PDF or DOCX document.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat validates a format name from the request path.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatDOCX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// MimeType returns the Content-Type of f.
func (f Format) MimeType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// Request is one export call. It is built per request and never stored.
type Request struct {
	GeneralNotes   string
	FavoriteTexts  []TextItem
	FavoriteCharts []ChartSpec
	AIResults      []AIResult
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var aux struct {
		GeneralNotes    string      `json:"generalNotes"`
		FavoritesTexts  []TextItem  `json:"favoritesTexts"`
		FavTexts        []TextItem  `json:"favTexts"`
		FavoritesCharts []ChartSpec `json:"favoritesCharts"`
		FavCharts       []ChartSpec `json:"favCharts"`
		AIResults       []AIResult  `json:"aiResults"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Request{
		GeneralNotes:   aux.GeneralNotes,
		FavoriteTexts:  aux.FavoritesTexts,
		FavoriteCharts: aux.FavoritesCharts,
		AIResults:      aux.AIResults,
	}
	if r.FavoriteTexts == nil {
		r.FavoriteTexts = aux.FavTexts
	}
	if r.FavoriteCharts == nil {
		r.FavoriteCharts = aux.FavCharts
	}
	return nil
}

// TextItem is a favourite verse. Text keeps its line breaks.
type TextItem struct {
	Ref  string `json:"ref"`
	Text string `json:"text"`
	Note string `json:"note,omitempty"`
}

// ChartSpec is either a client-rendered chart (ImageData set) or a chart the
// server computes from Version, Mode and Words.
type ChartSpec struct {
	ImageData  string
	Words      []string
	Version    string
	Mode       string
	Title      string
	Note       string
	DocxWidth  float64
	DocxHeight float64
}

func (c *ChartSpec) UnmarshalJSON(data []byte) error {
	var aux struct {
		ImageData  string   `json:"imageData"`
		DataURL    string   `json:"dataUrl"`
		PNG        string   `json:"png"`
		Image      string   `json:"image"`
		Words      []string `json:"words"`
		Version    string   `json:"version"`
		Mode       string   `json:"mode"`
		Title      string   `json:"title"`
		Note       string   `json:"note"`
		DocxWidth  pixels   `json:"docxWidth"`
		DocxHeight pixels   `json:"docxHeight"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = ChartSpec{
		ImageData:  firstNonEmpty(aux.ImageData, aux.DataURL, aux.PNG, aux.Image),
		Words:      aux.Words,
		Version:    aux.Version,
		Mode:       aux.Mode,
		Title:      aux.Title,
		Note:       aux.Note,
		DocxWidth:  float64(aux.DocxWidth),
		DocxHeight: float64(aux.DocxHeight),
	}
	return nil
}

func (c ChartSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ImageData  string   `json:"imageData,omitempty"`
		Words      []string `json:"words"`
		Version    string   `json:"version,omitempty"`
		Mode       string   `json:"mode,omitempty"`
		Title      string   `json:"title,omitempty"`
		Note       string   `json:"note,omitempty"`
		DocxWidth  float64  `json:"docxWidth,omitempty"`
		DocxHeight float64  `json:"docxHeight,omitempty"`
	}{c.ImageData, c.Words, c.Version, c.Mode, c.Title, c.Note, c.DocxWidth, c.DocxHeight})
}

// pixels accepts a JSON number or a numeric string; anything else is zero.
type pixels float64

func (p *pixels) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		*p = 0
		return nil
	}
	*p = pixels(v)
	return nil
}

// AIResult is a write-up from the AI collaborator: free prose, optionally
// with structured fields.
type AIResult struct {
	Kind       string      `json:"kind"`
	Title      string      `json:"title,omitempty"`
	Text       string      `json:"text,omitempty"`
	Structured *Structured `json:"structured,omitempty"`
}

// Result contains the export output
type Result struct {
	Data       []byte
	Filename   string
	MimeType   string
	Theme      string
	ArchiveKey string
}

// Exporter identifies this pipeline in the X-Exporter response header.
const Exporter = "bijbelzoek-v3"

// Header returns the response headers for serving r as an attachment.
func (r *Result) Header() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", r.MimeType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.Filename))
	h.Set("Content-Length", strconv.Itoa(len(r.Data)))
	h.Set("X-Exporter", Exporter)
	if r.ArchiveKey != "" {
		h.Set("X-Export-Archive-Key", r.ArchiveKey)
	}
	return h
}

var (
	// ErrUnsupportedFormat indicates a format other than pdf or docx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrRendererNotConfigured indicates the service was built without a renderer for the format.
	ErrRendererNotConfigured = errors.New("export renderer not configured")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrPDFTooSmall indicates the browser produced an implausibly small PDF.
	ErrPDFTooSmall = errors.New("export pdf output too small")
	// ErrQueueTimeout indicates a PDF job waited too long for its turn.
	ErrQueueTimeout = errors.New("export queue wait exceeded")
	// ErrJobTimeout indicates a PDF job ran longer than allowed.
	ErrJobTimeout = errors.New("export job timed out")
	// ErrJobCancelled indicates a PDF job was cancelled before it finished.
	ErrJobCancelled = errors.New("export job cancelled")
	// ErrJobNotFound indicates no queued or running job has the given id.
	ErrJobNotFound = errors.New("export job not found")
	// ErrInvalidImageData indicates a chart image that is not a PNG or JPEG data URL.
	ErrInvalidImageData = errors.New("invalid chart image data")
)

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
