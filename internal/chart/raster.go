package chart

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	CanvasWidth  = 1600
	CanvasHeight = 460
)

// Palette colours successive words; it wraps for more than ten words.
var Palette = []string{
	"#4f46e5", "#f59e0b", "#10b981", "#ef4444", "#14b8a6",
	"#a855f7", "#3b82f6", "#ec4899", "#84cc16", "#fb923c",
}

var (
	fontOnce sync.Once
	fontErr  error
	regular  *truetype.Font
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		regular, fontErr = truetype.Parse(goregular.TTF)
	})
	return regular, fontErr
}

// faces are not safe for concurrent use, so every raster gets its own.
func newFace(size float64) (font.Face, error) {
	f, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("parse chart font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// Rasterize draws rows as stacked absolute bars, one segment per word, and
// returns the PNG bytes.
func Rasterize(rows []Row, words []string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		width, height = CanvasWidth, CanvasHeight
	}
	small, err := newFace(12)
	if err != nil {
		return nil, err
	}
	legendFace, err := newFace(14)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(width, height)
	dc.SetHexColor("#ffffff")
	dc.Clear()

	const (
		left   = 70.0
		right  = 24.0
		top    = 56.0
		bottom = 120.0
	)
	x0, x1 := left, float64(width)-right
	y0, y1 := top, float64(height)-bottom

	drawLegend(dc, legendFace, words, float64(width)/2, 26)

	maxTotal := 0
	for _, r := range rows {
		maxTotal = max(maxTotal, r.Total(words))
	}
	step := niceStep(float64(maxTotal) / 5)
	yMax := math.Ceil(float64(maxTotal)/step) * step
	if yMax == 0 {
		yMax = step
	}
	scale := (y1 - y0) / yMax

	dc.SetFontFace(small)
	dc.SetLineWidth(1)
	for v := 0.0; v <= yMax+step/2; v += step {
		y := y1 - v*scale
		dc.SetHexColor("#e2e8f0")
		dc.DrawLine(x0, y, x1, y)
		dc.Stroke()
		dc.SetHexColor("#475569")
		dc.DrawStringAnchored(strconv.Itoa(int(v)), x0-8, y, 1, 0.35)
	}

	if len(rows) > 0 {
		slot := (x1 - x0) / float64(len(rows))
		barW := slot * 0.7
		for i, r := range rows {
			x := x0 + slot*float64(i) + (slot-barW)/2
			cursor := y1
			for j, w := range words {
				h := float64(r.Counts[w]) * scale
				if h <= 0 {
					continue
				}
				dc.SetHexColor(Palette[j%len(Palette)])
				dc.DrawRectangle(x, cursor-h, barW, h)
				dc.Fill()
				cursor -= h
			}

			cx, ty := x+barW/2, y1+10
			dc.Push()
			dc.RotateAbout(gg.Radians(-60), cx, ty)
			dc.SetHexColor("#334155")
			dc.DrawStringAnchored(r.Book, cx, ty, 1, 0.5)
			dc.Pop()
		}
	}

	dc.SetHexColor("#94a3b8")
	dc.DrawLine(x0, y1, x1, y1)
	dc.DrawLine(x0, y0, x0, y1)
	dc.Stroke()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode chart png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawLegend(dc *gg.Context, face font.Face, words []string, cx, y float64) {
	const box, gap, pad = 12.0, 6.0, 22.0

	dc.SetFontFace(face)
	widths := make([]float64, len(words))
	total := 0.0
	for i, w := range words {
		tw, _ := dc.MeasureString(w)
		widths[i] = box + gap + tw
		total += widths[i]
	}
	if len(words) > 1 {
		total += pad * float64(len(words)-1)
	}

	x := cx - total/2
	for i, w := range words {
		dc.SetHexColor(Palette[i%len(Palette)])
		dc.DrawRectangle(x, y-box/2, box, box)
		dc.Fill()
		dc.SetHexColor("#1e293b")
		dc.DrawStringAnchored(w, x+box+gap, y, 0, 0.35)
		x += widths[i] + pad
	}
}

// niceStep rounds raw up to 1, 2 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if raw <= 1 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch n := raw / mag; {
	case n <= 1:
		return mag
	case n <= 2:
		return 2 * mag
	case n <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}
