// Package docx writes Office Open XML word-processing documents: styled
// paragraphs, simple tables, inline PNG/JPEG pictures and a page footer.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Style is a paragraph style defined in word/styles.xml.
type Style string

const (
	StyleTitle    Style = "Title"
	StyleSubtitle Style = "Subtitle"
	StyleHeading1 Style = "Heading1"
	StyleHeading2 Style = "Heading2"
	StyleHeading3 Style = "Heading3"
	StyleBody     Style = "Normal"
	StyleMuted    Style = "Muted"
	StyleQuote    Style = "Quote"
	StyleBullet   Style = "ListBullet"
	StyleCaption  Style = "Caption"
	StyleNote     Style = "Note"
)

// MimeType is the media type of a .docx file.
const MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// EMUPerPixel converts CSS pixels (96 dpi) to English Metric Units.
const EMUPerPixel = 9525

var ErrInvalidImage = errors.New("invalid image")

// Image is a picture placed inline at the given pixel size.
type Image struct {
	Data   []byte
	Format string // "png" or "jpeg"
	Width  int
	Height int
	Alt    string
}

type media struct {
	name  string
	relID string
	data  []byte
}

// Document accumulates body content in order. The zero value is not usable;
// call New.
type Document struct {
	Title   string
	Creator string
	Created time.Time
	Footer  string

	body   []any
	media  []media
	images int
}

func New() *Document {
	return &Document{Creator: "Bijbelzoek.nl"}
}

// Paragraph appends text in style. Newlines become line breaks.
func (d *Document) Paragraph(style Style, text string) {
	p := paragraphXML{Runs: []runXML{textRun(text)}}
	p.Props = &paragraphPropsXML{Style: &valXML{Val: string(style)}}
	if style == StyleBullet {
		p.Runs[0].Content = append([]any{textXML{Text: "• ", Space: "preserve"}}, p.Runs[0].Content...)
	}
	d.body = append(d.body, p)
}

// Heading appends a heading; level is clamped to 1..3.
func (d *Document) Heading(level int, text string) {
	style := StyleHeading1
	switch {
	case level == 2:
		style = StyleHeading2
	case level >= 3:
		style = StyleHeading3
	}
	d.body = append(d.body, paragraphXML{
		Props: &paragraphPropsXML{Style: &valXML{Val: string(style)}, KeepNext: &emptyXML{}},
		Runs:  []runXML{textRun(text)},
	})
}

// PageBreak starts a new page.
func (d *Document) PageBreak() {
	d.body = append(d.body, paragraphXML{
		Runs: []runXML{{Content: []any{breakXML{Type: "page"}}}},
	})
}

// Table appends a full-width table with a repeated, shaded header row.
// Rows shorter than the header are padded with empty cells.
func (d *Document) Table(header []string, rows [][]string) {
	cols := len(header)
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}

	const fullWidth = 5000 // fiftieths of a percent
	colWidth := fullWidth / cols

	t := tableXML{
		Props: tablePropsXML{
			Style:  valXML{Val: "ExportTable"},
			Width:  widthXML{W: fullWidth, Type: "pct"},
			Layout: &typeXML{Type: "fixed"},
		},
	}
	for range cols {
		t.Grid.Cols = append(t.Grid.Cols, gridColXML{W: 9638 / cols})
	}

	row := func(values []string, head bool) tableRowXML {
		tr := tableRowXML{}
		if head {
			tr.Props = &rowPropsXML{Header: &emptyXML{}}
		}
		for i := range cols {
			value := ""
			if i < len(values) {
				value = values[i]
			}
			cell := tableCellXML{
				Props:      cellPropsXML{Width: widthXML{W: colWidth, Type: "pct"}},
				Paragraphs: []paragraphXML{{Runs: []runXML{textRun(value)}}},
			}
			if head {
				cell.Props.Shading = &shadingXML{Val: "clear", Color: "auto", Fill: "EEF2FF"}
				cell.Paragraphs[0].Props = &paragraphPropsXML{Style: &valXML{Val: "TableHeader"}}
			}
			tr.Cells = append(tr.Cells, cell)
		}
		return tr
	}

	if len(header) > 0 {
		t.Rows = append(t.Rows, row(header, true))
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, row(r, false))
	}
	d.body = append(d.body, t)
	// Word merges adjacent tables; keep them apart.
	d.body = append(d.body, paragraphXML{})
}

// Image appends a centred inline picture.
func (d *Document) Image(img Image) error {
	ext, err := imageExt(img.Format)
	if err != nil {
		return err
	}
	if len(img.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrInvalidImage)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidImage, img.Width, img.Height)
	}

	d.images++
	n := d.images
	m := media{
		name:  fmt.Sprintf("image%d.%s", n, ext),
		relID: fmt.Sprintf("rId%d", n+2),
		data:  img.Data,
	}
	d.media = append(d.media, m)

	size := extentXML{Cx: int64(img.Width) * EMUPerPixel, Cy: int64(img.Height) * EMUPerPixel}
	drawing := drawingXML{Inline: inlineXML{
		Extent: size,
		DocPr:  docPrXML{ID: n, Name: fmt.Sprintf("Picture %d", n), Descr: img.Alt},
		Graphic: graphicXML{Data: graphicDataXML{
			URI: nsPic,
			Pic: picXML{
				NvPicPr:  nvPicPrXML{CNvPr: docPrXML{ID: n, Name: m.name}},
				BlipFill: blipFillXML{Blip: blipXML{Embed: m.relID}},
				SpPr:     spPrXML{Xfrm: xfrmXML{Ext: size}, Geom: geomXML{Prst: "rect"}},
			},
		}},
	}}
	d.body = append(d.body, paragraphXML{
		Props: &paragraphPropsXML{Jc: &valXML{Val: "center"}},
		Runs:  []runXML{{Content: []any{drawing}}},
	})
	return nil
}

// Images reports how many pictures were added.
func (d *Document) Images() int { return d.images }

// Bytes renders the package into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the package. Output is byte-for-byte stable for the same
// content and Created time.
func (d *Document) Write(w io.Writer) error {
	created := d.Created
	if created.IsZero() {
		created = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	docXML, err := d.documentXML()
	if err != nil {
		return err
	}

	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"docProps/core.xml", []byte(coreXML(d.Title, d.Creator, created))},
		{"docProps/app.xml", []byte(appXML)},
		{"word/document.xml", docXML},
		{"word/styles.xml", []byte(stylesXML)},
		{"word/footer1.xml", []byte(footerXML(d.Footer))},
		{"word/_rels/document.xml.rels", []byte(d.documentRelsXML())},
	}

	zw := zip.NewWriter(w)
	for _, p := range parts {
		if err := writePart(zw, p.name, p.data, created); err != nil {
			return err
		}
	}
	for _, m := range d.media {
		if err := writePart(zw, "word/media/"+m.name, m.data, created); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close docx: %w", err)
	}
	return nil
}

func (d *Document) documentXML() ([]byte, error) {
	doc := documentXML{
		W: nsW, R: nsR, WP: nsWP, A: nsA, Pic: nsPic,
		Body: bodyXML{
			Content: d.body,
			SectPr: sectPrXML{
				Footer: footerRefXML{Type: "default", ID: "rId2"},
				PgSz:   pgSzXML{W: 11906, H: 16838},
				// 16mm top, 18mm bottom, 14mm sides
				PgMar: pgMarXML{Top: 907, Right: 794, Bottom: 1020, Left: 794, Header: 454, Footer: 454},
			},
		},
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document.xml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func (d *Document) documentRelsXML() string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	b.WriteString(`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="footer1.xml"/>`)
	for _, m := range d.media {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`, m.relID, m.name)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func writePart(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func textRun(text string) runXML {
	var content []any
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			content = append(content, breakXML{})
		}
		content = append(content, textXML{Text: line, Space: "preserve"})
	}
	return runXML{Content: content}
}

func imageExt(format string) (string, error) {
	switch strings.ToLower(format) {
	case "png":
		return "png", nil
	case "jpeg", "jpg":
		return "jpeg", nil
	default:
		return "", fmt.Errorf("%w: format %q", ErrInvalidImage, format)
	}
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
