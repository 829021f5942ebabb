package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readParts(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		parts[f.Name] = string(b)
	}
	return parts
}

func wellFormed(t *testing.T, name, content string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(content))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("%s is not well-formed XML: %v", name, err)
		}
	}
}

func sampleDocument(t *testing.T) *Document {
	d := New()
	d.Title = "Licht & duisternis"
	d.Footer = "Bijbelzoek.nl • Studie-export"
	d.Created = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	d.Paragraph(StyleTitle, "Licht & duisternis")
	d.Heading(1, "Notities")
	d.Paragraph(StyleBody, "eerste regel\ntweede regel")
	d.Paragraph(StyleBullet, "punt <één>")
	d.Table([]string{"Boek", "licht"}, [][]string{{"Johannes", "23"}, {"Genesis"}})
	if err := d.Image(Image{Data: tinyPNG(t), Format: "png", Width: 640, Height: 360, Alt: "Grafiek"}); err != nil {
		t.Fatalf("Image: %v", err)
	}
	d.PageBreak()
	return d
}

func TestWriteProducesPackage(t *testing.T) {
	data, err := sampleDocument(t).Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	parts := readParts(t, data)

	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"docProps/core.xml",
		"docProps/app.xml",
		"word/document.xml",
		"word/styles.xml",
		"word/footer1.xml",
		"word/_rels/document.xml.rels",
		"word/media/image1.png",
	} {
		content, ok := parts[name]
		if !ok {
			t.Errorf("missing part %s", name)
			continue
		}
		if strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".rels") {
			wellFormed(t, name, content)
		}
	}

	doc := parts["word/document.xml"]
	for _, want := range []string{
		`<w:pStyle w:val="Heading1">`,
		`eerste regel</w:t><w:br></w:br>`,
		`punt &lt;één&gt;`,
		`<w:tblHeader></w:tblHeader>`,
		`r:embed="rId3"`,
		`cx="6096000"`,
		`<w:br w:type="page"></w:br>`,
		`<w:pgSz w:w="11906" w:h="16838">`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document.xml missing %q", want)
		}
	}
	if !strings.Contains(parts["word/_rels/document.xml.rels"], `Target="media/image1.png"`) {
		t.Error("image relationship missing")
	}
	if !strings.Contains(parts["docProps/core.xml"], "Licht &amp; duisternis") {
		t.Error("core title not escaped")
	}
	if !strings.Contains(parts["word/footer1.xml"], "Studie-export • Pagina ") {
		t.Error("footer text missing")
	}
}

func TestTablePadsShortRows(t *testing.T) {
	d := New()
	d.Table([]string{"Boek", "a", "b"}, [][]string{{"Ruth"}})
	data, err := d.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	doc := readParts(t, data)["word/document.xml"]
	if got := strings.Count(doc, "<w:tc>"); got != 6 {
		t.Errorf("cells = %d, want 6", got)
	}
}

func TestWriteIsDeterministic(t *testing.T) {
	a, err := sampleDocument(t).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	b, err := sampleDocument(t).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical documents produced different bytes")
	}
}

func TestImageValidation(t *testing.T) {
	tests := []struct {
		name string
		img  Image
	}{
		{"format", Image{Data: []byte{1}, Format: "gif", Width: 1, Height: 1}},
		{"empty", Image{Format: "png", Width: 1, Height: 1}},
		{"size", Image{Data: []byte{1}, Format: "jpeg", Width: 0, Height: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			if err := d.Image(tt.img); !errors.Is(err, ErrInvalidImage) {
				t.Errorf("err = %v, want ErrInvalidImage", err)
			}
			if d.Images() != 0 {
				t.Error("invalid image was added")
			}
		})
	}
}

func TestJPEGMediaName(t *testing.T) {
	d := New()
	if err := d.Image(Image{Data: []byte{0xff, 0xd8}, Format: "jpg", Width: 10, Height: 10}); err != nil {
		t.Fatal(err)
	}
	data, err := d.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := readParts(t, data)["word/media/image1.jpeg"]; !ok {
		t.Error("jpeg media part missing")
	}
}

func TestEveryParagraphStyleIsDefined(t *testing.T) {
	data, err := sampleDocument(t).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	parts := readParts(t, data)

	styles := parts["word/styles.xml"]
	for _, s := range []Style{
		StyleTitle, StyleSubtitle, StyleHeading1, StyleHeading2, StyleHeading3,
		StyleBody, StyleMuted, StyleQuote, StyleBullet, StyleCaption, StyleNote,
	} {
		if !strings.Contains(styles, `w:styleId="`+string(s)+`"`) {
			t.Errorf("styles.xml does not define %s", s)
		}
	}
	if !strings.Contains(parts["word/footer1.xml"], " PAGE ") {
		t.Error("footer has no page number field")
	}
}
