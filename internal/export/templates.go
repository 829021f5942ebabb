package export

import (
	"bytes"
	"embed"
	"encoding/base64"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate = template.Must(template.New("export.html").Funcs(template.FuncMap{
	"dutchDate": func(t time.Time) string { return DutchDate(t) },
	"lines":     func(s string) []string { return strings.Split(s, "\n") },
}).ParseFS(templateFS, "templates/export.html"))

// TemplateData holds data for document template rendering
type TemplateData struct {
	Theme       string
	GeneratedAt time.Time
	Sections    []TemplateSection
}

// TemplateSection is a Section with its depth, which picks the heading tag.
type TemplateSection struct {
	Heading     string
	Level       int
	NotesBox    string
	Blocks      []TemplateBlock
	Subsections []TemplateSection
}

// TemplateBlock is a Block with its image pre-encoded as a data URL.
type TemplateBlock struct {
	Block
	ImageSrc template.URL
}

// RenderDocumentHTML serialises doc into one self-contained HTML page.
// Chart images are inlined; chart tables follow them.
func RenderDocumentHTML(doc Document) (string, error) {
	data := TemplateData{Theme: doc.Theme, GeneratedAt: doc.GeneratedAt}
	for _, s := range doc.Sections {
		data.Sections = append(data.Sections, templateSection(s, 1))
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func templateSection(s Section, level int) TemplateSection {
	ts := TemplateSection{Heading: s.Heading, Level: level, NotesBox: s.NotesBox}
	for _, b := range s.Blocks {
		tb := TemplateBlock{Block: b}
		if b.Type == BlockImage && b.Image != nil {
			tb.ImageSrc = template.URL("data:" + b.Image.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(b.Image.Data))
		}
		ts.Blocks = append(ts.Blocks, tb)
	}
	for _, sub := range s.Subsections {
		ts.Subsections = append(ts.Subsections, templateSection(sub, level+1))
	}
	return ts
}
