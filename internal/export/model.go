package export

import (
	"fmt"
	"time"
)

// Document is the format-neutral export tree both renderers consume.
type Document struct {
	Theme       string
	GeneratedAt time.Time
	Sections    []Section
}

// Section is a heading with content. Heading is never empty and a section
// without items carries a placeholder paragraph instead of nothing.
type Section struct {
	Heading     string
	Blocks      []Block
	Subsections []Section
	// NotesBox, when set, is the label of a blank box for handwritten notes.
	NotesBox string
}

type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockTable     BlockType = "table"
	BlockImage     BlockType = "image"
)

type ParagraphStyle string

const (
	StyleBody    ParagraphStyle = "body"
	StyleMuted   ParagraphStyle = "muted"
	StyleQuote   ParagraphStyle = "quote"
	StyleBullet  ParagraphStyle = "bullet"
	StyleCaption ParagraphStyle = "caption"
)

// Block is one unit of section content; exactly one payload is set
// according to Type.
type Block struct {
	Type  BlockType
	Style ParagraphStyle
	Text  string
	Table *Table
	Image *Image
}

type Table struct {
	Header []string
	Rows   [][]string
}

// Image is a raster placed at Width x Height CSS pixels.
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
	Alt    string
}

// MimeType returns the image media type for data URLs.
func (i *Image) MimeType() string {
	if i.Format == "jpeg" {
		return "image/jpeg"
	}
	return "image/png"
}

func paragraph(style ParagraphStyle, text string) Block {
	return Block{Type: BlockParagraph, Style: style, Text: text}
}

func placeholder(text string) Block {
	return paragraph(StyleMuted, text)
}

var dutchMonths = [...]string{
	"januari", "februari", "maart", "april", "mei", "juni",
	"juli", "augustus", "september", "oktober", "november", "december",
}

// DutchDate formats t as "1 mei 2024".
func DutchDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), dutchMonths[t.Month()-1], t.Year())
}
