package export

import (
	"context"
	"fmt"

	"bijbelzoek/api/internal/docx"
)

// DOCXRenderer builds the Word document straight from the Document tree; it
// needs no browser and may run concurrently with anything.
type DOCXRenderer struct{}

func NewDOCXRenderer() *DOCXRenderer { return &DOCXRenderer{} }

var docxStyles = map[ParagraphStyle]docx.Style{
	StyleBody:    docx.StyleBody,
	StyleMuted:   docx.StyleMuted,
	StyleQuote:   docx.StyleQuote,
	StyleBullet:  docx.StyleBullet,
	StyleCaption: docx.StyleCaption,
}

func (r *DOCXRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := docx.New()
	d.Title = doc.Theme
	d.Footer = FooterText
	d.Created = doc.GeneratedAt

	d.Paragraph(docx.StyleTitle, doc.Theme)
	d.Paragraph(docx.StyleSubtitle, "gegenereerd met Bijbelzoek.nl")
	d.Paragraph(docx.StyleSubtitle, DutchDate(doc.GeneratedAt))
	d.PageBreak()

	for _, s := range doc.Sections {
		if err := writeSection(d, s, 1); err != nil {
			return nil, err
		}
	}

	data, err := d.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pack docx: %w", err)
	}
	return data, nil
}

func writeSection(d *docx.Document, s Section, level int) error {
	d.Heading(level, s.Heading)
	if s.NotesBox != "" {
		// Blank lines give room to write in the box.
		d.Paragraph(docx.StyleNote, s.NotesBox+"\n\n\n\n\n\n")
	}

	for _, b := range s.Blocks {
		switch b.Type {
		case BlockParagraph:
			style, ok := docxStyles[b.Style]
			if !ok {
				style = docx.StyleBody
			}
			d.Paragraph(style, b.Text)
		case BlockTable:
			if b.Table != nil {
				d.Table(b.Table.Header, b.Table.Rows)
			}
		case BlockImage:
			if b.Image == nil {
				continue
			}
			err := d.Image(docx.Image{
				Data:   b.Image.Data,
				Format: b.Image.Format,
				Width:  b.Image.Width,
				Height: b.Image.Height,
				Alt:    b.Image.Alt,
			})
			if err != nil {
				return fmt.Errorf("embed image in %q: %w", s.Heading, err)
			}
		}
	}

	for _, sub := range s.Subsections {
		if err := writeSection(d, sub, level+1); err != nil {
			return err
		}
	}
	return nil
}
