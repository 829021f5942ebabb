package export

import (
	"context"
	"fmt"
)

// DefaultPDFMinBytes is the smallest plausible PDF; anything shorter is
// treated as a failed print.
const DefaultPDFMinBytes = 800

// PDFRenderer serialises a Document to HTML and prints it through the
// shared Printer, one job at a time.
type PDFRenderer struct {
	printer  Printer
	queue    *Queue
	minBytes int
}

func NewPDFRenderer(printer Printer, queue *Queue, minBytes int) *PDFRenderer {
	if queue == nil {
		queue = NewQueue(0, 0)
	}
	if minBytes <= 0 {
		minBytes = DefaultPDFMinBytes
	}
	return &PDFRenderer{printer: printer, queue: queue, minBytes: minBytes}
}

// Queue exposes the job queue for inspection and cancellation.
func (r *PDFRenderer) Queue() *Queue { return r.queue }

func (r *PDFRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	html, err := RenderDocumentHTML(doc)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var out []byte
	err = r.queue.Do(ctx, doc.Theme, func(ctx context.Context) error {
		data, err := r.printer.PrintPDF(ctx, html)
		if err != nil {
			return err
		}
		if len(data) < r.minBytes {
			return fmt.Errorf("%w: %d bytes", ErrPDFTooSmall, len(data))
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
