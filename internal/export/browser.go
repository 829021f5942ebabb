package export

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"bijbelzoek/api/internal/logging"
)

// Printer turns an HTML document into PDF bytes.
type Printer interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// FooterText is printed with page numbers at the bottom of every PDF page.
const FooterText = "Bijbelzoek.nl • Studie-export"

const footerTemplate = `<div style="width:100%;font-size:8px;color:#6b7280;text-align:center;font-family:Arial,sans-serif;">` +
	FooterText + ` — <span class="pageNumber"></span>/<span class="totalPages"></span></div>`

// Waits for web fonts and every <img> before printing.
const settleScript = `Promise.all([
  document.fonts ? document.fonts.ready : Promise.resolve(),
  ...Array.from(document.images).map(img => img.complete ? Promise.resolve() :
    new Promise(resolve => { img.onload = img.onerror = resolve; }))
]).then(() => true)`

const mmPerInch = 25.4

var chromeCandidates = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable", "headless-shell"}

// Browser is a headless Chrome shared by all PDF jobs. It starts on the first
// print and lives until Close; every print gets its own tab.
type Browser struct {
	execPath string

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewBrowser returns an idle Browser. An empty execPath searches PATH.
func NewBrowser(execPath string) *Browser {
	return &Browser{execPath: execPath}
}

func (b *Browser) resolveExec() (string, error) {
	if b.execPath != "" {
		return b.execPath, nil
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
}

// ensure returns the browser context, launching Chrome if needed or if the
// previous process died.
func (b *Browser) ensure(ctx context.Context) (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil && b.browserCtx.Err() == nil {
		return b.browserCtx, nil
	}
	b.shutdownLocked()

	path, err := b.resolveExec()
	if err != nil {
		return nil, err
	}

	// Chrome options for headless mode in container
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("font-render-hinting", "none"),
	)

	// The browser outlives the request that launched it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b.allocCancel, b.browserCtx, b.browserCancel = allocCancel, browserCtx, browserCancel
	logging.FromContext(ctx).Info("headless chrome started", "path", path)
	return browserCtx, nil
}

// PrintPDF opens a tab, loads html, waits for fonts and images and prints an
// A4 PDF with the page footer. The tab is closed on every path.
func (b *Browser) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	browserCtx, err := b.ensure(ctx)
	if err != nil {
		return nil, err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	var pdf []byte
	var settled bool
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.Evaluate(settleScript, &settled, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27). // A4
				WithPaperHeight(11.69).
				WithMarginTop(16 / mmPerInch).
				WithMarginBottom(18 / mmPerInch).
				WithMarginLeft(14 / mmPerInch).
				WithMarginRight(14 / mmPerInch).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate("<div></div>").
				WithFooterTemplate(footerTemplate).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}
	return pdf, nil
}

// Close stops Chrome if it was started.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownLocked()
	return nil
}

func (b *Browser) shutdownLocked() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.allocCancel, b.browserCtx, b.browserCancel = nil, nil, nil
}
