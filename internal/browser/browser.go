package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/fetchwise/product-scraper/internal/session"
)

// Factory launches stealth Chromium drivers through one shared playwright
// runtime. Every fetch session gets its own browser, context, and page, so
// a burned proxy identity never bleeds into the next attempt.
type Factory struct {
	pw       *playwright.Playwright
	headless bool
	logger   *slog.Logger
}

func NewFactory(logger *slog.Logger, headless bool) (*Factory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	return &Factory{
		pw:       pw,
		headless: headless,
		logger:   logger.With("component", "browser"),
	}, nil
}

// Close stops the playwright runtime. Outstanding drivers must be closed
// first.
func (f *Factory) Close() error {
	if err := f.pw.Stop(); err != nil {
		return fmt.Errorf("stopping playwright: %w", err)
	}
	return nil
}

// Ping reports whether the playwright runtime is available.
func (f *Factory) Ping(context.Context) error {
	if f.pw == nil || f.pw.Chromium == nil {
		return fmt.Errorf("playwright runtime not running")
	}
	return nil
}

// NewDriver launches a fresh browser behind the given proxy identity.
func (f *Factory) NewDriver(ctx context.Context, opts session.DriverOptions) (session.BrowserDriver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.headless),
		Args:     stealthArgs(),
	}
	if opts.Proxy != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.Proxy}
	}

	b, err := f.pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	bctx, err := b.NewContext(stealthContextOptions(opts.UserAgent, opts.TargetURL))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	for _, script := range stealthInitScripts() {
		if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
			f.logger.Warn("injecting stealth script", "error", err)
		}
	}

	d := &driver{
		browser: b,
		context: bctx,
		logger:  f.logger,
	}

	if opts.BlockImages {
		if err := bctx.Route("**/*", d.handleRoute); err != nil {
			f.logger.Warn("installing image blocking", "error", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		b.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	d.page = page

	return d, nil
}

// driver is one live browser context. Not safe for concurrent use; the
// owning session serializes access.
type driver struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	logger  *slog.Logger
	blocked atomic.Int64
}

// Navigate loads the URL, mimics a human settling onto the page, and waits
// for client-side rendering to finish. Returns the final URL after
// redirects.
func (d *driver) Navigate(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return "", err
	}

	d.humanize()
	d.settle()

	return d.page.URL(), nil
}

func (d *driver) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.Content()
}

// BlockedRequests reports how many requests the routing rule aborted.
func (d *driver) BlockedRequests() int64 {
	return d.blocked.Load()
}

func (d *driver) Close(context.Context) error {
	var errs []error

	if d.page != nil {
		if err := d.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing page: %w", err))
		}
	}
	if d.context != nil {
		if err := d.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing context: %w", err))
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing browser: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}

// handleRoute cuts image traffic for bandwidth. The primary document is
// never aborted, whatever its URL looks like, and neither is the code that
// renders the page.
func (d *driver) handleRoute(route playwright.Route) {
	req := route.Request()
	resourceType := req.ResourceType()

	if resourceType == "document" {
		route.Continue()
		return
	}

	block := resourceType == "image" || resourceType == "media"
	if !block && resourceType != "script" && resourceType != "stylesheet" {
		block = isImageURL(req.URL())
	}
	if !block {
		route.Continue()
		return
	}

	d.blocked.Add(1)
	if err := route.Abort("blockedbyclient"); err != nil {
		route.Continue()
	}
}

// humanize performs a few mouse moves and a small scroll before content is
// read. Coordinates stay inside the smallest viewport in the pool.
func (d *driver) humanize() {
	moves := 3 + rand.Intn(5)
	for i := 0; i < moves; i++ {
		x := float64(100 + rand.Intn(1000))
		y := float64(100 + rand.Intn(500))
		if err := d.page.Mouse().Move(x, y); err != nil {
			return
		}
		d.page.WaitForTimeout(float64(100 + rand.Intn(200)))
	}

	if _, err := d.page.Evaluate(`window.scrollBy(0, Math.random() * 200 + 100)`); err != nil {
		d.logger.Debug("scroll simulation failed", "error", err)
	}
	d.page.WaitForTimeout(float64(500 + rand.Intn(1000)))
}

// settle gives dynamically rendered storefronts a bounded chance to finish.
// Each stage is best-effort; a slow site falls through to whatever loaded.
func (d *driver) settle() {
	if err := d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(10000),
	}); err != nil {
		d.logger.Debug("networkidle wait elapsed", "error", err)
	}

	if _, err := d.page.WaitForFunction(
		"document.body && document.body.innerHTML.length > 1000",
		nil,
		playwright.PageWaitForFunctionOptions{Timeout: playwright.Float(5000)},
	); err != nil {
		d.logger.Debug("content wait elapsed", "error", err)
	}

	d.page.WaitForTimeout(1000)
}
