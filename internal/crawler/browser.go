package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Session is a single browser tab. Sessions are explicitly scoped
// resources: acquire one, use it, and release it with Close on every exit
// path.
type Session interface {
	// Navigate loads the URL and waits for the page body to be ready.
	Navigate(ctx context.Context, url string) error
	// HTML returns a snapshot of the fully rendered DOM.
	HTML(ctx context.Context) (string, error)
	// Exists reports whether the selector matches any element.
	Exists(ctx context.Context, selector string) (bool, error)
	// Count returns how many elements the selector matches.
	Count(ctx context.Context, selector string) (int, error)
	// Click activates the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// Close releases the tab.
	Close()
}

// Browser opens sessions against one shared browser process.
type Browser interface {
	NewSession() (Session, error)
	Close()
}

// ChromeBrowser implements Browser using chromedp and headless Chrome.
type ChromeBrowser struct {
	allocCtx      context.Context
	allocStop     context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	userAgent     string
	navTimeout    time.Duration
}

// NewChromeBrowser launches a headless Chrome allocator and warms it up.
func NewChromeBrowser(userAgent string, navTimeout time.Duration) (*ChromeBrowser, error) {
	if navTimeout <= 0 {
		navTimeout = 25 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	allocCtx, allocStop := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocStop()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &ChromeBrowser{
		allocCtx:      allocCtx,
		allocStop:     allocStop,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		userAgent:     userAgent,
		navTimeout:    navTimeout,
	}, nil
}

// NewSession opens a fresh tab sharing the browser process.
func (b *ChromeBrowser) NewSession() (Session, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	return &chromeSession{
		tabCtx:     tabCtx,
		cancel:     cancel,
		userAgent:  b.userAgent,
		navTimeout: b.navTimeout,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (b *ChromeBrowser) Close() {
	b.browserCancel()
	b.allocStop()
}

type chromeSession struct {
	tabCtx     context.Context
	cancel     context.CancelFunc
	userAgent  string
	navTimeout time.Duration
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.userAgent != "" {
		actions = append([]chromedp.Action{
			emulation.SetUserAgentOverride(s.userAgent),
		}, actions...)
	}
	if err := s.run(ctx, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot dom: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	if err := s.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, fmt.Errorf("query %s: %w", selector, err)
	}
	return found, nil
}

func (s *chromeSession) Count(ctx context.Context, selector string) (int, error) {
	var count int
	expr := fmt.Sprintf("document.querySelectorAll(%q).length", selector)
	if err := s.run(ctx, chromedp.Evaluate(expr, &count)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return count, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Close() {
	s.cancel()
}

// run executes the actions against the tab with the navigation timeout
// applied, forwarding cancellation from the caller's context.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, cancelTask := context.WithTimeout(s.tabCtx, s.navTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
