// Package browser attaches to an already-running Chrome over its remote
// debugging port. It never launches, logs into, or closes the browser: the
// session belongs to the user, who is expected to have the e-book open and
// authenticated before a run.
package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrNoPage means the browser is reachable but has no usable page open.
var ErrNoPage = errors.New("browser: no open http(s) page found")

// Options configures the attachment.
type Options struct {
	Host     string
	Port     int
	Timeout  time.Duration
	PageHint string // URL substring preferred when picking the page
}

// Session wraps the attached browser and the page being scraped.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
}

// Connect resolves the DevTools endpoint at host:port, attaches to the
// browser, and picks the page to scrape: the first one whose URL contains
// PageHint, else the first plain http(s) page. The caller owns neither the
// browser nor the tab; Connect only borrows them.
func Connect(opts Options) (*Session, error) {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = 9222
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	u, err := launcher.ResolveURL(addr)
	if err != nil {
		return nil, fmt.Errorf("browser: no debugger at %s: %w", addr, err)
	}

	b := rod.New().ControlURL(u).Timeout(opts.Timeout)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect to %s: %w", addr, err)
	}

	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}

	page, err := pickPage(pages, opts.PageHint)
	if err != nil {
		return nil, err
	}

	// Background tabs throttle rendering and can refuse screenshots.
	if _, err := page.Activate(); err != nil {
		return nil, fmt.Errorf("browser: activate page: %w", err)
	}

	return &Session{browser: b.CancelTimeout(), page: page}, nil
}

func pickPage(pages rod.Pages, hint string) (*rod.Page, error) {
	var fallback *rod.Page
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if !strings.HasPrefix(info.URL, "http") {
			continue // devtools://, chrome://, about:blank
		}
		if hint != "" && strings.Contains(info.URL, hint) {
			return p, nil
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback == nil {
		return nil, ErrNoPage
	}
	return fallback, nil
}

// Page returns the page being scraped.
func (s *Session) Page() *rod.Page {
	return s.page
}

// URL returns the current URL of the scraped page, or "" if it cannot be read.
func (s *Session) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Title returns the document title of the scraped page.
func (s *Session) Title() string {
	obj, err := s.page.Eval(`() => document.title`)
	if err != nil {
		return ""
	}
	return obj.Value.String()
}

// Close detaches from the browser. The browser process and its tabs are the
// user's and are left running; Close is safe to call more than once.
func (s *Session) Close() {
	s.page = nil
	s.browser = nil
}

// Navigate drives the scraped page to url and waits for the load event,
// bounded by timeout.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	p := s.page.Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

// SettleNetwork waits until the page has had no network traffic for idle,
// giving up after timeout. Persistent connections make full idleness
// unreachable on some pages, so the timeout is not an error.
func (s *Session) SettleNetwork(timeout, idle time.Duration) {
	s.page.Timeout(timeout).WaitRequestIdle(idle, nil, nil, nil)()
}

// WaitReady polls until document.readyState is complete. It reports whether
// the page became ready before the timeout.
func (s *Session) WaitReady(timeout time.Duration) bool {
	return s.pollTrue(timeout, `() => document.readyState === 'complete'`)
}

// WaitImages polls until every image in the document has finished loading
// (successfully or not). It reports whether that happened before the timeout.
func (s *Session) WaitImages(timeout time.Duration) bool {
	return s.pollTrue(timeout, `() => Array.from(document.images).every(img => img.complete)`)
}

// WaitVisible polls until an element matching selector is visible.
func (s *Session) WaitVisible(selector string, timeout time.Duration) bool {
	return s.pollTrue(timeout, `(sel) => {
		const el = document.querySelector(sel);
		return el !== null && el.offsetParent !== null;
	}`, selector)
}

// pollTrue evaluates a JS predicate every checkInterval until it returns
// true or the deadline passes. Eval errors count as "not yet": a page in
// mid-navigation cannot answer, but may on the next try.
func (s *Session) pollTrue(timeout time.Duration, js string, args ...interface{}) bool {
	deadline := time.Now().Add(timeout)
	checkInterval := 200 * time.Millisecond

	for time.Now().Before(deadline) {
		obj, err := s.page.Eval(js, args...)
		if err == nil && obj.Value.Bool() {
			return true
		}
		time.Sleep(checkInterval)
	}
	return false
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot(quality int) ([]byte, error) {
	data, err := s.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatPng,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// PrintToPDF renders the current page through the browser's print pipeline.
// Paper dimensions and margins are in inches.
func (s *Session) PrintToPDF(paperWidth, paperHeight, margin, scale float64) ([]byte, error) {
	res, err := proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      &paperWidth,
		PaperHeight:     &paperHeight,
		MarginTop:       &margin,
		MarginBottom:    &margin,
		MarginLeft:      &margin,
		MarginRight:     &margin,
		Scale:           &scale,
	}.Call(s.page)
	if err != nil {
		return nil, fmt.Errorf("browser: print to pdf: %w", err)
	}
	return res.Data, nil
}
