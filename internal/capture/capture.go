// Package capture navigates to a section and screenshots it in
// viewport-sized segments, scrolling with an overlap so nothing is lost at
// segment boundaries.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/nfnt/resize"

	"github.com/bookshot/bookshot/internal/browser"
	"github.com/bookshot/bookshot/internal/config"
	"github.com/bookshot/bookshot/internal/toc"
)

// Page is the capture result for one section: its screenshot segments in
// scroll order, both in memory and as saved files. It is handed to the
// assembler and never mutated afterwards.
type Page struct {
	Section toc.Section
	Images  [][]byte
	Files   []string
}

// Capturer screenshots sections of the attached page.
type Capturer struct {
	sess  *browser.Session
	cfg   *config.Config
	stamp string // timestamp shared by this run's filenames
}

// New builds a Capturer writing into the configured screenshots directory.
func New(sess *browser.Session, cfg *config.Config) *Capturer {
	return &Capturer{
		sess:  sess,
		cfg:   cfg,
		stamp: time.Now().Format("20060102_150405"),
	}
}

// Capture opens the section and screenshots it top to bottom. An error
// covers this section only; the caller decides whether to continue.
func (c *Capturer) Capture(sec toc.Section) (*Page, error) {
	if err := c.open(sec); err != nil {
		return nil, err
	}
	return c.scrollAndShoot(sec)
}

// CapturePrint opens the section and renders it through the browser's print
// pipeline instead of screenshots. Returns the raw PDF bytes.
func (c *Capturer) CapturePrint(sec toc.Section) ([]byte, error) {
	if err := c.open(sec); err != nil {
		return nil, err
	}
	p := c.cfg.PDF.Print
	return c.sess.PrintToPDF(p.PaperWidth, p.PaperHeight, p.Margin, p.Scale)
}

// open clicks the section's sidebar link, falling back to direct
// navigation, then waits until the page has settled enough to shoot.
func (c *Capturer) open(sec toc.Section) error {
	clicked, err := c.clickLink(sec.Href)
	if err != nil || !clicked {
		if err := c.sess.Navigate(sec.Href, c.cfg.Timeouts.Navigation); err != nil {
			return fmt.Errorf("capture: open %q: %w", sec.Title, err)
		}
	}

	if !c.sess.WaitReady(c.cfg.Timeouts.ElementWait) {
		c.logVerbose("  %q: document not complete, capturing anyway", sec.Title)
	}
	c.sess.SettleNetwork(5*time.Second, 500*time.Millisecond)
	if !c.sess.WaitImages(c.cfg.Timeouts.ElementWait) {
		c.logVerbose("  %q: images still loading, capturing anyway", sec.Title)
	}
	time.Sleep(c.cfg.Timeouts.Settle)

	if sel := c.contentSelector(); sel != "" {
		c.logVerbose("  content region: %s", sel)
	}
	return nil
}

// clickLink clicks the anchor whose resolved href matches. Reports whether
// anything was clicked.
func (c *Capturer) clickLink(href string) (bool, error) {
	obj, err := c.sess.Page().Eval(`(href) => {
		const a = Array.from(document.querySelectorAll('a')).find(a => a.href === href);
		if (!a) return false;
		a.click();
		return true;
	}`, href)
	if err != nil {
		return false, err
	}
	return obj.Value.Bool(), nil
}

// contentSelector returns the first configured content selector matching a
// reasonably tall element, or "" when the page offers only its body.
func (c *Capturer) contentSelector() string {
	if len(c.cfg.Selectors.Content) == 0 {
		return ""
	}
	obj, err := c.sess.Page().Eval(`(sels) => {
		for (const sel of sels) {
			const el = document.querySelector(sel);
			if (el && el.offsetHeight > 100) return sel;
		}
		return '';
	}`, c.cfg.Selectors.Content)
	if err != nil {
		return ""
	}
	return obj.Value.String()
}

func (c *Capturer) scrollAndShoot(sec toc.Section) (*Page, error) {
	scrollHeight, viewport, err := c.metrics()
	if err != nil {
		return nil, fmt.Errorf("capture: page metrics for %q: %w", sec.Title, err)
	}

	offsets := segmentOffsets(scrollHeight, viewport, c.cfg.Capture.OverlapPx, c.cfg.Capture.MaxSegments)
	bottom := scrollHeight - viewport

	page := &Page{Section: sec}
	for i, y := range offsets {
		if err := c.scrollTo(y); err != nil {
			return nil, fmt.Errorf("capture: scroll %q: %w", sec.Title, err)
		}
		time.Sleep(c.cfg.Timeouts.ScrollDelay)
		time.Sleep(c.cfg.Timeouts.ScreenshotDelay)

		path, data, err := c.Snapshot(sec.Title, len(page.Images)+1)
		if err != nil {
			return nil, fmt.Errorf("capture: segment %d of %q: %w", i+1, sec.Title, err)
		}

		if c.cfg.Capture.SimilarityStop && len(page.Images) > 0 {
			prev := page.Images[len(page.Images)-1]
			if ratio, err := Similarity(prev, data); err == nil && ratio >= c.cfg.Capture.SimilarityThreshold {
				os.Remove(path)
				c.logVerbose("  segment %d repeats previous (%.3f), stopping", i+1, ratio)
				break
			}
		}

		page.Images = append(page.Images, data)
		page.Files = append(page.Files, path)
		c.logVerbose("  segment %d/%d at y=%d", i+1, len(offsets), y)

		// Fixed-height pages stop scrolling before the planned offsets
		// run out.
		if actual, err := c.scrollY(); err == nil && actual >= bottom && i < len(offsets)-1 {
			break
		}
	}

	return page, nil
}

// Snapshot screenshots the current viewport and saves it under the
// screenshots directory as <safe_title>_<n>_<timestamp>.png. The manual
// capture loop calls this directly.
func (c *Capturer) Snapshot(title string, n int) (string, []byte, error) {
	data, err := c.sess.Screenshot(c.cfg.PDF.Quality)
	if err != nil {
		return "", nil, err
	}

	dir := c.cfg.Output.Screenshots()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s_%d_%s.png", SafeTitle(title, 30), n, c.stamp)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("write %s: %w", path, err)
	}
	return path, data, nil
}

// PressPageDown sends a PageDown keystroke and waits the scroll delay, for
// pages whose scrolling lives in a nested container that window.scrollTo
// cannot reach.
func (c *Capturer) PressPageDown() error {
	if err := c.sess.Page().Keyboard.Type(input.PageDown); err != nil {
		return fmt.Errorf("capture: page down: %w", err)
	}
	time.Sleep(c.cfg.Timeouts.ScrollDelay)
	return nil
}

func (c *Capturer) metrics() (scrollHeight, viewport int, err error) {
	obj, err := c.sess.Page().Eval(`() => ({
		scrollHeight: document.documentElement.scrollHeight,
		viewport: window.innerHeight
	})`)
	if err != nil {
		return 0, 0, err
	}
	return obj.Value.Get("scrollHeight").Int(), obj.Value.Get("viewport").Int(), nil
}

func (c *Capturer) scrollTo(y int) error {
	_, err := c.sess.Page().Eval(`(y) => window.scrollTo(0, y)`, y)
	return err
}

func (c *Capturer) scrollY() (int, error) {
	obj, err := c.sess.Page().Eval(`() => Math.round(window.pageYOffset)`)
	if err != nil {
		return 0, err
	}
	return obj.Value.Int(), nil
}

func (c *Capturer) logVerbose(format string, args ...interface{}) {
	if c.cfg.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// segmentOffsets plans the scroll positions for one section. Offsets run
// from 0 to scrollHeight-viewport, evenly spaced no wider than viewport
// minus overlap, so consecutive segments always share a band of content.
// maxSegments truncates the plan from the top.
func segmentOffsets(scrollHeight, viewport, overlap, maxSegments int) []int {
	if maxSegments < 1 {
		maxSegments = 1
	}
	if viewport <= 0 || scrollHeight <= viewport {
		return []int{0}
	}

	step := viewport - overlap
	if step <= 0 {
		step = viewport
	}

	bottom := scrollHeight - viewport
	count := 1 + (bottom+step-1)/step

	offsets := make([]int, 0, count)
	for i := 0; i < count; i++ {
		offsets = append(offsets, bottom*i/(count-1))
		if len(offsets) == maxSegments {
			break
		}
	}
	return offsets
}

// Similarity compares two PNG images on 100x100 grayscale thumbnails: the
// returned ratio counts pixel pairs differing by less than 10/255. Two
// screenshots of the same unscrolled content score near 1.
func Similarity(a, b []byte) (float64, error) {
	ia, _, err := image.Decode(bytes.NewReader(a))
	if err != nil {
		return 0, fmt.Errorf("capture: decode first image: %w", err)
	}
	ib, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return 0, fmt.Errorf("capture: decode second image: %w", err)
	}

	const side = 100
	ta := resize.Resize(side, side, ia, resize.Lanczos3)
	tb := resize.Resize(side, side, ib, resize.Lanczos3)

	same := 0
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			d := int(grayAt(ta, x, y)) - int(grayAt(tb, x, y))
			if d < 0 {
				d = -d
			}
			if d < 10 {
				same++
			}
		}
	}
	return float64(same) / (side * side), nil
}

func grayAt(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_\s-]`)

// SafeTitle makes a title usable as a filename: filesystem-hostile
// characters are stripped, whitespace runs become single underscores, and
// the result is truncated to max runes. The PDF namer shares this.
func SafeTitle(s string, max int) string {
	s = unsafeChars.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "_")

	runes := []rune(s)
	if len(runes) > max {
		s = string(runes[:max])
	}
	s = strings.TrimRight(s, "_-")
	if s == "" {
		return "untitled"
	}
	return s
}
