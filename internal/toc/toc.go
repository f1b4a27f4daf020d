// Package toc reads the table-of-contents sidebar and returns the section
// links of the chapter the user has expanded. It never expands chapters
// itself: the scope of a run is exactly the chapter the user opened.
package toc

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bookshot/bookshot/internal/browser"
	"github.com/bookshot/bookshot/internal/config"
)

// ErrNoSections means the sidebar yielded no section links: it is hidden,
// no chapter is expanded, or the page is not an e-book view.
var ErrNoSections = errors.New("toc: no sections found in expanded chapter")

// Section is one addressable sub-page of a chapter, the unit of navigation
// and capture. Order is the sidebar position, 1-based, and fixes the page
// order of the final PDF.
type Section struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Order int    `json:"order"`
}

// sectionNumber matches titles like "3.2 Forces" at the start of a link.
var sectionNumber = regexp.MustCompile(`^\d+\.\d+`)

type rawLink struct {
	text string
	href string
}

// Discover returns the chapter title and its sections in sidebar order.
// First-run overlays are dismissed first; when the expanded chapter yields
// nothing, the currently active sidebar item's surroundings are tried as a
// fallback before giving up with ErrNoSections.
func Discover(sess *browser.Session, cfg *config.Config) (string, []Section, error) {
	DismissOverlays(sess, cfg.Selectors.Dismiss)

	sess.WaitVisible(cfg.Selectors.TOCSidebar, cfg.Timeouts.ElementWait)

	chapterText, links, err := expandedChapter(sess, cfg.Selectors.ExpandedChapter, cfg.Selectors.SectionLinks)
	if err != nil {
		return "", nil, err
	}

	sections := filterSections(links)
	if len(sections) == 0 {
		links, err = activeItemSiblings(sess, cfg.Selectors.ActiveItem)
		if err != nil {
			return "", nil, err
		}
		sections = filterSections(links)
	}
	if len(sections) == 0 {
		return "", nil, ErrNoSections
	}

	chapter := ChapterTitle(chapterText, sess.Title())
	return chapter, sections, nil
}

// DismissOverlays clicks visible elements matching selector (first-run
// popups, close buttons). Finding none is normal.
func DismissOverlays(sess *browser.Session, selector string) {
	if selector == "" {
		return
	}
	obj, err := sess.Page().Eval(`(sel) => {
		let clicked = 0;
		document.querySelectorAll(sel).forEach(el => {
			if (el.offsetParent === null) return;
			el.click();
			clicked++;
		});
		return clicked;
	}`, selector)
	if err != nil || obj.Value.Int() == 0 {
		return
	}
	time.Sleep(300 * time.Millisecond)
}

// expandedChapter collects the expanded chapter node's text and its visible
// section links.
func expandedChapter(sess *browser.Session, expandedSel, linkSel string) (string, []rawLink, error) {
	obj, err := sess.Page().Eval(`(expandedSel, linkSel) => {
		const out = { text: '', links: [] };
		document.querySelectorAll(expandedSel).forEach(node => {
			const anchors = node.querySelectorAll(linkSel);
			if (anchors.length === 0) return;
			if (!out.text) out.text = node.innerText || node.textContent || '';
			anchors.forEach(a => {
				if (a.offsetParent === null) return;
				out.links.push({ text: (a.innerText || a.textContent || '').trim(), href: a.href });
			});
		});
		return out;
	}`, expandedSel, linkSel)
	if err != nil {
		return "", nil, err
	}

	var links []rawLink
	for _, v := range obj.Value.Get("links").Arr() {
		links = append(links, rawLink{
			text: v.Get("text").String(),
			href: v.Get("href").String(),
		})
	}
	return obj.Value.Get("text").String(), links, nil
}

// activeItemSiblings collects anchors around the active/selected sidebar
// item, two levels up. Some readers mark the current section instead of
// expanding its chapter node.
func activeItemSiblings(sess *browser.Session, activeSel string) ([]rawLink, error) {
	obj, err := sess.Page().Eval(`(activeSel) => {
		const links = [];
		const active = document.querySelector(activeSel);
		if (!active) return links;
		const parent = active.parentElement;
		const scope = parent && parent.parentElement ? parent.parentElement : document;
		scope.querySelectorAll('a').forEach(a => {
			if (a.offsetParent === null) return;
			links.push({ text: (a.innerText || a.textContent || '').trim(), href: a.href });
		});
		return links;
	}`, activeSel)
	if err != nil {
		return nil, err
	}

	var links []rawLink
	for _, v := range obj.Value.Arr() {
		links = append(links, rawLink{
			text: v.Get("text").String(),
			href: v.Get("href").String(),
		})
	}
	return links, nil
}

// filterSections keeps links that look like chapter sections: a leading
// "N.N" section number or an introduction. Sidebar order is preserved and
// duplicates are kept as-is.
func filterSections(links []rawLink) []Section {
	var sections []Section
	for _, l := range links {
		if !keepSection(l.text) {
			continue
		}
		sections = append(sections, Section{
			Title: collapseSpace(l.text),
			Href:  l.href,
			Order: len(sections) + 1,
		})
	}
	return sections
}

func keepSection(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	return sectionNumber.MatchString(t) || strings.Contains(t, "Introduction")
}

// ChapterTitle picks the chapter heading out of the expanded node's text:
// the first line mentioning a chapter, else the document title.
func ChapterTitle(nodeText, docTitle string) string {
	for _, line := range strings.Split(nodeText, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && strings.Contains(line, "Ch") {
			return collapseSpace(line)
		}
	}
	if t := strings.TrimSpace(docTitle); t != "" {
		return t
	}
	return "Chapter"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
