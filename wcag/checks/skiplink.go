package checks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

var skipLinkTextRE = regexp.MustCompile(`(?i)\b(skip|jump)\b.*\b(content|main|navigation)\b`)

// AnalyzeSkipLink covers 2.4.1 Bypass Blocks: the page should offer a way
// to skip repeated navigation. The heuristic looks for a same-page link
// among the first few links whose text reads like a skip link, then checks
// that its anchor actually resolves.
func AnalyzeSkipLink(p *snapshot.Page, cfg Config) []wcag.RawHit {
	links := p.Query("a[href]")
	if len(links) == 0 {
		// Nothing to bypass on a page with no link navigation at all.
		return nil
	}

	limit := cfg.MaxSkipLinkIndex
	if limit > len(links) {
		limit = len(links)
	}

	for _, link := range links[:limit] {
		href := link.Attr("href")
		if !strings.HasPrefix(href, "#") || href == "#" {
			continue
		}
		if !skipLinkTextRE.MatchString(link.Text()) {
			continue
		}
		// Found a skip link; verify the anchor exists.
		id := strings.TrimPrefix(href, "#")
		if _, ok := p.QueryOne("#" + id); !ok {
			if _, ok := p.QueryOne(fmt.Sprintf(`a[name=%s]`, id)); !ok {
				return []wcag.RawHit{withTarget(hit("skip-link-broken", "2.4.1", link, cfg,
					fmt.Sprintf("skip link points at %q but no such anchor exists", href),
					"Fix the skip link target; a broken skip link is worse than none."), href)}
			}
		}
		return nil
	}

	// No skip link, but is there repeated navigation worth bypassing?
	if navs := p.Query("nav"); len(navs) == 0 && len(links) < 5 {
		return nil
	}

	first := links[0]
	return []wcag.RawHit{hit("skip-link-missing", "2.4.1", first, cfg,
		"no skip link found before the page's navigation",
		"Add a same-page link (e.g. \"Skip to main content\") as the first focusable element.")}
}
