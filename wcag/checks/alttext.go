package checks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

var (
	filenameAltRE  = regexp.MustCompile(`(?i)^[\w\-. ]+\.(png|jpe?g|gif|svg|webp|bmp|ico)$|^(img|dsc|image)[_\-]?\d+$`)
	redundantAltRE = regexp.MustCompile(`(?i)^\s*(image|picture|photo|graphic|icon|logo)\s+(of|for)\b`)
)

// AnalyzeAltText covers 1.1.1 Non-text Content: images without alternative
// text, filename-shaped alt values, redundant "image of" phrasing, and
// image-only links that end up nameless.
func AnalyzeAltText(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	for _, img := range p.Query("img") {
		if isHiddenFromAT(img) {
			continue
		}
		src := img.Attr("src")

		if !img.HasAttr("alt") {
			hits = append(hits, withTarget(hit("img-alt-missing", "1.1.1", img, cfg,
				"image has no alt attribute",
				"Add an alt attribute describing the image, or alt=\"\" if purely decorative."), src))
			continue
		}

		alt := strings.TrimSpace(img.Attr("alt"))
		if alt == "" {
			// Decorative empty alt is fine on its own, but a link whose only
			// content is such an image has no accessible name at all.
			if link, ok := img.Closest("a"); ok && link.Text() == "" {
				hits = append(hits, withTarget(hit("img-alt-empty-link", "1.1.1", link, cfg,
					"link contains only an image with empty alt, leaving the link nameless",
					"Give the image a descriptive alt or add visually hidden link text."), link.Attr("href")))
			}
			continue
		}

		if filenameAltRE.MatchString(alt) {
			hits = append(hits, withTarget(hit("img-alt-filename", "1.1.1", img, cfg,
				fmt.Sprintf("alt text %q looks like a file name", alt),
				"Replace the file name with a description of the image content."), src))
		} else if redundantAltRE.MatchString(alt) {
			hits = append(hits, withTarget(hit("img-alt-redundant", "1.1.1", img, cfg,
				fmt.Sprintf("alt text %q repeats that this is an image", alt),
				"Screen readers already announce images; describe the content instead."), src))
		}
	}

	return hits
}

// isHiddenFromAT reports whether an element is explicitly removed from the
// accessibility tree.
func isHiddenFromAT(el snapshot.Element) bool {
	if el.Attr("aria-hidden") == "true" {
		return true
	}
	switch el.Attr("role") {
	case "presentation", "none":
		return true
	}
	return false
}

func withTarget(h wcag.RawHit, target string) wcag.RawHit {
	h.Target = target
	return h
}
