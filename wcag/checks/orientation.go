package checks

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

// AnalyzeOrientation covers 1.3.4 Orientation: media queries that hide or
// rotate content for one orientation, effectively locking the page to the
// other. A mere layout adjustment inside an orientation query is fine; the
// signal is display:none / visibility:hidden / transform:rotate on sizable
// selectors like body or html.
func AnalyzeOrientation(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	for _, sheet := range p.Stylesheets() {
		if sheet.Denied {
			continue
		}
		for _, rule := range sheet.Rules {
			if !strings.Contains(rule.Media, "orientation") {
				continue
			}
			if !locksOrientation(rule) {
				continue
			}
			orientation := "portrait"
			if strings.Contains(rule.Media, "landscape") {
				orientation = "landscape"
			}
			hits = append(hits, wcag.RawHit{
				CheckID:     "orientation-locked",
				CriterionID: "1.3.4",
				Description: fmt.Sprintf("content is hidden or rotated in %s orientation (selector %s)", orientation, strings.Join(rule.Selectors, ", ")),
				Selector:    strings.Join(rule.Selectors, ", "),
				Help:        "Support both orientations; some users have devices mounted in a fixed orientation.",
			})
		}
	}

	if denied := deniedSheets(p); len(denied) > 0 {
		hits = append(hits, wcag.RawHit{
			CheckID:     "stylesheet-denied",
			CriterionID: "1.3.4",
			Description: fmt.Sprintf("%d stylesheet(s) not readable (cross-origin); orientation queries not checked", len(denied)),
			Selector:    "link[rel=stylesheet]",
			Target:      denied[0],
		})
	}

	return hits
}

func locksOrientation(rule snapshot.Rule) bool {
	if v := rule.Prop("display"); v == "none" {
		return true
	}
	if v := rule.Prop("visibility"); v == "hidden" {
		return true
	}
	if v := rule.Prop("transform"); strings.Contains(v, "rotate") {
		return true
	}
	return false
}
