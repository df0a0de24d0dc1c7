package checks

import (
	"fmt"
	"strconv"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

// AnalyzeFocusOrder covers 2.4.3 Focus Order by reconstructing the page's
// tab order. Any positive tabindex is a serious finding: it hijacks the
// natural order for every other focusable element. A set of positive
// tabindexes with gaps or duplicates is additionally flagged as
// non-sequential.
func AnalyzeFocusOrder(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	type focusable struct {
		el       snapshot.Element
		tabindex int
	}
	var positives []focusable

	for _, el := range p.Query("a[href], button, input, select, textarea, [tabindex]") {
		raw := el.Attr("tabindex")
		if raw == "" {
			continue
		}
		ti, err := strconv.Atoi(raw)
		if err != nil || ti <= 0 {
			continue
		}
		positives = append(positives, focusable{el: el, tabindex: ti})
		hits = append(hits, hit("tabindex-positive", "2.4.3", el, cfg,
			fmt.Sprintf("positive tabindex %d overrides the natural focus order", ti),
			"Use tabindex=\"0\" (or none) and let document order drive tabbing."))
	}

	// Non-sequential positive sequence: duplicates or gaps mean the author
	// is hand-maintaining an order that will drift from the visual one.
	if len(positives) > 1 {
		seen := make(map[int]bool)
		nonSequential := false
		max := 0
		for _, f := range positives {
			if seen[f.tabindex] {
				nonSequential = true
			}
			seen[f.tabindex] = true
			if f.tabindex > max {
				max = f.tabindex
			}
		}
		if max > len(positives) {
			nonSequential = true
		}
		if nonSequential {
			hits = append(hits, hit("tabindex-non-sequential", "2.4.3", positives[0].el, cfg,
				fmt.Sprintf("positive tabindex sequence has gaps or duplicates across %d elements", len(positives)),
				"A hand-numbered tab order with holes is unmaintainable; remove positive tabindexes."))
		}
	}

	return hits
}
