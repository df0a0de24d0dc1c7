package checks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

// AnalyzeVisualOrder covers 1.3.2 Meaningful Sequence: CSS that makes the
// visual reading order diverge from DOM order. Reading order for assistive
// tech follows the DOM; order/flex-direction/absolute positioning move
// things only on screen.
func AnalyzeVisualOrder(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	body, ok := p.QueryOne("body")
	if !ok {
		return hits
	}

	var walk func(el snapshot.Element)
	walk = func(el snapshot.Element) {
		children := el.Children()

		// Reversed flex containers with more than one child reorder content.
		dir := el.Style("flex-direction")
		if (dir == "row-reverse" || dir == "column-reverse") && len(children) > 1 {
			hits = append(hits, hit("visual-order-mismatch", "1.3.2", el, cfg,
				fmt.Sprintf("flex-direction %s reverses the visual order of %d children", dir, len(children)),
				"Reorder the markup instead of reversing it visually."))
		}

		for _, child := range children {
			// Explicit flex/grid order moves one item out of sequence.
			if ord := child.Style("order"); ord != "" && ord != "0" {
				if _, err := strconv.Atoi(ord); err == nil {
					hits = append(hits, hit("visual-order-mismatch", "1.3.2", child, cfg,
						fmt.Sprintf("CSS order %s moves this element out of DOM order", ord),
						"Reading order follows the DOM; use source order for sequence."))
				}
			}

			// Absolutely positioned text content detaches from the flow.
			pos := child.Style("position")
			if (pos == "absolute" || pos == "fixed") && hasOffset(child) && child.Text() != "" {
				hits = append(hits, hit("visual-order-mismatch", "1.3.2", child, cfg,
					"absolutely positioned text may read in a different order than it appears",
					"Keep meaningful content in the normal flow."))
			}

			// A right-floated sibling carrying prose reads before content it
			// visually follows. Weak signal, minor severity.
			if child.Style("float") == "right" && len(strings.Fields(child.Text())) > 5 {
				hits = append(hits, hit("float-order-suspect", "1.3.2", child, cfg,
					"right-floated prose may not match the visual reading order",
					"Check that DOM order matches the intended reading order."))
			}

			walk(child)
		}
	}
	walk(body)

	return hits
}

// hasOffset reports whether a positioned element actually moves (any inset
// declared). position:absolute without insets stays near its flow position.
func hasOffset(el snapshot.Element) bool {
	for _, p := range []string{"top", "left", "right", "bottom"} {
		if el.Style(p) != "" {
			return true
		}
	}
	return false
}
