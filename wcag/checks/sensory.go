package checks

import (
	"fmt"
	"regexp"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

// Sensory-instruction patterns: an action verb tied to a purely visual
// location or appearance. "Click the button on the right", "see the box
// below", "press the green button".
var (
	positionInstructionRE = regexp.MustCompile(`(?i)\b(click|press|select|choose|tap|use|see|find)\b[^.!?]{0,40}\b(on the |to the |at the )?(left|right|above|below|top|bottom)\b`)
	colorInstructionRE    = regexp.MustCompile(`(?i)\b(click|press|select|choose|tap|use)\b[^.!?]{0,40}\b(red|green|blue|yellow|orange|purple)\b[^.!?]{0,20}\b(button|link|icon|box)\b`)
	shapeCueRE            = regexp.MustCompile(`(?i)\b(round|circular|square|triangular|arrow-shaped)\b[^.!?]{0,20}\b(button|icon|image|symbol)\b`)
)

// AnalyzeSensory covers 1.3.3 Sensory Characteristics: instructions that
// rely solely on shape, color, or visual position.
func AnalyzeSensory(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	for _, el := range p.Query("p, li, td, span, div") {
		// Only leaf-ish text carriers; containers re-report their children.
		if len(el.Children()) > 0 && el.Tag() == "div" {
			continue
		}
		text := el.Text()
		if text == "" {
			continue
		}

		if m := positionInstructionRE.FindString(text); m != "" {
			hits = append(hits, hit("sensory-instruction", "1.3.3", el, cfg,
				fmt.Sprintf("instruction relies on visual position: %q", m),
				"Reference controls by name, not by where they appear on screen."))
		} else if m := colorInstructionRE.FindString(text); m != "" {
			hits = append(hits, hit("sensory-instruction", "1.3.3", el, cfg,
				fmt.Sprintf("instruction relies on color alone: %q", m),
				"Pair color references with a name or label."))
		}

		if m := shapeCueRE.FindString(text); m != "" {
			hits = append(hits, hit("shape-only-cue", "1.3.3", el, cfg,
				fmt.Sprintf("instruction relies on shape: %q", m),
				"Describe the control by its label as well as its shape."))
		}
	}

	return hits
}
