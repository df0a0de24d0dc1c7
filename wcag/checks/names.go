package checks

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domaudit/snapshot"
	"github.com/hazyhaar/domaudit/wcag"
)

// validRoles is the ARIA role vocabulary the engine recognizes. Abstract
// roles are omitted on purpose: using one is itself an authoring error.
var validRoles = map[string]bool{
	"alert": true, "alertdialog": true, "application": true, "article": true,
	"banner": true, "button": true, "cell": true, "checkbox": true,
	"columnheader": true, "combobox": true, "complementary": true,
	"contentinfo": true, "definition": true, "dialog": true, "directory": true,
	"document": true, "feed": true, "figure": true, "form": true, "grid": true,
	"gridcell": true, "group": true, "heading": true, "img": true, "link": true,
	"list": true, "listbox": true, "listitem": true, "log": true, "main": true,
	"marquee": true, "math": true, "menu": true, "menubar": true,
	"menuitem": true, "menuitemcheckbox": true, "menuitemradio": true,
	"navigation": true, "none": true, "note": true, "option": true,
	"presentation": true, "progressbar": true, "radio": true,
	"radiogroup": true, "region": true, "row": true, "rowgroup": true,
	"rowheader": true, "scrollbar": true, "search": true, "searchbox": true,
	"separator": true, "slider": true, "spinbutton": true, "status": true,
	"switch": true, "tab": true, "table": true, "tablist": true,
	"tabpanel": true, "term": true, "textbox": true, "timer": true,
	"toolbar": true, "tooltip": true, "tree": true, "treegrid": true,
	"treeitem": true,
}

// AnalyzeControlNames covers 4.1.2 Name, Role, Value: interactive controls
// that expose no accessible name, and role attributes outside the ARIA
// vocabulary.
func AnalyzeControlNames(p *snapshot.Page, cfg Config) []wcag.RawHit {
	var hits []wcag.RawHit

	for _, el := range p.Query("button, a[href]") {
		if isHiddenFromAT(el) {
			continue
		}
		if accessibleName(el) != "" {
			continue
		}
		hits = append(hits, hit("control-name-missing", "4.1.2", el, cfg,
			fmt.Sprintf("<%s> has no accessible name", el.Tag()),
			"Give the control text content, aria-label, or a labelled image."))
	}

	for _, el := range p.Query("[role]") {
		role := strings.ToLower(strings.TrimSpace(el.Attr("role")))
		if role == "" || validRoles[role] {
			continue
		}
		hits = append(hits, hit("role-invalid", "4.1.2", el, cfg,
			fmt.Sprintf("role %q is not a valid ARIA role", role),
			"Use a role from the ARIA specification or remove the attribute."))
	}

	return hits
}

// accessibleName approximates the accessible-name computation: text
// content, aria-label, aria-labelledby, title, value (for inputs), or alt
// text of a contained image.
func accessibleName(el snapshot.Element) string {
	if t := el.Text(); t != "" {
		return t
	}
	if v := strings.TrimSpace(el.Attr("aria-label")); v != "" {
		return v
	}
	if el.Attr("aria-labelledby") != "" {
		return el.Attr("aria-labelledby")
	}
	if v := strings.TrimSpace(el.Attr("title")); v != "" {
		return v
	}
	if v := strings.TrimSpace(el.Attr("value")); v != "" {
		return v
	}
	for _, img := range el.Query("img") {
		if alt := strings.TrimSpace(img.Attr("alt")); alt != "" {
			return alt
		}
	}
	return ""
}
