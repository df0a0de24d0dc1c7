package snapshot

import (
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Sample</title>
<style>
/* layout */
.row { display: flex; flex-direction: row-reverse; }
#hero { position: absolute; }
@media (orientation: landscape) { body { display: none; } }
</style>
<link rel="stylesheet" href="https://cdn.example.test/site.css">
</head>
<body>
<div id="hero"><h1>Welcome</h1></div>
<div class="row">
  <p>first   paragraph</p>
  <p style="order: 2">second</p>
</div>
<form>
  <label for="email">Email</label>
  <input type="text" id="email">
  <input type="checkbox" name="opt">
</form>
</body>
</html>`

func mustParse(t *testing.T, doc string) *Page {
	t.Helper()
	p, err := ParseString("https://example.test/", doc)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestQuery_SelectorForms(t *testing.T) {
	// WHAT: Each supported selector form finds its nodes.
	// WHY: Analyzers lean entirely on this subset.
	p := mustParse(t, samplePage)

	cases := []struct {
		sel  string
		want int
	}{
		{"p", 2},
		{".row", 1},
		{"#hero", 1},
		{"div.row p", 2},
		{"input[type=checkbox]", 1},
		{"label[for]", 1},
		{"h1, p", 3},
		{"nav", 0},
	}
	for _, tc := range cases {
		if got := len(p.Query(tc.sel)); got != tc.want {
			t.Errorf("Query(%q) = %d matches, want %d", tc.sel, got, tc.want)
		}
	}
}

func TestQuery_DocumentOrder(t *testing.T) {
	// WHAT: Comma groups come back in document order, not group order.
	// WHY: Issue ordering inside a TestResult follows the page.
	p := mustParse(t, samplePage)
	els := p.Query("p, h1")
	if len(els) != 3 || els[0].Tag() != "h1" {
		t.Fatalf("expected h1 first in document order, got %v", tags(els))
	}
}

func tags(els []Element) []string {
	out := make([]string, len(els))
	for i, e := range els {
		out[i] = e.Tag()
	}
	return out
}

func TestElement_TextCollapsesWhitespace(t *testing.T) {
	// WHAT: Text content has runs of whitespace collapsed.
	p := mustParse(t, samplePage)
	el, ok := p.QueryOne("div.row p")
	if !ok {
		t.Fatal("no paragraph found")
	}
	if el.Text() != "first paragraph" {
		t.Errorf("text = %q", el.Text())
	}
}

func TestElement_OuterHTMLBounded(t *testing.T) {
	// WHAT: Excerpts are bounded and marked as truncated.
	p := mustParse(t, samplePage)
	el, _ := p.QueryOne("body")
	out := el.OuterHTML(40)
	if len(out) > 40+len("…") {
		t.Errorf("excerpt too long: %d bytes", len(out))
	}
	if !strings.HasPrefix(out, "<body>") {
		t.Errorf("excerpt should be a markup prefix, got %q", out)
	}
}

func TestElement_Relationships(t *testing.T) {
	// WHAT: Parent, sibling, and closest-ancestor traversals work.
	// WHY: Structural heuristics (label association, consecutive blocks)
	// are built on these.
	p := mustParse(t, samplePage)
	input, ok := p.QueryOne("input[type=text]")
	if !ok {
		t.Fatal("input not found")
	}

	form, ok := input.Closest("form")
	if !ok || form.Tag() != "form" {
		t.Fatal("Closest(form) failed")
	}

	prev, ok := input.PrevSibling()
	if !ok || prev.Tag() != "label" {
		t.Fatalf("PrevSibling = %q, want label", prev.Tag())
	}

	next, ok := input.NextSibling()
	if !ok || next.Attr("type") != "checkbox" {
		t.Fatal("NextSibling should be the checkbox")
	}

	parent, ok := input.Parent()
	if !ok || parent.Tag() != "form" {
		t.Fatal("Parent should be form")
	}
}

func TestElement_Locator(t *testing.T) {
	// WHAT: Locators anchor at the nearest id and use nth-of-type.
	// WHY: Locator equality is half of the issue dedup key; it must be
	// stable across runs of the same page.
	p := mustParse(t, samplePage)
	h1, _ := p.QueryOne("h1")
	if loc := h1.Locator(); loc != "#hero > h1:nth-of-type(1)" {
		t.Errorf("locator = %q", loc)
	}

	second := p.Query("div.row p")[1]
	loc := second.Locator()
	if !strings.HasSuffix(loc, "p:nth-of-type(2)") {
		t.Errorf("locator = %q, want nth-of-type(2) suffix", loc)
	}
}

func TestStyle_CascadeApproximation(t *testing.T) {
	// WHAT: Style() merges sheet rules with inline overrides; media-scoped
	// rules never leak into the computed value.
	p := mustParse(t, samplePage)

	row, _ := p.QueryOne("div.row")
	if v := row.Style("flex-direction"); v != "row-reverse" {
		t.Errorf("flex-direction = %q", v)
	}

	hero, _ := p.QueryOne("#hero")
	if v := hero.Style("position"); v != "absolute" {
		t.Errorf("position = %q", v)
	}

	inline := p.Query("div.row p")[1]
	if v := inline.Style("order"); v != "2" {
		t.Errorf("inline order = %q", v)
	}

	body, _ := p.QueryOne("body")
	if v := body.Style("display"); v == "none" {
		t.Error("media-scoped rule leaked into computed style")
	}
}

func TestStylesheets_DeniedExternal(t *testing.T) {
	// WHAT: An unfetched <link rel=stylesheet> surfaces as a typed denial.
	// WHY: Cross-origin restriction is ordinary control flow for analyzers,
	// never an error.
	p := mustParse(t, samplePage)
	var denied int
	for _, s := range p.Stylesheets() {
		if s.Denied {
			denied++
			if s.Href == "" {
				t.Error("denied sheet should carry its href")
			}
			if len(s.Rules) != 0 {
				t.Error("denied sheet must expose no rules")
			}
		}
	}
	if denied != 1 {
		t.Errorf("denied sheets = %d, want 1", denied)
	}
}

func TestStylesheets_MediaRulesVisible(t *testing.T) {
	// WHAT: @media rules are retained with their condition for analyzers
	// that inspect them (orientation lock detection).
	p := mustParse(t, samplePage)
	found := false
	for _, s := range p.Stylesheets() {
		for _, r := range s.Rules {
			if strings.Contains(r.Media, "orientation") {
				found = true
			}
		}
	}
	if !found {
		t.Error("orientation media rule not retained")
	}
}

func TestParseCSS_CommentsAndGroups(t *testing.T) {
	// WHAT: Comments are stripped and comma groups split.
	rules := parseCSS(`/* c */ h1, h2 { color: red; } @font-face { src: url(x); }`)
	if len(rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(rules))
	}
	if len(rules[0].Selectors) != 2 || rules[0].Prop("color") != "red" {
		t.Errorf("rule = %+v", rules[0])
	}
}

func TestProviderSuppliedStylesheet(t *testing.T) {
	// WHAT: A provider-supplied external sheet is readable, not denied.
	p, err := ParseString("https://example.test/",
		`<html><head><link rel="stylesheet" href="/app.css"></head><body><p>x</p></body></html>`,
		WithStylesheet("/app.css", "p { display: none; }"),
		WithEngine("chromium-1280x800"),
	)
	if err != nil {
		t.Fatal(err)
	}
	el, _ := p.QueryOne("p")
	if v := el.Style("display"); v != "none" {
		t.Errorf("display = %q, want none from provider sheet", v)
	}
	if p.Engine() != "chromium-1280x800" {
		t.Errorf("engine = %q", p.Engine())
	}
	for _, s := range p.Stylesheets() {
		if s.Denied {
			t.Errorf("sheet %s unexpectedly denied", s.Href)
		}
	}
}
