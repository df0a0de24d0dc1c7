package report

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

// Renderer turns a ConsolidatedReport into markdown for MCP and agent
// consumers. The engine never writes report files itself; this produces a
// string the transport layer hands over.
type Renderer struct {
	conv *converter.Converter
}

// NewRenderer builds a renderer with a commonmark converter for the HTML
// excerpts captured in issues.
func NewRenderer() *Renderer {
	return &Renderer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

var statusMark = map[string]string{
	"pass":           "PASS",
	"warning":        "WARN",
	"fail":           "FAIL",
	"not-applicable": "N/A",
}

// Render produces the markdown document. Ordering follows the report's own
// canonical ordering, so identical reports render identically.
func (r *Renderer) Render(cr ConsolidatedReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Accessibility audit\n\n")
	fmt.Fprintf(&b, "Pages scanned: %d", cr.Summary.PagesScanned)
	if cr.Summary.PagesFailed > 0 {
		fmt.Fprintf(&b, " (plus %d failed to load)", cr.Summary.PagesFailed)
	}
	fmt.Fprintf(&b, "\n\nCriteria: %d fail, %d warning, %d pass, %d not applicable. %d distinct issues.\n",
		cr.Summary.Criteria.Fail, cr.Summary.Criteria.Warning,
		cr.Summary.Criteria.Pass, cr.Summary.Criteria.NotApplicable,
		cr.Summary.TotalIssues)

	if len(cr.Failures) > 0 {
		b.WriteString("\n## Scan failures\n\n")
		for _, f := range cr.Failures {
			fmt.Fprintf(&b, "- %s (%s): %s\n", f.URL, f.Engine, f.Reason)
		}
	}

	b.WriteString("\n## Criteria\n")
	for _, g := range cr.Criteria {
		fmt.Fprintf(&b, "\n### %s %s — %s\n\n", statusMark[string(g.Status)], g.CriterionID, g.Title)
		fmt.Fprintf(&b, "%s, level %s, %s", g.Principle, g.Level, g.TestType)
		if g.NeedsReview {
			b.WriteString(" — needs human review")
		}
		b.WriteString("\n")

		for _, is := range g.Issues {
			fmt.Fprintf(&b, "\n- **%s** (%s", is.Description, is.Severity)
			if is.Occurrences > 1 {
				fmt.Fprintf(&b, ", seen %d times", is.Occurrences)
			}
			b.WriteString(")\n")
			if is.Selector != "" {
				fmt.Fprintf(&b, "  - selector: `%s`\n", is.Selector)
			}
			if ex := r.excerptMarkdown(is.Excerpt); ex != "" {
				fmt.Fprintf(&b, "  - excerpt: %s\n", ex)
			}
			if is.Help != "" {
				fmt.Fprintf(&b, "  - %s\n", is.Help)
			}
		}
	}

	return b.String()
}

// excerptMarkdown converts a captured HTML excerpt to inline markdown. On
// conversion failure the raw excerpt is shown fenced instead of dropped.
func (r *Renderer) excerptMarkdown(excerpt string) string {
	if excerpt == "" {
		return ""
	}
	md, err := r.conv.ConvertString(excerpt)
	if err != nil || strings.TrimSpace(md) == "" {
		return "`" + excerpt + "`"
	}
	return strings.Join(strings.Fields(md), " ")
}
