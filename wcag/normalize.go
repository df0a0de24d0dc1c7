package wcag

import (
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// RawHit is what an analyzer produces before canonicalization: free-form
// captured content plus the check id that fired. Analyzers never build
// Issues directly; the normalizer isolates heuristic authoring from the
// stable downstream schema.
type RawHit struct {
	CheckID     string
	CriterionID string
	Description string
	Selector    string
	HTML        string // captured outerHTML, unbounded
	Help        string
	Target      string
}

// NormalizerConfig bounds and hardens canonicalization.
type NormalizerConfig struct {
	// MaxExcerpt is the byte bound for captured HTML excerpts. Default 240.
	MaxExcerpt int `json:"max_excerpt" yaml:"max_excerpt"`

	// MaxDescription is the byte bound for descriptions. Default 320.
	MaxDescription int `json:"max_description" yaml:"max_description"`

	// Strict makes schema violations (missing check/criterion id) hard
	// errors. Test and development builds set it; production degrades to a
	// best-effort placeholder Issue instead.
	Strict bool `json:"strict" yaml:"strict"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *NormalizerConfig) defaults() {
	if c.MaxExcerpt <= 0 {
		c.MaxExcerpt = 240
	}
	if c.MaxDescription <= 0 {
		c.MaxDescription = 320
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Normalizer canonicalizes RawHits into Issues.
type Normalizer struct {
	cfg   NormalizerConfig
	strip *bluemonday.Policy
}

// NewNormalizer creates a normalizer with the given bounds.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	cfg.defaults()
	return &Normalizer{cfg: cfg, strip: bluemonday.StrictPolicy()}
}

// Normalize converts one raw hit into an Issue. A hit missing its check or
// criterion id is a schema violation: error in strict mode, placeholder
// Issue otherwise.
func (n *Normalizer) Normalize(hit RawHit) (Issue, error) {
	if hit.CheckID == "" || hit.CriterionID == "" {
		if n.cfg.Strict {
			return Issue{}, fmt.Errorf("wcag: raw hit missing check or criterion id: %+v", hit)
		}
		n.cfg.Logger.Warn("raw hit missing required fields, degrading",
			"check_id", hit.CheckID, "criterion_id", hit.CriterionID)
		return n.placeholder(hit), nil
	}

	crit, ok := CriterionByID(hit.CriterionID)
	if !ok {
		if n.cfg.Strict {
			return Issue{}, fmt.Errorf("wcag: raw hit references unknown criterion %q", hit.CriterionID)
		}
		n.cfg.Logger.Warn("raw hit references unknown criterion, degrading", "criterion_id", hit.CriterionID)
		return n.placeholder(hit), nil
	}

	return Issue{
		CheckID:     hit.CheckID,
		Description: truncate(n.plainText(hit.Description), n.cfg.MaxDescription),
		Severity:    SeverityOf(hit.CheckID),
		Selector:    truncate(strings.TrimSpace(hit.Selector), n.cfg.MaxExcerpt),
		Excerpt:     truncate(strings.TrimSpace(hit.HTML), n.cfg.MaxExcerpt),
		Help:        truncate(n.plainText(hit.Help), n.cfg.MaxDescription),
		Tags:        Tags(crit),
		Target:      hit.Target,
	}, nil
}

// NormalizeAll canonicalizes a batch, preserving order. In lenient mode it
// never fails; in strict mode the first violation aborts.
func (n *Normalizer) NormalizeAll(hits []RawHit) ([]Issue, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	issues := make([]Issue, 0, len(hits))
	for _, h := range hits {
		is, err := n.Normalize(h)
		if err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, nil
}

func (n *Normalizer) placeholder(hit RawHit) Issue {
	desc := n.plainText(hit.Description)
	if desc == "" {
		desc = "unclassified finding (malformed raw hit)"
	}
	return Issue{
		CheckID:     "schema-placeholder",
		Description: truncate(desc, n.cfg.MaxDescription),
		Severity:    SeverityOf("schema-placeholder"),
		Selector:    truncate(hit.Selector, n.cfg.MaxExcerpt),
		Excerpt:     truncate(strings.TrimSpace(hit.HTML), n.cfg.MaxExcerpt),
	}
}

// plainText strips markup and decodes HTML entities. bluemonday's strict
// policy removes every tag but re-escapes text content, so the unescape
// runs after the strip.
func (n *Normalizer) plainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(n.strip.Sanitize(s)))
}

// truncate bounds s to max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
