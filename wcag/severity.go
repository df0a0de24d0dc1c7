package wcag

// severityTable maps check ids to their fixed severity. This is the single
// severity policy for the whole engine: analyzers emit raw hits tagged with
// a check id and the normalizer assigns severity from here. Keeping the
// table in one place makes the policy auditable and testable on its own.
var severityTable = map[string]Severity{
	// 1.1.1 Non-text Content
	"img-alt-missing":    SeverityCritical,
	"img-alt-filename":   SeveritySerious,
	"img-alt-redundant":  SeverityMinor, // "image of ...", "picture of ..."
	"img-alt-empty-link": SeveritySerious,

	// 1.3.1 Info and Relationships
	"input-label-missing":   SeverityCritical,
	"label-for-dangling":    SeveritySerious,
	"pseudo-content-text":   SeverityModerate, // meaningful text injected via ::before/::after
	"list-structure-broken": SeverityModerate,

	// 1.3.2 Meaningful Sequence
	"visual-order-mismatch": SeverityModerate, // flex/grid order or absolute positioning reorders content
	"float-order-suspect":   SeverityMinor,

	// 1.3.3 Sensory Characteristics
	"sensory-instruction": SeveritySerious,
	"shape-only-cue":      SeverityModerate,

	// 1.3.4 Orientation
	"orientation-locked": SeveritySerious,

	// 2.4.1 Bypass Blocks
	"skip-link-missing": SeverityModerate,
	"skip-link-broken":  SeveritySerious,

	// 2.4.3 Focus Order
	"tabindex-positive":       SeveritySerious,
	"tabindex-non-sequential": SeverityModerate,

	// 2.4.6 Headings and Labels
	"heading-vague":     SeverityModerate,
	"heading-empty":     SeveritySerious,
	"heading-duplicate": SeverityMinor,

	// 2.4.10 Section Headings
	"section-heading-sparse": SeverityModerate, // long paragraph runs without a heading
	"section-heading-absent": SeverityModerate, // too many words under one heading

	// 4.1.2 Name, Role, Value
	"control-name-missing": SeverityCritical,
	"role-invalid":         SeveritySerious,

	// Engine diagnostics
	"analyzer-fault":      SeverityModerate,
	"stylesheet-denied":   SeverityMinor, // cross-origin stylesheet, soft skip
	"schema-placeholder":  SeverityMinor, // normalizer degraded a malformed raw hit
}

// SeverityOf returns the fixed severity for a check id. Unknown check ids
// get moderate so a new check forgotten in the table is visible in reports
// without inventing per-analyzer policy.
func SeverityOf(checkID string) Severity {
	if s, ok := severityTable[checkID]; ok {
		return s
	}
	return SeverityModerate
}

// KnownCheck reports whether a check id has an entry in the severity table.
func KnownCheck(checkID string) bool {
	_, ok := severityTable[checkID]
	return ok
}
