package wcag

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Criterion describes one WCAG success criterion known to the engine.
type Criterion struct {
	ID        string    `json:"id"` // dotted, e.g. "2.4.6"
	Title     string    `json:"title"`
	Principle Principle `json:"principle"`
	Level     Level     `json:"level"`
	TestType  TestType  `json:"test_type"` // default; a matrix manual flag overrides to manual
}

// Catalog is the ordered set of criteria the engine evaluates. Every
// PageReport enumerates exactly these, whether or not an analyzer ran.
var Catalog = []Criterion{
	{ID: "1.1.1", Title: "Non-text Content", Principle: Perceivable, Level: LevelA, TestType: TestAutomated},
	{ID: "1.3.1", Title: "Info and Relationships", Principle: Perceivable, Level: LevelA, TestType: TestAutomated},
	{ID: "1.3.2", Title: "Meaningful Sequence", Principle: Perceivable, Level: LevelA, TestType: TestHybrid},
	{ID: "1.3.3", Title: "Sensory Characteristics", Principle: Perceivable, Level: LevelA, TestType: TestAutomated},
	{ID: "1.3.4", Title: "Orientation", Principle: Perceivable, Level: LevelAA, TestType: TestAutomated},
	{ID: "2.4.1", Title: "Bypass Blocks", Principle: Operable, Level: LevelA, TestType: TestAutomated},
	{ID: "2.4.3", Title: "Focus Order", Principle: Operable, Level: LevelA, TestType: TestHybrid},
	{ID: "2.4.6", Title: "Headings and Labels", Principle: Operable, Level: LevelAA, TestType: TestAutomated},
	{ID: "2.4.10", Title: "Section Headings", Principle: Operable, Level: LevelAAA, TestType: TestAutomated},
	{ID: "3.2.3", Title: "Consistent Navigation", Principle: Understandable, Level: LevelAA, TestType: TestManual},
	{ID: "4.1.2", Title: "Name, Role, Value", Principle: Robust, Level: LevelA, TestType: TestHybrid},
}

// CriterionByID looks a criterion up in the catalog.
func CriterionByID(id string) (Criterion, bool) {
	for _, c := range Catalog {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// CompareID orders dotted criterion ids numerically per segment, so
// "2.4.10" sorts after "2.4.6" instead of lexicographically before it.
func CompareID(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			// Non-numeric segment: fall back to string order.
			if as[i] != bs[i] {
				return strings.Compare(as[i], bs[i])
			}
			continue
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return len(as) - len(bs)
}

// SortIDs sorts criterion ids in place using CompareID.
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return CompareID(ids[i], ids[j]) < 0 })
}

// Tags derives the WCAG tag set for a criterion, axe-style: a compact
// criterion tag ("wcag246") plus the conformance-level tag ("wcag2aa").
func Tags(c Criterion) []string {
	compact := "wcag" + strings.ReplaceAll(c.ID, ".", "")
	level := "wcag2" + strings.ToLower(string(c.Level))
	return []string{compact, level, "cat." + strings.ToLower(string(c.Principle))}
}

// ValidateCatalog reports duplicate or malformed catalog entries. Called
// from tests; the catalog is static data and must stay internally consistent.
func ValidateCatalog() error {
	seen := make(map[string]bool, len(Catalog))
	for _, c := range Catalog {
		if c.ID == "" || c.Title == "" {
			return fmt.Errorf("wcag: catalog entry missing id or title: %+v", c)
		}
		if seen[c.ID] {
			return fmt.Errorf("wcag: duplicate criterion %s", c.ID)
		}
		seen[c.ID] = true
		for _, seg := range strings.Split(c.ID, ".") {
			if _, err := strconv.Atoi(seg); err != nil {
				return fmt.Errorf("wcag: non-numeric segment in criterion %s", c.ID)
			}
		}
	}
	return nil
}
