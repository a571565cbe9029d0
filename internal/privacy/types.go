package privacy

import "regexp"

// Category identifies the kind of PHI a rule detects. The placeholder tag is
// derived from the category name, so renaming a category changes the wire
// format of masked text.
type Category string

// Detected PHI categories. Order of the rule table, not this list, decides
// priority when overlapping spans are resolved.
const (
	CategoryDate     Category = "date"
	CategoryID       Category = "id"
	CategoryEmail    Category = "email"
	CategoryPhone    Category = "phone"
	CategoryName     Category = "name"
	CategoryICD10    Category = "icd10"
	CategoryGenetic  Category = "genetic"
	CategoryReligion Category = "religion"
	CategoryPolitics Category = "politics"
	CategoryUnion    Category = "union"
	CategorySexual   Category = "sexuality"
)

// DetectionRule represents a single PHI detection rule
type DetectionRule struct {
	Category Category
	Pattern  *regexp.Regexp
}

// Match is a detected PHI span. Start/End are byte offsets into the source
// text, half-open. Priority is the index of the rule that produced the match.
type Match struct {
	Start    int
	End      int
	Original string
	Category Category
	Priority int

	// minted is the placeholder issued for this match, set during
	// anonymization.
	minted string
}

// Len returns the span length in bytes.
func (m Match) Len() int { return m.End - m.Start }

// overlaps reports whether two spans share at least one byte.
func (m Match) overlaps(o Match) bool {
	return m.Start < o.End && o.Start < m.End
}

// Summary describes one anonymization pass without carrying any of the
// matched text. Safe to log and broadcast.
type Summary struct {
	TotalMatches int              `json:"total_matches"`
	ByCategory   map[Category]int `json:"by_category"`
}
