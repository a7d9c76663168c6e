package domain

import "fmt"

// Label is the class assigned to a materialized record.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
)

// Flag renders the label in the tabular output convention (1/0).
func (l Label) Flag() int {
	if l == LabelPositive {
		return 1
	}
	return 0
}

// Summary is a lightweight entry returned by the discover endpoint.
type Summary struct {
	ID    int64
	Title string
}

// Detail carries the per-movie fields fetched from the detail endpoint.
type Detail struct {
	ID               int64
	Title            string
	OriginalTitle    string
	OriginalLanguage string
	ReleaseDate      string
	Budget           int64
	Revenue          int64
	VoteAverage      float64
	VoteCount        int64
	Runtime          int
}

// DisplayTitle picks the localized title with the original one as fallback.
func (d Detail) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.OriginalTitle
}

// Record is one labeled dataset row. Immutable once created; a record exists
// only when budget and revenue are both positive and the ratio cleared one of
// the two thresholds.
type Record struct {
	ID               int64
	Title            string
	OriginalLanguage string
	ReleaseDate      string
	Budget           int64
	Revenue          int64
	Ratio            float64
	VoteAverage      float64
	VoteCount        int64
	Runtime          int
	Label            Label
}

// Pools holds the two append-only class sequences accumulated while harvesting.
type Pools struct {
	Positive []Record
	Negative []Record
}

// Append routes a record to the pool its label determined at creation time.
func (p *Pools) Append(r Record) {
	if r.Label == LabelPositive {
		p.Positive = append(p.Positive, r)
		return
	}
	p.Negative = append(p.Negative, r)
}

// Balanced reports whether both pools reached the per-class target.
func (p *Pools) Balanced(target int) bool {
	return len(p.Positive) >= target && len(p.Negative) >= target
}

func (p *Pools) String() string {
	return fmt.Sprintf("pos=%d neg=%d", len(p.Positive), len(p.Negative))
}
