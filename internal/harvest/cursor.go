package harvest

import "math/rand"

// Position is one (year, sort, page) tuple of the discovery search space.
type Position struct {
	Year int
	Sort string
	Page int
}

// PageCursor enumerates the search space deterministically for a given rand
// source: years descending, per year a shuffled permutation of the sort
// strategies with the bias sort forced first, pages 1..ceiling.
//
// Forcing the bias sort (ascending revenue by default) first is deliberate:
// it surfaces likely negatives early, which cuts the total number of API
// calls needed before both classes reach their target.
type PageCursor struct {
	yearStart   int
	yearEnd     int
	pageCeiling int
	sorts       []string
	biasSort    string
	rng         *rand.Rand

	year    int
	order   []string
	sortIdx int
	page    int
	started bool
	skip    bool
	done    bool
}

// NewPageCursor builds a cursor over [yearStart, yearEnd] with the given sort
// strategies and per-(year,sort) page ceiling.
func NewPageCursor(yearStart, yearEnd, pageCeiling int, sorts []string, biasSort string, rng *rand.Rand) *PageCursor {
	c := &PageCursor{
		yearStart:   yearStart,
		yearEnd:     yearEnd,
		pageCeiling: pageCeiling,
		sorts:       sorts,
		biasSort:    biasSort,
		rng:         rng,
	}
	if yearEnd < yearStart || pageCeiling <= 0 || len(sorts) == 0 {
		c.done = true
	}
	return c
}

// Next returns the following position, or false when the space is exhausted.
func (c *PageCursor) Next() (Position, bool) {
	if c.done {
		return Position{}, false
	}

	if !c.started {
		c.started = true
		c.year = c.yearEnd
		c.enterYear()
		return c.current(), true
	}

	if !c.skip && c.page < c.pageCeiling {
		c.page++
		return c.current(), true
	}
	c.skip = false

	c.sortIdx++
	c.page = 1
	if c.sortIdx < len(c.order) {
		return c.current(), true
	}

	c.year--
	if c.year < c.yearStart {
		c.done = true
		return Position{}, false
	}
	c.enterYear()
	return c.current(), true
}

// SkipSort abandons the remaining pages of the current (year, sort) pair;
// called after a page comes back empty.
func (c *PageCursor) SkipSort() {
	c.skip = true
}

func (c *PageCursor) current() Position {
	return Position{Year: c.year, Sort: c.order[c.sortIdx], Page: c.page}
}

// enterYear reshuffles the sort order and pins the bias sort to the front.
func (c *PageCursor) enterYear() {
	order := make([]string, 0, len(c.sorts))
	for _, s := range c.sorts {
		if s != c.biasSort {
			order = append(order, s)
		}
	}
	if c.rng != nil {
		c.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	if c.biasSort != "" {
		order = append([]string{c.biasSort}, order...)
	}

	c.order = order
	c.sortIdx = 0
	c.page = 1
}
