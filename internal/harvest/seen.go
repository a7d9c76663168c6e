package harvest

// SeenSet tracks identifiers that were already detail-fetched and
// materialized, in this run or in a checkpoint loaded at startup. An
// identifier, once added, is never fetched again for the lifetime of the run.
type SeenSet struct {
	ids map[int64]struct{}
}

// NewSeenSet builds an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: map[int64]struct{}{}}
}

// Has reports membership.
func (s *SeenSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Add marks the identifier as processed.
func (s *SeenSet) Add(id int64) {
	s.ids[id] = struct{}{}
}

// Len returns the number of tracked identifiers.
func (s *SeenSet) Len() int {
	return len(s.ids)
}
