package harvest

import (
	"math/rand"

	"MovieHarvester/internal/domain"
)

// BalancedSampler draws an equal-size shuffled subset from the two class
// pools, capped at a per-class target. Reproducibility across runs is not a
// goal; the shuffle is random.
type BalancedSampler struct {
	rng *rand.Rand
}

// NewBalancedSampler wires the rand source used for shuffling.
func NewBalancedSampler(rng *rand.Rand) BalancedSampler {
	return BalancedSampler{rng: rng}
}

// Sample returns k records of each class, shuffled together, where
// k = min(|pos|, |neg|, target). An empty slice means balancing was
// impossible because one pool is empty.
func (s BalancedSampler) Sample(pos, neg []domain.Record, target int) []domain.Record {
	k := min(len(pos), len(neg), target)
	if k <= 0 {
		return nil
	}

	posCopy := shuffled(s.rng, pos)
	negCopy := shuffled(s.rng, neg)

	balanced := make([]domain.Record, 0, 2*k)
	balanced = append(balanced, posCopy[:k]...)
	balanced = append(balanced, negCopy[:k]...)
	s.rng.Shuffle(len(balanced), func(i, j int) {
		balanced[i], balanced[j] = balanced[j], balanced[i]
	})

	return balanced
}

// shuffled copies the pool so the append-only originals stay untouched.
func shuffled(rng *rand.Rand, pool []domain.Record) []domain.Record {
	out := make([]domain.Record, len(pool))
	copy(out, pool)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
