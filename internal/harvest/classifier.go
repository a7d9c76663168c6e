package harvest

// Verdict is the classification outcome for one catalog entry.
type Verdict int

const (
	// VerdictPositive: ratio cleared the positive threshold.
	VerdictPositive Verdict = iota
	// VerdictNegative: ratio fell at or below the negative threshold.
	VerdictNegative
	// VerdictNoSignal: budget or revenue not positive; the entry carries no
	// classification signal.
	VerdictNoSignal
	// VerdictAmbiguous: ratio sits in the middle band between thresholds.
	VerdictAmbiguous
)

// Discarded reports whether the entry must not be materialized.
func (v Verdict) Discarded() bool {
	return v == VerdictNoSignal || v == VerdictAmbiguous
}

// Classifier maps the revenue/budget ratio onto two classes separated by an
// excluded middle band. Thresholds are configuration, never derived from data.
type Classifier struct {
	posThreshold float64
	negThreshold float64
}

// NewClassifier builds a classifier from the two configured thresholds.
func NewClassifier(pos, neg float64) Classifier {
	return Classifier{posThreshold: pos, negThreshold: neg}
}

// Classify computes revenue/budget and maps it to a verdict. The ratio is
// defined only when both inputs are positive; both threshold comparisons are
// inclusive.
func (c Classifier) Classify(budget, revenue int64) (float64, Verdict) {
	if budget <= 0 || revenue <= 0 {
		return 0, VerdictNoSignal
	}

	ratio := float64(revenue) / float64(budget)
	switch {
	case ratio >= c.posThreshold:
		return ratio, VerdictPositive
	case ratio <= c.negThreshold:
		return ratio, VerdictNegative
	default:
		return ratio, VerdictAmbiguous
	}
}
