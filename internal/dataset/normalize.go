package dataset

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrDegenerateScores is returned when scores cannot be rescaled because the
// column is empty or every score is identical.
var ErrDegenerateScores = eris.New("dataset: score column is empty or has zero variance")

// Range is the raw score span a dataset was normalized against.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Normalize rescales raw scores in place to (raw-min)/(max-min) over the
// whole slice. The span is taken from this slice only, so the same raw score
// maps to a different color if the input file changes.
func Normalize(scores []float64) (Range, error) {
	if len(scores) == 0 {
		return Range{}, ErrDegenerateScores
	}

	r := Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return Range{}, eris.Errorf("dataset: score %d is not finite", i)
		}
		r.Min = math.Min(r.Min, s)
		r.Max = math.Max(r.Max, s)
	}

	span := r.Max - r.Min
	if span == 0 {
		return r, eris.Wrapf(ErrDegenerateScores, "dataset: all %d scores equal %v", len(scores), r.Min)
	}

	for i, s := range scores {
		scores[i] = (s - r.Min) / span
	}
	// Pin the extremes so rounding never pushes them outside [0,1].
	for i := range scores {
		scores[i] = math.Min(1, math.Max(0, scores[i]))
	}
	return r, nil
}
