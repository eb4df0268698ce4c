package dataset

import (
	"math/rand"

	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/services/features"
)

// TargetSource supplies one training label per table row. Real index
// ground truth does not exist, so the default implementation is a
// placeholder labeling heuristic; it stays swappable behind this seam.
type TargetSource interface {
	Targets(t *models.Table) ([]float64, error)
}

// SyntheticTargets derives labels from price/volume heuristics:
// 0.7*minmax(Close) + 0.3*minmax(Volume), blended 0.6/0.4 with the
// min-max-scaled trend (Close-MA_30)/(MA_30+1e-8) when MA_30 exists.
type SyntheticTargets struct {
	rng *rand.Rand
}

// NewSyntheticTargets creates the placeholder target source.
func NewSyntheticTargets(rng *rand.Rand) *SyntheticTargets {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &SyntheticTargets{rng: rng}
}

func (s *SyntheticTargets) Targets(t *models.Table) ([]float64, error) {
	n := t.Len()
	if n == 0 {
		return nil, &errs.InvalidInputError{Reason: "empty table for target generation"}
	}
	cls := t.Column(models.ColClose)
	vol := t.Column(models.ColVolume)
	if cls == nil || vol == nil {
		out := make([]float64, n)
		for i := range out {
			out[i] = s.rng.Float64()
		}
		return out, nil
	}

	scaledClose := features.MinMaxScale(cls)
	scaledVol := features.MinMaxScale(vol)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.7*scaledClose[i] + 0.3*scaledVol[i]
	}

	if ma30 := t.Column(models.ColMA30); ma30 != nil {
		trend := make([]float64, n)
		for i := range trend {
			trend[i] = (cls[i] - ma30[i]) / (ma30[i] + 1e-8)
		}
		scaledTrend := features.MinMaxScale(trend)
		for i := range out {
			out[i] = 0.6*out[i] + 0.4*scaledTrend[i]
		}
	}
	return out, nil
}
