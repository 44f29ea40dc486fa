// Package scoring turns whatever raw capability data a report obtained into
// normalized, leveled indicators. Every function here is pure.
package scoring

import (
	"math"
	"sort"

	"TokenLens/internal/domain/models"
)

// Level thresholds shared by every indicator.
const (
	HighThreshold   = 70.0
	MediumThreshold = 40.0
)

// Factor is one weighted input of an indicator. Absent factors give their
// weight to the present ones in proportion.
type Factor struct {
	Name    string
	Weight  float64
	Score   float64
	Present bool
}

func present(name string, weight, score float64) Factor {
	return Factor{Name: name, Weight: weight, Score: score, Present: true}
}

func absent(name string, weight float64) Factor {
	return Factor{Name: name, Weight: weight}
}

// LevelFor buckets a 0..100 score.
func LevelFor(score float64) models.Level {
	switch {
	case score >= HighThreshold:
		return models.LevelHigh
	case score >= MediumThreshold:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// Combine computes the weighted average over present factors. ok is false
// when no factor is present, meaning the indicator is unknown.
func Combine(name models.IndicatorName, labels map[models.Level]string, factors []Factor) (models.Indicator, bool) {
	active := 0.0
	for _, f := range factors {
		if f.Present && f.Weight > 0 {
			active += f.Weight
		}
	}
	if active <= 0 {
		return models.Indicator{}, false
	}

	subscores := make(map[string]float64, len(factors))
	weights := make(map[string]float64, len(factors))
	score := 0.0
	for _, f := range sortedFactors(factors) {
		if !f.Present || f.Weight <= 0 {
			continue
		}
		w := f.Weight / active
		s := Clamp(f.Score, 0, 100)
		subscores[f.Name] = round2(s)
		weights[f.Name] = w
		score += w * s
	}

	score = round2(Clamp(score, 0, 100))
	level := LevelFor(score)
	return models.Indicator{
		Name:                name,
		Score:               score,
		Level:               level,
		Label:               labels[level],
		ContributingFactors: subscores,
		Weights:             weights,
	}, true
}

// sortedFactors fixes summation order so equal inputs give bit-equal scores.
func sortedFactors(factors []Factor) []Factor {
	out := make([]Factor, len(factors))
	copy(out, factors)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clamp bounds v to [lo, hi]; NaN and infinities become 0 before clamping.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// logScale maps v onto 0..100 with floor 10^lo and ceiling 10^hi.
func logScale(v, lo, hi float64) float64 {
	if v <= 0 || hi <= lo {
		return 0
	}
	return Clamp((math.Log10(v)-lo)/(hi-lo)*100, 0, 100)
}
