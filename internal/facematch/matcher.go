package facematch

import (
	"math"

	"github.com/kozaktomas/face-gate/internal/constants"
)

// Matcher decides whether a probe encoding belongs to one of a set of candidates.
type Matcher struct {
	Threshold float64
	Distance  DistanceFunc
}

// NewMatcher returns a matcher using Euclidean distance and the fixed confidence threshold.
func NewMatcher() *Matcher {
	return &Matcher{
		Threshold: constants.ConfidenceThreshold,
		Distance:  EuclideanDistance,
	}
}

func (m *Matcher) distance(a, b Encoding) float64 {
	if m.Distance == nil {
		return EuclideanDistance(a, b)
	}
	return m.Distance(a, b)
}

// BestMatch returns the label of the first candidate, in the given order, whose
// distance to probe is strictly below the threshold.
//
// The first match wins even when a later candidate is closer. Candidates that
// failed to load are skipped. An empty candidate list never matches.
func (m *Matcher) BestMatch(probe Encoding, candidates []Candidate) (string, bool) {
	if len(probe) == 0 {
		return "", false
	}
	for _, c := range candidates {
		if !c.Usable() {
			continue
		}
		if m.distance(probe, c.Encoding) < m.Threshold {
			return c.Label, true
		}
	}
	return "", false
}

// Nearest returns the closest usable candidate regardless of threshold.
// Used for diagnostics only; decisions go through BestMatch.
func (m *Matcher) Nearest(probe Encoding, candidates []Candidate) (string, float64, bool) {
	bestLabel := ""
	bestDist := math.Inf(1)
	found := false

	for _, c := range candidates {
		if !c.Usable() {
			continue
		}
		if d := m.distance(probe, c.Encoding); d < bestDist {
			bestDist = d
			bestLabel = c.Label
			found = true
		}
	}
	return bestLabel, bestDist, found
}
