// Package facematch provides face matching utilities shared between the login,
// registration and audit code paths.
package facematch

import "math"

// Encoding is a fixed-length face descriptor produced by the recognizer.
// Encodings are only ever compared through a DistanceFunc.
type Encoding []float32

// DistanceFunc returns a non-negative distance between two encodings.
type DistanceFunc func(a, b Encoding) float64

// EuclideanDistance computes the Euclidean distance between two encodings.
// Returns +Inf for encodings of different length or empty encodings so they
// can never fall under a threshold.
func EuclideanDistance(a, b Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1) // Never matches
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Candidate is a labelled encoding offered to the matcher.
// Err is set when the encoding could not be loaded; such candidates are skipped.
type Candidate struct {
	Label    string
	Encoding Encoding
	Err      error
}

// Usable reports whether the candidate can take part in matching.
func (c Candidate) Usable() bool {
	return c.Err == nil && len(c.Encoding) > 0
}
