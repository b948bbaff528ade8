package facematch

import (
	"errors"
	"math"
	"testing"
)

// fixedDistance makes the matcher see a preset distance per candidate. The first
// element of every encoding carries the candidate's distance to any probe.
func fixedDistance(_, b Encoding) float64 {
	return float64(b[0])
}

func cand(label string, dist float32) Candidate {
	return Candidate{Label: label, Encoding: Encoding{dist}}
}

func TestBestMatch_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		distance  float32
		wantMatch bool
	}{
		{"well inside", 0.1, true},
		{"just below threshold", 0.59, true},
		{"at threshold", 0.60, false},
		{"above threshold", 0.61, false},
		{"far away", 1.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Matcher{Threshold: 0.6, Distance: fixedDistance}
			label, ok := m.BestMatch(Encoding{1}, []Candidate{cand("alice", tt.distance)})
			if ok != tt.wantMatch {
				t.Fatalf("BestMatch() ok = %v, want %v", ok, tt.wantMatch)
			}
			if ok && label != "alice" {
				t.Errorf("BestMatch() label = %q, want %q", label, "alice")
			}
		})
	}
}

func TestBestMatch_FirstMatchWins(t *testing.T) {
	m := &Matcher{Threshold: 0.6, Distance: fixedDistance}
	candidates := []Candidate{cand("A", 0.3), cand("B", 0.1)}

	label, ok := m.BestMatch(Encoding{1}, candidates)
	if !ok || label != "A" {
		t.Errorf("BestMatch() = (%q, %v), want (\"A\", true)", label, ok)
	}
}

func TestBestMatch_SkipsUnloadableCandidates(t *testing.T) {
	m := &Matcher{Threshold: 0.6, Distance: fixedDistance}
	candidates := []Candidate{
		{Label: "broken", Err: errors.New("corrupt blob")},
		{Label: "empty"},
		cand("far", 0.9),
		cand("bob", 0.2),
	}

	label, ok := m.BestMatch(Encoding{1}, candidates)
	if !ok || label != "bob" {
		t.Errorf("BestMatch() = (%q, %v), want (\"bob\", true)", label, ok)
	}
}

func TestBestMatch_NoCandidates(t *testing.T) {
	m := NewMatcher()
	if _, ok := m.BestMatch(Encoding{0.1, 0.2}, nil); ok {
		t.Error("expected no match for empty candidate list")
	}
	if _, ok := m.BestMatch(nil, []Candidate{{Label: "a", Encoding: Encoding{0}}}); ok {
		t.Error("expected no match for empty probe")
	}
}

func TestBestMatch_DoesNotMutate(t *testing.T) {
	m := NewMatcher()
	probe := Encoding{0.1, 0.2, 0.3}
	candidates := []Candidate{{Label: "a", Encoding: Encoding{0.1, 0.2, 0.3}}}

	m.BestMatch(probe, candidates)

	if probe[0] != 0.1 || candidates[0].Encoding[2] != 0.3 || candidates[0].Label != "a" {
		t.Error("BestMatch modified its inputs")
	}
}

func TestBestMatch_IdenticalEncoding(t *testing.T) {
	m := NewMatcher()
	enc := Encoding{0.12, -0.4, 0.33, 0.05}

	label, ok := m.BestMatch(enc, []Candidate{{Label: "alice", Encoding: Encoding{0.12, -0.4, 0.33, 0.05}}})
	if !ok || label != "alice" {
		t.Errorf("BestMatch() = (%q, %v), want (\"alice\", true)", label, ok)
	}
}

func TestNearest(t *testing.T) {
	m := &Matcher{Threshold: 0.6, Distance: fixedDistance}
	candidates := []Candidate{cand("A", 0.3), cand("B", 0.1), cand("C", 0.9)}

	label, dist, ok := m.Nearest(Encoding{1}, candidates)
	if !ok || label != "B" {
		t.Fatalf("Nearest() = (%q, %v), want \"B\"", label, ok)
	}
	if math.Abs(dist-0.1) > 0.0001 {
		t.Errorf("Nearest() distance = %v, want 0.1", dist)
	}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Encoding
		expected float64
	}{
		{"identical", Encoding{1, 2, 3}, Encoding{1, 2, 3}, 0},
		{"3-4-5", Encoding{0, 0}, Encoding{3, 4}, 5},
		{"unit", Encoding{1, 0}, Encoding{0, 0}, 1},
		{"length mismatch", Encoding{1, 2}, Encoding{1}, math.Inf(1)},
		{"empty", Encoding{}, Encoding{}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EuclideanDistance(tt.a, tt.b)
			if math.IsInf(tt.expected, 1) {
				if !math.IsInf(result, 1) {
					t.Errorf("EuclideanDistance() = %v, want +Inf", result)
				}
				return
			}
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("EuclideanDistance() = %v, want %v", result, tt.expected)
			}
		})
	}
}
