package finder

import (
	"math"
	"sort"
)

// Triple is three finder centres that plausibly belong to one symbol, in no
// particular order.
type Triple [3]Pattern

const (
	// maxModuleSizeSpread is the allowed relative module-size difference
	// inside a triple.
	maxModuleSizeSpread = 0.5
	// maxLegSpread is the allowed relative difference between the two legs.
	maxLegSpread = 0.5
	// maxRightAngleError bounds |hyp^2 - (a^2 + b^2)| / hyp^2.
	maxRightAngleError = 0.1
	// Leg lengths in modules for versions 1 and 40, with some slack.
	minLegModules = 10.0
	maxLegModules = 180.0
	// maxCandidates caps the centres considered, strongest first.
	maxCandidates = 40
)

type scoredTriple struct {
	idx   [3]int
	score float64
}

// Group picks disjoint triples from the confirmed centres. Candidate triples
// must agree on module size and form a right isosceles triangle; they are
// chosen greedily by how closely they fit, and each centre joins at most one
// triple.
func Group(patterns []Pattern, cfg Config) []Triple {
	var centers []Pattern
	for _, p := range patterns {
		if p.Count >= cfg.MinConfirmations {
			centers = append(centers, p)
		}
	}
	if len(centers) < 3 {
		return nil
	}
	sort.SliceStable(centers, func(i, j int) bool { return centers[i].Count > centers[j].Count })
	if len(centers) > maxCandidates {
		centers = centers[:maxCandidates]
	}

	var candidates []scoredTriple
	n := len(centers)
	for i := 0; i < n-2; i++ {
		for j := i + 1; j < n-1; j++ {
			for k := j + 1; k < n; k++ {
				if score, ok := fit(centers[i], centers[j], centers[k]); ok {
					candidates = append(candidates, scoredTriple{idx: [3]int{i, j, k}, score: score})
				}
			}
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].score < candidates[b].score })

	used := make([]bool, n)
	var out []Triple
	for _, c := range candidates {
		if used[c.idx[0]] || used[c.idx[1]] || used[c.idx[2]] {
			continue
		}
		for _, i := range c.idx {
			used[i] = true
		}
		out = append(out, Triple{centers[c.idx[0]], centers[c.idx[1]], centers[c.idx[2]]})
	}
	return out
}

// fit scores how well three centres form the corner triangle of a symbol;
// lower is better.
func fit(a, b, c Pattern) (float64, bool) {
	lo := math.Min(a.ModuleSize, math.Min(b.ModuleSize, c.ModuleSize))
	hi := math.Max(a.ModuleSize, math.Max(b.ModuleSize, c.ModuleSize))
	if lo <= 0 || (hi-lo)/lo > maxModuleSizeSpread {
		return 0, false
	}
	module := (a.ModuleSize + b.ModuleSize + c.ModuleSize) / 3

	sides := []float64{Distance(a, b), Distance(b, c), Distance(a, c)}
	sort.Float64s(sides)
	legA, legB, hyp := sides[0], sides[1], sides[2]

	if legA/module < minLegModules || legB/module > maxLegModules {
		return 0, false
	}
	legSpread := (legB - legA) / legA
	if legSpread > maxLegSpread {
		return 0, false
	}
	angleErr := math.Abs(hyp*hyp-(legA*legA+legB*legB)) / (hyp * hyp)
	if angleErr > maxRightAngleError {
		return 0, false
	}
	return angleErr + legSpread + (hi-lo)/lo, true
}
