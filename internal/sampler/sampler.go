// Package sampler reads a symbol's module grid from a binarized image through
// a resolved geometry.
package sampler

import (
	"math"

	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
	"github.com/MeKo-Tech/qrlens/internal/geometry"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
)

const (
	// MaxOutOfBoundsRatio is the share of module centres that may fall
	// outside the image before sampling is flagged unreliable.
	MaxOutOfBoundsRatio = 0.05
	// MaxTimingMismatchRatio is the share of timing modules that may break
	// the alternation before sampling is flagged unreliable.
	MaxTimingMismatchRatio = 0.25
)

// Report describes how trustworthy a sampled grid is.
type Report struct {
	Modules        int
	OutOfBounds    int
	TimingModules  int
	TimingMismatch int
	// Unreliable is set when either ratio exceeds its limit. Decoding still
	// proceeds.
	Unreliable bool
	// Confidence is one minus the timing mismatch ratio.
	Confidence float64
}

// OutOfBoundsRatio returns the share of module centres outside the image.
func (r Report) OutOfBoundsRatio() float64 {
	if r.Modules == 0 {
		return 0
	}
	return float64(r.OutOfBounds) / float64(r.Modules)
}

// TimingMismatchRatio returns the share of timing modules read wrongly.
func (r Report) TimingMismatchRatio() float64 {
	if r.TimingModules == 0 {
		return 0
	}
	return float64(r.TimingMismatch) / float64(r.TimingModules)
}

// Sample maps every module centre through geom and majority-votes a 3x3
// neighbourhood of pixels around it. The neighbourhood spacing grows with the
// module size; below four pixels per module only the centre pixel is read.
// Pixels outside the image read as white.
func Sample(bm *bitmatrix.BitMatrix, geom *geometry.Geometry) (*symbol.Grid, Report) {
	dim := geom.Dimension
	grid, err := symbol.NewGrid(geom.Version)
	if err != nil {
		// Geometry only carries valid versions; an empty grid fails the
		// format stage.
		grid = &symbol.Grid{Version: geom.Version, Modules: bitmatrix.NewSquare(dim)}
	}

	step := int(geom.ModuleSize / 4)
	rep := Report{Modules: dim * dim}
	for row := 0; row < dim; row++ {
		for col := 0; col < dim; col++ {
			p := geom.Map(float64(col)+0.5, float64(row)+0.5)
			if !inside(bm, p) {
				rep.OutOfBounds++
				continue
			}
			if vote(bm, int(p.X), int(p.Y), step) {
				grid.Modules.Set(col, row)
			}
		}
	}

	rep.TimingModules, rep.TimingMismatch = checkTiming(grid)
	rep.Confidence = 1 - rep.TimingMismatchRatio()
	rep.Unreliable = rep.OutOfBoundsRatio() > MaxOutOfBoundsRatio ||
		rep.TimingMismatchRatio() > MaxTimingMismatchRatio
	return grid, rep
}

func inside(bm *bitmatrix.BitMatrix, p geometry.Point) bool {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return false
	}
	return p.X >= 0 && p.Y >= 0 && p.X < float64(bm.Width()) && p.Y < float64(bm.Height())
}

func vote(bm *bitmatrix.BitMatrix, x, y, step int) bool {
	if step == 0 {
		return bm.Get(x, y)
	}
	black := 0
	for dy := -step; dy <= step; dy += step {
		for dx := -step; dx <= step; dx += step {
			if bm.Get(x+dx, y+dy) {
				black++
			}
		}
	}
	return black >= 5
}

// checkTiming counts timing-pattern modules on row 6 and column 6 between the
// separators that break the dark/light alternation.
func checkTiming(g *symbol.Grid) (total, mismatched int) {
	dim := g.Size()
	for i := 8; i < dim-8; i++ {
		want := i%2 == 0
		if g.At(6, i) != want {
			mismatched++
		}
		if g.At(i, 6) != want {
			mismatched++
		}
		total += 2
	}
	return total, mismatched
}
