package symbol

import (
	"sync"

	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
)

var (
	functionMasksOnce sync.Once
	functionMasks     [MaxVersion]*bitmatrix.BitMatrix
)

// FunctionMask returns the reserved-area map for a version: a set bit marks a
// function module (finder, separator, timing, alignment, format or version
// information, dark module) that carries no data. The returned matrix is
// shared and must not be modified.
func FunctionMask(version int) (*bitmatrix.BitMatrix, error) {
	if version < MinVersion || version > MaxVersion {
		return nil, ErrInvalidVersion
	}
	functionMasksOnce.Do(func() {
		for v := MinVersion; v <= MaxVersion; v++ {
			functionMasks[v-1] = buildFunctionMask(&versions[v-1])
		}
	})
	return functionMasks[version-1], nil
}

func buildFunctionMask(v *Version) *bitmatrix.BitMatrix {
	dim := v.Dimension()
	m := bitmatrix.NewSquare(dim)

	// Finder patterns with their separators and the adjacent format areas.
	// The bottom-left block also covers the dark module at (8, dim-8).
	m.SetRegion(0, 0, 9, 9)
	m.SetRegion(dim-8, 0, 8, 9)
	m.SetRegion(0, dim-8, 9, 8)

	// Timing patterns.
	m.SetRegion(6, 9, 1, dim-17)
	m.SetRegion(9, 6, dim-17, 1)

	// Alignment patterns, skipping the three centres that collide with finders.
	centers := v.AlignmentCenters
	last := len(centers) - 1
	for i, cy := range centers {
		for j, cx := range centers {
			if (i == 0 && j == 0) || (i == 0 && j == last) || (i == last && j == 0) {
				continue
			}
			m.SetRegion(cx-2, cy-2, 5, 5)
		}
	}

	if v.Number >= 7 {
		m.SetRegion(dim-11, 0, 3, 6)
		m.SetRegion(0, dim-11, 6, 3)
	}
	return m
}

// DataModuleCount returns the number of modules available for codewords
// (including remainder bits).
func DataModuleCount(version int) int {
	fm, err := FunctionMask(version)
	if err != nil {
		return 0
	}
	dim := fm.Width()
	return dim*dim - fm.CountSet()
}
