package symbol

import (
	"fmt"

	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
)

// Grid is a sampled symbol: one bit per module, black set.
// Level and Mask are filled once format information has been read.
type Grid struct {
	Version int
	Modules *bitmatrix.BitMatrix
	Level   ECLevel
	Mask    int
}

// NewGrid returns an all-white grid for the version.
func NewGrid(version int) (*Grid, error) {
	if version < MinVersion || version > MaxVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	return &Grid{Version: version, Modules: bitmatrix.NewSquare(DimensionForVersion(version))}, nil
}

// GridFromMatrix wraps a square matrix whose side is a valid dimension.
func GridFromMatrix(m *bitmatrix.BitMatrix) (*Grid, error) {
	if m.Width() != m.Height() {
		return nil, fmt.Errorf("%w: %dx%d is not square", ErrInvalidVersion, m.Width(), m.Height())
	}
	v, err := VersionForDimension(m.Width())
	if err != nil {
		return nil, err
	}
	return &Grid{Version: v.Number, Modules: m}, nil
}

// Size returns the module count per side.
func (g *Grid) Size() int {
	return g.Modules.Width()
}

// At reports whether the module at (row, col) is black.
func (g *Grid) At(row, col int) bool {
	return g.Modules.Get(col, row)
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	return &Grid{Version: g.Version, Modules: g.Modules.Clone(), Level: g.Level, Mask: g.Mask}
}

// Transposed returns a copy with rows and columns swapped, which is how a
// mirrored symbol reads back.
func (g *Grid) Transposed() *Grid {
	return &Grid{Version: g.Version, Modules: g.Modules.Transpose(), Level: g.Level, Mask: g.Mask}
}
