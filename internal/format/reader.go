package format

import (
	"fmt"

	"github.com/MeKo-Tech/qrlens/internal/symbol"
)

// formatPositions returns the module positions of both 15-bit format copies,
// most significant bit first.
func formatPositions(dim int) (copy1, copy2 [15]symbol.Position) {
	i := 0
	for col := 0; col <= 5; col++ {
		copy1[i] = symbol.Position{Row: 8, Col: col}
		i++
	}
	copy1[i] = symbol.Position{Row: 8, Col: 7}
	copy1[i+1] = symbol.Position{Row: 8, Col: 8}
	copy1[i+2] = symbol.Position{Row: 7, Col: 8}
	i += 3
	for row := 5; row >= 0; row-- {
		copy1[i] = symbol.Position{Row: row, Col: 8}
		i++
	}

	i = 0
	for row := dim - 1; row >= dim-7; row-- {
		copy2[i] = symbol.Position{Row: row, Col: 8}
		i++
	}
	for col := dim - 8; col < dim; col++ {
		copy2[i] = symbol.Position{Row: 8, Col: col}
		i++
	}
	return copy1, copy2
}

// versionPositions returns the module positions of the top-right and
// bottom-left 18-bit version copies, most significant bit first.
func versionPositions(dim int) (topRight, bottomLeft [18]symbol.Position) {
	i := 0
	for row := 5; row >= 0; row-- {
		for col := dim - 9; col >= dim-11; col-- {
			topRight[i] = symbol.Position{Row: row, Col: col}
			i++
		}
	}
	i = 0
	for col := 5; col >= 0; col-- {
		for row := dim - 9; row >= dim-11; row-- {
			bottomLeft[i] = symbol.Position{Row: row, Col: col}
			i++
		}
	}
	return topRight, bottomLeft
}

func readBits(g *symbol.Grid, positions []symbol.Position) uint32 {
	var v uint32
	for _, p := range positions {
		v <<= 1
		if g.At(p.Row, p.Col) {
			v |= 1
		}
	}
	return v
}

// ReadFormat reads and decodes both format copies of the grid.
func ReadFormat(g *symbol.Grid) (Info, error) {
	c1, c2 := formatPositions(g.Size())
	return DecodeFormatBits(uint16(readBits(g, c1[:])), uint16(readBits(g, c2[:])))
}

// ReadVersion returns the symbol version. Below dimension 45 it follows from
// the grid size; larger grids decode the two version copies, the copy
// needing fewer corrections winning. The decoded version may differ from the
// grid's own.
func ReadVersion(g *symbol.Grid) (int, error) {
	dim := g.Size()
	provisional := (dim - 17) / 4
	if provisional <= 6 {
		return provisional, nil
	}

	tr, bl := versionPositions(dim)
	v1, d1, err1 := DecodeVersionBits(readBits(g, tr[:]))
	v2, d2, err2 := DecodeVersionBits(readBits(g, bl[:]))
	switch {
	case err1 == nil && (err2 != nil || d1 <= d2):
		return v1, nil
	case err2 == nil:
		return v2, nil
	}
	return 0, fmt.Errorf("read version at dimension %d: %w", dim, err1)
}

// WriteFormat places both format copies for level and mask into the grid.
// It is used to build fixtures and to repair damaged symbols.
func WriteFormat(g *symbol.Grid, level symbol.ECLevel, mask int) {
	c1, c2 := formatPositions(g.Size())
	writeBits(g, c1[:], uint32(FormatBits(level, mask)))
	writeBits(g, c2[:], uint32(FormatBits(level, mask)))
	// Dark module.
	g.Modules.Set(8, g.Size()-8)
}

// WriteVersion places both version copies for versions 7 and above.
func WriteVersion(g *symbol.Grid, version int) {
	if version < 7 {
		return
	}
	tr, bl := versionPositions(g.Size())
	writeBits(g, tr[:], VersionBits(version))
	writeBits(g, bl[:], VersionBits(version))
}

func writeBits(g *symbol.Grid, positions []symbol.Position, v uint32) {
	n := len(positions)
	for i, p := range positions {
		g.Modules.SetValue(p.Col, p.Row, v>>(n-1-i)&1 == 1)
	}
}
