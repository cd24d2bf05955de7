package symbol

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCodewordCount is returned when the placement does not yield exactly the
// table's codeword count, or a stream has the wrong length for its version.
var ErrCodewordCount = errors.New("symbol: codeword count mismatch")

// Position addresses one module.
type Position struct {
	Row, Col int
}

var (
	placementOnce sync.Once
	placements    [MaxVersion][][8]Position
)

// CodewordPositions returns, for each codeword in reading order, the eight
// modules holding its bits from most to least significant. The zig-zag walks
// column pairs from the right edge, skipping the vertical timing column,
// alternating upward and downward, and skips function modules.
// Remainder modules after the last full codeword are not included.
func CodewordPositions(version int) ([][8]Position, error) {
	if version < MinVersion || version > MaxVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	placementOnce.Do(func() {
		for v := MinVersion; v <= MaxVersion; v++ {
			placements[v-1] = buildPlacement(v)
		}
	})
	return placements[version-1], nil
}

func buildPlacement(version int) [][8]Position {
	fm, _ := FunctionMask(version)
	dim := DimensionForVersion(version)
	total := versions[version-1].TotalCodewords()

	out := make([][8]Position, 0, total)
	var current [8]Position
	bit := 0
	upward := true
	for right := dim - 1; right > 0; right -= 2 {
		if right == 6 {
			right--
		}
		for step := 0; step < dim; step++ {
			row := step
			if upward {
				row = dim - 1 - step
			}
			for dx := 0; dx < 2; dx++ {
				col := right - dx
				if fm.Get(col, row) {
					continue
				}
				current[bit] = Position{Row: row, Col: col}
				bit++
				if bit == 8 {
					if len(out) < total {
						out = append(out, current)
					}
					bit = 0
				}
			}
		}
		upward = !upward
	}
	return out
}

// ReadCodewords reads the unmasked grid in placement order and returns the raw
// interleaved codeword stream.
func ReadCodewords(g *Grid) ([]byte, error) {
	positions, err := CodewordPositions(g.Version)
	if err != nil {
		return nil, err
	}
	v := &versions[g.Version-1]
	if len(positions) != v.TotalCodewords() {
		return nil, fmt.Errorf("%w: placed %d, want %d", ErrCodewordCount, len(positions), v.TotalCodewords())
	}

	out := make([]byte, len(positions))
	for i, pos := range positions {
		var b byte
		for _, p := range pos {
			b <<= 1
			if g.At(p.Row, p.Col) {
				b |= 1
			}
		}
		out[i] = b
	}
	return out, nil
}

// Block is one Reed-Solomon block: the first DataCodewords bytes are data,
// the rest error correction.
type Block struct {
	DataCodewords int
	Codewords     []byte
}

// ECCodewords returns the number of error-correction codewords in the block.
func (b Block) ECCodewords() int {
	return len(b.Codewords) - b.DataCodewords
}

// BlockLayout returns, for each block in order, the index into the raw
// interleaved stream of each of its codewords. Data codewords are interleaved
// column-wise across all blocks (longer group-2 blocks contribute their extra
// data codeword last), then the EC codewords the same way.
func BlockLayout(version int, level ECLevel) ([][]int, error) {
	v, err := VersionFor(version)
	if err != nil {
		return nil, err
	}
	if level < LevelL || level > LevelH {
		return nil, fmt.Errorf("symbol: invalid error correction level %d", int(level))
	}
	eb := v.ECBlocks(level)

	var dataLens []int
	for _, g := range eb.Groups {
		for i := 0; i < g.Count; i++ {
			dataLens = append(dataLens, g.DataCodewords)
		}
	}
	layout := make([][]int, len(dataLens))
	maxData := 0
	for i, n := range dataLens {
		layout[i] = make([]int, 0, n+eb.ECCodewordsPerBlock)
		if n > maxData {
			maxData = n
		}
	}

	idx := 0
	for col := 0; col < maxData; col++ {
		for b, n := range dataLens {
			if col < n {
				layout[b] = append(layout[b], idx)
				idx++
			}
		}
	}
	for col := 0; col < eb.ECCodewordsPerBlock; col++ {
		for b := range dataLens {
			layout[b] = append(layout[b], idx)
			idx++
		}
	}
	return layout, nil
}

// SplitBlocks de-interleaves a raw codeword stream into its blocks.
func SplitBlocks(codewords []byte, version int, level ECLevel) ([]Block, error) {
	v, err := VersionFor(version)
	if err != nil {
		return nil, err
	}
	if len(codewords) != v.TotalCodewords() {
		return nil, fmt.Errorf("%w: got %d codewords, want %d", ErrCodewordCount, len(codewords), v.TotalCodewords())
	}
	layout, err := BlockLayout(version, level)
	if err != nil {
		return nil, err
	}
	ec := v.ECBlocks(level).ECCodewordsPerBlock

	blocks := make([]Block, len(layout))
	for b, indices := range layout {
		cw := make([]byte, len(indices))
		for i, idx := range indices {
			cw[i] = codewords[idx]
		}
		blocks[b] = Block{DataCodewords: len(indices) - ec, Codewords: cw}
	}
	return blocks, nil
}

// Interleave is the inverse of SplitBlocks.
func Interleave(blocks []Block, version int, level ECLevel) ([]byte, error) {
	v, err := VersionFor(version)
	if err != nil {
		return nil, err
	}
	layout, err := BlockLayout(version, level)
	if err != nil {
		return nil, err
	}
	if len(blocks) != len(layout) {
		return nil, fmt.Errorf("%w: got %d blocks, want %d", ErrCodewordCount, len(blocks), len(layout))
	}
	out := make([]byte, v.TotalCodewords())
	for b, indices := range layout {
		if len(blocks[b].Codewords) != len(indices) {
			return nil, fmt.Errorf("%w: block %d has %d codewords, want %d",
				ErrCodewordCount, b, len(blocks[b].Codewords), len(indices))
		}
		for i, idx := range indices {
			out[idx] = blocks[b].Codewords[i]
		}
	}
	return out, nil
}
