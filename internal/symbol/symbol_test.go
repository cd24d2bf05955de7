package symbol

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionTable_TotalsMatchDataModules(t *testing.T) {
	for v := MinVersion; v <= MaxVersion; v++ {
		ver, err := VersionFor(v)
		require.NoError(t, err)

		modules := DataModuleCount(v)
		assert.Equal(t, ver.TotalCodewords(), modules/8, "version %d", v)
		assert.Contains(t, []int{0, 3, 4, 7}, modules%8, "remainder bits for version %d", v)

		for level := LevelL; level <= LevelH; level++ {
			eb := ver.ECBlocks(level)
			total := eb.DataCodewords() + eb.NumBlocks()*eb.ECCodewordsPerBlock
			assert.Equal(t, ver.TotalCodewords(), total, "version %d level %s", v, level)
			if len(eb.Groups) == 2 {
				assert.Equal(t, eb.Groups[0].DataCodewords+1, eb.Groups[1].DataCodewords)
			}
		}
	}
}

func TestVersionTable_PublishedSpotChecks(t *testing.T) {
	tests := []struct {
		version    int
		level      ECLevel
		total      int
		data       int
		ecPerBlock int
		blocks     int
	}{
		{1, LevelL, 26, 19, 7, 1},
		{1, LevelH, 26, 9, 17, 1},
		{5, LevelQ, 134, 62, 18, 4},
		{7, LevelM, 196, 124, 18, 4},
		{10, LevelH, 346, 122, 28, 8},
		{21, LevelM, 1156, 714, 26, 17},
		{40, LevelL, 3706, 2956, 30, 25},
		{40, LevelH, 3706, 1276, 30, 81},
	}
	for _, tt := range tests {
		ver, err := VersionFor(tt.version)
		require.NoError(t, err)
		eb := ver.ECBlocks(tt.level)
		assert.Equal(t, tt.total, ver.TotalCodewords(), "v%d", tt.version)
		assert.Equal(t, tt.data, ver.DataCodewords(tt.level), "v%d-%s", tt.version, tt.level)
		assert.Equal(t, tt.ecPerBlock, eb.ECCodewordsPerBlock, "v%d-%s", tt.version, tt.level)
		assert.Equal(t, tt.blocks, eb.NumBlocks(), "v%d-%s", tt.version, tt.level)
	}
}

func TestVersionFor_Bounds(t *testing.T) {
	_, err := VersionFor(0)
	require.ErrorIs(t, err, ErrInvalidVersion)
	_, err = VersionFor(41)
	require.ErrorIs(t, err, ErrInvalidVersion)

	v, err := VersionForDimension(177)
	require.NoError(t, err)
	assert.Equal(t, 40, v.Number)

	_, err = VersionForDimension(22)
	require.ErrorIs(t, err, ErrInvalidVersion)
	_, err = VersionForDimension(17)
	require.ErrorIs(t, err, ErrInvalidVersion)
}

func TestVersionTable_AlignmentCenters(t *testing.T) {
	v1, _ := VersionFor(1)
	assert.Empty(t, v1.AlignmentCenters)

	for v := 2; v <= MaxVersion; v++ {
		ver, _ := VersionFor(v)
		centers := ver.AlignmentCenters
		require.Equal(t, v/7+2, len(centers), "version %d", v)
		assert.Equal(t, 6, centers[0])
		assert.Equal(t, ver.Dimension()-7, centers[len(centers)-1], "version %d", v)
	}
}

func TestECLevel_Bits(t *testing.T) {
	for level := LevelL; level <= LevelH; level++ {
		got, err := ECLevelFromBits(level.Bits())
		require.NoError(t, err)
		assert.Equal(t, level, got)
	}
	assert.Equal(t, uint8(0x01), LevelL.Bits())
	assert.Equal(t, uint8(0x00), LevelM.Bits())
	assert.Equal(t, uint8(0x03), LevelQ.Bits())
	assert.Equal(t, uint8(0x02), LevelH.Bits())

	_, err := ECLevelFromBits(4)
	assert.Error(t, err)

	l, err := ParseECLevel("q")
	require.NoError(t, err)
	assert.Equal(t, LevelQ, l)
	_, err = ParseECLevel("X")
	assert.Error(t, err)
}

func TestECLevel_TextRoundTrip(t *testing.T) {
	for _, l := range []ECLevel{LevelL, LevelM, LevelQ, LevelH} {
		text, err := l.MarshalText()
		require.NoError(t, err)
		var got ECLevel
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, l, got)
	}
	var l ECLevel
	assert.Error(t, l.UnmarshalText([]byte("X")))
}

func TestFunctionMask_Version1(t *testing.T) {
	fm, err := FunctionMask(1)
	require.NoError(t, err)
	require.Equal(t, 21, fm.Width())

	// 441 modules, 208 data modules.
	assert.Equal(t, 441-208, fm.CountSet())

	assert.True(t, fm.Get(0, 0), "finder")
	assert.True(t, fm.Get(8, 8), "format")
	assert.True(t, fm.Get(8, 13), "dark module")
	assert.True(t, fm.Get(10, 6), "horizontal timing")
	assert.True(t, fm.Get(6, 10), "vertical timing")
	assert.False(t, fm.Get(20, 20), "data")
	assert.False(t, fm.Get(9, 9), "data")
}

func TestFunctionMask_AlignmentAndVersionAreas(t *testing.T) {
	fm, err := FunctionMask(7)
	require.NoError(t, err)
	dim := fm.Width()

	// Alignment centres at 6, 22, 38: (22,22) is reserved, (6,6) is part of
	// the finder, and (38, 6) is a real alignment pattern on the timing row.
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			assert.True(t, fm.Get(22+dx, 22+dy))
			assert.True(t, fm.Get(38+dx, 38+dy))
			assert.True(t, fm.Get(22+dx, 6+dy))
		}
	}

	// Version information blocks.
	for i := 0; i < 6; i++ {
		for j := 0; j < 3; j++ {
			assert.True(t, fm.Get(dim-11+j, i))
			assert.True(t, fm.Get(i, dim-11+j))
		}
	}

	v6, err := FunctionMask(6)
	require.NoError(t, err)
	assert.False(t, v6.Get(v6.Width()-11, 0), "no version info below version 7")
}

func TestMaskConditions(t *testing.T) {
	tests := []struct {
		mask     int
		row, col int
		want     bool
	}{
		{0, 0, 0, true}, {0, 0, 1, false},
		{1, 0, 5, true}, {1, 1, 5, false},
		{2, 4, 3, true}, {2, 4, 4, false},
		{3, 1, 2, true}, {3, 1, 1, false},
		{4, 0, 0, true}, {4, 2, 0, false}, {4, 2, 3, true},
		{5, 0, 7, true}, {5, 1, 1, false},
		{6, 0, 0, true}, {6, 1, 3, false}, {6, 2, 2, false},
		{7, 0, 0, true}, {7, 0, 1, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskBit(tt.mask, tt.row, tt.col), "mask %d at (%d,%d)", tt.mask, tt.row, tt.col)
	}
	assert.False(t, MaskBit(9, 0, 0))
}

func TestUnmask_InvolutionAndFunctionModulesUntouched(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("unmasking twice restores the grid and leaves function modules alone", prop.ForAll(
		func(version, mask int) bool {
			g, err := NewGrid(version)
			if err != nil {
				return false
			}
			orig := g.Clone()
			if err := Unmask(g, mask); err != nil {
				return false
			}
			fm, _ := FunctionMask(version)
			for y := 0; y < g.Size(); y++ {
				for x := 0; x < g.Size(); x++ {
					if fm.Get(x, y) && g.Modules.Get(x, y) {
						return false
					}
				}
			}
			if err := Unmask(g, mask); err != nil {
				return false
			}
			return g.Modules.Equal(orig.Modules)
		},
		gen.IntRange(MinVersion, MaxVersion),
		gen.IntRange(0, NumMasks-1),
	))

	properties.TestingRun(t)
}

func TestUnmask_InvalidMask(t *testing.T) {
	g, err := NewGrid(1)
	require.NoError(t, err)
	assert.Error(t, Unmask(g, 8))
}

func TestCodewordPositions_AvoidFunctionModules(t *testing.T) {
	for _, v := range []int{1, 2, 7, 14, 40} {
		positions, err := CodewordPositions(v)
		require.NoError(t, err)
		ver, _ := VersionFor(v)
		require.Len(t, positions, ver.TotalCodewords())

		fm, _ := FunctionMask(v)
		seen := make(map[Position]bool)
		for _, cw := range positions {
			for _, p := range cw {
				assert.False(t, fm.Get(p.Col, p.Row), "v%d: %v is a function module", v, p)
				assert.False(t, seen[p], "v%d: %v visited twice", v, p)
				seen[p] = true
			}
		}
	}
}

func TestCodewordPositions_StartsBottomRight(t *testing.T) {
	positions, err := CodewordPositions(1)
	require.NoError(t, err)
	first := positions[0]
	assert.Equal(t, Position{Row: 20, Col: 20}, first[0])
	assert.Equal(t, Position{Row: 20, Col: 19}, first[1])
	assert.Equal(t, Position{Row: 19, Col: 20}, first[2])
	assert.Equal(t, Position{Row: 17, Col: 19}, first[7])
}

func TestReadCodewords_RoundTrip(t *testing.T) {
	for _, v := range []int{1, 3, 9, 27} {
		g, err := NewGrid(v)
		require.NoError(t, err)
		positions, _ := CodewordPositions(v)

		want := make([]byte, len(positions))
		for i := range want {
			want[i] = byte(i*37 + v)
		}
		for i, cw := range positions {
			for bit, p := range cw {
				if want[i]&(0x80>>bit) != 0 {
					g.Modules.Set(p.Col, p.Row)
				}
			}
		}

		got, err := ReadCodewords(g)
		require.NoError(t, err)
		assert.Equal(t, want, got, "version %d", v)
	}
}

func TestBlockLayout_Version5Q(t *testing.T) {
	layout, err := BlockLayout(5, LevelQ)
	require.NoError(t, err)
	require.Len(t, layout, 4)

	// Groups: 2 blocks of 15 data, 2 of 16, 18 EC each.
	assert.Len(t, layout[0], 33)
	assert.Len(t, layout[3], 34)
	assert.Equal(t, []int{0, 4, 8}, layout[0][:3])
	assert.Equal(t, []int{3, 7, 11}, layout[3][:3])
	// The extra data codewords of the long blocks come after all shared columns.
	assert.Equal(t, 60, layout[2][15])
	assert.Equal(t, 61, layout[3][15])
	// EC codewords follow all data.
	assert.Equal(t, 62, layout[0][15])
	assert.Equal(t, 63, layout[1][15])
	assert.Equal(t, 64, layout[2][16])
}

func TestSplitBlocks_InterleaveRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("split then interleave is the identity", prop.ForAll(
		func(version, level int) bool {
			ver, _ := VersionFor(version)
			raw := make([]byte, ver.TotalCodewords())
			for i := range raw {
				raw[i] = byte(i * 7)
			}
			blocks, err := SplitBlocks(raw, version, ECLevel(level))
			if err != nil {
				return false
			}
			data := 0
			for _, b := range blocks {
				data += b.DataCodewords
				if b.ECCodewords() != ver.ECBlocks(ECLevel(level)).ECCodewordsPerBlock {
					return false
				}
			}
			if data != ver.DataCodewords(ECLevel(level)) {
				return false
			}
			back, err := Interleave(blocks, version, ECLevel(level))
			if err != nil {
				return false
			}
			for i := range raw {
				if raw[i] != back[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(MinVersion, MaxVersion),
		gen.IntRange(int(LevelL), int(LevelH)),
	))

	properties.TestingRun(t)
}

func TestSplitBlocks_WrongLength(t *testing.T) {
	_, err := SplitBlocks(make([]byte, 10), 1, LevelM)
	require.ErrorIs(t, err, ErrCodewordCount)
}

func TestGrid_Transposed(t *testing.T) {
	g, err := NewGrid(1)
	require.NoError(t, err)
	g.Modules.Set(3, 0)
	tr := g.Transposed()
	assert.True(t, tr.At(3, 0))
	assert.False(t, tr.At(0, 3))
	assert.True(t, g.At(0, 3))
}
