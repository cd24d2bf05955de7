package sampler

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrlens/internal/binarize"
	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
	"github.com/MeKo-Tech/qrlens/internal/finder"
	"github.com/MeKo-Tech/qrlens/internal/geometry"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
	"github.com/MeKo-Tech/qrlens/internal/testutil"
)

func sampleImage(t *testing.T, img image.Image) (*symbol.Grid, Report) {
	t.Helper()
	bm := binarize.Binarize(img, binarize.DefaultConfig())
	triples := finder.Group(finder.Find(bm, finder.DefaultConfig()), finder.DefaultConfig())
	require.NotEmpty(t, triples)
	geom, err := geometry.Resolve(bm, triples[0], geometry.DefaultConfig())
	require.NoError(t, err)
	return Sample(bm, geom)
}

func TestSample_MatchesEncodedGrid(t *testing.T) {
	cases := []struct {
		version, scale int
	}{
		{1, 3}, {2, 4}, {5, 5}, {10, 4}, {25, 3},
	}
	for _, tc := range cases {
		want, err := testutil.Encode(testutil.Symbol{Text: "sampler", Version: tc.version, Level: symbol.LevelM, Mask: 2})
		require.NoError(t, err)

		grid, rep := sampleImage(t, testutil.RenderGrid(want, tc.scale, 4))
		assert.Equal(t, tc.version, grid.Version)
		assert.True(t, want.Modules.Equal(grid.Modules), "version %d scale %d", tc.version, tc.scale)
		assert.Zero(t, rep.OutOfBounds)
		assert.Zero(t, rep.TimingMismatch)
		assert.Equal(t, 1.0, rep.Confidence)
		assert.False(t, rep.Unreliable)
	}
}

func TestSample_Rotated(t *testing.T) {
	want, err := testutil.Encode(testutil.Symbol{Text: "rotated", Version: 3, Level: symbol.LevelH, Mask: 5})
	require.NoError(t, err)
	img := testutil.RenderGrid(want, 4, 4)

	for _, deg := range []int{90, 180, 270} {
		grid, _ := sampleImage(t, testutil.Rotate(img, deg))
		assert.True(t, want.Modules.Equal(grid.Modules), "rotation %d", deg)
	}
}

func TestSample_MirroredReadsTransposed(t *testing.T) {
	want, err := testutil.Encode(testutil.Symbol{Text: "mirror", Version: 2, Level: symbol.LevelQ, Mask: 0})
	require.NoError(t, err)

	grid, _ := sampleImage(t, testutil.Mirror(testutil.RenderGrid(want, 4, 4)))
	assert.False(t, want.Modules.Equal(grid.Modules))
	assert.True(t, want.Transposed().Modules.Equal(grid.Modules))
}

func TestSample_OutOfBounds(t *testing.T) {
	bm := bitmatrix.New(80, 80)
	p := func(x, y float64) finder.Pattern { return finder.Pattern{X: x, Y: y, ModuleSize: 4, Count: 3} }
	geom, err := geometry.ResolveDimension(bm, finder.Triple{p(30, 30), p(86, 30), p(30, 86)}, 21, geometry.DefaultConfig())
	require.NoError(t, err)

	grid, rep := Sample(bm, geom)
	assert.Equal(t, 21, grid.Size())
	assert.Equal(t, 441, rep.Modules)
	// Columns and rows 16-20 map past the 80 pixel edge.
	assert.Equal(t, 185, rep.OutOfBounds)
	assert.Greater(t, rep.OutOfBoundsRatio(), MaxOutOfBoundsRatio)
	assert.True(t, rep.Unreliable)
	assert.Less(t, rep.Confidence, 1.0)
}

func TestCheckTiming(t *testing.T) {
	g, err := testutil.Encode(testutil.Symbol{Text: "timing", Version: 4, Level: symbol.LevelL})
	require.NoError(t, err)
	total, bad := checkTiming(g)
	assert.Equal(t, 2*(33-16), total)
	assert.Zero(t, bad)

	g.Modules.Flip(10, 6)
	g.Modules.Flip(6, 12)
	_, bad = checkTiming(g)
	assert.Equal(t, 2, bad)
}

func TestVote(t *testing.T) {
	bm := bitmatrix.New(10, 10)
	bm.SetRegion(4, 4, 2, 2)
	assert.True(t, vote(bm, 4, 4, 0))
	assert.False(t, vote(bm, 4, 4, 1), "four of nine black")
	bm.SetRegion(3, 3, 3, 2)
	assert.True(t, vote(bm, 4, 4, 1))
}
