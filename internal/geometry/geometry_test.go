package geometry

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrlens/internal/binarize"
	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
	"github.com/MeKo-Tech/qrlens/internal/finder"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
	"github.com/MeKo-Tech/qrlens/internal/testutil"
)

func TestComputeHomography_Identity(t *testing.T) {
	p := [4]Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	h, ok := computeHomography(p, p)
	require.True(t, ok)
	assert.InDelta(t, 1, h[0], 1e-9)
	assert.InDelta(t, 1, h[4], 1e-9)
	assert.InDelta(t, 1, h[8], 1e-9)
	assert.InDelta(t, 0, h[6], 1e-9)
}

func TestComputeHomography_MapsAnchors(t *testing.T) {
	src := [4]Point{{3.5, 3.5}, {21.5, 3.5}, {18.5, 18.5}, {3.5, 21.5}}
	dst := [4]Point{{40, 52}, {190, 31}, {170, 160}, {61, 205}}
	h, ok := computeHomography(src, dst)
	require.True(t, ok)
	for i := range src {
		got := h.Apply(src[i].X, src[i].Y)
		assert.InDelta(t, dst[i].X, got.X, 1e-6)
		assert.InDelta(t, dst[i].Y, got.Y, 1e-6)
	}
}

func TestSolve8x8(t *testing.T) {
	a := [8][8]float64{}
	b := [8]float64{}
	for i := range 8 {
		a[i][i] = 2
		b[i] = float64(2 * (i + 1))
	}
	x, ok := solve8x8(a, b)
	require.True(t, ok)
	for i, v := range x {
		assert.InDelta(t, float64(i+1), v, 1e-9)
	}

	singular := [8][8]float64{}
	for i := range 8 {
		for j := range 8 {
			singular[i][j] = 1
		}
	}
	_, ok = solve8x8(singular, b)
	assert.False(t, ok)
}

func TestTransform_ApplyAtInfinity(t *testing.T) {
	h := Transform{1, 0, 0, 0, 1, 0, 0, 0, 0}
	p := h.Apply(0, 0)
	assert.True(t, math.IsNaN(p.X))
	assert.True(t, math.IsNaN(p.Y))
}

func TestOrder(t *testing.T) {
	tl := finder.Pattern{X: 10, Y: 10}
	tr := finder.Pattern{X: 110, Y: 12}
	bl := finder.Pattern{X: 8, Y: 110}

	perms := []finder.Triple{
		{tl, tr, bl}, {tl, bl, tr}, {tr, tl, bl},
		{tr, bl, tl}, {bl, tl, tr}, {bl, tr, tl},
	}
	for _, perm := range perms {
		gotTL, gotTR, gotBL := Order(perm)
		assert.Equal(t, Point{10, 10}, gotTL)
		assert.Equal(t, Point{110, 12}, gotTR)
		assert.Equal(t, Point{8, 110}, gotBL)
	}

	// A mirror image swaps the roles of the outer centres.
	mirrored := finder.Triple{
		{X: 200 - 10, Y: 10}, {X: 200 - 110, Y: 12}, {X: 200 - 8, Y: 110},
	}
	gotTL, gotTR, gotBL := Order(mirrored)
	assert.Equal(t, Point{190, 10}, gotTL)
	assert.Equal(t, Point{192, 110}, gotTR)
	assert.Equal(t, Point{90, 12}, gotBL)
}

const scale = 4

func resolveRendered(t *testing.T, version int) *Geometry {
	t.Helper()
	img, err := testutil.Render(testutil.Symbol{Text: "geometry", Version: version, Level: symbol.LevelL}, scale)
	require.NoError(t, err)
	bm := binarize.Binarize(img, binarize.DefaultConfig())
	triples := finder.Group(finder.Find(bm, finder.DefaultConfig()), finder.DefaultConfig())
	require.NotEmpty(t, triples)
	g, err := Resolve(bm, triples[0], DefaultConfig())
	require.NoError(t, err)
	return g
}

// pixel returns where module coordinate c lands in a rendered symbol.
func pixel(c float64) float64 { return (c + 4) * scale }

func TestResolve_Version1(t *testing.T) {
	g := resolveRendered(t, 1)
	assert.Equal(t, 21, g.Dimension)
	assert.Equal(t, 1, g.Version)
	assert.InDelta(t, scale, g.ModuleSize, 0.1)
	assert.InDelta(t, 21, g.RawDimension, 0.2)
	assert.False(t, g.AlignmentFound)

	for _, c := range [][2]float64{{3.5, 3.5}, {10.5, 10.5}, {17.5, 3.5}, {20.5, 20.5}} {
		p := g.Map(c[0], c[1])
		assert.InDelta(t, pixel(c[0]), p.X, 1.0, "module %v", c)
		assert.InDelta(t, pixel(c[1]), p.Y, 1.0, "module %v", c)
	}

	corners := g.Corners()
	assert.InDelta(t, pixel(0), corners[0].X, 1.0)
	assert.InDelta(t, pixel(21), corners[2].Y, 1.0)
}

func TestResolve_AlignmentPattern(t *testing.T) {
	for _, version := range []int{2, 7, 15} {
		g := resolveRendered(t, version)
		dim := symbol.DimensionForVersion(version)
		require.Equal(t, dim, g.Dimension, "version %d", version)
		assert.True(t, g.AlignmentFound, "version %d", version)

		want := pixel(float64(dim) - 6.5)
		assert.InDelta(t, want, g.BottomRight.X, 1.0, "version %d", version)
		assert.InDelta(t, want, g.BottomRight.Y, 1.0, "version %d", version)

		p := g.Map(float64(dim)-0.5, float64(dim)-0.5)
		assert.InDelta(t, pixel(float64(dim)-0.5), p.X, 1.0)
	}
}

func TestResolve_Rotated(t *testing.T) {
	img, err := testutil.Render(testutil.Symbol{Text: "turn", Version: 4, Level: symbol.LevelQ}, scale)
	require.NoError(t, err)
	bm := binarize.Binarize(testutil.Rotate(img, 90), binarize.DefaultConfig())
	triples := finder.Group(finder.Find(bm, finder.DefaultConfig()), finder.DefaultConfig())
	require.NotEmpty(t, triples)

	g, err := Resolve(bm, triples[0], DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 33, g.Dimension)
	assert.True(t, g.AlignmentFound)
}

func TestResolve_Mismatch(t *testing.T) {
	bm := bitmatrix.New(200, 200)
	p := func(x, y float64) finder.Pattern { return finder.Pattern{X: x, Y: y, ModuleSize: 4, Count: 3} }

	// 16 modules between centres puts the size at 23, between versions 1 and 2.
	_, err := Resolve(bm, finder.Triple{p(20, 20), p(84, 20), p(20, 84)}, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeometryMismatch))

	// Sub-pixel modules are rejected.
	tiny := finder.Triple{{X: 0, Y: 0, ModuleSize: 0.5}, {X: 7, Y: 0, ModuleSize: 0.5}, {X: 0, Y: 7, ModuleSize: 0.5}}
	_, err = Resolve(bm, tiny, DefaultConfig())
	assert.ErrorIs(t, err, ErrGeometryMismatch)

	// 14 modules is exactly version 1.
	g, err := Resolve(bm, finder.Triple{p(20, 20), p(76, 20), p(20, 76)}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 21, g.Dimension)
}

func TestResolveDimension(t *testing.T) {
	bm := bitmatrix.New(200, 200)
	p := func(x, y float64) finder.Pattern { return finder.Pattern{X: x, Y: y, ModuleSize: 4, Count: 3} }
	triple := finder.Triple{p(20, 20), p(84, 20), p(20, 84)}

	g, err := ResolveDimension(bm, triple, 25, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, g.Version)
	assert.False(t, g.AlignmentFound)

	_, err = ResolveDimension(bm, triple, 24, DefaultConfig())
	assert.ErrorIs(t, err, ErrGeometryMismatch)
}

func TestNearestDimension(t *testing.T) {
	assert.Equal(t, 21, nearestDimension(3))
	assert.Equal(t, 21, nearestDimension(22.9))
	assert.Equal(t, 25, nearestDimension(23.1))
	assert.Equal(t, 177, nearestDimension(400))
}

func binarizeTilted(t *testing.T, version int, degrees float64) *bitmatrix.BitMatrix {
	t.Helper()
	img, err := testutil.Render(testutil.Symbol{Text: "tilted", Version: version, Level: symbol.LevelM}, scale)
	require.NoError(t, err)
	var src image.Image = img
	if degrees != 0 {
		src = imaging.Rotate(img, degrees, color.White)
	}
	return binarize.Binarize(src, binarize.DefaultConfig())
}

func TestTimingDimension(t *testing.T) {
	for _, version := range []int{1, 6, 12, 20} {
		for _, deg := range []float64{0, 3, 8} {
			bm := binarizeTilted(t, version, deg)
			triples := finder.Group(finder.Find(bm, finder.DefaultConfig()), finder.DefaultConfig())
			require.NotEmpty(t, triples, "v%d at %v degrees", version, deg)
			tl, tr, bl := Order(triples[0])

			got, ok := timingDimension(bm, tl, tr, bl, moduleSize(bm, triples[0], tl, tr, bl))
			require.True(t, ok, "v%d at %v degrees", version, deg)
			assert.InDelta(t, symbol.DimensionForVersion(version), got, 0.5, "v%d at %v degrees", version, deg)
		}
	}
}

func TestTimingDimension_Blank(t *testing.T) {
	bm := bitmatrix.New(200, 200)
	_, ok := timingDimension(bm, Point{20, 20}, Point{84, 20}, Point{20, 84}, 4)
	assert.False(t, ok)
}

func TestResolve_Tilted(t *testing.T) {
	for _, version := range []int{5, 8, 10, 12, 15, 20, 25} {
		for _, deg := range []float64{3, 5} {
			bm := binarizeTilted(t, version, deg)
			triples := finder.Group(finder.Find(bm, finder.DefaultConfig()), finder.DefaultConfig())
			require.NotEmpty(t, triples)

			g, err := Resolve(bm, triples[0], DefaultConfig())
			require.NoError(t, err, "v%d at %v degrees", version, deg)
			assert.Equal(t, symbol.DimensionForVersion(version), g.Dimension, "v%d at %v degrees", version, deg)
		}
	}
}

func TestMergeShortRuns(t *testing.T) {
	runs := []run{
		{black: true, first: 0, last: 9},
		{black: false, first: 10, last: 10},
		{black: true, first: 11, last: 20},
		{black: false, first: 21, last: 29},
	}
	got := mergeShortRuns(runs, 3)
	assert.Equal(t, []run{{black: true, first: 0, last: 20}, {black: false, first: 21, last: 29}}, got)
}
