package finder

import (
	"image"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrlens/internal/binarize"
	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
	"github.com/MeKo-Tech/qrlens/internal/testutil"
)

const scale = 4

func render(t *testing.T, version int) image.Image {
	t.Helper()
	img, err := testutil.Render(testutil.Symbol{Text: "finder", Version: version, Level: symbol.LevelM}, scale)
	require.NoError(t, err)
	return img
}

// expectedCenters returns the pixel centres of the three finder patterns of a
// symbol rendered with a four-module quiet zone at offset (dx, dy).
func expectedCenters(version int, dx, dy float64) [3][2]float64 {
	dim := float64(symbol.DimensionForVersion(version))
	near := (3.5 + 4) * scale
	far := (dim - 3.5 + 4) * scale
	return [3][2]float64{
		{dx + near, dy + near},
		{dx + far, dy + near},
		{dx + near, dy + far},
	}
}

func nearest(patterns []Pattern, x, y float64) (Pattern, float64) {
	best, bestDist := Pattern{}, math.Inf(1)
	for _, p := range patterns {
		if d := math.Hypot(p.X-x, p.Y-y); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist
}

func TestFind_SingleSymbol(t *testing.T) {
	for _, version := range []int{1, 7, 20} {
		bm := binarize.Binarize(render(t, version), binarize.DefaultConfig())
		patterns := Find(bm, DefaultConfig())
		require.GreaterOrEqual(t, len(patterns), 3, "version %d", version)

		for _, c := range expectedCenters(version, 0, 0) {
			p, d := nearest(patterns, c[0], c[1])
			assert.Less(t, d, 1.0, "version %d centre %v", version, c)
			assert.InDelta(t, scale, p.ModuleSize, 0.5)
			assert.GreaterOrEqual(t, p.Count, DefaultConfig().MinConfirmations)
		}
	}
}

func TestFind_Blank(t *testing.T) {
	bm := bitmatrix.New(120, 80)
	assert.Empty(t, Find(bm, DefaultConfig()))
	assert.Nil(t, Group(nil, DefaultConfig()))
}

func tripleMatches(tr Triple, want [3][2]float64) bool {
	for _, c := range want {
		if _, d := nearest(tr[:], c[0], c[1]); d > 1.0 {
			return false
		}
	}
	return true
}

func TestGroup_SingleSymbol(t *testing.T) {
	bm := binarize.Binarize(render(t, 3), binarize.DefaultConfig())
	triples := Group(Find(bm, DefaultConfig()), DefaultConfig())
	require.NotEmpty(t, triples)
	assert.True(t, tripleMatches(triples[0], expectedCenters(3, 0, 0)), "best triple %v", triples[0])
}

func TestGroup_TwoSymbols(t *testing.T) {
	a := render(t, 2)
	b := render(t, 2)
	side := a.Bounds().Dx()
	gap := 3 * side / 2
	img := testutil.Compose(gap+side, side,
		testutil.Placement{Image: a, At: image.Pt(0, 0)},
		testutil.Placement{Image: b, At: image.Pt(gap, 0)},
	)

	bm := binarize.Binarize(img, binarize.DefaultConfig())
	triples := Group(Find(bm, DefaultConfig()), DefaultConfig())
	require.GreaterOrEqual(t, len(triples), 2)

	first := []Triple{triples[0], triples[1]}
	sort.Slice(first, func(i, j int) bool { return first[i][0].X+first[i][1].X < first[j][0].X+first[j][1].X })
	assert.True(t, tripleMatches(first[0], expectedCenters(2, 0, 0)))
	assert.True(t, tripleMatches(first[1], expectedCenters(2, float64(gap), 0)))
}

func TestGroup_RejectsBadShapes(t *testing.T) {
	p := func(x, y float64) Pattern { return Pattern{X: x, Y: y, ModuleSize: 4, Count: 3} }
	cfg := DefaultConfig()

	// Collinear centres.
	assert.Empty(t, Group([]Pattern{p(0, 0), p(100, 0), p(200, 0)}, cfg))
	// Legs too short for any version.
	assert.Empty(t, Group([]Pattern{p(0, 0), p(20, 0), p(0, 20)}, cfg))
	// Mismatched module sizes.
	big := Pattern{X: 0, Y: 100, ModuleSize: 12, Count: 3}
	assert.Empty(t, Group([]Pattern{p(0, 0), p(100, 0), big}, cfg))
	// Unconfirmed centres are ignored.
	weak := Pattern{X: 0, Y: 100, ModuleSize: 4, Count: 1}
	assert.Empty(t, Group([]Pattern{p(0, 0), p(100, 0), weak}, cfg))
	// A clean right isosceles triangle is accepted.
	assert.Len(t, Group([]Pattern{p(0, 0), p(100, 0), p(0, 100)}, cfg), 1)
}
