package decoder

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrlens/internal/finder"
	"github.com/MeKo-Tech/qrlens/internal/geometry"
	"github.com/MeKo-Tech/qrlens/internal/reedsolomon"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
	"github.com/MeKo-Tech/qrlens/internal/testutil"
)

var allLevels = []symbol.ECLevel{symbol.LevelL, symbol.LevelM, symbol.LevelQ, symbol.LevelH}

func encode(t *testing.T, s testutil.Symbol) *symbol.Grid {
	t.Helper()
	g, err := testutil.Encode(s)
	require.NoError(t, err)
	return g
}

func TestDecodeGrid_AllVersionsAndLevels(t *testing.T) {
	rng := rand.New(rand.NewSource(18004))
	for v := symbol.MinVersion; v <= symbol.MaxVersion; v++ {
		for li, level := range allLevels {
			n := min(testutil.ByteCapacity(v, level), 300)
			s := testutil.Symbol{
				Text:    testutil.RandomText(rng, n),
				Version: v,
				Level:   level,
				Mask:    (3*v + li) % symbol.NumMasks,
			}
			res := DecodeGrid(encode(t, s))
			require.True(t, res.OK(), "v%d-%s: %v", v, level, res.Err)
			assert.Equal(t, s.Text, res.Text, "v%d-%s", v, level)
			assert.Equal(t, v, res.Version)
			assert.Equal(t, level, res.ECLevel)
			assert.Equal(t, s.Mask, res.Mask)
			assert.Zero(t, res.Corrected)
		}
	}
}

func TestDecodeGrid_EveryMask(t *testing.T) {
	for mask := 0; mask < symbol.NumMasks; mask++ {
		s := testutil.Symbol{Text: "MASK TEST 0123", Version: 2, Level: symbol.LevelQ, Mask: mask}
		res := DecodeGrid(encode(t, s))
		require.True(t, res.OK(), "mask %d: %v", mask, res.Err)
		assert.Equal(t, s.Text, res.Text)
		assert.Equal(t, mask, res.Mask)
	}
}

func TestDecodeGrid_CorrectionCapacity(t *testing.T) {
	for _, level := range allLevels {
		v, err := symbol.VersionFor(5)
		require.NoError(t, err)
		eb := v.ECBlocks(level)
		capacity := eb.ECCodewordsPerBlock / 2
		s := testutil.Symbol{Text: "error correction capacity", Version: 5, Level: level, Mask: 4}

		g := encode(t, s)
		require.NoError(t, testutil.DamageCodewords(g, capacity, rand.New(rand.NewSource(int64(level)))))
		res := DecodeGrid(g)
		require.True(t, res.OK(), "level %s: %v", level, res.Err)
		assert.Equal(t, s.Text, res.Text)
		assert.Equal(t, capacity*eb.NumBlocks(), res.Corrected)

		g = encode(t, s)
		require.NoError(t, testutil.DamageCodewords(g, capacity+1, rand.New(rand.NewSource(int64(level)))))
		res = DecodeGrid(g)
		require.False(t, res.OK(), "level %s", level)
		assert.Equal(t, UncorrectableBlock, res.Err.Kind)
		assert.Equal(t, StageReedSolomon, res.Err.Stage)
		assert.ErrorIs(t, res.Err, ErrUncorrectableBlock)
		assert.ErrorIs(t, res.Err, reedsolomon.ErrUncorrectable)
	}
}

func TestDecodeGrid_FormatCopyCorruption(t *testing.T) {
	s := testutil.Symbol{Text: "format", Version: 3, Level: symbol.LevelH, Mask: 6}

	// Two bits of the top-left copy.
	g := encode(t, s)
	g.Modules.Flip(0, 8)
	g.Modules.Flip(1, 8)
	res := DecodeGrid(g)
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, symbol.LevelH, res.ECLevel)
	assert.Equal(t, 6, res.Mask)

	// Six bits of the top-left copy put it out of range; the clean split
	// copy wins.
	g = encode(t, s)
	for col := 0; col <= 5; col++ {
		g.Modules.Flip(col, 8)
	}
	res = DecodeGrid(g)
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, s.Text, res.Text)
	assert.Equal(t, 6, res.Mask)
}

func TestDecodeGrid_FormatDestroyed(t *testing.T) {
	g := encode(t, testutil.Symbol{Text: "gone", Version: 1, Level: symbol.LevelM, Mask: 1})
	dim := g.Size()
	// The first seven bits of each copy.
	for col := 0; col <= 5; col++ {
		g.Modules.Flip(col, 8)
	}
	g.Modules.Flip(7, 8)
	for row := dim - 1; row >= dim-7; row-- {
		g.Modules.Flip(8, row)
	}
	res := DecodeGrid(g)
	require.False(t, res.OK())
	assert.Equal(t, FormatInfoCorrupt, res.Err.Kind)
	assert.Equal(t, StageFormat, res.Err.Stage)
	assert.True(t, errors.Is(res.Err, ErrFormatInfoCorrupt))
}

func render(t *testing.T, s testutil.Symbol, scale int) image.Image {
	t.Helper()
	return testutil.RenderGrid(encode(t, s), scale, 4)
}

func TestDecode_Images(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, v := range []int{1, 2, 4, 7, 10, 14, 20} {
		for _, level := range allLevels {
			s := testutil.Symbol{
				Text:    testutil.RandomText(rng, min(testutil.ByteCapacity(v, level), 80)),
				Version: v,
				Level:   level,
				Mask:    rng.Intn(symbol.NumMasks),
			}
			results := Decode(render(t, s, 3))
			require.Len(t, results, 1, "v%d-%s", v, level)
			require.True(t, results[0].OK(), "v%d-%s: %v", v, level, results[0].Err)
			assert.Equal(t, s.Text, results[0].Text)
			assert.Equal(t, v, results[0].Version)
			assert.Equal(t, 1.0, results[0].Confidence)
			assert.Empty(t, results[0].Warnings)
			assert.False(t, results[0].Mirrored)
			assert.Len(t, results[0].Corners, 4)
		}
	}
}

func TestDecode_Rotations(t *testing.T) {
	s := testutil.Symbol{Text: "https://example.com/rotate", Version: 3, Level: symbol.LevelM, Mask: 2}
	img := render(t, s, 4)
	for _, deg := range []int{0, 90, 180, 270} {
		results := Decode(testutil.Rotate(img, deg))
		require.Len(t, results, 1)
		require.True(t, results[0].OK(), "rotation %d: %v", deg, results[0].Err)
		assert.Equal(t, s.Text, results[0].Text)
		assert.False(t, results[0].Mirrored)
	}
}

// Small tilts make the finder rings measure wide; the size must still come
// out right for mid-size symbols.
func TestDecode_Tilted(t *testing.T) {
	cases := []struct {
		versions []int
		degrees  []float64
	}{
		{[]int{5, 8, 10, 12, 15, 20, 25}, []float64{3, 5}},
		{[]int{15}, []float64{12, 30, 45}},
	}
	for _, tc := range cases {
		for _, v := range tc.versions {
			for _, scale := range []int{4, 5} {
				s := testutil.Symbol{Text: "tilted symbol", Version: v, Level: symbol.LevelM, Mask: v % symbol.NumMasks}
				img := render(t, s, scale)
				for _, deg := range tc.degrees {
					results := Decode(imaging.Rotate(img, deg, color.White))
					assert.Equal(t, []string{s.Text}, Texts(results), "v%d scale %d at %v degrees: %+v", v, scale, deg, results)
				}
			}
		}
	}
}

func TestDecode_Mirrored(t *testing.T) {
	for _, v := range []int{2, 8} {
		s := testutil.Symbol{Text: "mirror image", Version: v, Level: symbol.LevelQ, Mask: 3}
		results := Decode(testutil.Mirror(render(t, s, 4)))
		require.Len(t, results, 1)
		require.True(t, results[0].OK(), "v%d: %v", v, results[0].Err)
		assert.Equal(t, s.Text, results[0].Text)
		assert.True(t, results[0].Mirrored)

		cfg := DefaultConfig()
		cfg.TryMirrored = false
		off := New(cfg).Decode(context.Background(), testutil.Mirror(render(t, s, 4)))
		require.Len(t, off, 1)
		assert.False(t, off[0].OK())
	}
}

func TestDecode_TwoSymbols(t *testing.T) {
	a := render(t, testutil.Symbol{Text: "left", Version: 1, Level: symbol.LevelL}, 4)
	b := render(t, testutil.Symbol{Text: "right", Version: 2, Level: symbol.LevelH, Mask: 7}, 4)
	width := a.Bounds().Dx() + b.Bounds().Dx() + 40
	img := testutil.Compose(width, b.Bounds().Dy()+20,
		testutil.Placement{Image: a, At: image.Pt(0, 10)},
		testutil.Placement{Image: b, At: image.Pt(a.Bounds().Dx()+40, 0)},
	)

	results := Decode(img)
	assert.Equal(t, []string{"right", "left"}, Texts(results), "ordered by top-left row first")
	for _, r := range results {
		assert.True(t, r.OK())
	}
}

func TestDecode_Idempotent(t *testing.T) {
	img := render(t, testutil.Symbol{Text: "same every time", Version: 6, Level: symbol.LevelM, Mask: 5}, 3)
	d := New(DefaultConfig())
	first := d.Decode(context.Background(), img)
	second := d.Decode(context.Background(), img)
	assert.Equal(t, first, second)

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 1
	assert.Equal(t, first, New(cfg).Decode(context.Background(), img))
}

func TestDecode_DamagedImage(t *testing.T) {
	s := testutil.Symbol{Text: "scratched but readable", Version: 4, Level: symbol.LevelH, Mask: 0}
	g := encode(t, s)
	require.NoError(t, testutil.DamageCodewords(g, 8, rand.New(rand.NewSource(3))))

	results := Decode(testutil.RenderGrid(g, 4, 4))
	require.Len(t, results, 1)
	require.True(t, results[0].OK(), "%v", results[0].Err)
	assert.Equal(t, s.Text, results[0].Text)
	assert.Equal(t, 8*4, results[0].Corrected)
}

func TestDecode_VersionInfoCorrupt(t *testing.T) {
	g := encode(t, testutil.Symbol{Text: "version seven", Version: 7, Level: symbol.LevelL})
	dim := g.Size()
	for i := 0; i < 6; i++ {
		for j := dim - 11; j <= dim-9; j++ {
			g.Modules.SetValue(j, i, false)
			g.Modules.SetValue(i, j, false)
		}
	}

	results := Decode(testutil.RenderGrid(g, 3, 4))
	require.Len(t, results, 1)
	require.False(t, results[0].OK())
	assert.Equal(t, VersionInfoCorrupt, results[0].Err.Kind)
	assert.ErrorIs(t, results[0].Err, ErrVersionInfoCorrupt)
}

func TestDecode_NoFinderPatterns(t *testing.T) {
	blank := testutil.Compose(200, 150)
	results := Decode(blank)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Err)
	assert.Equal(t, NoFinderPatterns, results[0].Err.Kind)
	assert.Equal(t, StageFinder, results[0].Err.Stage)
	assert.ErrorIs(t, results[0].Err, ErrNoFinderPatterns)
	assert.Empty(t, Texts(results))
}

func TestDecode_CancelledContext(t *testing.T) {
	img := render(t, testutil.Symbol{Text: "never started", Version: 1, Level: symbol.LevelM}, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, New(DefaultConfig()).Decode(ctx, img))
}

func TestResult_JSON(t *testing.T) {
	results := Decode(render(t, testutil.Symbol{Text: "json", Version: 1, Level: symbol.LevelQ, Mask: 1}, 3))
	require.True(t, results[0].OK())

	raw, err := json.Marshal(results[0])
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "json", decoded["text"])
	assert.Equal(t, "Q", decoded["ec_level"])
	assert.NotContains(t, decoded, "error")

	failed := Result{Err: NewError(PayloadMalformed, StagePayload, errors.New("bad mode"))}
	raw, err = json.Marshal(failed)
	require.NoError(t, err)
	var decodedFailure map[string]any
	require.NoError(t, json.Unmarshal(raw, &decodedFailure))
	assert.NotContains(t, decodedFailure, "ec_level")
	errObj, ok := decodedFailure["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PayloadMalformed", errObj["kind"])
	assert.Equal(t, "payload", errObj["stage"])
}

func TestResult_JSONRoundTrip(t *testing.T) {
	results := Decode(render(t, testutil.Symbol{Text: "round trip", Version: 2, Level: symbol.LevelH, Mask: 3}, 3))
	require.True(t, results[0].OK())
	results = append(results, Result{Mask: 4, Err: NewError(UncorrectableBlock, StageReedSolomon, errors.New("block 1"))})

	raw, err := json.Marshal(results)
	require.NoError(t, err)
	var back []Result
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Len(t, back, 2)

	assert.Equal(t, "round trip", back[0].Text)
	assert.Equal(t, symbol.LevelH, back[0].ECLevel)
	assert.Equal(t, 3, back[0].Mask)
	assert.Equal(t, results[0].Corners, back[0].Corners)
	require.Len(t, back[0].Segments, len(results[0].Segments))
	assert.Equal(t, results[0].Segments[0].Mode, back[0].Segments[0].Mode)
	assert.Nil(t, back[0].Err)

	require.NotNil(t, back[1].Err)
	assert.Equal(t, UncorrectableBlock, back[1].Err.Kind)
	assert.Equal(t, StageReedSolomon, back[1].Err.Stage)
	assert.ErrorIs(t, back[1].Err, ErrUncorrectableBlock)
	assert.Equal(t, "UncorrectableBlock at reedsolomon: block 1", back[1].Err.Error())
}

func TestKind_UnmarshalText(t *testing.T) {
	for kind, name := range kindNames {
		var got Kind
		require.NoError(t, got.UnmarshalText([]byte(name)))
		assert.Equal(t, kind, got)
	}
	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("Kind(99)")))
}

func TestError(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(GeometryMismatch, StageGeometry, cause)
	assert.Equal(t, "GeometryMismatch at geometry: boom", err.Error())
	assert.ErrorIs(t, err, ErrGeometryMismatch)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPayloadMalformed)

	assert.Equal(t, "NoFinderPatterns at finder", NewError(NoFinderPatterns, StageFinder, nil).Error())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestDropShadowed(t *testing.T) {
	square := []geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	p := func(x, y float64) finder.Pattern { return finder.Pattern{X: x, Y: y} }
	results := []Result{
		{Text: "ok", Corners: square},
		{Err: NewError(UncorrectableBlock, StageReedSolomon, nil)},
		{Err: NewError(GeometryMismatch, StageGeometry, nil)},
	}
	triples := []finder.Triple{
		{p(10, 10), p(90, 10), p(10, 90)},
		{p(50, 50), p(150, 50), p(50, 150)},
		{p(200, 200), p(300, 200), p(200, 300)},
	}

	kept := dropShadowed(results, triples)
	require.Len(t, kept, 2)
	assert.Equal(t, "ok", kept[0].Text)
	assert.Equal(t, GeometryMismatch, kept[1].Err.Kind)
}

func TestInsideQuad_EitherWinding(t *testing.T) {
	cw := []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	ccw := []geometry.Point{cw[0], cw[3], cw[2], cw[1]}
	for _, q := range [][]geometry.Point{cw, ccw} {
		assert.True(t, insideQuad(geometry.Point{X: 5, Y: 5}, q))
		assert.False(t, insideQuad(geometry.Point{X: 15, Y: 5}, q))
	}
}
