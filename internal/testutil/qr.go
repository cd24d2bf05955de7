package testutil

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"

	"github.com/disintegration/imaging"
	"rsc.io/qr/coding"

	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
)

// Symbol describes a reference symbol to build with rsc.io/qr/coding.
type Symbol struct {
	Text    string
	Version int
	Level   symbol.ECLevel
	Mask    int
}

// levels maps our EC levels to the reference encoder's.
var levels = map[symbol.ECLevel]coding.Level{
	symbol.LevelL: coding.L,
	symbol.LevelM: coding.M,
	symbol.LevelQ: coding.Q,
	symbol.LevelH: coding.H,
}

// ByteCapacity returns how many bytes a byte-mode segment can carry at the
// version and level.
func ByteCapacity(version int, level symbol.ECLevel) int {
	countBits := 8
	if version > 9 {
		countBits = 16
	}
	bits := coding.Version(version).DataBytes(levels[level])*8 - 4 - countBits
	return bits / 8
}

// RandomText returns n printable ASCII characters.
func RandomText(rng *rand.Rand, n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 -_.:/?=&"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}

// Encode builds the symbol's module grid with the reference encoder. The
// returned grid is masked, exactly as it is printed.
func Encode(s Symbol, segments ...coding.Encoding) (*symbol.Grid, error) {
	plan, err := coding.NewPlan(coding.Version(s.Version), levels[s.Level], coding.Mask(s.Mask))
	if err != nil {
		return nil, fmt.Errorf("plan v%d-%s mask %d: %w", s.Version, s.Level, s.Mask, err)
	}
	if len(segments) == 0 {
		segments = []coding.Encoding{coding.String(s.Text)}
	}
	code, err := plan.Encode(segments...)
	if err != nil {
		return nil, fmt.Errorf("encode v%d-%s: %w", s.Version, s.Level, err)
	}

	m := bitmatrix.NewSquare(code.Size)
	for y := 0; y < code.Size; y++ {
		for x := 0; x < code.Size; x++ {
			if code.Black(x, y) {
				m.Set(x, y)
			}
		}
	}
	g, err := symbol.GridFromMatrix(m)
	if err != nil {
		return nil, err
	}
	g.Level = s.Level
	g.Mask = s.Mask
	return g, nil
}

// RenderGrid draws the grid with scale pixels per module and a quiet zone of
// quiet modules on every side.
func RenderGrid(g *symbol.Grid, scale, quiet int) *image.Gray {
	side := (g.Size() + 2*quiet) * scale
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	for row := 0; row < g.Size(); row++ {
		for col := 0; col < g.Size(); col++ {
			if !g.At(row, col) {
				continue
			}
			x0, y0 := (col+quiet)*scale, (row+quiet)*scale
			for y := y0; y < y0+scale; y++ {
				for x := x0; x < x0+scale; x++ {
					img.Pix[y*img.Stride+x] = 0
				}
			}
		}
	}
	return img
}

// Render encodes and draws a symbol with a four-module quiet zone.
func Render(s Symbol, scale int) (*image.Gray, error) {
	g, err := Encode(s)
	if err != nil {
		return nil, err
	}
	return RenderGrid(g, scale, 4), nil
}

// Rotate turns img counter-clockwise by a multiple of 90 degrees.
func Rotate(img image.Image, degrees int) image.Image {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	}
	return imaging.Clone(img)
}

// Mirror flips img horizontally.
func Mirror(img image.Image) image.Image {
	return imaging.FlipH(img)
}

// Placement positions one image on a canvas.
type Placement struct {
	Image image.Image
	At    image.Point
}

// Compose pastes images onto a white canvas.
func Compose(width, height int, placements ...Placement) image.Image {
	canvas := imaging.New(width, height, color.White)
	for _, p := range placements {
		canvas = imaging.Paste(canvas, p.Image, p.At)
	}
	return canvas
}

// DamageCodewords inverts count codewords of every block of a masked grid,
// spreading the damage over data and error-correction codewords. The grid
// must carry its level.
func DamageCodewords(g *symbol.Grid, count int, rng *rand.Rand) error {
	positions, err := symbol.CodewordPositions(g.Version)
	if err != nil {
		return err
	}
	layout, err := symbol.BlockLayout(g.Version, g.Level)
	if err != nil {
		return err
	}
	for _, block := range layout {
		if count > len(block) {
			return fmt.Errorf("block of %d codewords cannot take %d errors", len(block), count)
		}
		for _, i := range rng.Perm(len(block))[:count] {
			for _, p := range positions[block[i]] {
				g.Modules.Flip(p.Col, p.Row)
			}
		}
	}
	return nil
}
