// Package binarize converts images to black/white module candidates using a
// block-adaptive threshold, so uneven lighting across a symbol still
// separates dark and light modules.
package binarize

import (
	"image"

	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
)

// Config controls the adaptive threshold.
type Config struct {
	// MinBlockSize is the smallest block side in pixels.
	MinBlockSize int
	// BlockDivisor divides the shorter image side to get the block side.
	BlockDivisor int
	// MinDynamicRange is the luminance spread below which a block is flat.
	MinDynamicRange int
}

// DefaultConfig returns the standard thresholding parameters.
func DefaultConfig() Config {
	return Config{
		MinBlockSize:    8,
		BlockDivisor:    8,
		MinDynamicRange: 24,
	}
}

// BlockSize returns the block side used for an image of the given size.
func (c Config) BlockSize(width, height int) int {
	size := min(width, height)
	if c.BlockDivisor > 0 {
		size /= c.BlockDivisor
	}
	return max(size, c.MinBlockSize, 1)
}

// Plane is an 8-bit luminance image.
type Plane struct {
	Width, Height int
	Pix           []uint8
}

// At returns the luminance at (x, y).
func (p *Plane) At(x, y int) uint8 {
	return p.Pix[y*p.Width+x]
}

// Luminance converts img to luminance 0.299R + 0.587G + 0.114B, compositing
// transparent pixels over white.
func Luminance(img image.Image) *Plane {
	b := img.Bounds()
	p := &Plane{Width: b.Dx(), Height: b.Dy(), Pix: make([]uint8, b.Dx()*b.Dy())}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < p.Height; y++ {
			copy(p.Pix[y*p.Width:(y+1)*p.Width], gray.Pix[y*gray.Stride:])
		}
		return p
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			// Premultiplied channels: adding the uncovered share of white
			// composites the pixel over a white background.
			white := 0xFFFF - a
			lum := 0.299*float64(r+white) + 0.587*float64(g+white) + 0.114*float64(bl+white)
			p.Pix[i] = uint8(int(lum+0.5) >> 8)
			i++
		}
	}
	return p
}

// Binarize thresholds img. Set bits are black.
func Binarize(img image.Image, cfg Config) *bitmatrix.BitMatrix {
	return Threshold(Luminance(img), cfg)
}

// Threshold applies the adaptive threshold to a luminance plane. Each block's
// threshold is the mean of the 3x3 neighbourhood of block thresholds around
// it. Low-contrast blocks take half their minimum unless their neighbours show
// them to be darker than the surroundings.
func Threshold(p *Plane, cfg Config) *bitmatrix.BitMatrix {
	out := bitmatrix.New(p.Width, p.Height)
	if p.Width == 0 || p.Height == 0 {
		return out
	}

	block := cfg.BlockSize(p.Width, p.Height)
	cols := (p.Width + block - 1) / block
	rows := (p.Height + block - 1) / block
	points := blockPoints(p, block, cols, rows, cfg.MinDynamicRange)

	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			sum, n := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := bx+dx, by+dy
					if nx < 0 || ny < 0 || nx >= cols || ny >= rows {
						continue
					}
					sum += points[ny*cols+nx]
					n++
				}
			}
			threshold := sum / n

			x0, y0 := bx*block, by*block
			x1, y1 := min(x0+block, p.Width), min(y0+block, p.Height)
			for y := y0; y < y1; y++ {
				row := p.Pix[y*p.Width:]
				for x := x0; x < x1; x++ {
					if int(row[x]) <= threshold {
						out.Set(x, y)
					}
				}
			}
		}
	}
	return out
}

// blockPoints returns the per-block threshold before neighbourhood smoothing.
func blockPoints(p *Plane, block, cols, rows, minRange int) []int {
	points := make([]int, cols*rows)
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			x0, y0 := bx*block, by*block
			x1, y1 := min(x0+block, p.Width), min(y0+block, p.Height)

			sum, lo, hi := 0, 0xFF, 0
			for y := y0; y < y1; y++ {
				row := p.Pix[y*p.Width:]
				for x := x0; x < x1; x++ {
					v := int(row[x])
					sum += v
					lo = min(lo, v)
					hi = max(hi, v)
				}
			}
			mean := sum / ((x1 - x0) * (y1 - y0))

			if hi-lo <= minRange {
				// Flat block: assume background unless the neighbours
				// already computed say this block sits in a darker area.
				mean = lo / 2
				if bx > 0 && by > 0 {
					neighbour := (points[(by-1)*cols+bx] + 2*points[by*cols+bx-1] + points[(by-1)*cols+bx-1]) / 4
					if lo < neighbour {
						mean = neighbour
					}
				}
			}
			points[by*cols+bx] = mean
		}
	}
	return points
}
