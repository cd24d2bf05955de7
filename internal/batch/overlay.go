package batch

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrlens/internal/geometry"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

var (
	decodedColor = color.NRGBA{R: 0, G: 200, B: 0, A: 255}
	failedColor  = color.NRGBA{R: 230, G: 0, B: 0, A: 255}
)

// RenderOverlay returns a copy of img with every candidate outlined: green
// when it decoded, red when it failed.
func RenderOverlay(img image.Image, res *pipeline.ImageResult) *image.NRGBA {
	dst := imaging.Clone(img)
	if res == nil {
		return dst
	}
	thickness := max(1, min(dst.Bounds().Dx(), dst.Bounds().Dy())/200)
	for _, c := range res.Results {
		if len(c.Corners) != 4 {
			continue
		}
		col := failedColor
		if c.OK() {
			col = decodedColor
		}
		drawPolygon(dst, c.Corners, col, thickness)
	}
	return dst
}

// SaveOverlay renders the overlay for res into dir as <name>_overlay.png
// and returns the written path.
func SaveOverlay(img image.Image, res *pipeline.ImageResult, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create overlay dir: %w", err)
	}
	name := "image"
	if res != nil && res.Source != "" {
		base := filepath.Base(res.Source)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	out := filepath.Join(dir, name+"_overlay.png")
	if err := imaging.Save(RenderOverlay(img, res), out); err != nil {
		return "", fmt.Errorf("failed to save overlay %s: %w", out, err)
	}
	return out, nil
}

func drawPolygon(dst draw.Image, pts []geometry.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	ip := make([]image.Point, len(pts))
	for i, p := range pts {
		ip[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	for i := range ip {
		drawLine(dst, ip[i], ip[(i+1)%len(ip)], col, thickness)
	}
}

// drawLine is Bresenham with a square pen.
func drawLine(dst draw.Image, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst draw.Image, x, y int, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	bounds := dst.Bounds()
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(bounds) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
