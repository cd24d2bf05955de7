// Package geometry turns a finder triple into a symbol's dimension and the
// perspective transform from module coordinates to image pixels.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
	"github.com/MeKo-Tech/qrlens/internal/finder"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
)

// ErrGeometryMismatch is returned when the finder triple does not describe a
// valid symbol size.
var ErrGeometryMismatch = errors.New("geometry: finder spacing does not match a symbol size")

// Point is a position in image pixels or module units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

func (p Point) add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) scale(f float64) Point { return Point{X: p.X * f, Y: p.Y * f} }

func dist(a, b Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// Config tunes dimension validation and the alignment-pattern search.
type Config struct {
	// AlignmentWindows are the successive search half-widths, in module sizes.
	AlignmentWindows []float64
	// MaxDimensionError is how far, in modules, the measured dimension may
	// sit from the nearest valid size.
	MaxDimensionError float64
}

// DefaultConfig returns the standard resolver settings.
func DefaultConfig() Config {
	return Config{
		AlignmentWindows:  []float64{4, 8, 16},
		MaxDimensionError: 0.5,
	}
}

// Geometry is a resolved symbol placement.
type Geometry struct {
	TopLeft    Point
	TopRight   Point
	BottomLeft Point
	// BottomRight is the fourth anchor: the measured alignment centre when
	// AlignmentFound, else the parallelogram-inferred finder position.
	BottomRight    Point
	AlignmentFound bool
	ModuleSize     float64
	Dimension      int
	Version        int
	// RawDimension is the unrounded finder-spacing estimate.
	RawDimension float64

	transform Transform
}

// Map returns the pixel position of module coordinates (col, row); module
// centres sit at half-integer coordinates.
func (g *Geometry) Map(col, row float64) Point {
	return g.transform.Apply(col, row)
}

// Corners returns the pixel positions of the symbol's outer corners in
// top-left, top-right, bottom-right, bottom-left order.
func (g *Geometry) Corners() [4]Point {
	d := float64(g.Dimension)
	return [4]Point{g.Map(0, 0), g.Map(d, 0), g.Map(d, d), g.Map(0, d)}
}

// Order assigns the triple's centres to corners. The top-left centre is the
// one whose vectors to the other two are closest to perpendicular; the other
// two are ordered so the turn from top-right to bottom-left is clockwise in
// image coordinates. A mirrored symbol comes out transposed.
func Order(t finder.Triple) (tl, tr, bl Point) {
	pts := [3]Point{}
	for i, p := range t {
		pts[i] = Point{X: p.X, Y: p.Y}
	}
	best, bestCos := 0, math.Inf(1)
	for i := range 3 {
		a := pts[(i+1)%3].sub(pts[i])
		b := pts[(i+2)%3].sub(pts[i])
		na, nb := math.Hypot(a.X, a.Y), math.Hypot(b.X, b.Y)
		if na == 0 || nb == 0 {
			continue
		}
		if c := math.Abs((a.X*b.X + a.Y*b.Y) / (na * nb)); c < bestCos {
			best, bestCos = i, c
		}
	}
	tl, tr, bl = pts[best], pts[(best+1)%3], pts[(best+2)%3]
	if cross(tr.sub(tl), bl.sub(tl)) < 0 {
		tr, bl = bl, tr
	}
	return tl, tr, bl
}

func cross(a, b Point) float64 { return a.X*b.Y - a.Y*b.X }

// Resolve measures the module size and dimension of the symbol behind t and
// builds its module-to-pixel transform.
func Resolve(bm *bitmatrix.BitMatrix, t finder.Triple, cfg Config) (*Geometry, error) {
	tl, tr, bl := Order(t)
	module := moduleSize(bm, t, tl, tr, bl)
	if module < 1 {
		return nil, fmt.Errorf("%w: module size %.2f", ErrGeometryMismatch, module)
	}
	// The timing-pattern estimate is tried first; the finder-ring estimate
	// runs high when the symbol is tilted.
	estimates := []float64{(dist(tl, tr)+dist(tl, bl))/2/module + 7}
	if refined, ok := timingDimension(bm, tl, tr, bl, module); ok {
		estimates = append([]float64{refined}, estimates...)
	}
	raw, dim := estimates[0], 0
	for _, est := range estimates {
		if d := nearestDimension(est); math.Abs(est-float64(d)) <= cfg.MaxDimensionError {
			raw, dim = est, d
			break
		}
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: estimate %.2f modules, nearest size %d", ErrGeometryMismatch, raw, nearestDimension(raw))
	}
	g, err := build(bm, tl, tr, bl, module, dim, cfg)
	if err != nil {
		return nil, err
	}
	g.RawDimension = raw
	return g, nil
}

// ResolveDimension builds the transform for t at a known dimension, used when
// the version information disagrees with the measured size.
func ResolveDimension(bm *bitmatrix.BitMatrix, t finder.Triple, dim int, cfg Config) (*Geometry, error) {
	tl, tr, bl := Order(t)
	module := moduleSize(bm, t, tl, tr, bl)
	if module <= 0 {
		return nil, fmt.Errorf("%w: module size %.2f", ErrGeometryMismatch, module)
	}
	g, err := build(bm, tl, tr, bl, module, dim, cfg)
	if err != nil {
		return nil, err
	}
	g.RawDimension = (dist(tl, tr)+dist(tl, bl))/2/module + 7
	return g, nil
}

// nearestDimension rounds a measured side length to the closest 4v+17,
// clamped to the version range.
func nearestDimension(raw float64) int {
	v := int(math.Round((raw - 17) / 4))
	v = max(symbol.MinVersion, min(symbol.MaxVersion, v))
	return symbol.DimensionForVersion(v)
}

func build(bm *bitmatrix.BitMatrix, tl, tr, bl Point, module float64, dim int, cfg Config) (*Geometry, error) {
	v, err := symbol.VersionForDimension(dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeometryMismatch, err)
	}
	g := &Geometry{
		TopLeft:    tl,
		TopRight:   tr,
		BottomLeft: bl,
		ModuleSize: module,
		Dimension:  dim,
		Version:    v.Number,
	}

	d := float64(dim)
	near, far := 3.5, d-3.5
	src := [4]Point{{near, near}, {far, near}, {far, far}, {near, far}}
	g.BottomRight = tr.sub(tl).add(bl)

	if len(v.AlignmentCenters) > 0 {
		predicted := affine(tl, tr, bl, dim, d-6.5, d-6.5)
		for _, window := range cfg.AlignmentWindows {
			if p, ok := findAlignment(bm, predicted, module, window); ok {
				g.BottomRight = p
				g.AlignmentFound = true
				src[2] = Point{d - 6.5, d - 6.5}
				break
			}
		}
	}

	h, ok := computeHomography(src, [4]Point{tl, tr, g.BottomRight, bl})
	if !ok {
		return nil, fmt.Errorf("%w: degenerate anchor quadrilateral", ErrGeometryMismatch)
	}
	g.transform = h
	return g, nil
}

// affine maps module coordinates using only the three finder centres.
func affine(tl, tr, bl Point, dim int, col, row float64) Point {
	span := float64(dim - 7)
	u := (col - 3.5) / span
	w := (row - 3.5) / span
	return tl.add(tr.sub(tl).scale(u)).add(bl.sub(tl).scale(w))
}

// moduleSize averages black-white-black run estimates along both edges of
// the symbol, falling back to the finders' own estimates when a run walk
// leaves the image.
func moduleSize(bm *bitmatrix.BitMatrix, t finder.Triple, tl, tr, bl Point) float64 {
	a := moduleSizeOneWay(bm, tl, tr)
	b := moduleSizeOneWay(bm, tl, bl)
	switch {
	case !math.IsNaN(a) && !math.IsNaN(b):
		return (a + b) / 2
	case !math.IsNaN(a):
		return a
	case !math.IsNaN(b):
		return b
	}
	return (t[0].ModuleSize + t[1].ModuleSize + t[2].ModuleSize) / 3
}

func moduleSizeOneWay(bm *bitmatrix.BitMatrix, from, to Point) float64 {
	est1 := runBothWays(bm, int(from.X), int(from.Y), int(to.X), int(to.Y))
	est2 := runBothWays(bm, int(to.X), int(to.Y), int(from.X), int(from.Y))
	switch {
	case math.IsNaN(est1) && math.IsNaN(est2):
		return math.NaN()
	case math.IsNaN(est1):
		return est2 / 7
	case math.IsNaN(est2):
		return est1 / 7
	}
	return (est1 + est2) / 14
}

// runBothWays measures the finder's full width through its centre along the
// line towards (toX, toY), extending the line backwards and clipping it to
// the image.
func runBothWays(bm *bitmatrix.BitMatrix, fromX, fromY, toX, toY int) float64 {
	result := blackWhiteBlackRun(bm, fromX, fromY, toX, toY)
	if math.IsNaN(result) {
		return result
	}

	w, h := bm.Width(), bm.Height()
	scale := 1.0
	otherToX := fromX - (toX - fromX)
	if otherToX < 0 {
		scale = float64(fromX) / float64(fromX-otherToX)
		otherToX = 0
	} else if otherToX >= w {
		scale = float64(w-1-fromX) / float64(otherToX-fromX)
		otherToX = w - 1
	}
	otherToY := int(float64(fromY) - float64(toY-fromY)*scale)

	scale = 1.0
	if otherToY < 0 {
		scale = float64(fromY) / float64(fromY-otherToY)
		otherToY = 0
	} else if otherToY >= h {
		scale = float64(h-1-fromY) / float64(otherToY-fromY)
		otherToY = h - 1
	}
	otherToX = int(float64(fromX) + float64(otherToX-fromX)*scale)

	other := blackWhiteBlackRun(bm, fromX, fromY, otherToX, otherToY)
	if math.IsNaN(other) {
		return other
	}
	// The centre pixel is counted by both walks.
	return result + other - 1
}

// blackWhiteBlackRun walks a Bresenham line from a finder centre and returns
// the distance to the end of the outer black ring, or NaN when the line ends
// first.
func blackWhiteBlackRun(bm *bitmatrix.BitMatrix, fromX, fromY, toX, toY int) float64 {
	steep := abs(toY-fromY) > abs(toX-fromX)
	if steep {
		fromX, fromY = fromY, fromX
		toX, toY = toY, toX
	}

	dx := abs(toX - fromX)
	dy := abs(toY - fromY)
	errAcc := -dx / 2
	xstep, ystep := 1, 1
	if fromX > toX {
		xstep = -1
	}
	if fromY > toY {
		ystep = -1
	}

	// 0: inside the centre, 1: in the white ring, 2: in the outer ring.
	state := 0
	xLimit := toX + xstep
	for x, y := fromX, fromY; x != xLimit; x += xstep {
		realX, realY := x, y
		if steep {
			realX, realY = y, x
		}
		if realX < 0 || realY < 0 || realX >= bm.Width() || realY >= bm.Height() {
			break
		}
		if (state == 1) == bm.Get(realX, realY) {
			if state == 2 {
				return math.Hypot(float64(x-fromX), float64(y-fromY))
			}
			state++
		}
		errAcc += dy
		if errAcc > 0 {
			if y == toY {
				break
			}
			y += ystep
			errAcc -= dx
		}
	}
	if state == 2 {
		return math.Hypot(float64(toX+xstep-fromX), float64(toY-fromY))
	}
	return math.NaN()
}

// timingDimension measures the symbol size from the module pitch along the
// timing row and column. ok is false when neither timing pattern reads
// cleanly.
func timingDimension(bm *bitmatrix.BitMatrix, tl, tr, bl Point, module float64) (float64, bool) {
	row, rowOK := timingPitch(bm, tl, tr, bl.sub(tl), module)
	col, colOK := timingPitch(bm, tl, bl, tr.sub(tl), module)
	switch {
	case rowOK && colOK:
		return (dist(tl, tr)/row+dist(tl, bl)/col)/2 + 7, true
	case rowOK:
		return dist(tl, tr)/row + 7, true
	case colOK:
		return dist(tl, bl)/col + 7, true
	}
	return 0, false
}

// run is a stretch of same-colour samples along a line, by sample index.
type run struct {
	black       bool
	first, last int
}

// timingPitch walks the line between two finder centres shifted three
// modules towards side, which puts it on the timing pattern. The line must
// read finder, separator, alternating timing modules starting and ending
// black, separator, finder. The pitch is the distance between the centres
// of the outermost timing modules divided by their spacing in modules.
func timingPitch(bm *bitmatrix.BitMatrix, from, to, side Point, module float64) (float64, bool) {
	n := math.Hypot(side.X, side.Y)
	if n == 0 {
		return 0, false
	}
	off := side.scale(3 * module / n)
	a, b := from.add(off), to.add(off)
	length := dist(a, b)
	steps := int(math.Ceil(length * 2))
	if steps < 2 {
		return 0, false
	}
	step := length / float64(steps)

	var runs []run
	for i := 0; i <= steps; i++ {
		p := a.add(b.sub(a).scale(float64(i) / float64(steps)))
		black := bm.Get(int(math.Floor(p.X)), int(math.Floor(p.Y)))
		if k := len(runs) - 1; k >= 0 && runs[k].black == black {
			runs[k].last = i
			continue
		}
		runs = append(runs, run{black: black, first: i, last: i})
	}
	runs = mergeShortRuns(runs, 0.4*module/step)

	k := len(runs)
	if k < 9 || k%2 == 0 || !runs[0].black || runs[1].black {
		return 0, false
	}
	// runs[2] and runs[k-3] are the first and last timing modules.
	spacing := float64(k - 5)
	centre := func(r run) float64 { return float64(r.first+r.last) / 2 * step }
	pitch := (centre(runs[k-3]) - centre(runs[2])) / spacing
	if pitch < module/2 || pitch > module*1.5 {
		return 0, false
	}
	return pitch, true
}

// mergeShortRuns folds runs shorter than minSamples into their predecessor,
// then joins neighbours of the same colour. Jagged module edges on a tilted
// symbol otherwise show up as one- or two-sample runs.
func mergeShortRuns(runs []run, minSamples float64) []run {
	out := make([]run, 0, len(runs))
	for _, r := range runs {
		k := len(out) - 1
		if k >= 0 && (float64(r.last-r.first+1) < minSamples || out[k].black == r.black) {
			out[k].last = r.last
			continue
		}
		out = append(out, r)
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
