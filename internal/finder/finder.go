// Package finder locates the three concentric-square finder patterns of QR
// symbols in a binarized image and groups them into per-symbol triples.
package finder

import (
	"math"

	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
)

// Config tunes the run-length matcher.
type Config struct {
	// Tolerance is the allowed relative deviation of each run from the
	// 1:1:3:1:1 ratio.
	Tolerance float64
	// MinConfirmations is how many row hits a centre needs before grouping.
	MinConfirmations int
}

// DefaultConfig returns the standard matcher settings.
func DefaultConfig() Config {
	return Config{Tolerance: 0.4, MinConfirmations: 2}
}

// Pattern is a confirmed finder-pattern centre.
type Pattern struct {
	X, Y       float64
	ModuleSize float64
	// Count is the number of scan hits merged into this centre.
	Count int
}

// Distance returns the Euclidean distance between two centres.
func Distance(a, b Pattern) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// aboutEquals reports whether a hit at (x, y) belongs to this centre.
func (p Pattern) aboutEquals(moduleSize, x, y float64) bool {
	if math.Abs(y-p.Y) > moduleSize || math.Abs(x-p.X) > moduleSize {
		return false
	}
	diff := math.Abs(moduleSize - p.ModuleSize)
	return diff <= 1.0 || diff <= p.ModuleSize
}

// combine folds a new hit into the centre as a count-weighted average.
func (p Pattern) combine(x, y, moduleSize float64) Pattern {
	n := float64(p.Count)
	total := n + 1
	return Pattern{
		X:          (n*p.X + x) / total,
		Y:          (n*p.Y + y) / total,
		ModuleSize: (n*p.ModuleSize + moduleSize) / total,
		Count:      p.Count + 1,
	}
}

// finder carries the state of one search.
type finder struct {
	img     *bitmatrix.BitMatrix
	cfg     Config
	centers []Pattern
}

// Find scans every row of img for 1:1:3:1:1 black/white runs. Each hit is
// confirmed by a vertical cross-check through its centre column and a
// horizontal re-check on the confirmed centre row; confirmed hits within one
// module of an existing centre merge into it.
func Find(img *bitmatrix.BitMatrix, cfg Config) []Pattern {
	f := &finder{img: img, cfg: cfg}
	width := img.Width()
	for y := 0; y < img.Height(); y++ {
		var counts [5]int
		state := 0
		for x := 0; x < width; x++ {
			if img.Get(x, y) {
				if state&1 == 1 {
					state++
				}
				counts[state]++
				continue
			}
			if state&1 == 1 {
				counts[state]++
				continue
			}
			if state < 4 {
				state++
				counts[state]++
				continue
			}
			if f.matches(counts) {
				f.handle(counts, x, y)
			}
			counts = [5]int{counts[2], counts[3], counts[4], 1, 0}
			state = 3
		}
		if state == 4 && f.matches(counts) {
			f.handle(counts, width, y)
		}
	}
	return f.centers
}

// matches checks a run-length window against the 1:1:3:1:1 ratio.
func (f *finder) matches(counts [5]int) bool {
	total := 0
	for _, c := range counts {
		if c == 0 {
			return false
		}
		total += c
	}
	if total < 7 {
		return false
	}
	module := float64(total) / 7.0
	for i, c := range counts {
		want := module
		if i == 2 {
			want = 3 * module
		}
		if math.Abs(float64(c)-want) >= f.cfg.Tolerance*want {
			return false
		}
	}
	return true
}

func sum(counts [5]int) int {
	return counts[0] + counts[1] + counts[2] + counts[3] + counts[4]
}

// centerFromEnd returns the centre of the middle run given the coordinate
// just past the last run.
func centerFromEnd(counts [5]int, end int) float64 {
	return float64(end-counts[4]-counts[3]) - float64(counts[2])/2.0
}

// handle confirms a row hit ending at column end and records it.
func (f *finder) handle(counts [5]int, end, row int) {
	total := sum(counts)
	cx := centerFromEnd(counts, end)
	cy, ok := f.crossCheck(int(cx), row, counts[2], total, true)
	if !ok {
		return
	}
	cx, ok = f.crossCheck(int(cx), int(cy), counts[2], total, false)
	if !ok {
		return
	}

	module := float64(total) / 7.0
	for i, c := range f.centers {
		if c.aboutEquals(module, cx, cy) {
			f.centers[i] = c.combine(cx, cy, module)
			return
		}
	}
	f.centers = append(f.centers, Pattern{X: cx, Y: cy, ModuleSize: module, Count: 1})
}

// crossCheck walks outward from (x, y) along a column (vertical) or row and
// returns the centre coordinate along that axis when the runs match the
// finder ratio and their total is within 40% of the original width.
func (f *finder) crossCheck(x, y, maxCount, originalTotal int, vertical bool) (float64, bool) {
	get := func(i int) bool { return f.img.Get(x, i) }
	start, limit := y, f.img.Height()
	if !vertical {
		get = func(i int) bool { return f.img.Get(i, y) }
		start, limit = x, f.img.Width()
	}

	var counts [5]int
	i := start
	for i >= 0 && get(i) {
		counts[2]++
		i--
	}
	if i < 0 {
		return 0, false
	}
	for i >= 0 && !get(i) && counts[1] <= maxCount {
		counts[1]++
		i--
	}
	if i < 0 || counts[1] > maxCount {
		return 0, false
	}
	for i >= 0 && get(i) && counts[0] <= maxCount {
		counts[0]++
		i--
	}
	if counts[0] > maxCount {
		return 0, false
	}

	i = start + 1
	for i < limit && get(i) {
		counts[2]++
		i++
	}
	if i == limit {
		return 0, false
	}
	for i < limit && !get(i) && counts[3] <= maxCount {
		counts[3]++
		i++
	}
	if i == limit || counts[3] > maxCount {
		return 0, false
	}
	for i < limit && get(i) && counts[4] <= maxCount {
		counts[4]++
		i++
	}
	if counts[4] > maxCount {
		return 0, false
	}

	total := sum(counts)
	if 5*abs(total-originalTotal) >= 2*originalTotal {
		return 0, false
	}
	if !f.matches(counts) {
		return 0, false
	}
	return centerFromEnd(counts, i), true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
