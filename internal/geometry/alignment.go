package geometry

import (
	"math"

	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
)

// findAlignment looks for the 1:1:1 centre of an alignment pattern inside a
// square of half-width window*module around the predicted position. Rows are
// scanned outward from the middle; a centre confirmed by two rows wins,
// otherwise the first vertically confirmed centre is used.
func findAlignment(bm *bitmatrix.BitMatrix, predicted Point, module, window float64) (Point, bool) {
	allowance := int(window * module)
	px, py := int(predicted.X), int(predicted.Y)
	left := max(0, px-allowance)
	right := min(bm.Width()-1, px+allowance)
	top := max(0, py-allowance)
	bottom := min(bm.Height()-1, py+allowance)
	if right-left < int(3*module) || bottom-top < int(3*module) {
		return Point{}, false
	}

	a := &alignmentSearch{bm: bm, module: module}
	height := bottom - top + 1
	middle := top + height/2
	for i := range height {
		y := middle + (i+1)/2
		if i%2 == 1 {
			y = middle - (i+1)/2
		}
		if y < top || y > bottom {
			continue
		}
		if p, ok := a.scanRow(y, left, right); ok {
			return p, true
		}
	}
	if len(a.candidates) > 0 {
		return a.candidates[0].Point, true
	}
	return Point{}, false
}

type alignmentCandidate struct {
	Point
	size float64
}

type alignmentSearch struct {
	bm         *bitmatrix.BitMatrix
	module     float64
	candidates []alignmentCandidate
}

// scanRow runs the white-black-white state machine over one row segment and
// returns a centre as soon as one is confirmed twice.
func (a *alignmentSearch) scanRow(y, left, right int) (Point, bool) {
	x := left
	// A leading white run has no measurable start.
	for x <= right && !a.bm.Get(x, y) {
		x++
	}
	// counts holds white, black, white runs.
	var counts [3]int
	state := 0
	for ; x <= right; x++ {
		if !a.bm.Get(x, y) {
			if state == 1 {
				state++
			}
			counts[state]++
			continue
		}
		switch state {
		case 1:
			counts[1]++
		case 2:
			if a.matches(counts) {
				if p, ok := a.handle(counts, x, y); ok {
					return p, true
				}
			}
			counts = [3]int{counts[2], 1, 0}
			state = 1
		default:
			state++
			counts[state]++
		}
	}
	if state == 2 && a.matches(counts) {
		return a.handle(counts, right+1, y)
	}
	return Point{}, false
}

// matches checks that every run is within half a module of the module size.
func (a *alignmentSearch) matches(counts [3]int) bool {
	maxVariance := a.module / 2
	for _, c := range counts {
		if math.Abs(a.module-float64(c)) >= maxVariance {
			return false
		}
	}
	return true
}

// handle confirms the candidate ending at column end vertically and records
// it, returning it when it repeats an earlier candidate.
func (a *alignmentSearch) handle(counts [3]int, end, y int) (Point, bool) {
	total := counts[0] + counts[1] + counts[2]
	cx := float64(end-counts[2]) - float64(counts[1])/2
	cy, ok := a.crossCheckVertical(int(cx), y, 2*counts[1], total)
	if !ok {
		return Point{}, false
	}
	size := float64(total) / 3
	for _, c := range a.candidates {
		if math.Abs(cy-c.Y) <= size && math.Abs(cx-c.X) <= size {
			diff := math.Abs(size - c.size)
			if diff <= 1 || diff <= c.size {
				return Point{X: (c.X + cx) / 2, Y: (c.Y + cy) / 2}, true
			}
		}
	}
	a.candidates = append(a.candidates, alignmentCandidate{Point: Point{X: cx, Y: cy}, size: size})
	return Point{}, false
}

// crossCheckVertical walks the column through (x, y) and returns the centre
// row of a white-black-white run matching the horizontal one.
func (a *alignmentSearch) crossCheckVertical(x, startY, maxCount, originalTotal int) (float64, bool) {
	bm := a.bm
	maxY := bm.Height()
	var counts [3]int

	y := startY
	for y >= 0 && bm.Get(x, y) && counts[1] <= maxCount {
		counts[1]++
		y--
	}
	if y < 0 || counts[1] > maxCount {
		return 0, false
	}
	for y >= 0 && !bm.Get(x, y) && counts[0] <= maxCount {
		counts[0]++
		y--
	}
	if counts[0] > maxCount {
		return 0, false
	}

	y = startY + 1
	for y < maxY && bm.Get(x, y) && counts[1] <= maxCount {
		counts[1]++
		y++
	}
	if y == maxY || counts[1] > maxCount {
		return 0, false
	}
	for y < maxY && !bm.Get(x, y) && counts[2] <= maxCount {
		counts[2]++
		y++
	}
	if counts[2] > maxCount {
		return 0, false
	}

	total := counts[0] + counts[1] + counts[2]
	if 5*abs(total-originalTotal) >= 2*originalTotal {
		return 0, false
	}
	if !a.matches(counts) {
		return 0, false
	}
	return float64(y-counts[2]) - float64(counts[1])/2, true
}
