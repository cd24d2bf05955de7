// Package bitmatrix provides the two-dimensional black/white matrix shared by
// the binarizer, the locators and the symbol readers.
package bitmatrix

import (
	"strings"
)

// BitMatrix is a width x height grid of modules or pixels. A set bit is black.
// Coordinates are (x, y) with x the column and y the row.
type BitMatrix struct {
	width  int
	height int
	bits   []bool
}

// New creates a white matrix of the given size.
func New(width, height int) *BitMatrix {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &BitMatrix{width: width, height: height, bits: make([]bool, width*height)}
}

// NewSquare creates a white dimension x dimension matrix.
func NewSquare(dimension int) *BitMatrix {
	return New(dimension, dimension)
}

// Width returns the number of columns.
func (m *BitMatrix) Width() int { return m.width }

// Height returns the number of rows.
func (m *BitMatrix) Height() int { return m.height }

// Get reports whether (x, y) is black. Out-of-range coordinates read as white.
func (m *BitMatrix) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.bits[y*m.width+x]
}

// Set marks (x, y) black.
func (m *BitMatrix) Set(x, y int) {
	m.SetValue(x, y, true)
}

// SetValue writes v at (x, y). Out-of-range writes are ignored.
func (m *BitMatrix) SetValue(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	m.bits[y*m.width+x] = v
}

// Flip inverts (x, y).
func (m *BitMatrix) Flip(x, y int) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	m.bits[y*m.width+x] = !m.bits[y*m.width+x]
}

// SetRegion marks the rectangle starting at (left, top) black, clipped to the
// matrix bounds.
func (m *BitMatrix) SetRegion(left, top, width, height int) {
	for y := top; y < top+height; y++ {
		for x := left; x < left+width; x++ {
			m.SetValue(x, y, true)
		}
	}
}

// Clone returns a deep copy.
func (m *BitMatrix) Clone() *BitMatrix {
	out := &BitMatrix{width: m.width, height: m.height, bits: make([]bool, len(m.bits))}
	copy(out.bits, m.bits)
	return out
}

// Transpose returns a new matrix with rows and columns swapped.
func (m *BitMatrix) Transpose() *BitMatrix {
	out := New(m.height, m.width)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.bits[y*m.width+x] {
				out.bits[x*out.width+y] = true
			}
		}
	}
	return out
}

// CountSet returns the number of black cells.
func (m *BitMatrix) CountSet() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Equal reports whether both matrices have the same size and content.
func (m *BitMatrix) Equal(o *BitMatrix) bool {
	if o == nil || m.width != o.width || m.height != o.height {
		return false
	}
	for i := range m.bits {
		if m.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// String renders the matrix with '#' for black and '.' for white, one row per
// line. Used in test failure output and debug logging.
func (m *BitMatrix) String() string {
	var sb strings.Builder
	sb.Grow((m.width + 1) * m.height)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.bits[y*m.width+x] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Parse builds a matrix from the String representation. Any character other
// than '#', 'X' or '1' is white. Rows may not differ in length.
func Parse(s string) *BitMatrix {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	height := len(lines)
	width := 0
	if height > 0 {
		width = len(strings.TrimSpace(lines[0]))
	}
	m := New(width, height)
	for y, line := range lines {
		line = strings.TrimSpace(line)
		for x := 0; x < len(line) && x < width; x++ {
			switch line[x] {
			case '#', 'X', '1':
				m.Set(x, y)
			}
		}
	}
	return m
}
