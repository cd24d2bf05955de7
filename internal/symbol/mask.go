package symbol

import "fmt"

// NumMasks is the number of data mask patterns.
const NumMasks = 8

// maskConditions are the data mask predicates indexed by mask id, with i the
// row and j the column. A true result means the module is inverted.
var maskConditions = [NumMasks]func(i, j int) bool{
	func(i, j int) bool { return (i+j)%2 == 0 },
	func(i, _ int) bool { return i%2 == 0 },
	func(_, j int) bool { return j%3 == 0 },
	func(i, j int) bool { return (i+j)%3 == 0 },
	func(i, j int) bool { return (i/2+j/3)%2 == 0 },
	func(i, j int) bool { return (i*j)%2+(i*j)%3 == 0 },
	func(i, j int) bool { return ((i*j)%2+(i*j)%3)%2 == 0 },
	func(i, j int) bool { return ((i+j)%2+(i*j)%3)%2 == 0 },
}

// MaskBit reports whether mask id inverts the module at (row, col).
func MaskBit(mask, row, col int) bool {
	if mask < 0 || mask >= NumMasks {
		return false
	}
	return maskConditions[mask](row, col)
}

// Unmask XORs the mask pattern over the data modules of g in place. Function
// modules are never touched. Applying the same mask twice restores the grid.
func Unmask(g *Grid, mask int) error {
	if mask < 0 || mask >= NumMasks {
		return fmt.Errorf("symbol: invalid mask %d", mask)
	}
	fm, err := FunctionMask(g.Version)
	if err != nil {
		return err
	}
	cond := maskConditions[mask]
	dim := g.Size()
	for row := 0; row < dim; row++ {
		for col := 0; col < dim; col++ {
			if fm.Get(col, row) {
				continue
			}
			if cond(row, col) {
				g.Modules.Flip(col, row)
			}
		}
	}
	return nil
}
