package payload

import "fmt"

// bitReader reads big-endian bit fields from a byte slice.
type bitReader struct {
	data    []byte
	byteOff int
	bitOff  int
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// available returns the number of unread bits.
func (r *bitReader) available() int {
	return 8*(len(r.data)-r.byteOff) - r.bitOff
}

// read returns the next n bits (1..32) as an unsigned value.
func (r *bitReader) read(n int) (int, error) {
	if n < 1 || n > 32 || n > r.available() {
		return 0, fmt.Errorf("%w: cannot read %d bits, %d available", ErrMalformed, n, r.available())
	}
	result := 0
	for n > 0 {
		left := 8 - r.bitOff
		take := min(n, left)
		shift := left - take
		mask := (1<<take - 1) << shift
		result = result<<take | int(r.data[r.byteOff])&mask>>shift
		n -= take
		r.bitOff += take
		if r.bitOff == 8 {
			r.bitOff = 0
			r.byteOff++
		}
	}
	return result, nil
}
