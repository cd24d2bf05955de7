// Package reedsolomon implements Reed-Solomon error correction over GF(256)
// as used by QR Code: primitive polynomial x^8+x^4+x^3+x^2+1, generator
// element 2, generator polynomial roots alpha^0 .. alpha^(n-k-1).
package reedsolomon

// Field is GF(2^8) defined by a primitive polynomial with generator 2.
type Field struct {
	exp  [512]byte
	log  [256]int
	poly int
}

// QRPolynomial is x^8 + x^4 + x^3 + x^2 + 1.
const QRPolynomial = 0x11D

// QRField is the field used by QR Code symbols. It is immutable.
var QRField = NewField(QRPolynomial)

// NewField builds exp/log tables for the primitive polynomial.
func NewField(primitive int) *Field {
	f := &Field{poly: primitive}
	x := 1
	for i := 0; i < 255; i++ {
		f.exp[i] = byte(x)
		f.log[x] = i
		x <<= 1
		if x&0x100 != 0 {
			x ^= primitive
		}
	}
	// Doubling the exp table lets Mul skip the modulo.
	for i := 255; i < 512; i++ {
		f.exp[i] = f.exp[i-255]
	}
	return f
}

// Exp returns alpha^i for i >= 0.
func (f *Field) Exp(i int) byte {
	return f.exp[i%255]
}

// Log returns the discrete logarithm of a. Log(0) is undefined and returns -1.
func (f *Field) Log(a byte) int {
	if a == 0 {
		return -1
	}
	return f.log[a]
}

// Add is addition and subtraction in GF(2^8).
func Add(a, b byte) byte {
	return a ^ b
}

// Mul multiplies two field elements.
func (f *Field) Mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[f.log[a]+f.log[b]]
}

// Inv returns the multiplicative inverse of a; Inv(0) returns 0.
func (f *Field) Inv(a byte) byte {
	if a == 0 {
		return 0
	}
	return f.exp[255-f.log[a]]
}

// Div returns a / b; division by zero returns 0.
func (f *Field) Div(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[f.log[a]+255-f.log[b]]
}
