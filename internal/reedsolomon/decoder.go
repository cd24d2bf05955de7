package reedsolomon

import (
	"errors"
	"fmt"
)

// ErrUncorrectable is returned when a block holds more errors than its
// error-correction codewords can repair.
var ErrUncorrectable = errors.New("reedsolomon: block is uncorrectable")

// Decode corrects block in place, where the last ecLen bytes are the
// error-correction codewords, and returns the number of corrected codewords.
// Up to floor(ecLen/2) codeword errors are corrected.
func Decode(block []byte, ecLen int) (int, error) {
	return QRField.Decode(block, ecLen)
}

// Decode is the field-specific form of the package-level Decode.
func (f *Field) Decode(block []byte, ecLen int) (int, error) {
	if ecLen <= 0 || ecLen >= len(block) {
		return 0, fmt.Errorf("reedsolomon: invalid ec length %d for block of %d", ecLen, len(block))
	}

	received := newPoly(block)
	syndromes := make([]byte, ecLen)
	clean := true
	for i := 0; i < ecLen; i++ {
		s := f.evalPoly(received, f.Exp(i))
		syndromes[ecLen-1-i] = s
		if s != 0 {
			clean = false
		}
	}
	if clean {
		return 0, nil
	}

	sigma, omega, err := f.euclid(monomial(ecLen, 1), newPoly(syndromes), ecLen)
	if err != nil {
		return 0, err
	}
	if sigma.degree() > ecLen/2 {
		return 0, ErrUncorrectable
	}

	locations, err := f.errorLocations(sigma)
	if err != nil {
		return 0, err
	}
	magnitudes := f.errorMagnitudes(omega, locations)

	fixed := make([]byte, len(block))
	copy(fixed, block)
	for i, loc := range locations {
		pos := len(block) - 1 - f.Log(loc)
		if pos < 0 {
			return 0, ErrUncorrectable
		}
		fixed[pos] ^= magnitudes[i]
	}

	// A miscorrection past the code's capacity can still land on a non-codeword.
	check := newPoly(fixed)
	for i := 0; i < ecLen; i++ {
		if f.evalPoly(check, f.Exp(i)) != 0 {
			return 0, ErrUncorrectable
		}
	}

	copy(block, fixed)
	return len(locations), nil
}

// euclid runs the extended Euclidean algorithm on x^R and the syndrome
// polynomial, returning the error locator sigma and evaluator omega.
func (f *Field) euclid(a, b poly, R int) (poly, poly, error) {
	if a.degree() < b.degree() {
		a, b = b, a
	}

	rLast, r := a, b
	tLast, t := poly{0}, poly{1}

	for 2*r.degree() >= R {
		rLastLast, tLastLast := rLast, tLast
		rLast, tLast = r, t

		if rLast.isZero() {
			return nil, nil, ErrUncorrectable
		}
		r = rLastLast
		q := poly{0}
		leadInv := f.Inv(rLast.lead())
		for r.degree() >= rLast.degree() && !r.isZero() {
			diff := r.degree() - rLast.degree()
			scale := f.Mul(r.lead(), leadInv)
			q = addPoly(q, monomial(diff, scale))
			r = addPoly(r, f.mulMonomial(rLast, diff, scale))
		}
		t = addPoly(f.mulPoly(q, tLast), tLastLast)

		if r.degree() >= rLast.degree() {
			return nil, nil, ErrUncorrectable
		}
	}

	sigmaAtZero := t.coeff(0)
	if sigmaAtZero == 0 {
		return nil, nil, ErrUncorrectable
	}
	inv := f.Inv(sigmaAtZero)
	return f.scalePoly(t, inv), f.scalePoly(r, inv), nil
}

// errorLocations finds the inverse roots of sigma by Chien search.
func (f *Field) errorLocations(sigma poly) ([]byte, error) {
	n := sigma.degree()
	if n == 1 {
		return []byte{sigma.coeff(1)}, nil
	}
	out := make([]byte, 0, n)
	for i := 1; i < 256 && len(out) < n; i++ {
		if f.evalPoly(sigma, byte(i)) == 0 {
			out = append(out, f.Inv(byte(i)))
		}
	}
	if len(out) != n {
		return nil, ErrUncorrectable
	}
	return out, nil
}

// errorMagnitudes applies Forney's formula for generator base 0.
func (f *Field) errorMagnitudes(omega poly, locations []byte) []byte {
	out := make([]byte, len(locations))
	for i, loc := range locations {
		xiInv := f.Inv(loc)
		denom := byte(1)
		for j, other := range locations {
			if i == j {
				continue
			}
			denom = f.Mul(denom, 1^f.Mul(other, xiInv))
		}
		out[i] = f.Mul(f.evalPoly(omega, xiInv), f.Inv(denom))
	}
	return out
}
