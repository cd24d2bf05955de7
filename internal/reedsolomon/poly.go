package reedsolomon

// poly is a polynomial over the field with coefficients stored from the
// highest degree down. The zero polynomial is {0}.
type poly []byte

func newPoly(coeffs []byte) poly {
	if len(coeffs) == 0 {
		return poly{0}
	}
	first := 0
	for first < len(coeffs)-1 && coeffs[first] == 0 {
		first++
	}
	out := make(poly, len(coeffs)-first)
	copy(out, coeffs[first:])
	return out
}

func monomial(degree int, coeff byte) poly {
	if coeff == 0 {
		return poly{0}
	}
	p := make(poly, degree+1)
	p[0] = coeff
	return p
}

func (p poly) degree() int { return len(p) - 1 }

func (p poly) isZero() bool { return p[0] == 0 }

// coeff returns the coefficient of x^degree.
func (p poly) coeff(degree int) byte {
	if degree < 0 || degree > p.degree() {
		return 0
	}
	return p[len(p)-1-degree]
}

func (p poly) lead() byte { return p[0] }

func (f *Field) evalPoly(p poly, x byte) byte {
	if x == 0 {
		return p.coeff(0)
	}
	var result byte
	for _, c := range p {
		result = f.Mul(result, x) ^ c
	}
	return result
}

func addPoly(a, b poly) poly {
	if a.isZero() {
		return b
	}
	if b.isZero() {
		return a
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	out := make([]byte, len(a))
	diff := len(a) - len(b)
	copy(out, a[:diff])
	for i := diff; i < len(a); i++ {
		out[i] = a[i] ^ b[i-diff]
	}
	return newPoly(out)
}

func (f *Field) mulPoly(a, b poly) poly {
	if a.isZero() || b.isZero() {
		return poly{0}
	}
	out := make([]byte, len(a)+len(b)-1)
	for i, ac := range a {
		for j, bc := range b {
			out[i+j] ^= f.Mul(ac, bc)
		}
	}
	return newPoly(out)
}

func (f *Field) scalePoly(p poly, s byte) poly {
	if s == 0 {
		return poly{0}
	}
	out := make([]byte, len(p))
	for i, c := range p {
		out[i] = f.Mul(c, s)
	}
	return newPoly(out)
}

func (f *Field) mulMonomial(p poly, degree int, coeff byte) poly {
	if coeff == 0 || p.isZero() {
		return poly{0}
	}
	out := make([]byte, len(p)+degree)
	for i, c := range p {
		out[i] = f.Mul(c, coeff)
	}
	return newPoly(out)
}
