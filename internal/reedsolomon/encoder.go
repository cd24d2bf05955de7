package reedsolomon

// Generator returns prod_{i=0}^{ecLen-1} (x - alpha^i), highest degree first.
func (f *Field) Generator(ecLen int) []byte {
	g := poly{1}
	for i := 0; i < ecLen; i++ {
		g = f.mulPoly(g, poly{1, f.Exp(i)})
	}
	return g
}

// Encode returns the ecLen error-correction codewords for data.
func Encode(data []byte, ecLen int) []byte {
	return QRField.Encode(data, ecLen)
}

// Encode is the field-specific form of the package-level Encode.
func (f *Field) Encode(data []byte, ecLen int) []byte {
	if ecLen <= 0 {
		return nil
	}
	gen := f.Generator(ecLen)

	// Polynomial long division of data*x^ecLen by the monic generator.
	rem := make([]byte, len(data)+ecLen)
	copy(rem, data)
	for i := 0; i < len(data); i++ {
		c := rem[i]
		if c == 0 {
			continue
		}
		for j := 1; j < len(gen); j++ {
			rem[i+j] ^= f.Mul(gen[j], c)
		}
	}
	out := make([]byte, ecLen)
	copy(out, rem[len(data):])
	return out
}
