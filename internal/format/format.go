// Package format decodes the BCH-protected format information (error
// correction level and mask) and version information of a sampled symbol.
package format

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/MeKo-Tech/qrlens/internal/symbol"
)

var (
	// ErrFormatCorrupt means neither format copy is within correction radius.
	ErrFormatCorrupt = errors.New("format: format information corrupt")
	// ErrVersionCorrupt means neither version copy is within correction radius.
	ErrVersionCorrupt = errors.New("format: version information corrupt")
)

// MaxCorrectableBits is the Hamming radius accepted for both BCH codes.
const MaxCorrectableBits = 3

// FormatMask is XORed onto the 15-bit format codeword before placement.
const FormatMask = 0x5412

// formatCodewords lists the masked 15-bit codewords indexed by the five data
// bits (two EC level bits followed by three mask bits).
var formatCodewords = [32]uint16{
	0x5412, 0x5125, 0x5E7C, 0x5B4B, 0x45F9, 0x40CE, 0x4F97, 0x4AA0,
	0x77C4, 0x72F3, 0x7DAA, 0x789D, 0x662F, 0x6318, 0x6C41, 0x6976,
	0x1689, 0x13BE, 0x1CE7, 0x19D0, 0x0762, 0x0255, 0x0D0C, 0x083B,
	0x355F, 0x3068, 0x3F31, 0x3A06, 0x24B4, 0x2183, 0x2EDA, 0x2BED,
}

// versionCodewords lists the 18-bit version codewords for versions 7..40.
var versionCodewords = [34]uint32{
	0x07C94, 0x085BC, 0x09A99, 0x0A4D3, 0x0BBF6, 0x0C762, 0x0D847, 0x0E60D,
	0x0F928, 0x10B78, 0x1145D, 0x12A17, 0x13532, 0x149A6, 0x15683, 0x168C9,
	0x177EC, 0x18EC4, 0x191E1, 0x1AFAB, 0x1B08E, 0x1CC1A, 0x1D33F, 0x1ED75,
	0x1F250, 0x209D5, 0x216F0, 0x228BA, 0x2379F, 0x24B0B, 0x2542E, 0x26A64,
	0x27541, 0x28C69,
}

// Info is decoded format information.
type Info struct {
	Level symbol.ECLevel
	Mask  int
	// Corrected is the number of bits the BCH decode had to flip.
	Corrected int
	// Copy is 1 for the copy around the top-left finder, 2 for the split copy.
	Copy int
}

// FormatBits returns the masked format codeword for a level and mask.
func FormatBits(level symbol.ECLevel, mask int) uint16 {
	return formatCodewords[int(level.Bits())<<3|mask&0x07]
}

// VersionBits returns the version codeword, or 0 for versions below 7.
func VersionBits(version int) uint32 {
	if version < 7 || version > symbol.MaxVersion {
		return 0
	}
	return versionCodewords[version-7]
}

// nearestFormat returns the data bits of the closest codeword and its distance.
func nearestFormat(raw uint16) (int, int) {
	best, bestDist := 0, 16
	for data, cw := range formatCodewords {
		d := bits.OnesCount16(raw ^ cw)
		if d < bestDist {
			best, bestDist = data, d
			if d == 0 {
				break
			}
		}
	}
	return best, bestDist
}

// DecodeFormatBits decodes the two raw 15-bit copies. The clean copy wins;
// otherwise the copy needing fewer corrections. Copies read from a symbol that
// left its format unmasked are tried last.
func DecodeFormatBits(copy1, copy2 uint16) (Info, error) {
	info, err := decodeFormatPair(copy1, copy2)
	if err == nil {
		return info, nil
	}
	return decodeFormatPair(copy1^FormatMask, copy2^FormatMask)
}

func decodeFormatPair(copy1, copy2 uint16) (Info, error) {
	data1, d1 := nearestFormat(copy1 & 0x7FFF)
	data2, d2 := nearestFormat(copy2 & 0x7FFF)

	data, dist, which := data1, d1, 1
	if d2 < d1 {
		data, dist, which = data2, d2, 2
	}
	if dist > MaxCorrectableBits {
		return Info{}, fmt.Errorf("%w: copies at distance %d and %d", ErrFormatCorrupt, d1, d2)
	}
	level, err := symbol.ECLevelFromBits(uint8(data >> 3))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrFormatCorrupt, err)
	}
	return Info{Level: level, Mask: data & 0x07, Corrected: dist, Copy: which}, nil
}

// DecodeVersionBits returns the version nearest to an 18-bit copy and the
// number of corrected bits.
func DecodeVersionBits(raw uint32) (int, int, error) {
	best, bestDist := 0, 32
	for i, cw := range versionCodewords {
		d := bits.OnesCount32(raw ^ cw)
		if d < bestDist {
			best, bestDist = i+7, d
			if d == 0 {
				break
			}
		}
	}
	if bestDist > MaxCorrectableBits {
		return 0, bestDist, fmt.Errorf("%w: nearest codeword at distance %d", ErrVersionCorrupt, bestDist)
	}
	return best, bestDist, nil
}
