package payload

import "fmt"

// Mode is a 4-bit segment mode indicator.
type Mode int

const (
	ModeTerminator       Mode = 0x0
	ModeNumeric          Mode = 0x1
	ModeAlphanumeric     Mode = 0x2
	ModeStructuredAppend Mode = 0x3
	ModeByte             Mode = 0x4
	ModeFNC1First        Mode = 0x5
	ModeECI              Mode = 0x7
	ModeKanji            Mode = 0x8
	ModeFNC1Second       Mode = 0x9
	ModeHanzi            Mode = 0xD
)

// modeFromBits maps a mode indicator to a known mode.
func modeFromBits(bits int) (Mode, error) {
	switch m := Mode(bits); m {
	case ModeTerminator, ModeNumeric, ModeAlphanumeric, ModeStructuredAppend, ModeByte,
		ModeFNC1First, ModeECI, ModeKanji, ModeFNC1Second, ModeHanzi:
		return m, nil
	}
	return 0, fmt.Errorf("%w: unknown mode indicator %04b", ErrMalformed, bits)
}

// countBits lists the character count widths for versions 1-9, 10-26 and 27-40.
var countBits = map[Mode][3]int{
	ModeNumeric:      {10, 12, 14},
	ModeAlphanumeric: {9, 11, 13},
	ModeByte:         {8, 16, 16},
	ModeKanji:        {8, 10, 12},
	ModeHanzi:        {8, 10, 12},
}

// CharCountBits returns the width of the character count field for the mode
// at a version, or 0 for modes without a count.
func (m Mode) CharCountBits(version int) int {
	widths, ok := countBits[m]
	if !ok {
		return 0
	}
	switch {
	case version <= 9:
		return widths[0]
	case version <= 26:
		return widths[1]
	}
	return widths[2]
}

func (m Mode) String() string {
	switch m {
	case ModeTerminator:
		return "terminator"
	case ModeNumeric:
		return "numeric"
	case ModeAlphanumeric:
		return "alphanumeric"
	case ModeStructuredAppend:
		return "structured-append"
	case ModeByte:
		return "byte"
	case ModeFNC1First:
		return "fnc1-first"
	case ModeECI:
		return "eci"
	case ModeKanji:
		return "kanji"
	case ModeFNC1Second:
		return "fnc1-second"
	case ModeHanzi:
		return "hanzi"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// MarshalText renders the mode name in JSON output.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText reads a mode name written by MarshalText.
func (m *Mode) UnmarshalText(text []byte) error {
	for _, mode := range []Mode{
		ModeTerminator, ModeNumeric, ModeAlphanumeric, ModeStructuredAppend, ModeByte,
		ModeFNC1First, ModeECI, ModeKanji, ModeFNC1Second, ModeHanzi,
	} {
		if mode.String() == string(text) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("payload: unknown mode %q", text)
}
