package symbol

import (
	"fmt"
	"strings"
)

// ECLevel is the error-correction level of a symbol.
type ECLevel int

const (
	LevelL ECLevel = iota // ~7% recovery
	LevelM                // ~15% recovery
	LevelQ                // ~25% recovery
	LevelH                // ~30% recovery
)

// formatBits holds the two-bit indicator each level carries in format information.
var formatBits = [4]uint8{LevelL: 0x01, LevelM: 0x00, LevelQ: 0x03, LevelH: 0x02}

// ECLevelFromBits maps the two format-information bits to a level.
func ECLevelFromBits(bits uint8) (ECLevel, error) {
	if bits <= 0x03 {
		for level, b := range formatBits {
			if b == bits {
				return ECLevel(level), nil
			}
		}
	}
	return 0, fmt.Errorf("symbol: invalid error correction bits %#x", bits)
}

// ParseECLevel parses "L", "M", "Q" or "H" (case-insensitive).
func ParseECLevel(s string) (ECLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L":
		return LevelL, nil
	case "M":
		return LevelM, nil
	case "Q":
		return LevelQ, nil
	case "H":
		return LevelH, nil
	}
	return 0, fmt.Errorf("symbol: unknown error correction level %q", s)
}

// Bits returns the format-information indicator for the level.
func (l ECLevel) Bits() uint8 {
	if l < LevelL || l > LevelH {
		return 0
	}
	return formatBits[l]
}

func (l ECLevel) String() string {
	switch l {
	case LevelL:
		return "L"
	case LevelM:
		return "M"
	case LevelQ:
		return "Q"
	case LevelH:
		return "H"
	}
	return fmt.Sprintf("ECLevel(%d)", int(l))
}

// MarshalText implements encoding.TextMarshaler so results serialize as "M".
func (l ECLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a level name written by MarshalText.
func (l *ECLevel) UnmarshalText(text []byte) error {
	level, err := ParseECLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}
