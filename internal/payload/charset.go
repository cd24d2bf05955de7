package payload

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Charset is a character set selectable through an ECI designator.
type Charset struct {
	Name     string
	Encoding encoding.Encoding // nil for UTF-8 and US-ASCII
}

var (
	charsetUTF8      = &Charset{Name: "UTF-8"}
	charsetASCII     = &Charset{Name: "US-ASCII"}
	charsetISO8859_1 = &Charset{Name: "ISO-8859-1", Encoding: charmap.ISO8859_1}
	charsetShiftJIS  = &Charset{Name: "Shift_JIS", Encoding: japanese.ShiftJIS}
	charsetGB18030   = &Charset{Name: "GB18030", Encoding: simplifiedchinese.GB18030}
)

// eciCharsets maps ECI assignment values to character sets.
var eciCharsets = map[int]*Charset{
	0:   {Name: "Cp437", Encoding: charmap.CodePage437},
	1:   charsetISO8859_1,
	2:   {Name: "Cp437", Encoding: charmap.CodePage437},
	3:   charsetISO8859_1,
	4:   {Name: "ISO-8859-2", Encoding: charmap.ISO8859_2},
	5:   {Name: "ISO-8859-3", Encoding: charmap.ISO8859_3},
	6:   {Name: "ISO-8859-4", Encoding: charmap.ISO8859_4},
	7:   {Name: "ISO-8859-5", Encoding: charmap.ISO8859_5},
	8:   {Name: "ISO-8859-6", Encoding: charmap.ISO8859_6},
	9:   {Name: "ISO-8859-7", Encoding: charmap.ISO8859_7},
	10:  {Name: "ISO-8859-8", Encoding: charmap.ISO8859_8},
	11:  {Name: "ISO-8859-9", Encoding: charmap.ISO8859_9},
	12:  {Name: "ISO-8859-10", Encoding: charmap.ISO8859_10},
	13:  {Name: "ISO-8859-11", Encoding: charmap.Windows874},
	15:  {Name: "ISO-8859-13", Encoding: charmap.ISO8859_13},
	16:  {Name: "ISO-8859-14", Encoding: charmap.ISO8859_14},
	17:  {Name: "ISO-8859-15", Encoding: charmap.ISO8859_15},
	18:  {Name: "ISO-8859-16", Encoding: charmap.ISO8859_16},
	20:  charsetShiftJIS,
	21:  {Name: "windows-1250", Encoding: charmap.Windows1250},
	22:  {Name: "windows-1251", Encoding: charmap.Windows1251},
	23:  {Name: "windows-1252", Encoding: charmap.Windows1252},
	24:  {Name: "windows-1256", Encoding: charmap.Windows1256},
	25:  {Name: "UTF-16BE", Encoding: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
	26:  charsetUTF8,
	27:  charsetASCII,
	28:  {Name: "Big5", Encoding: traditionalchinese.Big5},
	29:  charsetGB18030,
	30:  {Name: "EUC-KR", Encoding: korean.EUCKR},
	170: charsetASCII,
}

// CharsetForECI returns the character set assigned to an ECI value.
func CharsetForECI(value int) (*Charset, error) {
	cs, ok := eciCharsets[value]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported ECI %d", ErrMalformed, value)
	}
	return cs, nil
}

// Decode converts raw bytes in this charset to a UTF-8 string.
func (c *Charset) Decode(raw []byte) (string, error) {
	if c.Encoding == nil {
		return string(raw), nil
	}
	out, err := c.Encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformed, c.Name, err)
	}
	return string(out), nil
}

// decodeDefault applies the byte-mode default when no ECI is in effect:
// UTF-8, falling back to ISO-8859-1 for byte sequences that are not UTF-8.
func decodeDefault(raw []byte) (string, *Charset) {
	if utf8.Valid(raw) {
		return string(raw), charsetUTF8
	}
	s, _ := charsetISO8859_1.Decode(raw)
	return s, charsetISO8859_1
}
