// Package payload decodes the data codewords of a corrected symbol into its
// segments and text.
package payload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/qrlens/internal/symbol"
)

// ErrMalformed is returned for any bit stream that does not follow the
// segment grammar.
var ErrMalformed = errors.New("payload: malformed data")

const alphanumericChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

// Segment is one decoded run of a single mode.
type Segment struct {
	Mode Mode `json:"mode"`
	// Count is the character count from the segment header.
	Count   int    `json:"count"`
	Raw     []byte `json:"-"`
	Text    string `json:"text"`
	Charset string `json:"charset,omitempty"`
}

// StructuredAppend is the header of a symbol that is part of a sequence.
type StructuredAppend struct {
	Index  int  `json:"index"`
	Total  int  `json:"total"`
	Parity byte `json:"parity"`
}

// Payload is the decoded content of one symbol.
type Payload struct {
	Text             string
	Bytes            []byte
	Segments         []Segment
	Version          int
	Level            symbol.ECLevel
	StructuredAppend *StructuredAppend
	// FNC1 is set when the symbol declares GS1 or AIM application data.
	FNC1 bool
	// ApplicationIndicator is the FNC1 second-position indicator, or -1.
	ApplicationIndicator int
}

// Decode parses the data codewords of a symbol.
func Decode(data []byte, version int, level symbol.ECLevel) (*Payload, error) {
	if version < symbol.MinVersion || version > symbol.MaxVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformed, version)
	}
	d := &decoder{
		r:       newBitReader(data),
		version: version,
		out:     &Payload{Version: version, Level: level, ApplicationIndicator: -1},
	}
	if err := d.run(); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, s := range d.out.Segments {
		text.WriteString(s.Text)
		d.out.Bytes = append(d.out.Bytes, s.Raw...)
	}
	d.out.Text = text.String()
	return d.out, nil
}

type decoder struct {
	r       *bitReader
	version int
	charset *Charset
	out     *Payload
}

func (d *decoder) run() error {
	for {
		// Fewer than four remaining bits act as an implicit terminator.
		if d.r.available() < 4 {
			return nil
		}
		bits, err := d.r.read(4)
		if err != nil {
			return err
		}
		mode, err := modeFromBits(bits)
		if err != nil {
			return err
		}

		switch mode {
		case ModeTerminator:
			return nil
		case ModeFNC1First:
			d.out.FNC1 = true
		case ModeFNC1Second:
			ai, err := d.r.read(8)
			if err != nil {
				return err
			}
			d.out.FNC1 = true
			d.out.ApplicationIndicator = ai
		case ModeStructuredAppend:
			if err := d.structuredAppend(); err != nil {
				return err
			}
		case ModeECI:
			value, err := d.eciValue()
			if err != nil {
				return err
			}
			cs, err := CharsetForECI(value)
			if err != nil {
				return err
			}
			d.charset = cs
		default:
			if err := d.segment(mode); err != nil {
				return fmt.Errorf("%s segment: %w", mode, err)
			}
		}
	}
}

func (d *decoder) structuredAppend() error {
	if d.r.available() < 16 {
		return fmt.Errorf("%w: truncated structured append header", ErrMalformed)
	}
	seq, _ := d.r.read(8)
	parity, _ := d.r.read(8)
	d.out.StructuredAppend = &StructuredAppend{
		Index:  seq >> 4,
		Total:  seq&0x0F + 1,
		Parity: byte(parity),
	}
	return nil
}

// eciValue reads a one, two or three byte ECI designator.
func (d *decoder) eciValue() (int, error) {
	first, err := d.r.read(8)
	if err != nil {
		return 0, err
	}
	switch {
	case first&0x80 == 0:
		return first & 0x7F, nil
	case first&0xC0 == 0x80:
		second, err := d.r.read(8)
		if err != nil {
			return 0, err
		}
		return (first&0x3F)<<8 | second, nil
	case first&0xE0 == 0xC0:
		rest, err := d.r.read(16)
		if err != nil {
			return 0, err
		}
		return (first&0x1F)<<16 | rest, nil
	}
	return 0, fmt.Errorf("%w: bad ECI designator %#02x", ErrMalformed, first)
}

func (d *decoder) segment(mode Mode) error {
	seg := Segment{Mode: mode}
	// The hanzi header carries a subset indicator ahead of the count.
	if mode != ModeHanzi {
		count, err := d.r.read(mode.CharCountBits(d.version))
		if err != nil {
			return err
		}
		seg.Count = count
	}

	var err error
	switch mode {
	case ModeNumeric:
		err = d.numeric(&seg)
	case ModeAlphanumeric:
		err = d.alphanumeric(&seg)
	case ModeByte:
		err = d.byteSegment(&seg)
	case ModeKanji:
		err = d.doubleByte(&seg, 0xC0, 0x1F00, 0x8140, 0xC140, charsetShiftJIS)
	case ModeHanzi:
		err = d.hanzi(&seg)
	}
	if err != nil {
		return err
	}
	d.out.Segments = append(d.out.Segments, seg)
	return nil
}

func (d *decoder) numeric(seg *Segment) error {
	count := seg.Count
	need := 10*(count/3) + [3]int{0, 4, 7}[count%3]
	if need > d.r.available() {
		return fmt.Errorf("%w: %d digits need %d bits, %d available", ErrMalformed, count, need, d.r.available())
	}
	var sb strings.Builder
	for count >= 3 {
		v, _ := d.r.read(10)
		if v >= 1000 {
			return fmt.Errorf("%w: digit group %d", ErrMalformed, v)
		}
		fmt.Fprintf(&sb, "%03d", v)
		count -= 3
	}
	switch count {
	case 2:
		v, _ := d.r.read(7)
		if v >= 100 {
			return fmt.Errorf("%w: digit pair %d", ErrMalformed, v)
		}
		fmt.Fprintf(&sb, "%02d", v)
	case 1:
		v, _ := d.r.read(4)
		if v >= 10 {
			return fmt.Errorf("%w: digit %d", ErrMalformed, v)
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	seg.Text = sb.String()
	seg.Raw = []byte(seg.Text)
	return nil
}

func (d *decoder) alphanumeric(seg *Segment) error {
	count := seg.Count
	need := 11*(count/2) + 6*(count%2)
	if need > d.r.available() {
		return fmt.Errorf("%w: %d characters need %d bits, %d available", ErrMalformed, count, need, d.r.available())
	}
	buf := make([]byte, 0, count)
	for count > 1 {
		v, _ := d.r.read(11)
		if v >= 45*45 {
			return fmt.Errorf("%w: alphanumeric pair %d", ErrMalformed, v)
		}
		buf = append(buf, alphanumericChars[v/45], alphanumericChars[v%45])
		count -= 2
	}
	if count == 1 {
		v, _ := d.r.read(6)
		if v >= 45 {
			return fmt.Errorf("%w: alphanumeric value %d", ErrMalformed, v)
		}
		buf = append(buf, alphanumericChars[v])
	}
	if d.out.FNC1 {
		buf = applyFNC1(buf)
	}
	seg.Raw = buf
	seg.Text = string(buf)
	return nil
}

// applyFNC1 maps "%" to the GS separator and "%%" to a literal "%".
func applyFNC1(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] != '%' {
			out = append(out, in[i])
			continue
		}
		if i+1 < len(in) && in[i+1] == '%' {
			out = append(out, '%')
			i++
			continue
		}
		out = append(out, 0x1D)
	}
	return out
}

func (d *decoder) byteSegment(seg *Segment) error {
	if 8*seg.Count > d.r.available() {
		return fmt.Errorf("%w: %d bytes exceed %d available bits", ErrMalformed, seg.Count, d.r.available())
	}
	raw := make([]byte, seg.Count)
	for i := range raw {
		v, _ := d.r.read(8)
		raw[i] = byte(v)
	}
	seg.Raw = raw

	if d.charset == nil {
		text, cs := decodeDefault(raw)
		seg.Text, seg.Charset = text, cs.Name
		return nil
	}
	text, err := d.charset.Decode(raw)
	if err != nil {
		return err
	}
	seg.Text, seg.Charset = text, d.charset.Name
	return nil
}

func (d *decoder) hanzi(seg *Segment) error {
	subset, err := d.r.read(4)
	if err != nil {
		return err
	}
	// Only the GB2312 subset is defined.
	if subset != 1 {
		return fmt.Errorf("%w: hanzi subset %d", ErrMalformed, subset)
	}
	count, err := d.r.read(ModeHanzi.CharCountBits(d.version))
	if err != nil {
		return err
	}
	seg.Count = count
	return d.doubleByte(seg, 0x60, 0x0A00, 0xA1A1, 0xA6A1, charsetGB18030)
}

// doubleByte reads 13-bit compacted double-byte characters. Each value is
// split by divisor into high and low bytes, then offset into the charset's
// two code ranges depending on whether it falls below split.
func (d *decoder) doubleByte(seg *Segment, divisor, split, lowOffset, highOffset int, cs *Charset) error {
	if 13*seg.Count > d.r.available() {
		return fmt.Errorf("%w: %d characters exceed %d available bits", ErrMalformed, seg.Count, d.r.available())
	}
	raw := make([]byte, 0, 2*seg.Count)
	for i := 0; i < seg.Count; i++ {
		v, _ := d.r.read(13)
		assembled := (v/divisor)<<8 | v%divisor
		if assembled < split {
			assembled += lowOffset
		} else {
			assembled += highOffset
		}
		raw = append(raw, byte(assembled>>8), byte(assembled))
	}
	text, err := cs.Decode(raw)
	if err != nil {
		return err
	}
	seg.Raw = raw
	seg.Text = text
	seg.Charset = cs.Name
	return nil
}
