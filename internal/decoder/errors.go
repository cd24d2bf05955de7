package decoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a candidate failed, or flags a warning.
type Kind int

const (
	NoFinderPatterns Kind = iota + 1
	GeometryMismatch
	FormatInfoCorrupt
	VersionInfoCorrupt
	// SamplingUnreliable is only ever a warning.
	SamplingUnreliable
	UncorrectableBlock
	PayloadMalformed
)

var kindNames = map[Kind]string{
	NoFinderPatterns:   "NoFinderPatterns",
	GeometryMismatch:   "GeometryMismatch",
	FormatInfoCorrupt:  "FormatInfoCorrupt",
	VersionInfoCorrupt: "VersionInfoCorrupt",
	SamplingUnreliable: "SamplingUnreliable",
	UncorrectableBlock: "UncorrectableBlock",
	PayloadMalformed:   "PayloadMalformed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText reads a kind name written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("decoder: unknown error kind %q", text)
}

// Sentinel errors, one per kind, for errors.Is.
var (
	ErrNoFinderPatterns   = errors.New("no finder patterns")
	ErrGeometryMismatch   = errors.New("geometry mismatch")
	ErrFormatInfoCorrupt  = errors.New("format information corrupt")
	ErrVersionInfoCorrupt = errors.New("version information corrupt")
	ErrSamplingUnreliable = errors.New("sampling unreliable")
	ErrUncorrectableBlock = errors.New("uncorrectable block")
	ErrPayloadMalformed   = errors.New("payload malformed")
)

var kindErrors = map[Kind]error{
	NoFinderPatterns:   ErrNoFinderPatterns,
	GeometryMismatch:   ErrGeometryMismatch,
	FormatInfoCorrupt:  ErrFormatInfoCorrupt,
	VersionInfoCorrupt: ErrVersionInfoCorrupt,
	SamplingUnreliable: ErrSamplingUnreliable,
	UncorrectableBlock: ErrUncorrectableBlock,
	PayloadMalformed:   ErrPayloadMalformed,
}

// Stage names the pipeline stage an error came from.
type Stage string

const (
	StageFinder      Stage = "finder"
	StageGeometry    Stage = "geometry"
	StageSampler     Stage = "sampler"
	StageFormat      Stage = "format"
	StageUnmask      Stage = "unmask"
	StageCodewords   Stage = "codewords"
	StageReedSolomon Stage = "reedsolomon"
	StagePayload     Stage = "payload"
)

// Error is a candidate failure. It matches both its kind's sentinel and the
// underlying cause with errors.Is.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func NewError(kind Kind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s at %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap exposes the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := []error{kindErrors[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// MarshalJSON renders the error as kind, stage and message.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    Kind   `json:"kind"`
		Stage   Stage  `json:"stage"`
		Message string `json:"message"`
	}{e.Kind, e.Stage, e.Error()})
}

// UnmarshalJSON restores an error written by MarshalJSON. The cause comes
// back as a plain error carrying the original message.
func (e *Error) UnmarshalJSON(data []byte) error {
	var in struct {
		Kind    Kind   `json:"kind"`
		Stage   Stage  `json:"stage"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.Kind, e.Stage, e.Err = in.Kind, in.Stage, nil
	prefix := fmt.Sprintf("%s at %s: ", in.Kind, in.Stage)
	if cause, ok := strings.CutPrefix(in.Message, prefix); ok {
		e.Err = errors.New(cause)
	}
	return nil
}
