// Package decoder runs the full locate-and-decode pipeline over an image:
// binarize, find and group finder patterns, resolve each symbol's geometry,
// sample its modules, then read format, unmask, extract codewords, correct
// errors and decode the payload. Every candidate symbol yields one Result.
package decoder

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/qrlens/internal/binarize"
	"github.com/MeKo-Tech/qrlens/internal/bitmatrix"
	"github.com/MeKo-Tech/qrlens/internal/finder"
	"github.com/MeKo-Tech/qrlens/internal/format"
	"github.com/MeKo-Tech/qrlens/internal/geometry"
	"github.com/MeKo-Tech/qrlens/internal/payload"
	"github.com/MeKo-Tech/qrlens/internal/reedsolomon"
	"github.com/MeKo-Tech/qrlens/internal/sampler"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
)

// Config holds the per-stage settings.
type Config struct {
	Binarize binarize.Config
	Finder   finder.Config
	Geometry geometry.Config
	// MaxConcurrency bounds how many candidates decode at once; 0 uses
	// GOMAXPROCS.
	MaxConcurrency int
	// TryMirrored retries a failed candidate with its grid transposed.
	TryMirrored bool
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		Binarize:       binarize.DefaultConfig(),
		Finder:         finder.DefaultConfig(),
		Geometry:       geometry.DefaultConfig(),
		MaxConcurrency: runtime.GOMAXPROCS(0),
		TryMirrored:    true,
	}
}

// Result is the outcome for one candidate symbol. Err is nil on success.
type Result struct {
	Text             string                    `json:"text,omitempty"`
	Bytes            []byte                    `json:"bytes,omitempty"`
	Version          int                       `json:"version,omitempty"`
	ECLevel          symbol.ECLevel            `json:"-"`
	Mask             int                       `json:"mask"`
	Corners          []geometry.Point          `json:"corners,omitempty"`
	Segments         []payload.Segment         `json:"segments,omitempty"`
	StructuredAppend *payload.StructuredAppend `json:"structured_append,omitempty"`
	FNC1             bool                      `json:"fnc1,omitempty"`
	// Mirrored is set when the symbol only decoded with its grid transposed.
	Mirrored bool `json:"mirrored,omitempty"`
	// Corrected is the number of codewords Reed-Solomon repaired.
	Corrected  int     `json:"corrected"`
	Warnings   []Kind  `json:"warnings,omitempty"`
	Confidence float64 `json:"confidence"`
	Err        *Error  `json:"error,omitempty"`
}

// OK reports whether the candidate decoded.
func (r Result) OK() bool { return r.Err == nil }

// MarshalJSON adds the EC level by name for decoded results.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	out := struct {
		alias
		ECLevel string `json:"ec_level,omitempty"`
	}{alias: alias(r)}
	if r.Err == nil {
		out.ECLevel = r.ECLevel.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a result written by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	type alias Result
	in := struct {
		*alias
		ECLevel string `json:"ec_level,omitempty"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.ECLevel == "" {
		return nil
	}
	level, err := symbol.ParseECLevel(in.ECLevel)
	if err != nil {
		return err
	}
	r.ECLevel = level
	return nil
}

// Texts returns the text of every decoded result in order.
func Texts(results []Result) []string {
	var out []string
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Text)
		}
	}
	return out
}

// Decoder decodes every symbol in an image. It holds no per-call state and
// is safe for concurrent use.
type Decoder struct {
	cfg Config
}

// New returns a decoder with the given settings.
func New(cfg Config) *Decoder {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = runtime.GOMAXPROCS(0)
	}
	return &Decoder{cfg: cfg}
}

// Decode runs a default decoder over img.
func Decode(img image.Image) []Result {
	return New(DefaultConfig()).Decode(context.Background(), img)
}

// Decode returns one result per candidate symbol, ordered by the top-left
// finder position (row, then column). An image without any finder triple
// yields a single NoFinderPatterns result. Cancelling ctx stops new
// candidates from starting; the results of started ones are kept.
func (d *Decoder) Decode(ctx context.Context, img image.Image) []Result {
	return d.DecodeMatrix(ctx, binarize.Binarize(img, d.cfg.Binarize))
}

// DecodeMatrix is Decode on an already binarized image.
func (d *Decoder) DecodeMatrix(ctx context.Context, bm *bitmatrix.BitMatrix) []Result {
	triples := finder.Group(finder.Find(bm, d.cfg.Finder), d.cfg.Finder)
	if len(triples) == 0 {
		return []Result{{Err: NewError(NoFinderPatterns, StageFinder, nil)}}
	}
	sortTriples(triples)

	results := make([]Result, len(triples))
	started := 0
	var g errgroup.Group
	g.SetLimit(d.cfg.MaxConcurrency)
	for i, t := range triples {
		if ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			results[i] = d.decodeCandidate(bm, t)
			return nil
		})
	}
	_ = g.Wait()
	return dropShadowed(results[:started], triples)
}

// dropShadowed removes failed candidates with a finder centre inside a
// decoded symbol. Such candidates are built from data-area patterns that
// happen to look like finders.
func dropShadowed(results []Result, triples []finder.Triple) []Result {
	var decoded [][]geometry.Point
	for _, r := range results {
		if r.OK() && len(r.Corners) == 4 {
			decoded = append(decoded, r.Corners)
		}
	}
	if len(decoded) == 0 {
		return results
	}
	out := results[:0]
	for i, r := range results {
		if r.OK() || !shadowed(triples[i], decoded) {
			out = append(out, r)
		}
	}
	return out
}

func shadowed(t finder.Triple, quads [][]geometry.Point) bool {
	for _, p := range t {
		for _, q := range quads {
			if insideQuad(geometry.Point{X: p.X, Y: p.Y}, q) {
				return true
			}
		}
	}
	return false
}

// insideQuad reports whether p lies within the convex quadrilateral q,
// whatever its winding.
func insideQuad(p geometry.Point, q []geometry.Point) bool {
	var pos, neg bool
	for i := range q {
		a, b := q[i], q[(i+1)%len(q)]
		c := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
		if c > 0 {
			pos = true
		} else if c < 0 {
			neg = true
		}
	}
	return !(pos && neg)
}

// sortTriples orders candidates by their top-left centre.
func sortTriples(triples []finder.Triple) {
	sort.SliceStable(triples, func(i, j int) bool {
		a, _, _ := geometry.Order(triples[i])
		b, _, _ := geometry.Order(triples[j])
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}

func (d *Decoder) decodeCandidate(bm *bitmatrix.BitMatrix, t finder.Triple) Result {
	geom, err := geometry.Resolve(bm, t, d.cfg.Geometry)
	if err != nil {
		return failed(Result{}, NewError(GeometryMismatch, StageGeometry, err))
	}
	grid, rep := sampler.Sample(bm, geom)

	if geom.Version >= 7 {
		v, err := format.ReadVersion(grid)
		if err != nil {
			return failed(candidate(geom, rep), NewError(VersionInfoCorrupt, StageFormat, err))
		}
		if v != geom.Version {
			slog.Debug("Version information overrides measured size",
				"measured", geom.Version, "decoded", v)
			geom, err = geometry.ResolveDimension(bm, t, symbol.DimensionForVersion(v), d.cfg.Geometry)
			if err != nil {
				return failed(candidate(geom, rep), NewError(GeometryMismatch, StageGeometry, err))
			}
			grid, rep = sampler.Sample(bm, geom)
		}
	}

	res := DecodeGrid(grid)
	if !res.OK() && d.cfg.TryMirrored {
		if mirrored := DecodeGrid(grid.Transposed()); mirrored.OK() {
			res = mirrored
			res.Mirrored = true
		}
	}

	base := candidate(geom, rep)
	res.Corners = base.Corners
	res.Confidence = base.Confidence
	res.Warnings = base.Warnings
	if !res.OK() {
		return failed(res, res.Err)
	}
	return res
}

// candidate carries the geometry and sampling facts shared by every outcome.
func candidate(geom *geometry.Geometry, rep sampler.Report) Result {
	var r Result
	if geom != nil {
		c := geom.Corners()
		r.Corners = c[:]
		r.Version = geom.Version
	}
	r.Confidence = rep.Confidence
	if rep.Unreliable {
		r.Warnings = append(r.Warnings, SamplingUnreliable)
	}
	return r
}

func failed(r Result, err *Error) Result {
	slog.Debug("Candidate failed", "kind", err.Kind, "stage", err.Stage, "error", err.Err)
	r.Err = err
	return r
}

// DecodeGrid decodes a sampled, still masked module grid: format
// information, unmasking, codeword extraction, error correction and payload.
func DecodeGrid(g *symbol.Grid) Result {
	res := Result{Version: g.Version}
	info, err := format.ReadFormat(g)
	if err != nil {
		res.Err = NewError(FormatInfoCorrupt, StageFormat, err)
		return res
	}
	res.ECLevel, res.Mask = info.Level, info.Mask

	work := g.Clone()
	work.Level, work.Mask = info.Level, info.Mask
	if err := symbol.Unmask(work, info.Mask); err != nil {
		res.Err = NewError(FormatInfoCorrupt, StageUnmask, err)
		return res
	}

	raw, err := symbol.ReadCodewords(work)
	if err != nil {
		res.Err = NewError(PayloadMalformed, StageCodewords, err)
		return res
	}
	blocks, err := symbol.SplitBlocks(raw, work.Version, info.Level)
	if err != nil {
		res.Err = NewError(PayloadMalformed, StageCodewords, err)
		return res
	}

	var data []byte
	for i, b := range blocks {
		n, err := reedsolomon.Decode(b.Codewords, b.ECCodewords())
		if err != nil {
			res.Err = NewError(UncorrectableBlock, StageReedSolomon, fmt.Errorf("block %d of %d: %w", i+1, len(blocks), err))
			return res
		}
		res.Corrected += n
		data = append(data, b.Codewords[:b.DataCodewords]...)
	}

	p, err := payload.Decode(data, work.Version, info.Level)
	if err != nil {
		res.Err = NewError(PayloadMalformed, StagePayload, err)
		return res
	}
	res.Text = p.Text
	res.Bytes = p.Bytes
	res.Segments = p.Segments
	res.StructuredAppend = p.StructuredAppend
	res.FNC1 = p.FNC1
	return res
}
