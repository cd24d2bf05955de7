package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/MeKo-Tech/qrlens/internal/decoder"
	"github.com/MeKo-Tech/qrlens/internal/geometry"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
)

// gozxingBackend decodes through the ZXing port. It finds at most one
// symbol per image.
type gozxingBackend struct{}

func (b *gozxingBackend) Name() string { return BackendGozxing }

func (b *gozxingBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]decoder.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var origin image.Point
	if !opts.ROI.Empty() {
		if roi, at, ok := subImage(img, opts.ROI); ok {
			img, origin = roi, at
		}
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("gozxing bitmap: %w", err)
	}
	r, err := qrcode.NewQRCodeReader().Decode(bitmap, hints)
	if err != nil {
		slog.Debug("gozxing found no symbol", "error", err)
		return []decoder.Result{{Err: decoder.NewError(decoder.NoFinderPatterns, decoder.StageFinder, err)}}, nil
	}
	results := []decoder.Result{fromZXing(r)}
	shiftCorners(results, origin)
	return results, nil
}

// fromZXing converts a gozxing result. ZXing reports finder and alignment
// centres rather than symbol corners; they are returned in Corners as is.
func fromZXing(r *gozxing.Result) decoder.Result {
	res := decoder.Result{
		Text:       r.GetText(),
		Bytes:      []byte(r.GetText()),
		Confidence: -1, // gozxing does not provide calibrated confidence
	}
	for _, p := range r.GetResultPoints() {
		res.Corners = append(res.Corners, geometry.Point{X: p.GetX(), Y: p.GetY()})
	}
	if lvl, ok := r.GetResultMetadata()[gozxing.ResultMetadataType_ERROR_CORRECTION_LEVEL]; ok {
		if l, err := symbol.ParseECLevel(fmt.Sprint(lvl)); err == nil {
			res.ECLevel = l
		}
	}
	return res
}

// ErrNoSymbol is returned by First when no backend result decoded.
var ErrNoSymbol = errors.New("barcode: no symbol decoded")

// First returns the first decoded result, or ErrNoSymbol.
func First(results []decoder.Result) (decoder.Result, error) {
	for _, r := range results {
		if r.OK() {
			return r, nil
		}
	}
	return decoder.Result{}, ErrNoSymbol
}
