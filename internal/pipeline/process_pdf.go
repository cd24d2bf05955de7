package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/qrlens/internal/pdf"
)

// ProcessPDF extracts the images of filename and decodes each of them.
func (p *Pipeline) ProcessPDF(ctx context.Context, filename, pageRange string, creds *pdf.Credentials) (*PDFResult, error) {
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}
	start := time.Now()
	byPage, err := pdf.ExtractImagesWithCredentials(filename, pageRange, creds)
	if err != nil {
		return nil, err
	}
	extraction := time.Since(start)

	res, err := p.ProcessPages(ctx, pdf.SortedPages(byPage))
	if err != nil {
		return nil, err
	}
	res.Filename = filename
	res.Processing.ExtractionNs = extraction.Nanoseconds()
	res.Processing.TotalNs = time.Since(start).Nanoseconds()
	return res, nil
}

// ProcessPages decodes already extracted pages in order.
func (p *Pipeline) ProcessPages(ctx context.Context, pages []pdf.Page) (*PDFResult, error) {
	start := time.Now()
	res := &PDFResult{TotalPages: len(pages), Pages: make([]PDFPageResult, 0, len(pages))}
	for _, page := range pages {
		pr := PDFPageResult{PageNumber: page.Number, Images: make([]ImageResult, 0, len(page.Images))}
		for i, img := range page.Images {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ir, err := p.ProcessImage(ctx, img)
			if err != nil {
				return nil, fmt.Errorf("page %d image %d: %w", page.Number, i, err)
			}
			ir.Page = page.Number
			ir.Index = i
			pr.Images = append(pr.Images, *ir)
		}
		res.Pages = append(res.Pages, pr)
	}
	res.Processing.TotalNs = time.Since(start).Nanoseconds()
	slog.Debug("PDF decoded", "pages", res.TotalPages, "images", len(res.Images()))
	return res, nil
}
