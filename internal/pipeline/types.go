package pipeline

import "github.com/MeKo-Tech/qrlens/internal/decoder"

// NoCodeDetected is reported when no candidate in an image decoded.
const NoCodeDetected = "no code detected"

// ImageResult holds every candidate found in one image.
type ImageResult struct {
	Source     string           `json:"source,omitempty"`
	Page       int              `json:"page,omitempty"`
	Index      int              `json:"index"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Backend    string           `json:"backend"`
	Results    []decoder.Result `json:"results"`
	Processing struct {
		TotalNs int64 `json:"total_ns"`
	} `json:"processing"`
}

// Texts returns the decoded texts in candidate order.
func (r *ImageResult) Texts() []string {
	if r == nil {
		return nil
	}
	return decoder.Texts(r.Results)
}

// Decoded reports whether any candidate decoded.
func (r *ImageResult) Decoded() bool {
	return len(r.Texts()) > 0
}

// PDFPageResult holds the results for the images of one page.
type PDFPageResult struct {
	PageNumber int           `json:"page_number"`
	Images     []ImageResult `json:"images"`
}

// PDFResult holds the results for a whole document.
type PDFResult struct {
	Filename   string          `json:"filename,omitempty"`
	TotalPages int             `json:"total_pages"`
	Pages      []PDFPageResult `json:"pages"`
	Processing struct {
		ExtractionNs int64 `json:"extraction_ns"`
		TotalNs      int64 `json:"total_ns"`
	} `json:"processing"`
}

// Images flattens the document's image results in page order.
func (r *PDFResult) Images() []*ImageResult {
	var out []*ImageResult
	for i := range r.Pages {
		for j := range r.Pages[i].Images {
			out = append(out, &r.Pages[i].Images[j])
		}
	}
	return out
}
