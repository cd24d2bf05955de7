package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrlens/internal/imageio"
	"github.com/MeKo-Tech/qrlens/internal/pdf"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

const (
	formatJSON = "json"
	formatText = "text"
	formatCSV  = "csv"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// DecodeResponse carries every candidate of one image. Text is the first
// decoded text, or the no-code message.
type DecodeResponse struct {
	Decoded bool                  `json:"decoded"`
	Text    string                `json:"text"`
	Texts   []string              `json:"texts"`
	Result  *pipeline.ImageResult `json:"result"`
}

// PDFDecodeResponse carries the results for every image of a document.
type PDFDecodeResponse struct {
	Decoded bool                `json:"decoded"`
	Texts   []string            `json:"texts"`
	Result  *pipeline.PDFResult `json:"result"`
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeHandler decodes a multipart "image" upload or a raw image body.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	img, ok := s.readImage(w, r, limit)
	if !ok {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImage(ctx, img)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeProcessingError(w, err)
		return
	}
	observeDecode("image", time.Since(start), []*pipeline.ImageResult{res})

	format := requestFormat(r)
	switch format {
	case formatText:
		s.writeText(w, pipeline.ToPlainText([]*pipeline.ImageResult{res}, r.URL.Query().Has("all")))
	case formatCSV:
		out, err := pipeline.ToCSV([]*pipeline.ImageResult{res})
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), "internal_error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, out)
	default:
		s.writeJSON(w, http.StatusOK, newDecodeResponse(res))
	}
}

func newDecodeResponse(res *pipeline.ImageResult) DecodeResponse {
	texts := res.Texts()
	out := DecodeResponse{
		Decoded: len(texts) > 0,
		Text:    pipeline.ToPlainText([]*pipeline.ImageResult{res}, false),
		Texts:   texts,
		Result:  res,
	}
	if out.Texts == nil {
		out.Texts = []string{}
	}
	return out
}

// readImage pulls the image out of the request, writing the error response
// itself on failure.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request, limit int64) (image.Image, bool) {
	body := io.Reader(r.Body)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(limit); err != nil {
			s.writeFormError(w, err)
			return nil, false
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			s.writeErrorResponse(w, "No image file provided", "invalid_request", http.StatusBadRequest)
			return nil, false
		}
		defer func() { _ = file.Close() }()
		uploadSizeBytes.Observe(float64(header.Size))
		body = file
	} else if r.ContentLength > 0 {
		uploadSizeBytes.Observe(float64(r.ContentLength))
	}

	img, meta, err := imageio.Read(body, limit)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", "too_large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		s.writeErrorResponse(w, "Invalid image format", "invalid_image", http.StatusBadRequest)
		return nil, false
	}
	if err := imageio.Validate(img, imageio.DefaultConstraints()); err != nil {
		s.writeErrorResponse(w, err.Error(), "invalid_image", http.StatusBadRequest)
		return nil, false
	}
	slog.Debug("Decoding upload", "format", meta.Format, "width", meta.Width, "height", meta.Height)
	return img, true
}

// decodePDFHandler scans every image of a multipart "pdf" upload.
func (s *Server) decodePDFHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeFormError(w, err)
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, "No PDF file provided", "invalid_request", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	var creds *pdf.Credentials
	if pw := r.FormValue("password"); pw != "" {
		creds = &pdf.Credentials{UserPassword: pw, OwnerPassword: pw}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	pages, err := pdf.ExtractPages(ctx, file, r.FormValue("pages"), creds)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		if errors.Is(err, pdf.ErrEncrypted) {
			s.writeErrorResponse(w, err.Error(), "encrypted", http.StatusUnauthorized)
			return
		}
		s.writeErrorResponse(w, fmt.Sprintf("PDF extraction failed: %v", err), "pdf_error", http.StatusUnprocessableEntity)
		return
	}
	extraction := time.Since(start)

	res, err := s.pipeline.ProcessPages(ctx, pages)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeProcessingError(w, err)
		return
	}
	res.Filename = header.Filename
	res.Processing.ExtractionNs = extraction.Nanoseconds()
	res.Processing.TotalNs = time.Since(start).Nanoseconds()
	images := res.Images()
	observeDecode("pdf", time.Since(start), images)

	if requestFormat(r) == formatText {
		s.writeText(w, pipeline.ToPlainText(images, true))
		return
	}
	texts := []string{}
	for _, img := range images {
		texts = append(texts, img.Texts()...)
	}
	s.writeJSON(w, http.StatusOK, PDFDecodeResponse{Decoded: len(texts) > 0, Texts: texts, Result: res})
}

func observeDecode(kind string, d time.Duration, results []*pipeline.ImageResult) {
	decoded := 0
	for _, r := range results {
		for _, c := range r.Results {
			if c.OK() {
				decoded++
				continue
			}
			candidateFailures.WithLabelValues(c.Err.Kind.String()).Inc()
			slog.Debug("Candidate failed", "source", kind, "kind", c.Err.Kind, "stage", c.Err.Stage, "error", c.Err)
		}
	}
	decodeRequestsTotal.WithLabelValues(kind, "success").Inc()
	decodeDuration.WithLabelValues(kind).Observe(d.Seconds())
	symbolsDecoded.WithLabelValues(kind).Observe(float64(decoded))
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// requestFormat reads the output format from the query or form.
func requestFormat(r *http.Request) string {
	format := r.URL.Query().Get("format")
	if format == "" && r.MultipartForm != nil {
		format = r.FormValue("format")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return formatJSON
	}
	return format
}

func (s *Server) writeFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeErrorResponse(w, "File too large", "too_large", http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, "Failed to parse form data", "invalid_request", http.StatusBadRequest)
}

func (s *Server) writeProcessingError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		s.writeErrorResponse(w, "Decoding timed out", "timeout", http.StatusGatewayTimeout)
		return
	}
	s.writeErrorResponse(w, fmt.Sprintf("Decoding failed: %v", err), "processing_error", http.StatusInternalServerError)
}

func (s *Server) writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text+"\n")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, errorType string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message, ErrorType: errorType})
}
