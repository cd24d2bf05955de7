// Package pdf extracts embedded images from PDF documents with pdfcpu so
// QR codes in scanned pages can be decoded.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/qrlens/internal/imageio"
)

// Page holds the images extracted from one page.
type Page struct {
	Number int
	Images []image.Image
}

// ExtractImages extracts all images from a PDF file using pdfcpu's extract
// functionality, grouped by page number.
func ExtractImages(filename string, pageRange string) (map[int][]image.Image, error) {
	return ExtractImagesWithCredentials(filename, pageRange, nil)
}

// ExtractImagesWithCredentials is ExtractImages for encrypted documents.
func ExtractImagesWithCredentials(filename, pageRange string, creds *Credentials) (map[int][]image.Image, error) {
	// Parse page range if provided
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "qrlens-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, pageNum := range pageNumbers {
			pageStrings[i] = strconv.Itoa(pageNum)
		}
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, creds.configuration()); err != nil {
		if IsPasswordError(err) {
			return nil, fmt.Errorf("%w: %w", ErrEncrypted, err)
		}
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	result, err := collectExtractedImages(tempDir, base)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	slog.Debug("Extracted PDF images", "file", filename, "pages", len(result))
	return result, nil
}

// ExtractPages reads a PDF from r and returns its pages in ascending order.
// The document is spooled to a temporary file first.
func ExtractPages(ctx context.Context, r io.Reader, pageRange string, creds *Credentials) ([]Page, error) {
	f, err := os.CreateTemp("", "qrlens-upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to spool PDF: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byPage, err := ExtractImagesWithCredentials(f.Name(), pageRange, creds)
	if err != nil {
		return nil, err
	}
	return SortedPages(byPage), nil
}

// SortedPages flattens a page map into ascending page order.
func SortedPages(byPage map[int][]image.Image) []Page {
	pages := make([]Page, 0, len(byPage))
	for n, imgs := range byPage {
		pages = append(pages, Page{Number: n, Images: imgs})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages
}

// collectExtractedImages walks dir and groups images by page number. pdfcpu
// names extracted files <base>_<page>_<resource>.<ext>.
func collectExtractedImages(dir, base string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	// ReadDir sorts by name, which keeps the per-page image order stable.
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pageNum, err := parsePageFromFilename(e.Name(), base)
		if err != nil {
			continue
		}
		img, _, err := imageio.Load(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Debug("Skipping unreadable PDF image", "file", e.Name(), "error", err)
			continue
		}
		result[pageNum] = append(result[pageNum], img)
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from a pdfcpu extracted
// filename.
func parsePageFromFilename(filename, base string) (int, error) {
	rest, ok := strings.CutPrefix(filename, base+"_")
	if !ok {
		return 0, errors.New("not an extracted image")
	}
	num, _, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, errors.New("invalid filename format")
	}
	pageNum, err := strconv.Atoi(num)
	if err != nil || pageNum < 0 {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil // Empty means all pages
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range
// token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
