package pdf

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrlens/internal/decoder"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
	"github.com/MeKo-Tech/qrlens/internal/testutil"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name        string
		pageRange   string
		want        []int
		expectError bool
	}{
		{
			name:      "empty range returns nil",
			pageRange: "",
			want:      nil,
		},
		{
			name:      "single page",
			pageRange: "1",
			want:      []int{1},
		},
		{
			name:      "multiple single pages",
			pageRange: "1,3,5",
			want:      []int{1, 3, 5},
		},
		{
			name:      "simple range",
			pageRange: "1-5",
			want:      []int{1, 2, 3, 4, 5},
		},
		{
			name:      "mixed pages and ranges",
			pageRange: "1,3-5,7",
			want:      []int{1, 3, 4, 5, 7},
		},
		{
			name:      "range with spaces",
			pageRange: " 1 - 3 , 5 ",
			want:      []int{1, 2, 3, 5},
		},
		{
			name:        "invalid page number",
			pageRange:   "abc",
			expectError: true,
		},
		{
			name:        "invalid range format",
			pageRange:   "1-2-3",
			expectError: true,
		},
		{
			name:        "start greater than end",
			pageRange:   "5-1",
			expectError: true,
		},
		{
			name:        "invalid start page",
			pageRange:   "abc-5",
			expectError: true,
		},
		{
			name:        "invalid end page",
			pageRange:   "1-xyz",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageRange(tt.pageRange)

			if tt.expectError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParsePageFromFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		want        int
		expectError bool
	}{
		{name: "png resource", filename: "scan_1_Im0.png", want: 1},
		{name: "jpg resource", filename: "scan_10_Im2.jpg", want: 10},
		{name: "resource with underscore", filename: "scan_3_Im_1.png", want: 3},
		{name: "other document", filename: "other_1_Im0.png", expectError: true},
		{name: "no resource", filename: "scan_4.png", expectError: true},
		{name: "invalid page number", filename: "scan_abc_Im0.png", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageFromFilename(tt.filename, "scan")
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePageFromFilename_BaseWithUnderscores(t *testing.T) {
	page, err := parsePageFromFilename("my_scan_2024_7_Im3.png", "my_scan_2024")
	require.NoError(t, err)
	assert.Equal(t, 7, page)
}

func TestExtractImages_ErrorCases(t *testing.T) {
	t.Run("non-existent file", func(t *testing.T) {
		_, err := ExtractImages("/non/existent/file.pdf", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to extract images from PDF")
	})

	t.Run("invalid page range", func(t *testing.T) {
		_, err := ExtractImages("whatever.pdf", "3-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid page range")
	})
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path) //nolint:gosec // controlled test path
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	if filepath.Ext(path) == ".jpg" {
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 80}))
		return
	}
	require.NoError(t, png.Encode(f, img))
}

func TestCollectExtractedImages_MixedFormatsAndPages(t *testing.T) {
	tempDir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 24, 22))
	for y := range 22 {
		for x := range 24 {
			img.Set(x, y, color.RGBA{uint8(10 * x), uint8(10 * y), 0, 255})
		}
	}

	writeImg := func(name string) { writeImage(t, filepath.Join(tempDir, name), img) }
	writeImg("doc_1_Im0.png")
	writeImg("doc_1_Im1.jpg")
	writeImg("doc_2_Im0.png")
	writeImg("unrelated.png")
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("ignore"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "doc_3_Im0.png"), []byte("corrupt"), 0o600))

	result, err := collectExtractedImages(tempDir, "doc")
	require.NoError(t, err)

	require.Len(t, result, 2)
	require.Len(t, result[1], 2)
	require.Len(t, result[2], 1)
	for _, imgs := range result {
		for _, img := range imgs {
			assert.Equal(t, 24, img.Bounds().Dx())
			assert.Equal(t, 22, img.Bounds().Dy())
		}
	}
}

func TestSortedPages(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	pages := SortedPages(map[int][]image.Image{3: {img}, 1: {img, img}, 2: nil})
	require.Len(t, pages, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{pages[0].Number, pages[1].Number, pages[2].Number})
	assert.Len(t, pages[0].Images, 2)
}

func TestIsPasswordError(t *testing.T) {
	assert.False(t, IsPasswordError(nil))
	assert.True(t, IsPasswordError(ErrEncrypted))
	assert.False(t, IsPasswordError(os.ErrPermission))
	assert.False(t, IsPasswordError(assert.AnError))
	assert.True(t, IsPasswordError(&os.PathError{Op: "open", Path: "x", Err: ErrEncrypted}))
}

func TestCredentialsConfiguration(t *testing.T) {
	var none *Credentials
	assert.Empty(t, none.configuration().UserPW)

	conf := (&Credentials{UserPassword: "u", OwnerPassword: "o"}).configuration()
	assert.Equal(t, "u", conf.UserPW)
	assert.Equal(t, "o", conf.OwnerPW)
}

// A PDF built from a rendered symbol yields an image that decodes back.
func TestExtractImages_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	img, err := testutil.Render(testutil.Symbol{Text: "from a pdf page", Version: 3, Level: symbol.LevelM, Mask: 2}, 6)
	require.NoError(t, err)
	pngPath := filepath.Join(dir, "qr.png")
	writeImage(t, pngPath, img)

	pdfPath := filepath.Join(dir, "scan.pdf")
	if err := api.ImportImagesFile([]string{pngPath}, pdfPath, pdfcpu.DefaultImportConfig(), nil); err != nil {
		t.Skipf("pdfcpu could not build the fixture: %v", err)
	}

	byPage, err := ExtractImages(pdfPath, "")
	require.NoError(t, err)
	pages := SortedPages(byPage)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	require.Len(t, pages[0].Images, 1)

	assert.Equal(t, []string{"from a pdf page"}, decoder.Texts(decoder.Decode(pages[0].Images[0])))
}

func TestParsePageRange_EdgeCases(t *testing.T) {
	t.Run("single character ranges", func(t *testing.T) {
		pages, err := parsePageRange("1-1")
		require.NoError(t, err)
		assert.Equal(t, []int{1}, pages)
	})

	t.Run("large ranges", func(t *testing.T) {
		pages, err := parsePageRange("1-1000")
		require.NoError(t, err)
		assert.Len(t, pages, 1000)
		assert.Equal(t, 1, pages[0])
		assert.Equal(t, 1000, pages[999])
	})

	t.Run("zero page number", func(t *testing.T) {
		pages, err := parsePageRange("0")
		require.NoError(t, err)
		assert.Equal(t, []int{0}, pages)
	})

	t.Run("negative page number", func(t *testing.T) {
		_, err := parsePageRange("-1")
		require.Error(t, err)
	})
}

