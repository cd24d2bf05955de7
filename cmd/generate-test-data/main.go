package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	skip2 "github.com/skip2/go-qrcode"

	"github.com/MeKo-Tech/qrlens/internal/symbol"
	"github.com/MeKo-Tech/qrlens/internal/testutil"
)

// Fixture records what a generated file must decode to.
type Fixture struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	InputFile   string   `json:"input_file"`
	Texts       []string `json:"texts"`
	Mirrored    bool     `json:"mirrored,omitempty"`
	Corrected   int      `json:"corrected,omitempty"`
}

const scale = 4

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateImages = flag.Bool("images", true, "Generate QR test images and fixtures")
		generatePDFs   = flag.Bool("pdfs", true, "Generate PDF test documents")
		outDir         = flag.String("out", "", "Output directory (default <project root>/testdata)")
		verbose        = flag.Bool("v", false, "Verbose output")
		help           = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate QR test data for qrlens testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Generate all test data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pdfs=false     # Generate only images\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/qr    # Write somewhere else\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	dir := *outDir
	if dir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, "testdata")
	}
	if *verbose {
		slog.Info("Options", "images", *generateImages, "pdfs", *generatePDFs, "out", dir)
	}

	if *generateImages {
		slog.Info("Generating QR test images...")
		fixtures, err := generateTestImages(filepath.Join(dir, "images"))
		if err != nil {
			slog.Error("Failed to generate test images", "error", err)
			os.Exit(1)
		}
		if err := saveFixtures(fixtures, filepath.Join(dir, "fixtures")); err != nil {
			slog.Error("Failed to save fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated test images", "count", len(fixtures))
	}

	if *generatePDFs {
		slog.Info("Generating PDF test documents...")
		if err := generateTestPDFs(filepath.Join(dir, "documents")); err != nil {
			slog.Error("Failed to generate PDFs", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated PDF test documents")
	}

	slog.Info("Test data generation completed successfully!")
}

// generateTestImages writes one image per fixture and returns the fixtures.
func generateTestImages(dir string) ([]Fixture, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}
	var fixtures []Fixture
	add := func(name, description string, img image.Image, f Fixture) error {
		file := name + ".png"
		if err := testutil.WritePNG(img, filepath.Join(dir, file)); err != nil {
			return err
		}
		f.Name, f.Description, f.InputFile = name, description, filepath.Join("images", file)
		fixtures = append(fixtures, f)
		return nil
	}

	// One symbol per level, growing versions.
	levels := []symbol.ECLevel{symbol.LevelL, symbol.LevelM, symbol.LevelQ, symbol.LevelH}
	for i, level := range levels {
		version := 1 + 3*i
		text := fmt.Sprintf("qrlens v%d-%s", version, level)
		img, err := testutil.Render(testutil.Symbol{Text: text, Version: version, Level: level, Mask: i * 2}, scale)
		if err != nil {
			return nil, fmt.Errorf("failed to render %q: %w", text, err)
		}
		name := fmt.Sprintf("simple_v%d_%s", version, level)
		description := fmt.Sprintf("Single symbol, version %d level %s", version, level)
		if err := add(name, description, img, Fixture{Texts: []string{text}}); err != nil {
			return nil, err
		}
	}

	base, err := testutil.Render(testutil.Symbol{Text: "rotated symbol", Version: 3, Level: symbol.LevelM, Mask: 4}, scale)
	if err != nil {
		return nil, err
	}
	for _, deg := range []int{90, 180, 270} {
		if err := add(fmt.Sprintf("rotated_%d", deg), fmt.Sprintf("Symbol rotated by %d degrees", deg),
			testutil.Rotate(base, deg), Fixture{Texts: []string{"rotated symbol"}}); err != nil {
			return nil, err
		}
	}

	if err := add("mirrored", "Horizontally mirrored symbol", testutil.Mirror(base),
		Fixture{Texts: []string{"rotated symbol"}, Mirrored: true}); err != nil {
		return nil, err
	}

	left, err := testutil.Render(testutil.Symbol{Text: "left", Version: 2, Level: symbol.LevelQ, Mask: 1}, scale)
	if err != nil {
		return nil, err
	}
	right, err := testutil.Render(testutil.Symbol{Text: "right", Version: 2, Level: symbol.LevelQ, Mask: 6}, scale)
	if err != nil {
		return nil, err
	}
	lw := left.Bounds().Dx()
	pair := testutil.Compose(2*lw+60, lw+40,
		testutil.Placement{Image: left, At: image.Pt(20, 20)},
		testutil.Placement{Image: right, At: image.Pt(lw+40, 20)},
	)
	if err := add("multiple", "Two symbols side by side", pair, Fixture{Texts: []string{"left", "right"}}); err != nil {
		return nil, err
	}

	const damage = 5
	grid, err := testutil.Encode(testutil.Symbol{Text: "damaged but readable", Version: 4, Level: symbol.LevelH, Mask: 3})
	if err != nil {
		return nil, err
	}
	if err := testutil.DamageCodewords(grid, damage, rand.New(rand.NewSource(1))); err != nil { //nolint:gosec // reproducible fixtures
		return nil, err
	}
	layout, err := symbol.BlockLayout(grid.Version, grid.Level)
	if err != nil {
		return nil, err
	}
	if err := add("damaged", fmt.Sprintf("%d corrupted codewords per block", damage), testutil.RenderGrid(grid, scale, 4),
		Fixture{Texts: []string{"damaged but readable"}, Corrected: damage * len(layout)}); err != nil {
		return nil, err
	}

	// An independent encoder keeps the decoder honest about the standard.
	q, err := skip2.New("https://example.org/qrlens", skip2.Medium)
	if err != nil {
		return nil, fmt.Errorf("skip2 encode: %w", err)
	}
	if err := add("skip2_url", "URL encoded by skip2/go-qrcode", q.Image(-scale),
		Fixture{Texts: []string{"https://example.org/qrlens"}}); err != nil {
		return nil, err
	}

	return fixtures, nil
}

// generateTestPDFs builds a two page document from rendered symbols.
func generateTestPDFs(dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create documents directory: %w", err)
	}
	tmp, err := os.MkdirTemp("", "qrlens-pdf-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	var pages []string
	for i, text := range []string{"pdf page one", "pdf page two"} {
		img, err := testutil.Render(testutil.Symbol{Text: text, Version: 2, Level: symbol.LevelM, Mask: i}, 6)
		if err != nil {
			return err
		}
		path := filepath.Join(tmp, fmt.Sprintf("page%d.png", i+1))
		if err := testutil.WritePNG(img, path); err != nil {
			return err
		}
		pages = append(pages, path)
	}
	out := filepath.Join(dir, "two_pages.pdf")
	if err := api.ImportImagesFile(pages, out, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to build %s: %w", out, err)
	}
	return nil
}

func saveFixtures(fixtures []Fixture, dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}
	for _, f := range fixtures {
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name+".json"), data, 0o600); err != nil {
			return fmt.Errorf("failed to save fixture '%s': %w", f.Name, err)
		}
	}
	return nil
}
