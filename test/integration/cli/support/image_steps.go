package support

import (
	"fmt"
	"image"
	"math/rand"
	"os"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrlens/internal/symbol"
	"github.com/MeKo-Tech/qrlens/internal/testutil"
)

const moduleScale = 4

// smallestSymbol picks the smallest version at level M that holds text.
func smallestSymbol(text string) (testutil.Symbol, error) {
	for v := 1; v <= 40; v++ {
		if testutil.ByteCapacity(v, symbol.LevelM) >= len(text) {
			return testutil.Symbol{Text: text, Version: v, Level: symbol.LevelM, Mask: v % 8}, nil
		}
	}
	return testutil.Symbol{}, fmt.Errorf("text of %d bytes does not fit any version", len(text))
}

func renderText(text string) (image.Image, error) {
	s, err := smallestSymbol(text)
	if err != nil {
		return nil, err
	}
	return testutil.Render(s, moduleScale)
}

func (testCtx *TestContext) save(name string, img image.Image) error {
	return testutil.WritePNG(img, testCtx.Path(name))
}

func (testCtx *TestContext) aQRImageEncoding(name, text string) error {
	img, err := renderText(text)
	if err != nil {
		return err
	}
	return testCtx.save(name, img)
}

func (testCtx *TestContext) aRotatedQRImageEncoding(name, text string, degrees int) error {
	img, err := renderText(text)
	if err != nil {
		return err
	}
	return testCtx.save(name, testutil.Rotate(img, degrees))
}

func (testCtx *TestContext) aMirroredQRImageEncoding(name, text string) error {
	img, err := renderText(text)
	if err != nil {
		return err
	}
	return testCtx.save(name, testutil.Mirror(img))
}

// anImageWithTwoCodes places two symbols side by side.
func (testCtx *TestContext) anImageWithTwoCodes(name, first, second string) error {
	left, err := renderText(first)
	if err != nil {
		return err
	}
	right, err := renderText(second)
	if err != nil {
		return err
	}
	lb, rb := left.Bounds(), right.Bounds()
	gap := 20
	width := lb.Dx() + rb.Dx() + 3*gap
	height := max(lb.Dy(), rb.Dy()) + 2*gap
	canvas := testutil.Compose(width, height,
		testutil.Placement{Image: left, At: image.Pt(gap, gap)},
		testutil.Placement{Image: right, At: image.Pt(2*gap+lb.Dx(), gap)},
	)
	return testCtx.save(name, canvas)
}

// aDamagedQRImage corrupts count codewords in every block of a level H
// symbol.
func (testCtx *TestContext) aDamagedQRImage(name, text string, count int) error {
	g, err := testutil.Encode(testutil.Symbol{Text: text, Version: 2, Level: symbol.LevelH, Mask: 5})
	if err != nil {
		return err
	}
	if err := testutil.DamageCodewords(g, count, rand.New(rand.NewSource(7))); err != nil { //nolint:gosec // deterministic fixture
		return err
	}
	return testCtx.save(name, testutil.RenderGrid(g, moduleScale, 4))
}

func (testCtx *TestContext) aBlankImage(name string) error {
	img := image.NewGray(image.Rect(0, 0, 160, 160))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return testCtx.save(name, img)
}

func (testCtx *TestContext) aTextFile(name string) error {
	return os.WriteFile(testCtx.Path(name), []byte("not an image\n"), 0o600)
}

// RegisterImageSteps registers the fixture image steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a QR image "([^"]*)" encoding "([^"]*)"$`, testCtx.aQRImageEncoding)
	sc.Step(`^a QR image "([^"]*)" encoding "([^"]*)" rotated by (\d+) degrees$`, testCtx.aRotatedQRImageEncoding)
	sc.Step(`^a mirrored QR image "([^"]*)" encoding "([^"]*)"$`, testCtx.aMirroredQRImageEncoding)
	sc.Step(`^an image "([^"]*)" with QR codes "([^"]*)" and "([^"]*)"$`, testCtx.anImageWithTwoCodes)
	sc.Step(`^a damaged QR image "([^"]*)" encoding "([^"]*)" with (\d+) corrupted codewords?$`, testCtx.aDamagedQRImage)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
}
