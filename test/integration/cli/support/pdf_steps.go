package support

import (
	"fmt"
	"path/filepath"

	"github.com/cucumber/godog"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// aPDFWithPages builds a PDF with one page per text, each page holding one
// symbol image.
func (testCtx *TestContext) aPDFWithPages(name string, texts ...string) error {
	images := make([]string, 0, len(texts))
	for i, text := range texts {
		img := filepath.Join(testCtx.TempDir, fmt.Sprintf(".%s-page%d.png", name, i+1))
		if err := testCtx.aQRImageEncoding(img, text); err != nil {
			return err
		}
		images = append(images, img)
	}
	if err := api.ImportImagesFile(images, testCtx.Path(name), pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to build %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) aPDFWithAQRCode(name, text string) error {
	return testCtx.aPDFWithPages(name, text)
}

func (testCtx *TestContext) aPDFWithTwoPages(name, first, second string) error {
	return testCtx.aPDFWithPages(name, first, second)
}

// RegisterPDFSteps registers the PDF fixture steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" with a QR code encoding "([^"]*)"$`, testCtx.aPDFWithAQRCode)
	sc.Step(`^a PDF "([^"]*)" with pages encoding "([^"]*)" and "([^"]*)"$`, testCtx.aPDFWithTwoPages)
}
