package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrlens/internal/barcode"
	"github.com/MeKo-Tech/qrlens/internal/decoder"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
	"github.com/MeKo-Tech/qrlens/internal/symbol"
	"github.com/MeKo-Tech/qrlens/internal/testutil"
)

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	backend, err := barcode.NewBackend(barcode.BackendNative, decoder.DefaultConfig())
	require.NoError(t, err)
	p, err := pipeline.New(backend, barcode.Options{})
	require.NoError(t, err)
	return p
}

func writeSymbol(t *testing.T, path, text string) {
	t.Helper()
	img, err := testutil.Render(testutil.Symbol{Text: text, Version: 2, Level: symbol.LevelM, Mask: 3}, 4)
	require.NoError(t, err)
	testutil.SaveImage(t, img, path)
}

// batchDir holds two symbols, a corrupt PNG and a text file.
func batchDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeSymbol(t, filepath.Join(dir, "first.png"), "batch one")
	writeSymbol(t, filepath.Join(dir, "nested", "second.png"), "batch two")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o600))
	return dir
}

func TestProcess(t *testing.T) {
	dir := batchDir(t)
	var progress bytes.Buffer

	res, err := Process(context.Background(), newPipeline(t), []string{dir}, &Config{
		Workers:      2,
		Recursive:    true,
		ShowProgress: true,
		Progress:     &progress,
	})
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, []string{filepath.Join(dir, "first.png"), filepath.Join(dir, "nested", "second.png")}, res.ImagePaths)
	assert.Equal(t, []string{"batch one"}, res.Results[0].Texts())
	assert.Equal(t, []string{"batch two"}, res.Results[1].Texts())
	assert.Equal(t, res.ImagePaths[1], res.Results[1].Source)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, filepath.Join(dir, "broken.png"), res.Skipped[0].Path)
	assert.Contains(t, progress.String(), "Decoding: ")
	assert.Empty(t, res.Overlays)
}

func TestProcess_QuietSuppressesProgress(t *testing.T) {
	dir := t.TempDir()
	writeSymbol(t, filepath.Join(dir, "only.png"), "quiet")
	var progress bytes.Buffer

	res, err := Process(context.Background(), newPipeline(t), []string{dir}, &Config{
		ShowProgress: true,
		Quiet:        true,
		Progress:     &progress,
	})
	require.NoError(t, err)
	assert.Empty(t, progress.String())
	assert.Equal(t, 1, res.WorkerCount)
}

func TestProcess_NoImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o600))

	_, err := Process(context.Background(), newPipeline(t), []string{dir}, nil)
	require.ErrorIs(t, err, ErrNoImages)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0o600))
	_, err = Process(context.Background(), newPipeline(t), []string{dir}, nil)
	require.ErrorIs(t, err, ErrNoImages, "every file failed to load")
}

func TestProcess_Overlays(t *testing.T) {
	dir := batchDir(t)
	overlays := filepath.Join(t.TempDir(), "overlays")

	res, err := Process(context.Background(), newPipeline(t), []string{dir}, &Config{
		Recursive:  true,
		OverlayDir: overlays,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(overlays, "first_overlay.png"),
		filepath.Join(overlays, "second_overlay.png"),
	}, res.Overlays)
	for _, path := range res.Overlays {
		assert.True(t, testutil.FileExists(path), path)
	}
}

func TestResult_Formats(t *testing.T) {
	dir := batchDir(t)
	res, err := Process(context.Background(), newPipeline(t), []string{dir}, &Config{Recursive: true})
	require.NoError(t, err)

	text, err := res.FormatResults("text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "# "+res.ImagePaths[0]+"\nbatch one\n"), text)
	assert.Contains(t, text, "batch two\n")
	assert.Contains(t, text, "# "+filepath.Join(dir, "broken.png")+"\nskipped: ")

	js, err := res.FormatResults("json")
	require.NoError(t, err)
	var doc struct {
		Images []struct {
			Source string `json:"source"`
		} `json:"images"`
		Skipped []Skipped `json:"skipped"`
		Stats   Stats     `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(js), &doc))
	require.Len(t, doc.Images, 2)
	assert.Equal(t, res.ImagePaths[0], doc.Images[0].Source)
	assert.Len(t, doc.Skipped, 1)
	assert.Equal(t, 2, doc.Stats.Symbols)

	csv, err := res.FormatResults("csv")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(csv), "\n"), 3, "header plus one row per candidate")

	_, err = res.FormatResults("xml")
	require.Error(t, err)
}

func TestResult_SaveResults(t *testing.T) {
	dir := t.TempDir()
	writeSymbol(t, filepath.Join(dir, "a.png"), "saved")
	res, err := Process(context.Background(), newPipeline(t), []string{dir}, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, res.SaveResults(&out, "text", ""))
	assert.Contains(t, out.String(), "saved")

	file := filepath.Join(t.TempDir(), "out.txt")
	out.Reset()
	require.NoError(t, res.SaveResults(&out, "text", file))
	assert.Empty(t, out.String())
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "saved")
}

func TestResult_Stats(t *testing.T) {
	res := &Result{
		Results: []*pipeline.ImageResult{
			{Results: []decoder.Result{{Text: "a"}, {Text: "b"}, {Err: decoder.NewError(decoder.UncorrectableBlock, decoder.StageReedSolomon, nil)}}},
			{Results: []decoder.Result{{Err: decoder.NewError(decoder.NoFinderPatterns, decoder.StageFinder, nil)}}},
			nil,
		},
		Skipped:     []Skipped{{Path: "x.png"}},
		Duration:    3e9,
		WorkerCount: 2,
	}
	s := res.Stats()
	assert.Equal(t, 3, s.Images)
	assert.Equal(t, 1, s.Decoded)
	assert.Equal(t, 2, s.Symbols)
	assert.Equal(t, 2, s.FailedCandidates)
	assert.Equal(t, 1, s.Skipped)
	assert.InDelta(t, 1.0, s.ThroughputPerSec, 1e-9)

	var out bytes.Buffer
	res.PrintStats(&out)
	assert.Contains(t, out.String(), "Total images: 3")
	assert.Contains(t, out.String(), "Throughput: 1.0 images/sec")
}
