package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchCommand_Text(t *testing.T) {
	dir := t.TempDir()
	first := writeSymbol(t, dir, "a.png", "batch alpha")
	second := writeSymbol(t, filepath.Join(dir, "sub"), "b.png", "batch beta")
	blank := writeBlank(t, dir, "c.png")

	stdout, stderr, err := execute(t, "batch", dir, "--recursive", "--stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# "+first+"\nbatch alpha\n")
	assert.Contains(t, stdout, "# "+blank+"\nno code detected\n")
	assert.Contains(t, stdout, "# "+second+"\nbatch beta\n")
	assert.Contains(t, stderr, "Total images: 3")
}

func TestBatchCommand_NonRecursiveJSON(t *testing.T) {
	dir := t.TempDir()
	writeSymbol(t, dir, "top.png", "top level")
	writeSymbol(t, filepath.Join(dir, "sub"), "nested.png", "nested")

	stdout, _, err := execute(t, "batch", dir, "--format", "json")
	require.NoError(t, err)

	var doc struct {
		Images []json.RawMessage `json:"images"`
		Stats  struct {
			Symbols int `json:"symbols"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Len(t, doc.Images, 1)
	assert.Equal(t, 1, doc.Stats.Symbols)
	assert.NotContains(t, stdout, "nested")
}

func TestBatchCommand_FiltersAndOverlays(t *testing.T) {
	dir := t.TempDir()
	writeSymbol(t, dir, "keep.png", "kept")
	writeSymbol(t, dir, "skip_me.png", "dropped")
	overlays := filepath.Join(t.TempDir(), "overlays")

	stdout, _, err := execute(t, "batch", dir, "--exclude", "skip_*", "--overlay-dir", overlays, "--quiet")
	require.NoError(t, err)
	assert.Contains(t, stdout, "kept")
	assert.NotContains(t, stdout, "dropped")

	_, err = os.Stat(filepath.Join(overlays, "keep_overlay.png"))
	require.NoError(t, err)
}

func TestBatchCommand_FailOnEmpty(t *testing.T) {
	dir := t.TempDir()
	writeBlank(t, dir, "blank.png")

	_, _, err := execute(t, "batch", dir, "--fail-on-empty")
	require.ErrorIs(t, err, ErrNoCodeDetected)
}

func TestBatchCommand_Errors(t *testing.T) {
	empty := t.TempDir()
	_, _, err := execute(t, "batch", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files found")

	_, _, err = execute(t, "batch", filepath.Join(empty, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")

	_, _, err = execute(t, "batch", empty, "--format", "xml")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid output format"))
}
