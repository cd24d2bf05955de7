// Package support holds the godog step definitions for the qrlens CLI and
// HTTP integration suite. Commands run in-process against a fresh command
// tree, with configuration and the engine registry isolated per scenario.
package support

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastExitCode int

	// Test environment
	TempDir     string
	prevXDG     string
	prevXDGSet  bool
	EnginesFile string

	// HTTP state
	HTTPServer         *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    http.Header
}

// NewTestContext creates a scenario context with its own temporary
// directory, which also serves as XDG_CONFIG_HOME.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "qrlens-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ctx := &TestContext{
		TempDir:     tempDir,
		EnginesFile: filepath.Join(tempDir, "qrlens", "engines.yaml"),
	}
	ctx.prevXDG, ctx.prevXDGSet = os.LookupEnv("XDG_CONFIG_HOME")
	if err := os.Setenv("XDG_CONFIG_HOME", tempDir); err != nil {
		return nil, fmt.Errorf("failed to set XDG_CONFIG_HOME: %w", err)
	}
	return ctx, nil
}

// Cleanup stops the HTTP server, restores the environment and removes the
// temporary directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}

	var err error
	if testCtx.prevXDGSet {
		err = os.Setenv("XDG_CONFIG_HOME", testCtx.prevXDG)
	} else {
		err = os.Unsetenv("XDG_CONFIG_HOME")
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to restore XDG_CONFIG_HOME: %w", err))
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}

// Path returns the absolute path of a scenario file.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substituteVariables expands {tmp} to the scenario directory.
func (testCtx *TestContext) substituteVariables(s string) string {
	return strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
}
