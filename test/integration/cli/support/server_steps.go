package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrlens/internal/barcode"
	"github.com/MeKo-Tech/qrlens/internal/decoder"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
	"github.com/MeKo-Tech/qrlens/internal/server"
)

const requestTimeout = 30 * time.Second

// startServer serves the real router with the native backend and the
// scenario's engine registry.
func (testCtx *TestContext) startServer(rl server.RateLimitConfig) error {
	if testCtx.HTTPServer != nil {
		return nil
	}
	backend, err := barcode.NewBackend(barcode.BackendNative, decoder.DefaultConfig())
	if err != nil {
		return err
	}
	p, err := pipeline.New(backend, barcode.Options{})
	if err != nil {
		return err
	}
	srv, err := server.NewServer(server.Config{
		Host:       "127.0.0.1",
		CORSOrigin: "*",
		Version:    "test",
		RateLimit:  rl,
	}, p, testCtx.registry())
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	testCtx.HTTPServer = httptest.NewServer(srv.Router())
	return nil
}

func (testCtx *TestContext) theDecodeServerIsRunning() error {
	return testCtx.startServer(server.RateLimitConfig{})
}

func (testCtx *TestContext) theDecodeServerIsRunningWithALimit(perMinute int) error {
	return testCtx.startServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	if testCtx.HTTPServer == nil {
		return nil, errors.New("server is not running")
	}
	return http.NewRequestWithContext(context.Background(), method, testCtx.HTTPServer.URL+path, body)
}

// iUpload posts a scenario file as multipart form data. PDFs go in the
// "pdf" field, everything else in "image".
func (testCtx *TestContext) iUpload(name, path string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	field := "image"
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		field = "pdf"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := testCtx.newRequest(http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iSendARequest(method, path string) error {
	req, err := testCtx.newRequest(method, path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) iSendARequestWithJSON(method, path string, body *godog.DocString) error {
	req, err := testCtx.newRequest(method, path, strings.NewReader(body.Content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

// iSendOverTheWebSocket sends a scenario image as a binary frame and keeps
// the reply.
func (testCtx *TestContext) iSendOverTheWebSocket(name string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws/decode"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if resp != nil {
		testCtx.LastHTTPStatusCode = resp.StatusCode
		_ = resp.Body.Close()
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("websocket read: %w", err)
	}
	testCtx.LastHTTPResponse = string(msg)
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONAtShouldBe(path, expected string) error {
	data, err := parseJSON(testCtx.LastHTTPResponse)
	if err != nil {
		return err
	}
	return expectJSONValue(data, path, expected)
}

func (testCtx *TestContext) theResponseJSONAtShouldHaveItems(path string, n int) error {
	data, err := parseJSON(testCtx.LastHTTPResponse)
	if err != nil {
		return err
	}
	return expectJSONLength(data, path, n)
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s is %q, want %q", name, got, expected)
	}
	return nil
}

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the decode server is running$`, testCtx.theDecodeServerIsRunning)
	sc.Step(`^the decode server is running with a limit of (\d+) requests? per minute$`,
		testCtx.theDecodeServerIsRunningWithALimit)

	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUpload)
	sc.Step(`^I send a (GET|POST|PUT|DELETE) request to "([^"]*)"$`, testCtx.iSendARequest)
	sc.Step(`^I send a (POST|PUT) request to "([^"]*)" with JSON:$`, testCtx.iSendARequestWithJSON)
	sc.Step(`^I send "([^"]*)" over the WebSocket$`, testCtx.iSendOverTheWebSocket)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response JSON at "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONAtShouldBe)
	sc.Step(`^the response JSON at "([^"]*)" should have (\d+) items?$`, testCtx.theResponseJSONAtShouldHaveItems)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
}
