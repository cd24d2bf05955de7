package support

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrlens/cmd/qrlens/cmd"
)

// iRunCommand executes a qrlens command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "qrlens" {
		return fmt.Errorf("unknown program %q", parts[0])
	}

	var stdout, stderr bytes.Buffer
	testCtx.LastExitCode = cmd.Run(parts[1:], &stdout, &stderr)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != cmd.ExitOK {
		return fmt.Errorf("command failed with exit code %d\nOutput: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == cmd.ExitOK {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("exit code %d, want %d\nStderr: %s", testCtx.LastExitCode, code, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBe(expected string) error {
	if got := strings.TrimSpace(testCtx.LastOutput); got != expected {
		return fmt.Errorf("output is %q, want %q", got, expected)
	}
	return nil
}

// theOutputShouldHaveLines checks the trimmed output line by line.
func (testCtx *TestContext) theOutputShouldHaveLines(table *godog.Table) error {
	got := strings.Split(strings.TrimSpace(testCtx.LastOutput), "\n")
	if len(got) != len(table.Rows) {
		return fmt.Errorf("output has %d lines, want %d\nActual output: %s", len(got), len(table.Rows), testCtx.LastOutput)
	}
	for i, row := range table.Rows {
		if want := row.Cells[0].Value; got[i] != want {
			return fmt.Errorf("line %d is %q, want %q", i+1, got[i], want)
		}
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := parseJSON(testCtx.LastOutput)
	return err
}

func (testCtx *TestContext) theJSONAtShouldBe(path, expected string) error {
	data, err := parseJSON(testCtx.LastOutput)
	if err != nil {
		return err
	}
	return expectJSONValue(data, path, testCtx.substituteVariables(expected))
}

func (testCtx *TestContext) theJSONAtShouldHaveItems(path string, n int) error {
	data, err := parseJSON(testCtx.LastOutput)
	if err != nil {
		return err
	}
	return expectJSONLength(data, path, n)
}

// theOutputShouldBeValidCSV parses the output and checks the header.
func (testCtx *TestContext) theOutputShouldBeValidCSVWithRows(rows int) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if len(records) == 0 || records[0][0] != "source" {
		return fmt.Errorf("CSV is missing its header: %s", testCtx.LastOutput)
	}
	if got := len(records) - 1; got != rows {
		return fmt.Errorf("CSV has %d data rows, want %d", got, rows)
	}
	return nil
}

// theErrorShouldMention checks stderr.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if !strings.Contains(strings.ToLower(testCtx.LastStderr), strings.ToLower(errorText)) {
		return fmt.Errorf("error output does not mention '%s'\nStderr: %s", errorText, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(filename string) error {
	path := testCtx.Path(testCtx.substituteVariables(filename))
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(filename, expectedContent string) error {
	path := testCtx.Path(testCtx.substituteVariables(filename))
	data, err := os.ReadFile(path) //nolint:gosec // G304: scenario paths
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), expectedContent) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", path, expectedContent, data)
	}
	return nil
}

func (testCtx *TestContext) aFileContaining(filename string, content *godog.DocString) error {
	path := testCtx.Path(filename)
	return os.WriteFile(path, []byte(content.Content+"\n"), 0o600)
}

// parseJSON decodes the whole text as JSON.
func parseJSON(text string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, text)
	}
	return data, nil
}

// lookupJSON walks a dotted path; numeric segments index arrays.
func lookupJSON(data any, path string) (any, error) {
	current := data
	if path == "" || path == "." {
		return current, nil
	}
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found at %q", part, path)
			}
			current = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range (len %d) at %q", part, len(node), path)
			}
			current = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q", current, path)
		}
	}
	return current, nil
}

func formatJSONValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func expectJSONValue(data any, path, expected string) error {
	v, err := lookupJSON(data, path)
	if err != nil {
		return err
	}
	if got := formatJSONValue(v); got != expected {
		return fmt.Errorf("JSON at %q is %q, want %q", path, got, expected)
	}
	return nil
}

func expectJSONLength(data any, path string, n int) error {
	v, err := lookupJSON(data, path)
	if err != nil {
		return err
	}
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("JSON at %q is %T, not an array", path, v)
	}
	if len(arr) != n {
		return fmt.Errorf("JSON at %q has %d items, want %d", path, len(arr), n)
	}
	return nil
}

// RegisterCommonSteps registers the command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be "([^"]*)"$`, testCtx.theOutputShouldBe)
	sc.Step(`^the output should have the lines:$`, testCtx.theOutputShouldHaveLines)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON at "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONAtShouldBe)
	sc.Step(`^the JSON at "([^"]*)" should have (\d+) items?$`, testCtx.theJSONAtShouldHaveItems)
	sc.Step(`^the output should be CSV with (\d+) rows?$`, testCtx.theOutputShouldBeValidCSVWithRows)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)
}
