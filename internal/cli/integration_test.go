package cli_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCLI_FileInputOutput tests the CLI with file input and output
func TestCLI_FileInputOutput(t *testing.T) {
	tempDir := t.TempDir()

	jsonContent := `{
		"name": "John Doe",
		"age": 30,
		"email": "john.doe@example.com",
		"address": {
			"street": "123 Main St",
			"city": "Anytown",
			"zip": "12345"
		},
		"phones": [
			{
				"type": "home",
				"number": "555-1234"
			},
			{
				"type": "work",
				"number": "555-5678"
			}
		],
		"active": true
	}`
	jsonFile := filepath.Join(tempDir, "test.json")
	err := os.WriteFile(jsonFile, []byte(jsonContent), 0644)
	require.NoError(t, err)

	outputFile := filepath.Join(tempDir, "output.json")

	cmd := exec.Command("go", "run", "../../main.go", "-i", jsonFile, "-o", outputFile)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "CLI command failed: %s", string(output))
	assert.Contains(t, string(output), "Output written to")

	rendered, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	expected := `{"name":"John Doe","age":30,"email":"john.doe@example.com",` +
		`"address":{"street":"123 Main St","city":"Anytown","zip":"12345"},` +
		`"phones":[{"type":"home","number":"555-1234"},{"type":"work","number":"555-5678"}],` +
		`"active":true}` + "\n"
	assert.Equal(t, expected, string(rendered))
}

// TestCLI_StdinStdout tests the CLI with stdin input and stdout output
func TestCLI_StdinStdout(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go")
	cmd.Stdin = strings.NewReader(`{"name": "Jane Smith", "age": 25, "active": true}`)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	require.NoError(t, err, "CLI command failed: %s", stderr.String())

	assert.Equal(t, "{\"name\":\"Jane Smith\",\"age\":25,\"active\":true}\n", stdout.String())
}

// TestCLI_TextFormat tests the text rendering
func TestCLI_TextFormat(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go", "-F", "text")
	cmd.Stdin = strings.NewReader(`{"tags": ["a", "b"], "n": 1.5}`)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	require.NoError(t, err)
	assert.Equal(t, "(tags -> <a : b>, n -> 1.5)\n", stdout.String())
}

// TestCLI_ArrayInput tests the CLI with a top-level array
func TestCLI_ArrayInput(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go")
	cmd.Stdin = strings.NewReader(`[ {"id": 1, "name": "Item 1"}, {"id": 2, "name": "Item 2"} ]`)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	require.NoError(t, err)
	assert.Equal(t, "[{\"id\":1,\"name\":\"Item 1\"},{\"id\":2,\"name\":\"Item 2\"}]\n", stdout.String())
}

// TestCLI_CheckOnly tests that --check validates without writing output
func TestCLI_CheckOnly(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go", "--check")
	cmd.Stdin = strings.NewReader(`{"valid": [true]}`)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	require.NoError(t, err, "CLI command failed: %s", stderr.String())
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Input is valid JSON")
}

// TestCLI_TrailingData tests the --allow-trailing flag
func TestCLI_TrailingData(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go")
	cmd.Stdin = strings.NewReader(`[1] [2]`)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	assert.Error(t, err, "CLI should reject data after the root value")
	assert.Contains(t, stderr.String(), "after the root value")

	cmd = exec.Command("go", "run", "../../main.go", "--allow-trailing")
	cmd.Stdin = strings.NewReader(`[1] [2]`)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err = cmd.Run()
	require.NoError(t, err)
	assert.Equal(t, "[1]\n", stdout.String())
}

// TestCLI_EnvironmentFormat tests GOSERIAL_FORMAT
func TestCLI_EnvironmentFormat(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go")
	cmd.Env = append(os.Environ(), "GOSERIAL_FORMAT=text")
	cmd.Stdin = strings.NewReader(`[1, 2]`)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	require.NoError(t, err)
	assert.Equal(t, "<1 : 2>\n", stdout.String())
}

// TestCLI_InvalidFormat tests an unknown --format value
func TestCLI_InvalidFormat(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go", "-F", "yaml")
	cmd.Stdin = strings.NewReader(`[]`)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	assert.Error(t, err)
	assert.Contains(t, stderr.String(), "Configuration error")
}

// TestCLI_InvalidJSON tests the CLI with invalid JSON input
func TestCLI_InvalidJSON(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go")
	cmd.Stdin = strings.NewReader(`{"name": "Invalid JSON, "age": 30}`)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	assert.Error(t, err, "CLI should fail with invalid JSON")
	assert.Contains(t, stderr.String(), "JSON syntax error at offset")
}

// TestCLI_EmptyInput tests the CLI with empty input
func TestCLI_EmptyInput(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go")
	cmd.Stdin = strings.NewReader("")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	assert.Error(t, err, "CLI should fail with empty input")
	assert.Contains(t, stderr.String(), "empty input")
}

// TestCLI_Version tests the version flag
func TestCLI_Version(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go", "-v")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err)
	assert.Contains(t, string(output), "goserial version")
}

// TestCLI_Help tests the help output
func TestCLI_Help(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go", "--help")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err)

	helpOutput := string(output)
	assert.Contains(t, helpOutput, "Usage:")
	assert.Contains(t, helpOutput, "-i, --input")
	assert.Contains(t, helpOutput, "-o, --output")
	assert.Contains(t, helpOutput, "-F, --format")
	assert.Contains(t, helpOutput, "-c, --config")
	assert.Contains(t, helpOutput, "--check")
	assert.Contains(t, helpOutput, "--allow-trailing")
}
