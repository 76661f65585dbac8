package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"exampipe/internal/config"
	"exampipe/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	model      *fakeModel
}

// fakeModel is an OpenAI-compatible endpoint that answers by stage prompt.
type fakeModel struct {
	mu     sync.Mutex
	calls  map[string]int
	answer func(stage string, call int) string
}

func (m *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	text := string(body)

	var stage string
	switch {
	case strings.Contains(text, `"type":"json_object"`) && strings.Contains(text, `{\"ok\":true}`):
		stage = "health"
	case strings.Contains(text, "Convert to LaTeX"):
		stage = "extract"
	case strings.Contains(text, "Validate the question"):
		stage = "validate"
	case strings.Contains(text, "Perturb the question"):
		stage = "perturb"
	default:
		stage = "transcribe"
	}

	m.mu.Lock()
	call := m.calls[stage]
	m.calls[stage]++
	m.mu.Unlock()

	content := `{"ok":true}`
	if stage != "health" {
		content = m.answer(stage, call)
	}
	resp := map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		"usage":   map[string]int{"prompt_tokens": 1000, "completion_tokens": 100},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *fakeModel) count(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[stage]
}

func completeRun(stage string, call int) string {
	switch stage {
	case "transcribe":
		return fmt.Sprintf(`{"question":"q%d"}`, call+1)
	case "perturb":
		return fmt.Sprintf(`{"question":"p%d"}`, call+1)
	case "validate":
		return `{"well_posed": true, "reasoning": "fine"}`
	default:
		return `{"latex_document": "\\documentclass{exam}"}`
	}
}

func setupCLITestEnv(t *testing.T, answer func(stage string, call int) string, images ...string) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithContentTree(), testsupport.WithImages(images...))
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))
	t.Setenv("OPENAI_API_KEY", "")

	model := &fakeModel{calls: map[string]int{}, answer: answer}
	server := httptest.NewServer(model)
	t.Cleanup(server.Close)
	cfg.LLM.BaseURL = server.URL

	configPath := filepath.Join(testsupport.BaseDir(cfg), "exampipe.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, model: model}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
image_dir = %q
prompts_dir = %q
examples_dir = %q
output_dir = %q
schema_file = %q
log_dir = %q
state_dir = %q

[llm]
api_key = %q
base_url = %q
model = "test-model"

[stages]
inter_unit_delay_ms = 0

[logging]
level = "error"
`,
		cfg.Paths.ImageDir,
		cfg.Paths.PromptsDir,
		cfg.Paths.ExamplesDir,
		cfg.Paths.OutputDir,
		cfg.Paths.SchemaFile,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
