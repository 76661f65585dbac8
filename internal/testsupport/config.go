package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"exampipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Inter-unit delay is zero so stage tests run without pauses.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.Paths.ImageDir = filepath.Join(base, "img")
	cfgVal.Paths.PromptsDir = filepath.Join(base, "prompts")
	cfgVal.Paths.ExamplesDir = filepath.Join(base, "examples")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.SchemaFile = filepath.Join(base, "json template.txt")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Stages.InterUnitDelayMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithContentTree writes stage prompts, the schema template, and one LaTeX
// example so every stage can load its resources.
func WithContentTree() ConfigOption {
	return func(b *configBuilder) {
		prompts := map[string]string{
			config.TranscribePromptFile: "Transcribe the question. {special_prompt}",
			config.PerturbPromptFile:    "Perturb the question.",
			config.ValidatePromptFile:   "Validate the question.",
			config.ExtractPromptFile:    "Convert to LaTeX. {special_prompt}",
		}
		for name, content := range prompts {
			WriteText(b.t, filepath.Join(b.cfg.Paths.PromptsDir, name), content)
		}
		WriteText(b.t, b.cfg.Paths.SchemaFile, `{"question": "", "marks": 0}`)
		WriteText(b.t, filepath.Join(b.cfg.Paths.ExamplesDir, "style.tex"), "\\documentclass{exam}\n\\begin{document}\n\\end{document}\n")
	}
}

// WithImages writes the named image files with placeholder bytes.
func WithImages(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			WriteText(b.t, filepath.Join(b.cfg.Paths.ImageDir, name), "image:"+name)
		}
	}
}

// WithInterUnitDelay overrides the pause between units.
func WithInterUnitDelay(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stages.InterUnitDelayMS = ms
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

// MustEnsureDirs creates the writable directories for cfg.
func MustEnsureDirs(t testing.TB, cfg *config.Config) {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.ImageDir, 0o755); err != nil {
		t.Fatalf("mkdir image dir: %v", err)
	}
}
