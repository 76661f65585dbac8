package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeStages()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.image_dir", &c.Paths.ImageDir, defaultImageDir},
		{"paths.prompts_dir", &c.Paths.PromptsDir, defaultPromptsDir},
		{"paths.examples_dir", &c.Paths.ExamplesDir, defaultExamplesDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.schema_file", &c.Paths.SchemaFile, defaultSchemaFile},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("EXAMPIPE_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultRetryAttempts
	}
}

func (c *Config) normalizeStages() {
	if c.Stages.TranscribeMaxTokens <= 0 {
		c.Stages.TranscribeMaxTokens = defaultTranscribeMaxTokens
	}
	if c.Stages.PerturbMaxTokens <= 0 {
		c.Stages.PerturbMaxTokens = defaultPerturbMaxTokens
	}
	if c.Stages.ValidateMaxTokens <= 0 {
		c.Stages.ValidateMaxTokens = defaultValidateMaxTokens
	}
	if c.Stages.ExtractMaxTokens <= 0 {
		c.Stages.ExtractMaxTokens = defaultExtractMaxTokens
	}
	if c.Stages.InterUnitDelayMS < 0 {
		c.Stages.InterUnitDelayMS = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}
