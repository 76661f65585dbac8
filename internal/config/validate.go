package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. The API key is not required
// here so housekeeping and history commands work without credentials; the
// model client rejects requests when it is missing.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	return c.validateLogging()
}

// RequireAPIKey reports a helpful error when the model API key is unset.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("llm.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'exampipe config init')", defaultPath)
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.ImageDir == c.Paths.OutputDir {
		return errors.New("paths.image_dir and paths.output_dir must differ")
	}
	return nil
}

func (c *Config) validateStages() error {
	if c.Stages.InterUnitDelayMS > 60_000 {
		return errors.New("stages.inter_unit_delay_ms must be at most 60000")
	}
	return nil
}

func (c *Config) validatePricing() error {
	if c.Pricing.InputPerMillion < 0 {
		return errors.New("pricing.input_per_million must be non-negative")
	}
	if c.Pricing.OutputPerMillion < 0 {
		return errors.New("pricing.output_per_million must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
