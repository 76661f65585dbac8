package config

const (
	defaultConfigPath    = "~/.config/exampipe/config.toml"
	projectConfigName    = "exampipe.toml"
	defaultImageDir      = "img"
	defaultPromptsDir    = "prompts"
	defaultExamplesDir   = "examples"
	defaultOutputDir     = "output"
	defaultSchemaFile    = "json template.txt"
	defaultLogDir        = "~/.local/share/exampipe/logs"
	defaultStateDir      = "~/.local/share/exampipe"
	defaultLLMBaseURL    = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel      = "gpt-5"
	defaultLLMTitle      = "exampipe"
	defaultLLMTimeout    = 600
	defaultRetryAttempts = 1
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"

	defaultTranscribeMaxTokens = 8000
	defaultPerturbMaxTokens    = 15000
	defaultValidateMaxTokens   = 10000
	defaultExtractMaxTokens    = 25000
	defaultInterUnitDelayMS    = 1000

	defaultNtfyTimeout = 10

	defaultInputPerMillion  = 1.25
	defaultOutputPerMillion = 10.00
)

// Default returns a Config populated with repository defaults. Content paths
// are relative to the working directory until normalized.
func Default() Config {
	return Config{
		Paths: Paths{
			ImageDir:    defaultImageDir,
			PromptsDir:  defaultPromptsDir,
			ExamplesDir: defaultExamplesDir,
			OutputDir:   defaultOutputDir,
			SchemaFile:  defaultSchemaFile,
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeout,
			RetryAttempts:  defaultRetryAttempts,
		},
		Stages: Stages{
			TranscribeMaxTokens: defaultTranscribeMaxTokens,
			PerturbMaxTokens:    defaultPerturbMaxTokens,
			ValidateMaxTokens:   defaultValidateMaxTokens,
			ExtractMaxTokens:    defaultExtractMaxTokens,
			InterUnitDelayMS:    defaultInterUnitDelayMS,
		},
		Pricing: Pricing{
			InputPerMillion:  defaultInputPerMillion,
			OutputPerMillion: defaultOutputPerMillion,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
	}
}

// Prompt template file names inside paths.prompts_dir.
const (
	TranscribePromptFile = "1_transcribe_prompt.txt"
	PerturbPromptFile    = "2_perturb_prompt.txt"
	ValidatePromptFile   = "3_validate_prompt.txt"
	ExtractPromptFile    = "4_extract_prompt.txt"
)
