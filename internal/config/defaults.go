package config

const (
	defaultSourceRateHz          = 10
	defaultTargetRateHz          = 1
	defaultPastDurationSeconds   = 4
	defaultPastFrequencyHz       = 4
	defaultFutureDurationSeconds = 5
	defaultFutureFrequencyHz     = 4
	defaultAnnotatorBaseURL      = "https://api.openai.com/v1/chat/completions"
	defaultAnnotatorModel        = "gemini-2.5-flash"
	defaultSystemPrompt          = "You are an expert labeller of driving scenarios."
	defaultMaxRetries            = 3
	defaultRetryDelaySeconds     = 2.0
	defaultTimeoutSeconds        = 60
	defaultImageMode             = "separate"
	defaultCheckpointInterval    = 10
	defaultOutputDir             = "./output"
	defaultResultsSubdir         = "results"
	defaultCheckpointFile        = "checkpoint.json"
	defaultLogLevel              = "info"
	defaultLogFormat             = "console"

	// APIKeyEnvVar overrides annotator.api_key when set.
	APIKeyEnvVar = "FRAMELABEL_API_KEY"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Dataset: Dataset{
			SourceRateHz: defaultSourceRateHz,
			TargetRateHz: defaultTargetRateHz,
		},
		Trajectory: Trajectory{
			PastDurationSeconds:   defaultPastDurationSeconds,
			PastFrequencyHz:       defaultPastFrequencyHz,
			FutureDurationSeconds: defaultFutureDurationSeconds,
			FutureFrequencyHz:     defaultFutureFrequencyHz,
		},
		Annotator: Annotator{
			BaseURL:           defaultAnnotatorBaseURL,
			Model:             defaultAnnotatorModel,
			SystemPrompt:      defaultSystemPrompt,
			MaxRetries:        defaultMaxRetries,
			RetryDelaySeconds: defaultRetryDelaySeconds,
			TimeoutSeconds:    defaultTimeoutSeconds,
			ImageMode:         defaultImageMode,
		},
		Processing: Processing{
			CheckpointInterval: defaultCheckpointInterval,
			MaxWorkers:         1,
		},
		Output: Output{
			Dir:            defaultOutputDir,
			ResultsSubdir:  defaultResultsSubdir,
			CheckpointFile: defaultCheckpointFile,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
