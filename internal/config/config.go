// Package config provides the configuration schema, loader, file watcher and
// provider registry for scribe.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [Default] and therefore by [Load] for absent keys.
const (
	DefaultConfidenceThreshold = 0.7
	DefaultSkipMarker          = "[SKIPPED]"
	DefaultLanguage            = "en"
	DefaultChunkMs             = 100
	DefaultSampleRate          = 16000
	DefaultMaxSuggestions      = 5
	DefaultExportFile          = "RecognizedText.txt"
	DefaultLogFile             = "scribe.log"
)

// Config is the root configuration structure for scribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Suggest     SuggestConfig     `yaml:"suggest"`
	UI          UIConfig          `yaml:"ui"`
	Export      ExportConfig      `yaml:"export"`
	Observe     ObserveConfig     `yaml:"observe"`
}

// ServerConfig holds process-wide logging settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile receives the log output while the terminal UI owns the screen.
	LogFile string `yaml:"log_file"`
}

// ProvidersConfig selects the recognition engine and the optional language
// model used for suggestions. Each entry names a factory in the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`

	// STTFallbacks and LLMFallbacks are tried in order when the primary
	// provider fails or its circuit breaker is open.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram", "whisper").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API. When empty the key is
	// looked up in the environment and the OS keyring.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-3", "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// RecognitionConfig controls how audio is recognized and how words are
// classified.
type RecognitionConfig struct {
	// ConfidenceThreshold is the minimum confidence in [0, 1] for a word to be
	// shown as recognized. Lower-confidence words are shown as SkipMarker.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// SkipMarker is the display text of uncertain words.
	SkipMarker string `yaml:"skip_marker"`

	// Language is the BCP-47 language code passed to the STT provider.
	Language string `yaml:"language"`

	// ChunkMs is the size of each audio chunk sent to the provider.
	ChunkMs int `yaml:"chunk_ms"`

	// Realtime paces audio at wall-clock speed instead of as fast as possible.
	Realtime bool `yaml:"realtime"`

	// SampleRate is the PCM rate audio is resampled to before recognition.
	SampleRate int `yaml:"sample_rate"`
}

// ChunkDuration returns ChunkMs as a duration.
func (r RecognitionConfig) ChunkDuration() time.Duration {
	return time.Duration(r.ChunkMs) * time.Millisecond
}

// SuggestConfig controls correction candidates for uncertain words.
type SuggestConfig struct {
	// Vocabulary lists domain terms offered as phonetic matches and sent to
	// the STT provider as keywords.
	Vocabulary []string `yaml:"vocabulary"`

	// VocabularyBoost is the keyword boost sent with each vocabulary term.
	VocabularyBoost float64 `yaml:"vocabulary_boost"`

	// MaxSuggestions caps how many candidates are offered per word.
	MaxSuggestions int `yaml:"max_suggestions"`

	// LLM asks providers.llm for additional candidates.
	LLM bool `yaml:"llm"`
}

// UIConfig holds terminal UI preferences.
type UIConfig struct {
	// AutoScroll moves the caret to the end of the text after each new line.
	AutoScroll bool `yaml:"auto_scroll"`
}

// ExportConfig controls the plain-text export.
type ExportConfig struct {
	// DefaultFile is the path offered when saving the export.
	DefaultFile string `yaml:"default_file"`
}

// ObserveConfig configures the optional health and metrics endpoint.
type ObserveConfig struct {
	// ListenAddr is the TCP address of the /healthz, /readyz and /metrics
	// server (e.g., "127.0.0.1:9464"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
			LogFile:  DefaultLogFile,
		},
		Recognition: RecognitionConfig{
			ConfidenceThreshold: DefaultConfidenceThreshold,
			SkipMarker:          DefaultSkipMarker,
			Language:            DefaultLanguage,
			ChunkMs:             DefaultChunkMs,
			SampleRate:          DefaultSampleRate,
		},
		Suggest: SuggestConfig{
			MaxSuggestions: DefaultMaxSuggestions,
		},
		UI:     UIConfig{AutoScroll: true},
		Export: ExportConfig{DefaultFile: DefaultExportFile},
	}
}
