package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"deepgram", "whisper", "whisper-native"},
	"llm": {"openai", "openai-direct", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Keys absent from the file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", e.Name)
	}
	for i, e := range cfg.Providers.LLMFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", e.Name)
	}
	if len(cfg.Providers.STTFallbacks) > 0 && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallbacks set without providers.stt"))
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks set without providers.llm"))
	}

	rec := cfg.Recognition
	if rec.ConfidenceThreshold < 0 || rec.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("recognition.confidence_threshold %.2f is out of range [0, 1]", rec.ConfidenceThreshold))
	}
	if strings.TrimSpace(rec.SkipMarker) == "" {
		errs = append(errs, errors.New("recognition.skip_marker must not be empty"))
	} else if strings.ContainsAny(rec.SkipMarker, "\r\n") {
		errs = append(errs, errors.New("recognition.skip_marker must be a single line"))
	}
	if rec.ChunkMs < 10 || rec.ChunkMs > 1000 {
		errs = append(errs, fmt.Errorf("recognition.chunk_ms %d is out of range [10, 1000]", rec.ChunkMs))
	}
	if rec.SampleRate < 8000 || rec.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("recognition.sample_rate %d is out of range [8000, 48000]", rec.SampleRate))
	}

	if cfg.Suggest.MaxSuggestions < 1 {
		errs = append(errs, fmt.Errorf("suggest.max_suggestions must be at least 1, got %d", cfg.Suggest.MaxSuggestions))
	}
	if cfg.Suggest.VocabularyBoost < 0 {
		errs = append(errs, fmt.Errorf("suggest.vocabulary_boost %.2f must not be negative", cfg.Suggest.VocabularyBoost))
	}
	for i, term := range cfg.Suggest.Vocabulary {
		if strings.TrimSpace(term) == "" {
			errs = append(errs, fmt.Errorf("suggest.vocabulary[%d] is empty", i))
		}
	}
	if cfg.Suggest.LLM && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("suggest.llm is enabled but providers.llm is not configured"))
	}

	if cfg.Export.DefaultFile == "" {
		errs = append(errs, errors.New("export.default_file must not be empty"))
	}

	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; recognition will not be available")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
