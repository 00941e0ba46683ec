package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be applied without restarting are tracked; provider
// changes need a restart and are reported through ProvidersChanged.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ThresholdChanged bool
	NewThreshold     float64

	SkipMarkerChanged bool
	NewSkipMarker     string

	VocabularyChanged bool
	NewVocabulary     []string

	AutoScrollChanged bool
	NewAutoScroll     bool

	// ProvidersChanged is set when providers.* differs. It is informational
	// only: running providers are never swapped.
	ProvidersChanged bool
}

// Changed reports whether any hot-reloadable setting differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ThresholdChanged || d.SkipMarkerChanged ||
		d.VocabularyChanged || d.AutoScrollChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Recognition.ConfidenceThreshold != new.Recognition.ConfidenceThreshold {
		d.ThresholdChanged = true
		d.NewThreshold = new.Recognition.ConfidenceThreshold
	}
	if old.Recognition.SkipMarker != new.Recognition.SkipMarker {
		d.SkipMarkerChanged = true
		d.NewSkipMarker = new.Recognition.SkipMarker
	}
	if !slices.Equal(old.Suggest.Vocabulary, new.Suggest.Vocabulary) {
		d.VocabularyChanged = true
		d.NewVocabulary = slices.Clone(new.Suggest.Vocabulary)
	}
	if old.UI.AutoScroll != new.UI.AutoScroll {
		d.AutoScrollChanged = true
		d.NewAutoScroll = new.UI.AutoScroll
	}
	d.ProvidersChanged = !providerEqual(old.Providers.STT, new.Providers.STT) ||
		!providerEqual(old.Providers.LLM, new.Providers.LLM) ||
		!slices.EqualFunc(old.Providers.STTFallbacks, new.Providers.STTFallbacks, providerEqual) ||
		!slices.EqualFunc(old.Providers.LLMFallbacks, new.Providers.LLMFallbacks, providerEqual)

	return d
}

// providerEqual compares the scalar fields of two entries. Options are not
// compared.
func providerEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
