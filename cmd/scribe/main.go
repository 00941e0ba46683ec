// Command scribe recognises a WAV recording and opens it in a terminal editor
// where low-confidence words can be reviewed and corrected before the
// transcript is exported as plain text.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/health"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/recognize"
	"github.com/MrWong99/scribe/internal/resilience"
	"github.com/MrWong99/scribe/internal/secrets"
	"github.com/MrWong99/scribe/internal/session"
	"github.com/MrWong99/scribe/internal/suggest"
	"github.com/MrWong99/scribe/internal/tui"
	"github.com/MrWong99/scribe/pkg/audio"
	"github.com/MrWong99/scribe/pkg/provider/llm"
	"github.com/MrWong99/scribe/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/scribe/pkg/provider/llm/openai"
	"github.com/MrWong99/scribe/pkg/provider/stt"
	"github.com/MrWong99/scribe/pkg/provider/stt/deepgram"
	"github.com/MrWong99/scribe/pkg/provider/stt/whisper"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "scribe.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: scribe [flags] <file.wav>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("scribe", version)
		return 0
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	wavPath := flag.Arg(0)

	cfg, haveFile, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		return 1
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: open log file: %v\n", err)
		return 1
	}
	defer logFile.Close()
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(logFile, &level))

	slog.Info("scribe starting",
		"version", version,
		"config", *configPath,
		"config_file", haveFile,
		"audio", wavPath,
	)

	if err := secrets.LoadDotEnv(); err != nil {
		slog.Warn("failed to load .env", "err", err)
	}
	if err := resolveKeys(cfg, secrets.New()); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	sttProvider, llmProvider, closers, err := buildProviders(cfg, reg)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		return 1
	}

	sgOpts := []suggest.Option{
		suggest.WithVocabulary(cfg.Suggest.Vocabulary),
		suggest.WithMax(cfg.Suggest.MaxSuggestions),
		suggest.WithMetrics(metrics),
	}
	if cfg.Suggest.LLM && llmProvider != nil {
		sgOpts = append(sgOpts, suggest.WithLLM(llmProvider))
	}
	sess := session.New(
		session.WithMetrics(metrics),
		session.WithSuggester(suggest.New(sgOpts...)),
		session.WithExportPath(cfg.Export.DefaultFile),
	)
	rec := recognize.New(sttProvider,
		recognize.WithMetrics(metrics),
		recognize.WithProviderName(cfg.Providers.STT.Name),
		recognize.WithLanguage(cfg.Recognition.Language),
		recognize.WithThreshold(cfg.Recognition.ConfidenceThreshold),
		recognize.WithSkipMarker(cfg.Recognition.SkipMarker),
		recognize.WithRealtime(cfg.Recognition.Realtime),
		recognize.WithKeywords(tui.Keywords(cfg.Suggest.Vocabulary, cfg.Suggest.VocabularyBoost)),
	)

	if addr := cfg.Observe.ListenAddr; addr != "" {
		h := health.New(
			health.Checker{Name: "stt", Check: func(context.Context) error {
				if sttProvider == nil {
					return errors.New("no stt provider configured")
				}
				return nil
			}},
			health.Checker{Name: "audio", Check: func(context.Context) error {
				_, err := os.Stat(wavPath)
				return err
			}},
		)
		go func() {
			if err := health.Serve(ctx, addr, health.NewMux(h, tel.MetricsHandler, metrics)); err != nil {
				slog.Error("health server error", "err", err)
			}
		}()
		slog.Info("health server listening", "addr", addr)
	}

	model := tui.New(ctx, tui.Options{
		Session:    sess,
		Recognizer: rec,
		Open: func() (audio.Stream, error) {
			return audio.Open(wavPath,
				audio.WithSampleRate(cfg.Recognition.SampleRate),
				audio.WithChunkDuration(cfg.Recognition.ChunkDuration()),
			)
		},
		Source:       filepath.Base(wavPath),
		AutoScroll:   cfg.UI.AutoScroll,
		KeywordBoost: cfg.Suggest.VocabularyBoost,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if haveFile {
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				level.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if d.ProvidersChanged {
				slog.Warn("provider changes take effect after a restart")
			}
			if d.Changed() {
				program.Send(tui.ConfigMsg{Diff: d, Config: new})
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			go w.Run(ctx)
		}
	}

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		slog.Error("ui error", "err", err)
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads path, falling back to the defaults when the file does not
// exist. The second result reports whether a file was read.
func loadConfig(path string) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// keylessProviders run locally and take no API key.
var keylessProviders = map[string]bool{
	"whisper":        true,
	"whisper-native": true,
	"ollama":         true,
	"llamacpp":       true,
	"llamafile":      true,
}

// resolveKeys fills in the API key of every configured provider that needs
// one, from the environment, the keyring or an interactive prompt.
func resolveKeys(cfg *config.Config, r *secrets.Resolver) error {
	entries := []*config.ProviderEntry{&cfg.Providers.STT, &cfg.Providers.LLM}
	for i := range cfg.Providers.STTFallbacks {
		entries = append(entries, &cfg.Providers.STTFallbacks[i])
	}
	for i := range cfg.Providers.LLMFallbacks {
		entries = append(entries, &cfg.Providers.LLMFallbacks[i])
	}
	for _, e := range entries {
		if e.Name == "" || keylessProviders[e.Name] {
			continue
		}
		key, err := r.Resolve(e.Name, e.APIKey, envVar(e.Name))
		if err != nil {
			return fmt.Errorf("api key for %q: %w", e.Name, err)
		}
		e.APIKey = key
	}
	return nil
}

// envVar returns the conventional environment variable of a provider's key,
// e.g. DEEPGRAM_API_KEY.
func envVar(provider string) string {
	return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	for _, backend := range anyllm.Backends() {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// The direct OpenAI client supports organisations and retries, which the
	// any-llm backend does not expose.
	reg.RegisterLLM("openai-direct", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	for _, name := range reg.STTNames() {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// buildProviders instantiates the providers named in cfg, wrapping each in a
// failover group when fallbacks are configured. A missing STT provider is not
// an error: the editor still opens and reports it on the first recognition
// attempt. The returned closers release native resources.
func buildProviders(cfg *config.Config, reg *config.Registry) (stt.Provider, llm.Provider, []io.Closer, error) {
	var (
		sp      stt.Provider
		lp      llm.Provider
		closers []io.Closer
	)
	track := func(p any) {
		if c, ok := p.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, nil, closers, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		track(p)
		sp = p
		slog.Info("provider created", "kind", "stt", "name", name)

		if len(cfg.Providers.STTFallbacks) > 0 {
			group := resilience.NewSTT(name, p)
			for _, e := range cfg.Providers.STTFallbacks {
				fp, err := reg.CreateSTT(e)
				if err != nil {
					return nil, nil, closers, fmt.Errorf("create stt fallback %q: %w", e.Name, err)
				}
				track(fp)
				group.Add(e.Name, fp)
			}
			sp = group
			slog.Info("stt failover enabled", "order", group.Names())
		}
	}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, nil, closers, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		lp = p
		slog.Info("provider created", "kind", "llm", "name", name)

		if len(cfg.Providers.LLMFallbacks) > 0 {
			group := resilience.NewLLM(name, p)
			for _, e := range cfg.Providers.LLMFallbacks {
				fp, err := reg.CreateLLM(e)
				if err != nil {
					return nil, nil, closers, fmt.Errorf("create llm fallback %q: %w", e.Name, err)
				}
				group.Add(e.Name, fp)
			}
			lp = group
			slog.Info("llm failover enabled", "order", group.Names())
		}
	}
	return sp, lp, closers, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
