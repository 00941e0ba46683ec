package secrets_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/MrWong99/scribe/internal/secrets"
)

// The keyring mock is process-global, so these tests do not run in parallel.

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

type promptRecorder struct {
	answer string
	err    error
	labels []string
}

func (p *promptRecorder) prompt(label string) (string, error) {
	p.labels = append(p.labels, label)
	return p.answer, p.err
}

func newResolver(p *promptRecorder, vars map[string]string) *secrets.Resolver {
	opts := []secrets.Option{
		secrets.WithUser("tester"),
		secrets.WithGetenv(env(vars)),
	}
	if p != nil {
		opts = append(opts, secrets.WithPrompt(p.prompt))
	} else {
		opts = append(opts, secrets.WithPrompt(nil))
	}
	return secrets.New(opts...)
}

func TestResolve_Order(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		env        map[string]string
		stored     string
		want       string
		wantPrompt bool
	}{
		{name: "config wins", configured: "cfg-key", env: map[string]string{"DG_KEY": "env-key"}, stored: "ring-key", want: "cfg-key"},
		{name: "env before keyring", env: map[string]string{"DG_KEY": "env-key"}, stored: "ring-key", want: "env-key"},
		{name: "keyring before prompt", stored: "ring-key", want: "ring-key"},
		{name: "prompt last", want: "typed-key", wantPrompt: true},
		{name: "whitespace config ignored", configured: "  ", env: map[string]string{"DG_KEY": " env-key "}, want: "env-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyring.MockInit()
			if tt.stored != "" {
				if err := keyring.Set(secrets.DefaultService, "tester/deepgram", tt.stored); err != nil {
					t.Fatal(err)
				}
			}
			p := &promptRecorder{answer: "typed-key"}
			got, err := newResolver(p, tt.env).Resolve("deepgram", tt.configured, "DG_KEY")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
			if prompted := len(p.labels) > 0; prompted != tt.wantPrompt {
				t.Errorf("prompted = %v, want %v", prompted, tt.wantPrompt)
			}
		})
	}
}

func TestResolve_PromptStoresInKeyring(t *testing.T) {
	keyring.MockInit()
	p := &promptRecorder{answer: "  typed-key\n"}
	r := newResolver(p, nil)

	got, err := r.Resolve("openai", "", "OPENAI_API_KEY")
	if err != nil {
		t.Fatal(err)
	}
	if got != "typed-key" {
		t.Errorf("Resolve = %q", got)
	}
	if len(p.labels) != 1 || p.labels[0] != "OPENAI_API_KEY not found, enter one" {
		t.Errorf("labels = %v", p.labels)
	}

	stored, err := keyring.Get(secrets.DefaultService, "tester/openai")
	if err != nil || stored != "typed-key" {
		t.Fatalf("keyring = %q, %v", stored, err)
	}

	// Second lookup is served from the keyring.
	if _, err := r.Resolve("openai", "", "OPENAI_API_KEY"); err != nil {
		t.Fatal(err)
	}
	if len(p.labels) != 1 {
		t.Errorf("prompted again: %v", p.labels)
	}
}

func TestResolve_NoSecret(t *testing.T) {
	keyring.MockInit()

	_, err := newResolver(nil, nil).Resolve("openai", "", "OPENAI_API_KEY")
	if !errors.Is(err, secrets.ErrNoSecret) {
		t.Errorf("without prompt: err = %v, want ErrNoSecret", err)
	}

	_, err = newResolver(&promptRecorder{answer: "   "}, nil).Resolve("openai", "", "")
	if !errors.Is(err, secrets.ErrNoSecret) {
		t.Errorf("blank answer: err = %v, want ErrNoSecret", err)
	}
}

func TestResolve_PromptError(t *testing.T) {
	keyring.MockInit()
	boom := errors.New("eof")
	_, err := newResolver(&promptRecorder{err: boom}, nil).Resolve("openai", "", "")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestResolve_KeyringFailureFallsBackToPrompt(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus unavailable"))
	t.Cleanup(keyring.MockInit)

	p := &promptRecorder{answer: "typed"}
	got, err := newResolver(p, nil).Resolve("deepgram", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "typed" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestForget(t *testing.T) {
	keyring.MockInit()
	r := newResolver(nil, nil)
	if err := r.Forget("deepgram"); err != nil {
		t.Errorf("Forget unknown: %v", err)
	}
	if err := keyring.Set(secrets.DefaultService, "tester/deepgram", "k"); err != nil {
		t.Fatal(err)
	}
	if err := r.Forget("deepgram"); err != nil {
		t.Fatal(err)
	}
	if _, err := keyring.Get(secrets.DefaultService, "tester/deepgram"); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("key still present: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SCRIBE_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCRIBE_TEST_DOTENV", "")
	os.Unsetenv("SCRIBE_TEST_DOTENV")

	if err := secrets.LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SCRIBE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("SCRIBE_TEST_DOTENV = %q", got)
	}
}

func TestSystemUser(t *testing.T) {
	t.Setenv("USER", "")
	t.Setenv("USERNAME", "win")
	if got := secrets.SystemUser(); got != "win" {
		t.Errorf("SystemUser = %q, want win", got)
	}
	t.Setenv("USERNAME", "")
	if got := secrets.SystemUser(); got != "anon" {
		t.Errorf("SystemUser = %q, want anon", got)
	}
}
