// Package secrets resolves provider API keys.
//
// A key is taken from the first source that has one: the configuration file,
// the process environment (after loading a .env file), the OS keyring, and
// finally an interactive terminal prompt. Keys typed at the prompt are
// stored in the keyring so the next start does not ask again.
package secrets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// DefaultService is the keyring service name keys are stored under.
const DefaultService = "scribe"

// ErrNoSecret is returned when no source produced a key and prompting is
// disabled or the user entered nothing.
var ErrNoSecret = errors.New("secrets: no key available")

// PromptFunc reads a secret from the user. label names what is asked for.
type PromptFunc func(label string) (string, error)

// Resolver looks up API keys. The zero value is not usable; call [New].
type Resolver struct {
	service string
	user    string
	prompt  PromptFunc
	getenv  func(string) string
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithService overrides the keyring service name.
func WithService(name string) Option {
	return func(r *Resolver) { r.service = name }
}

// WithUser overrides the keyring account prefix. Defaults to the login name.
func WithUser(name string) Option {
	return func(r *Resolver) { r.user = name }
}

// WithPrompt replaces the terminal prompt. A nil func disables prompting.
func WithPrompt(p PromptFunc) Option {
	return func(r *Resolver) { r.prompt = p }
}

// WithGetenv replaces os.Getenv, mainly for tests.
func WithGetenv(fn func(string) string) Option {
	return func(r *Resolver) { r.getenv = fn }
}

// New returns a Resolver that prompts on the controlling terminal.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		service: DefaultService,
		user:    SystemUser(),
		prompt:  TerminalPrompt(os.Stderr),
		getenv:  os.Getenv,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given) into the environment. Missing files are ignored; variables already
// set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("secrets: load %q: %w", p, err)
		}
	}
	return nil
}

// Resolve returns the key for the named provider. configured is the value
// from the config file and envVar the environment variable to consult; either
// may be empty.
func (r *Resolver) Resolve(name, configured, envVar string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if envVar != "" {
		if v := strings.TrimSpace(r.getenv(envVar)); v != "" {
			return v, nil
		}
	}

	account := r.account(name)
	v, err := keyring.Get(r.service, account)
	switch {
	case err == nil && v != "":
		slog.Debug("api key read from keyring", "provider", name)
		return v, nil
	case err != nil && !errors.Is(err, keyring.ErrNotFound):
		// An unavailable keyring is not fatal; fall through to the prompt.
		slog.Warn("keyring lookup failed", "provider", name, "err", err)
	}

	if r.prompt == nil {
		return "", fmt.Errorf("%w for %q", ErrNoSecret, name)
	}
	label := name + " API key"
	if envVar != "" {
		label = envVar + " not found, enter one"
	}
	v, err = r.prompt(label)
	if err != nil {
		return "", fmt.Errorf("secrets: prompt for %q: %w", name, err)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w for %q", ErrNoSecret, name)
	}
	if err := keyring.Set(r.service, account, v); err != nil {
		slog.Warn("could not store api key in keyring", "provider", name, "err", err)
	}
	return v, nil
}

// Forget removes a stored key. A key that was never stored is not an error.
func (r *Resolver) Forget(name string) error {
	err := keyring.Delete(r.service, r.account(name))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("secrets: delete %q: %w", name, err)
	}
	return nil
}

func (r *Resolver) account(name string) string {
	return r.user + "/" + name
}

// SystemUser returns the login name from USER or USERNAME, or "anon".
func SystemUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "anon"
}

// TerminalPrompt reads a secret from stdin without echo, writing the label
// to w.
func TerminalPrompt(w io.Writer) PromptFunc {
	return func(label string) (string, error) {
		fd := int(syscall.Stdin)
		if !term.IsTerminal(fd) {
			return "", errors.New("stdin is not a terminal")
		}
		fmt.Fprintf(w, "%s: ", label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
