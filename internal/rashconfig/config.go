// Package rashconfig holds the configuration recognized by the emitter
// and CLI driver: target dialect, verification mode, and strict mode.
package rashconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dialect selects the shell dialect the emitter targets. Per spec.md §9
// (Open Question b), Bash currently produces output identical to
// Posix; the distinction is kept for forward compatibility only.
type Dialect int

const (
	Posix Dialect = iota
	Bash
)

func (d Dialect) String() string {
	switch d {
	case Bash:
		return "bash"
	default:
		return "posix"
	}
}

// UnmarshalYAML lets Dialect be written as a bare string in a config
// file ("posix" / "bash") rather than as an integer.
func (d *Dialect) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "", "posix":
		*d = Posix
	case "bash":
		*d = Bash
	default:
		return fmt.Errorf("rashconfig: unknown dialect %q", s)
	}
	return nil
}

// Config is the emitter and CLI driver's recognized option set, matching
// spec.md §6's Configuration section.
type Config struct {
	Target     Dialect `yaml:"target"`
	VerifyMode bool    `yaml:"verify_mode"`
	StrictMode bool    `yaml:"strict_mode"`
}

// Default returns the configuration the emitter uses absent any
// explicit options: POSIX output with the full runtime preamble.
func Default() Config {
	return Config{Target: Posix, VerifyMode: true, StrictMode: false}
}

// Option mutates a Config in place, mirroring the functional-options
// pattern mvdan.cc/sh/v3/syntax uses for ParserOption/PrinterOption
// (e.g. syntax.Indent(n), syntax.Minify(b)).
type Option func(*Config)

// WithTarget sets the target dialect.
func WithTarget(d Dialect) Option {
	return func(c *Config) { c.Target = d }
}

// WithVerifyMode toggles embedding a verifying rash_download_verified.
func WithVerifyMode(enabled bool) Option {
	return func(c *Config) { c.VerifyMode = enabled }
}

// WithStrictMode toggles rejecting IR with empty command names instead
// of emitting an empty argument position.
func WithStrictMode(enabled bool) Option {
	return func(c *Config) { c.StrictMode = enabled }
}

// New builds a Config from Default() plus the given options.
func New(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Load reads a Config from a YAML file at path, starting from Default()
// so an incomplete file still yields sane values for omitted fields.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("rashconfig: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("rashconfig: parsing %s: %w", path, err)
	}
	return c, nil
}
