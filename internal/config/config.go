// Package config declares the configuration of the bridge and the
// environment variables that override it.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

type EnvVar string

const (
	// EnvVarMerlinPath overrides MerlinPath.
	EnvVarMerlinPath EnvVar = "OCAMLCREATOR_MERLIN_PATH"

	// EnvVarMerlinFlags is an environment variable which, when set, is split
	// like a shell command line and appended to every invocation of the
	// tool. It replaces MerlinFlags.
	EnvVarMerlinFlags EnvVar = "OCAMLCREATOR_MERLIN_FLAGS"

	// EnvVarRequestTimeout overrides RequestTimeout.
	EnvVarRequestTimeout EnvVar = "OCAMLCREATOR_REQUEST_TIMEOUT"

	// EnvVarLogfileTmpl is the ioutil.TempFile pattern of the command's log
	// file.
	EnvVarLogfileTmpl EnvVar = "OCAMLCREATOR_LOGFILE_TMPL"
)

// Config is the configuration of the bridge. A nil field is unset; see
// Default for the value it takes.
type Config struct {
	// MerlinPath is the ocamlmerlin executable, looked up in PATH when it
	// is not absolute.
	//
	// Default: "ocamlmerlin"
	MerlinPath *string `json:",omitempty" yaml:"merlin_path,omitempty" toml:"merlin_path,omitempty"`

	// MerlinFlags are appended to every invocation of the tool.
	MerlinFlags []string `json:",omitempty" yaml:"merlin_flags,omitempty" toml:"merlin_flags,omitempty"`

	// MerlinLog is passed to the tool as MERLIN_LOG.
	//
	// Default: merlin.ocamlcreator.log in the temporary directory
	MerlinLog *string `json:",omitempty" yaml:"merlin_log,omitempty" toml:"merlin_log,omitempty"`

	// RequestTimeout is a time.Duration string after which a running tool is
	// killed and its request failed. "0s" disables the timeout.
	//
	// Default: "10s"
	RequestTimeout *string `json:",omitempty" yaml:"request_timeout,omitempty" toml:"request_timeout,omitempty"`

	// RetireTimeout is a time.Duration string bounding the wait for a tool
	// that has replied to exit.
	//
	// Default: "3s"
	RetireTimeout *string `json:",omitempty" yaml:"retire_timeout,omitempty" toml:"retire_timeout,omitempty"`

	// StartAttempts is the number of attempts to spawn the tool when
	// spawning fails with a transient error.
	//
	// Default: 3
	StartAttempts *int `json:",omitempty" yaml:"start_attempts,omitempty" toml:"start_attempts,omitempty"`

	// BreakerThreshold is the number of consecutive failures to run the
	// tool after which requests fail fast for BreakerCooldown. 0 disables
	// the breaker.
	//
	// Default: 0
	BreakerThreshold *int `json:",omitempty" yaml:"breaker_threshold,omitempty" toml:"breaker_threshold,omitempty"`

	// BreakerCooldown is a time.Duration string.
	//
	// Default: "30s"
	BreakerCooldown *string `json:",omitempty" yaml:"breaker_cooldown,omitempty" toml:"breaker_cooldown,omitempty"`

	// WatchProjectFiles controls whether changes to .merlin, dune and opam
	// files re-run the errors check of the documents in their directory.
	//
	// Default: true
	WatchProjectFiles *bool `json:",omitempty" yaml:"watch_project_files,omitempty" toml:"watch_project_files,omitempty"`
}

func String(v string) *string { return &v }
func Int(v int) *int          { return &v }
func Bool(v bool) *bool       { return &v }

// Default returns a Config with every field set.
func Default() *Config {
	return &Config{
		MerlinPath:        String("ocamlmerlin"),
		MerlinFlags:       []string{},
		MerlinLog:         String(filepath.Join(os.TempDir(), "merlin.ocamlcreator.log")),
		RequestTimeout:    String("10s"),
		RetireTimeout:     String("3s"),
		StartAttempts:     Int(3),
		BreakerThreshold:  Int(0),
		BreakerCooldown:   String("30s"),
		WatchProjectFiles: Bool(true),
	}
}

// Apply sets in r every field that is set in v.
func (r *Config) Apply(v *Config) {
	if v == nil {
		return
	}
	if v.MerlinPath != nil {
		r.MerlinPath = v.MerlinPath
	}
	if v.MerlinFlags != nil {
		r.MerlinFlags = v.MerlinFlags
	}
	if v.MerlinLog != nil {
		r.MerlinLog = v.MerlinLog
	}
	if v.RequestTimeout != nil {
		r.RequestTimeout = v.RequestTimeout
	}
	if v.RetireTimeout != nil {
		r.RetireTimeout = v.RetireTimeout
	}
	if v.StartAttempts != nil {
		r.StartAttempts = v.StartAttempts
	}
	if v.BreakerThreshold != nil {
		r.BreakerThreshold = v.BreakerThreshold
	}
	if v.BreakerCooldown != nil {
		r.BreakerCooldown = v.BreakerCooldown
	}
	if v.WatchProjectFiles != nil {
		r.WatchProjectFiles = v.WatchProjectFiles
	}
}

// Load reads a configuration file. The format follows the extension:
// .yaml or .yml, .toml or .json.
func Load(path string) (*Config, error) {
	byts, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read config: %w", err)
	}
	var c Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(byts))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && err != io.EOF {
			return nil, xerrors.Errorf("failed to parse %v: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(byts))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, xerrors.Errorf("failed to parse %v: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(byts))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, xerrors.Errorf("failed to parse %v: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unknown config file format %q", ext)
	}
	return &c, nil
}

// ApplyEnv applies the environment variable overrides read through getenv.
// Empty variables are ignored.
func (r *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(string(EnvVarMerlinPath)); v != "" {
		r.MerlinPath = String(v)
	}
	if v := getenv(string(EnvVarMerlinFlags)); v != "" {
		flags, err := shell.Fields(v, getenv)
		if err != nil {
			return xerrors.Errorf("invalid env var %s: %w", EnvVarMerlinFlags, err)
		}
		r.MerlinFlags = flags
	}
	if v := getenv(string(EnvVarRequestTimeout)); v != "" {
		if _, err := time.ParseDuration(v); err != nil {
			return xerrors.Errorf("invalid env var %s: %w", EnvVarRequestTimeout, err)
		}
		r.RequestTimeout = String(v)
	}
	return nil
}

// Settings is a Config with every field resolved.
type Settings struct {
	MerlinPath        string
	MerlinFlags       []string
	MerlinLog         string
	RequestTimeout    time.Duration
	RetireTimeout     time.Duration
	StartAttempts     int
	BreakerThreshold  int
	BreakerCooldown   time.Duration
	WatchProjectFiles bool
}

// Settings resolves r on top of Default.
func (r *Config) Settings() (Settings, error) {
	c := Default()
	c.Apply(r)
	s := Settings{
		MerlinPath:        *c.MerlinPath,
		MerlinFlags:       c.MerlinFlags,
		MerlinLog:         *c.MerlinLog,
		StartAttempts:     *c.StartAttempts,
		BreakerThreshold:  *c.BreakerThreshold,
		WatchProjectFiles: *c.WatchProjectFiles,
	}
	if s.MerlinPath == "" {
		return s, fmt.Errorf("MerlinPath is empty")
	}
	if s.StartAttempts < 1 {
		return s, fmt.Errorf("StartAttempts must be at least 1; got %v", s.StartAttempts)
	}
	if s.BreakerThreshold < 0 {
		return s, fmt.Errorf("BreakerThreshold must not be negative; got %v", s.BreakerThreshold)
	}
	durations := []struct {
		name string
		val  string
		dst  *time.Duration
	}{
		{"RequestTimeout", *c.RequestTimeout, &s.RequestTimeout},
		{"RetireTimeout", *c.RetireTimeout, &s.RetireTimeout},
		{"BreakerCooldown", *c.BreakerCooldown, &s.BreakerCooldown},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return s, xerrors.Errorf("invalid %v: %w", d.name, err)
		}
		if v < 0 {
			return s, fmt.Errorf("%v must not be negative; got %v", d.name, d.val)
		}
		*d.dst = v
	}
	return s, nil
}

// Validate reports whether r resolves to valid Settings.
func (r *Config) Validate() error {
	_, err := r.Settings()
	return err
}
