// Package config loads driver configuration from YAML files.
// Precedence: project (.infact.yaml) → user (~/.infact/config.yaml) → defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/NoelToby/refr/pkg/evaluator"
	"github.com/NoelToby/refr/pkg/factory"
	"github.com/NoelToby/refr/pkg/interpreter"
)

// File names searched by Load.
const (
	ProjectFile = ".infact.yaml"
	UserDir     = ".infact"
	UserFile    = "config.yaml"
)

// Config is the effective driver configuration.
type Config struct {
	Verbosity        int
	UnknownFields    factory.UnknownFieldPolicy
	MaxDepth         int
	MaxConstructions int
	ContinueOnError  bool
	HistoryFile      string
	Pretty           bool

	// Sources lists the files applied, lowest precedence first.
	Sources []string
}

// File is one configuration file. Unset keys leave lower layers alone.
type File struct {
	Verbosity        *int    `yaml:"verbosity,omitempty"`
	UnknownFields    *string `yaml:"unknown_fields,omitempty"`
	MaxDepth         *int    `yaml:"max_depth,omitempty"`
	MaxConstructions *int    `yaml:"max_constructions,omitempty"`
	ContinueOnError  *bool   `yaml:"continue_on_error,omitempty"`
	HistoryFile      *string `yaml:"history_file,omitempty"`
	Pretty           *bool   `yaml:"pretty,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxDepth: evaluator.DefaultMaxDepth,
		Pretty:   true,
	}
}

// Load layers the user file and then the project file in projectDir over
// the defaults. Missing files are skipped; malformed ones are errors.
func Load(projectDir string) (*Config, error) {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, UserDir, UserFile))
	}
	paths = append(paths, filepath.Join(projectDir, ProjectFile))
	cfg, err := LoadFiles(paths...)
	if err != nil {
		return nil, err
	}
	if cfg.HistoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.HistoryFile = filepath.Join(home, UserDir, "history")
		}
	}
	return cfg, nil
}

// LoadFiles applies paths over the defaults, lowest precedence first.
func LoadFiles(paths ...string) (*Config, error) {
	cfg := Default()
	for _, path := range paths {
		f, err := ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := cfg.Apply(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg.Sources = append(cfg.Sources, path)
	}
	return cfg, nil
}

// ReadFile parses one configuration file. Unknown keys are errors.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes configuration YAML. name is used in error messages.
func Parse(data []byte, name string) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &f, nil
}

// Apply overlays the keys set in f.
func (c *Config) Apply(f *File) error {
	if f.Verbosity != nil {
		c.Verbosity = *f.Verbosity
	}
	if f.UnknownFields != nil {
		p, err := factory.ParseUnknownFieldPolicy(*f.UnknownFields)
		if err != nil {
			return err
		}
		c.UnknownFields = p
	}
	if f.MaxDepth != nil {
		if *f.MaxDepth < 0 {
			return fmt.Errorf("max_depth must not be negative, got %d", *f.MaxDepth)
		}
		c.MaxDepth = *f.MaxDepth
	}
	if f.MaxConstructions != nil {
		if *f.MaxConstructions < 0 {
			return fmt.Errorf("max_constructions must not be negative, got %d", *f.MaxConstructions)
		}
		c.MaxConstructions = *f.MaxConstructions
	}
	if f.ContinueOnError != nil {
		c.ContinueOnError = *f.ContinueOnError
	}
	if f.HistoryFile != nil {
		c.HistoryFile = *f.HistoryFile
	}
	if f.Pretty != nil {
		c.Pretty = *f.Pretty
	}
	return nil
}

// Limits returns the evaluation limits c configures.
func (c *Config) Limits() evaluator.Limits {
	return evaluator.Limits{MaxDepth: c.MaxDepth, MaxConstructions: c.MaxConstructions}
}

// Options returns the interpreter options c configures.
func (c *Config) Options() []interpreter.Option {
	opts := []interpreter.Option{
		interpreter.WithVerbosity(c.Verbosity),
		interpreter.WithUnknownFields(c.UnknownFields),
		interpreter.WithLimits(c.Limits()),
	}
	if c.ContinueOnError {
		opts = append(opts, interpreter.WithContinueOnError())
	}
	return opts
}

// YAML renders the effective configuration as a config file.
func (c *Config) YAML() ([]byte, error) {
	policy := c.UnknownFields.String()
	f := File{
		Verbosity:        &c.Verbosity,
		UnknownFields:    &policy,
		MaxDepth:         &c.MaxDepth,
		MaxConstructions: &c.MaxConstructions,
		ContinueOnError:  &c.ContinueOnError,
		HistoryFile:      &c.HistoryFile,
		Pretty:           &c.Pretty,
	}
	return yaml.Marshal(&f)
}
