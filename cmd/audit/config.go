package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fwojciec/audit"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	defaultEndpoint = "http://localhost:8000"
	configDir       = ".audit"
)

// environment carries everything read from the process environment.
type environment struct {
	Endpoint  string
	Token     string
	GeminiKey string
	Home      string
}

// options holds the raw flag values.
type options struct {
	ConfigPath string
	Endpoint   string
	Token      string
	Scenario   string
	SessionID  string
	DocsPath   string
	LogFile    string
	References []string
	Targets    []string
	Debug      bool
}

// fileConfig is the YAML config file.
type fileConfig struct {
	Endpoint   string   `yaml:"endpoint"`
	Token      string   `yaml:"token"`
	Scenario   string   `yaml:"scenario"`
	SessionID  string   `yaml:"session_id"`
	Docs       string   `yaml:"docs"`
	LogFile    string   `yaml:"log_file"`
	References []string `yaml:"references"`
	Targets    []string `yaml:"targets"`
}

// config is the resolved configuration.
type config struct {
	Endpoint   string
	Token      string
	GeminiKey  string
	Scenario   string
	SessionID  string
	DocsPath   string
	LogFile    string
	References []string
	Targets    []string
	Debug      bool
}

// manifest lists uploaded documents. It is what `audit upload` prints and
// what --docs reads.
type manifest struct {
	References []audit.Document `yaml:"references"`
	Targets    []audit.Document `yaml:"targets"`
}

func defaultConfigPath(home string) string {
	return filepath.Join(home, configDir, "config.yaml")
}

// loadFileConfig reads the config file at path. A missing file is only an
// error when the path was given explicitly.
func loadFileConfig(path string, explicit bool) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return fc, nil
	default:
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// resolveConfig merges flag, environment and file values. Precedence is
// flag, then environment, then file, then default.
func resolveConfig(opts options, env environment, fc fileConfig) config {
	cfg := config{
		Endpoint:   first(opts.Endpoint, env.Endpoint, fc.Endpoint, defaultEndpoint),
		Token:      first(opts.Token, env.Token, fc.Token),
		GeminiKey:  env.GeminiKey,
		Scenario:   first(opts.Scenario, fc.Scenario, audit.DefaultScenario),
		SessionID:  first(opts.SessionID, fc.SessionID),
		DocsPath:   first(opts.DocsPath, fc.Docs),
		LogFile:    first(opts.LogFile, fc.LogFile, filepath.Join(env.Home, configDir, "audit.log")),
		References: opts.References,
		Targets:    opts.Targets,
		Debug:      opts.Debug,
	}
	if len(cfg.References) == 0 {
		cfg.References = fc.References
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = fc.Targets
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	return cfg
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func loadManifest(path string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read documents: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse documents %s: %w", path, err)
	}
	for i := range m.References {
		m.References[i].Type = audit.DocumentReference
	}
	for i := range m.Targets {
		m.Targets[i].Type = audit.DocumentTarget
	}
	return m, nil
}

func writeManifest(w io.Writer, m manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("write documents: %w", err)
	}
	return enc.Close()
}
