// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

// Package config loads server configuration from a YAML file with
// command-line flag overrides.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full server configuration.
type Config struct {
	Server struct {
		Addr string `koanf:"addr"`
	} `koanf:"server"`

	Observability struct {
		Addr string `koanf:"addr"`
	} `koanf:"observability"`

	Database struct {
		// URL is the postgres DSN. Empty selects the in-memory
		// store (dev mode).
		URL string `koanf:"url"`
	} `koanf:"database"`

	Content struct {
		// Path is the skill and monster catalog YAML file.
		Path string `koanf:"path"`
	} `koanf:"content"`

	Log struct {
		Format string `koanf:"format"`
		Level  string `koanf:"level"`
	} `koanf:"log"`

	Flood struct {
		Burst int     `koanf:"burst"`
		Rate  float64 `koanf:"rate"`
	} `koanf:"flood"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	cfg.Server.Addr = ":4123"
	cfg.Observability.Addr = "127.0.0.1:9100"
	cfg.Content.Path = "content/catalog.yaml"
	cfg.Log.Format = "json"
	cfg.Log.Level = "info"
	cfg.Flood.Burst = 30
	cfg.Flood.Rate = 10
	return cfg
}

// Load reads configuration in precedence order: defaults, then the
// YAML file at path (if non-empty), then flag overrides (if non-nil).
// Flag names use dotted keys matching the YAML structure, e.g.
// "server.addr".
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_READ_FAILED").
				With("path", path).
				Wrapf(err, "failed to load config file")
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, oops.Code("CONFIG_FLAGS_FAILED").
				Wrapf(err, "failed to load flag overrides")
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_PARSE_FAILED").
			Wrapf(err, "failed to unmarshal config")
	}
	return cfg, nil
}
