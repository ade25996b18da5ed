package main

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/PrincetonUniversity/flock"
	"github.com/pkg/errors"
)

// Config holds the simulation parameters and how the run is presented.
type Config struct {
	flock.Config

	// Output is either a filename (path) for the HDF5 output file,
	// or the empty string to run without recording.
	Output string `toml:"output"`

	// Listen is the address serving the live websocket stream at /ws.
	// It is ignored when Output is set.
	Listen   string        `toml:"listen"`
	Interval time.Duration `toml:"interval"` // pause between two streamed ticks

	LogLevel    string `toml:"log_level"`    // possible values: debug, info, warn, error
	ReportEvery int    `toml:"report_every"` // ticks between two progress logs, 0 means never
}

// DefaultConf returns the default parameters.
func DefaultConf() *Config {
	return &Config{
		Config:      flock.DefaultConfig(),
		Interval:    50 * time.Millisecond,
		LogLevel:    "info",
		ReportEvery: 100,
	}
}

// ParseConfig parses the TOML config file whose path is provided.
func ParseConfig(path string) (*Config, error) {
	// config file overwrites default parameters
	conf := DefaultConf()
	md, err := toml.DecodeFile(path, conf)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return nil, errors.Errorf("%s: unknown parameters %s", path, strings.Join(names, ", "))
	}
	if conf.Interval < 0 {
		return nil, errors.Errorf("%s: negative interval %v", path, conf.Interval)
	}
	if conf.ReportEvery < 0 {
		return nil, errors.Errorf("%s: negative report_every %d", path, conf.ReportEvery)
	}
	return conf, nil
}
