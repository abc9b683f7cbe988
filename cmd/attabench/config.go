// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/azeff/Attabench/attaresult"
	"github.com/azeff/Attabench/benchsample"
	"github.com/azeff/Attabench/benchtime"
)

// fileConfig mirrors the option flags, keyed by flag name. Only fields
// present in the file take effect; they override the document's stored
// options and are themselves overridden by explicit flags.
type fileConfig struct {
	Iterations   *int     `yaml:"iterations"`
	MinDuration  *string  `yaml:"min-duration"`
	MaxDuration  *string  `yaml:"max-duration"`
	MinScale     *int     `yaml:"min-scale"`
	MaxScale     *int     `yaml:"max-scale"`
	Subdivisions *int     `yaml:"subdivisions"`
	Tasks        []string `yaml:"tasks"`
	Amortized    *bool    `yaml:"amortized"`
	LinearSize   *bool    `yaml:"linear-size"`
	LinearTime   *bool    `yaml:"linear-time"`
	Band         *string  `yaml:"band"`
	Top          *string  `yaml:"top"`
	Bottom       *string  `yaml:"bottom"`
}

// loadConfig reads the YAML config file at path, or returns an empty
// config when path is "". Unknown keys are an error so that typos do
// not silently fall back to defaults.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// parseDurationArg accepts a unit-suffixed duration ("250ms") or a
// plain decimal number of seconds ("0.25").
func parseDurationArg(s string) (benchtime.Time, error) {
	if d, err := benchtime.ParseTime(s); err == nil {
		return d, nil
	}
	return benchtime.ParseSeconds(s)
}

// parseBandArg parses a band flag value; "none" clears the band.
func parseBandArg(s string) (benchsample.Band, error) {
	if s == "none" {
		return benchsample.Band{}, nil
	}
	return benchsample.ParseBand(s)
}

// runFlags are the sampling options shared by the run command and the
// config file.
type runFlags struct {
	iterations   int
	minDuration  string
	maxDuration  string
	minScale     int
	maxScale     int
	subdivisions int
	tasks        []string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.iterations, "iterations", 0, "measurements per task and size")
	fs.StringVar(&f.minDuration, "min-duration", "", "keep repeating a cell at least this long")
	fs.StringVar(&f.maxDuration, "max-duration", "", "stop repeating a cell after this long")
	fs.IntVar(&f.minScale, "min-scale", 0, "smallest size exponent; sizes start at 2^n")
	fs.IntVar(&f.maxScale, "max-scale", 0, "largest size exponent")
	fs.IntVar(&f.subdivisions, "subdivisions", 0, "log-spaced sizes per factor of two")
	fs.StringSliceVar(&f.tasks, "tasks", nil, "run only the named tasks")
}

// applyRunOptions layers config file values and explicit flags over
// the document's stored run options.
func applyRunOptions(store *attaresult.Store, fs *pflag.FlagSet, f *runFlags, cfg fileConfig) error {
	o := store.RunOptions()
	if cfg.Iterations != nil {
		o.Iterations = *cfg.Iterations
	}
	if cfg.MinDuration != nil {
		d, err := parseDurationArg(*cfg.MinDuration)
		if err != nil {
			return fmt.Errorf("config min-duration: %w", err)
		}
		o.MinimumDuration = d
	}
	if cfg.MaxDuration != nil {
		d, err := parseDurationArg(*cfg.MaxDuration)
		if err != nil {
			return fmt.Errorf("config max-duration: %w", err)
		}
		o.MaximumDuration = d
	}
	if cfg.MinScale != nil {
		o.MinimumScale = *cfg.MinScale
	}
	if cfg.MaxScale != nil {
		o.MaximumScale = *cfg.MaxScale
	}
	if cfg.Subdivisions != nil {
		o.Subdivisions = *cfg.Subdivisions
	}
	if fs.Changed("iterations") {
		o.Iterations = f.iterations
	}
	if fs.Changed("min-duration") {
		d, err := parseDurationArg(f.minDuration)
		if err != nil {
			return fmt.Errorf("--min-duration: %w", err)
		}
		o.MinimumDuration = d
	}
	if fs.Changed("max-duration") {
		d, err := parseDurationArg(f.maxDuration)
		if err != nil {
			return fmt.Errorf("--max-duration: %w", err)
		}
		o.MaximumDuration = d
	}
	if fs.Changed("min-scale") {
		o.MinimumScale = f.minScale
	}
	if fs.Changed("max-scale") {
		o.MaximumScale = f.maxScale
	}
	if fs.Changed("subdivisions") {
		o.Subdivisions = f.subdivisions
	}
	store.SetRunOptions(o)
	return nil
}

// chartFlags are the report options shared by the report command and
// the config file.
type chartFlags struct {
	band       string
	top        string
	bottom     string
	amortized  bool
	linearSize bool
	linearTime bool
}

func (f *chartFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.band, "band", "", "center statistic: minimum, maximum, average, count or <n>sigma")
	fs.StringVar(&f.top, "top", "", "top statistic, or none")
	fs.StringVar(&f.bottom, "bottom", "", "bottom statistic, or none")
	fs.BoolVar(&f.amortized, "amortized", false, "report per-element time, dividing by input size")
	fs.BoolVar(&f.linearSize, "linear-size", false, "linear size axis instead of log2")
	fs.BoolVar(&f.linearTime, "linear-time", false, "linear time axis instead of log10")
}

// applyChartOptions layers config file values and explicit flags over
// opts. The document itself is not modified.
func applyChartOptions(opts *attaresult.ChartOptions, fs *pflag.FlagSet, f *chartFlags, cfg fileConfig) error {
	if cfg.Amortized != nil {
		opts.Amortized = *cfg.Amortized
	}
	if cfg.LinearSize != nil {
		opts.LogarithmicSize = !*cfg.LinearSize
	}
	if cfg.LinearTime != nil {
		opts.LogarithmicTime = !*cfg.LinearTime
	}
	if cfg.Band != nil {
		b, err := parseBandArg(*cfg.Band)
		if err != nil {
			return fmt.Errorf("config band: %w", err)
		}
		opts.CenterBand = b
	}
	if cfg.Top != nil {
		b, err := parseBandArg(*cfg.Top)
		if err != nil {
			return fmt.Errorf("config top: %w", err)
		}
		opts.TopBand = b
	}
	if cfg.Bottom != nil {
		b, err := parseBandArg(*cfg.Bottom)
		if err != nil {
			return fmt.Errorf("config bottom: %w", err)
		}
		opts.BottomBand = b
	}
	if fs.Changed("amortized") {
		opts.Amortized = f.amortized
	}
	if fs.Changed("linear-size") {
		opts.LogarithmicSize = !f.linearSize
	}
	if fs.Changed("linear-time") {
		opts.LogarithmicTime = !f.linearTime
	}
	if fs.Changed("band") {
		b, err := parseBandArg(f.band)
		if err != nil {
			return fmt.Errorf("--band: %w", err)
		}
		opts.CenterBand = b
	}
	if fs.Changed("top") {
		b, err := parseBandArg(f.top)
		if err != nil {
			return fmt.Errorf("--top: %w", err)
		}
		opts.TopBand = b
	}
	if fs.Changed("bottom") {
		b, err := parseBandArg(f.bottom)
		if err != nil {
			return fmt.Errorf("--bottom: %w", err)
		}
		opts.BottomBand = b
	}
	return nil
}
