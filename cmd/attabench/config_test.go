// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/azeff/Attabench/attaresult"
	"github.com/azeff/Attabench/benchsample"
	"github.com/azeff/Attabench/benchtime"
)

func mt(t *testing.T, s string) benchtime.Time {
	t.Helper()
	d, err := benchtime.ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime(%q): %v", s, err)
	}
	return d
}

func iptr(v int) *int { return &v }

func sptr(v string) *string { return &v }

func bptr(v bool) *bool { return &v }

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "iterations: 5\nmin-duration: 10ms\ntasks: [append, insert]\nband: maximum\n")
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Iterations == nil || *cfg.Iterations != 5 {
		t.Errorf("Iterations = %v, want 5", cfg.Iterations)
	}
	if cfg.MinDuration == nil || *cfg.MinDuration != "10ms" {
		t.Errorf("MinDuration = %v, want 10ms", cfg.MinDuration)
	}
	if strings.Join(cfg.Tasks, ",") != "append,insert" {
		t.Errorf("Tasks = %v", cfg.Tasks)
	}
	if cfg.Band == nil || *cfg.Band != "maximum" {
		t.Errorf("Band = %v, want maximum", cfg.Band)
	}
	if cfg.MaxScale != nil {
		t.Errorf("MaxScale = %v, want nil", cfg.MaxScale)
	}
}

func TestLoadConfigEmptyAndMissing(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil || cfg.Iterations != nil {
		t.Errorf("no path: cfg %+v, err %v", cfg, err)
	}
	cfg, err = loadConfig(writeConfig(t, ""))
	if err != nil || cfg.Iterations != nil {
		t.Errorf("empty file: cfg %+v, err %v", cfg, err)
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("absent file: got nil error")
	}
}

func TestLoadConfigUnknownKey(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "iterations: 5\nbogus: 1\n"))
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("unknown key: got %v, want an error naming bogus", err)
	}
}

func TestRunOptionPrecedence(t *testing.T) {
	store := attaresult.New()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	f := new(runFlags)
	f.register(fs)
	if err := fs.Parse([]string{"--iterations", "9", "--min-duration", "1ms"}); err != nil {
		t.Fatal(err)
	}
	cfg := fileConfig{
		Iterations:  iptr(5),
		MinDuration: sptr("2ms"),
		MinScale:    iptr(3),
	}
	if err := applyRunOptions(store, fs, f, cfg); err != nil {
		t.Fatal(err)
	}
	o := store.RunOptions()
	if o.Iterations != 9 {
		t.Errorf("Iterations = %d, want 9 (flag over config)", o.Iterations)
	}
	if o.MinimumDuration.Cmp(mt(t, "1ms")) != 0 {
		t.Errorf("MinimumDuration = %v, want 1ms (flag over config)", o.MinimumDuration)
	}
	if o.MinimumScale != 3 {
		t.Errorf("MinimumScale = %d, want 3 (config over document)", o.MinimumScale)
	}
	if o.Subdivisions != attaresult.DefaultRunOptions().Subdivisions {
		t.Errorf("Subdivisions = %d, want the default", o.Subdivisions)
	}
}

func TestChartOptionPrecedence(t *testing.T) {
	opts := attaresult.DefaultChartOptions()
	fs := pflag.NewFlagSet("report", pflag.ContinueOnError)
	f := new(chartFlags)
	f.register(fs)
	if err := fs.Parse([]string{"--band", "maximum"}); err != nil {
		t.Fatal(err)
	}
	cfg := fileConfig{
		Band:       sptr("count"),
		Top:        sptr("none"),
		LinearTime: bptr(true),
	}
	if err := applyChartOptions(&opts, fs, f, cfg); err != nil {
		t.Fatal(err)
	}
	if opts.CenterBand != benchsample.Maximum {
		t.Errorf("CenterBand = %v, want maximum (flag over config)", opts.CenterBand)
	}
	if opts.TopBand.Valid() {
		t.Errorf("TopBand = %v, want cleared", opts.TopBand)
	}
	if opts.LogarithmicTime {
		t.Error("LogarithmicTime = true, want false from config linear-time")
	}
	if !opts.LogarithmicSize {
		t.Error("LogarithmicSize = false, want the default true")
	}
	if opts.BottomBand != benchsample.Minimum {
		t.Errorf("BottomBand = %v, want the default minimum", opts.BottomBand)
	}
}

func TestParseDurationArg(t *testing.T) {
	d, err := parseDurationArg("250ms")
	if err != nil || d.Cmp(mt(t, "250ms")) != 0 {
		t.Errorf("250ms: %v, %v", d, err)
	}
	d, err = parseDurationArg("0.25")
	if err != nil || d.Cmp(mt(t, "250ms")) != 0 {
		t.Errorf("0.25: %v, %v", d, err)
	}
	if _, err := parseDurationArg("fast"); err == nil {
		t.Error("fast: got nil error")
	}
}

func TestParseBandArg(t *testing.T) {
	b, err := parseBandArg("none")
	if err != nil || b.Valid() {
		t.Errorf("none: %v, %v", b, err)
	}
	b, err = parseBandArg("2sigma")
	if err != nil || b != benchsample.Sigma(2) {
		t.Errorf("2sigma: %v, %v", b, err)
	}
	if _, err := parseBandArg("bogus"); err == nil {
		t.Error("bogus: got nil error")
	}
}
