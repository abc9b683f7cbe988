// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/azeff/Attabench/attaresult"
	"github.com/azeff/Attabench/benchproto"
	"github.com/azeff/Attabench/benchtime"
)

// TestMain doubles as a fake benchmark executable: with
// ATTABENCH_FAKE_BENCH set, the test binary speaks the benchmark
// protocol instead of running tests. Run tests point the command at
// their own binary, exercising the real subprocess plumbing.
func TestMain(m *testing.M) {
	if os.Getenv("ATTABENCH_FAKE_BENCH") == "1" {
		fakeBenchMain()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

var fakeTasks = []string{"linear scan", "binary search"}

func fakeBenchMain() {
	if len(os.Args) >= 2 && os.Args[1] == "list" {
		for _, name := range fakeTasks {
			fmt.Println(name)
		}
		return
	}
	if len(os.Args) < 2 || os.Args[1] != "run" {
		fmt.Fprintln(os.Stderr, "unknown command")
		os.Exit(2)
	}
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	iterations := fs.Int("iterations", 1, "")
	fs.String("min-duration", "", "")
	fs.String("max-duration", "", "")
	sizesFlag := fs.String("sizes", "", "")
	fs.Parse(os.Args[2:])
	sizes, err := benchproto.ParseSizes(*sizesFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	w := benchproto.NewWriter(os.Stdout)
	for _, task := range fs.Args() {
		for _, size := range sizes {
			for i := 0; i < *iterations; i++ {
				elapsed := benchtime.FromDuration(time.Duration(size) * time.Nanosecond)
				if err := w.WriteMeasurement(task, size, elapsed); err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(2)
				}
			}
		}
	}
}

func fakeExecutable(t *testing.T) string {
	t.Helper()
	t.Setenv("ATTABENCH_FAKE_BENCH", "1")
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("Executable: %v", err)
	}
	return exe
}

// runArgs builds a run command line over three sizes (1, 2, 4) and two
// iterations, six measurements per task.
func runArgs(exe, output string, extra ...string) []string {
	args := []string{"run", "--source", exe, "--output", output,
		"--iterations", "2", "--min-scale", "0", "--max-scale", "2",
		"--subdivisions", "1", "--min-duration", "0s", "--max-duration", "1s"}
	return append(args, extra...)
}

func TestRunCommand(t *testing.T) {
	exe := fakeExecutable(t)
	output := filepath.Join(t.TempDir(), "fake.attaresult")
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(runArgs(exe, output))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	store, err := attaresult.Load(output)
	if err != nil {
		t.Fatalf("Load(%s): %v", output, err)
	}
	if got := store.Source(); got != exe {
		t.Errorf("Source = %q, want %q", got, exe)
	}
	for _, name := range fakeTasks {
		task := store.Task(name)
		if task == nil {
			t.Fatalf("task %q missing from document", name)
		}
		if got := task.SampleCount(); got != 6 {
			t.Errorf("task %q: %d measurements, want 6", name, got)
		}
		sample := task.Sample(4)
		if sample == nil || sample.Count() != 2 {
			t.Errorf("task %q, size 4: sample %v, want count 2", name, sample)
		}
	}
	if !strings.Contains(stdout.String(), "12 measurements") {
		t.Errorf("stdout = %q, want a 12 measurements summary", stdout.String())
	}
}

func TestRunAccumulates(t *testing.T) {
	exe := fakeExecutable(t)
	output := filepath.Join(t.TempDir(), "fake.attaresult")
	for i := 0; i < 2; i++ {
		if err := execute(runArgs(exe, output)...); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	store, err := attaresult.Load(output)
	if err != nil {
		t.Fatal(err)
	}
	task := store.Task("linear scan")
	if task == nil {
		t.Fatal("task missing from document")
	}
	if got := task.SampleCount(); got != 12 {
		t.Errorf("after two runs: %d measurements, want 12", got)
	}
}

func TestRunTaskSelection(t *testing.T) {
	exe := fakeExecutable(t)
	output := filepath.Join(t.TempDir(), "fake.attaresult")
	if err := execute(runArgs(exe, output, "--tasks", "linear scan")...); err != nil {
		t.Fatalf("run: %v", err)
	}
	store, err := attaresult.Load(output)
	if err != nil {
		t.Fatal(err)
	}
	task := store.Task("linear scan")
	if task == nil || task.SampleCount() != 6 {
		t.Fatalf("selected task: %v, want 6 measurements", task)
	}
	other := store.Task("binary search")
	if other == nil {
		t.Fatal("unselected task missing from document")
	}
	if got := other.SampleCount(); got != 0 {
		t.Errorf("unselected task measured %d times", got)
	}
	if other.Checked() {
		t.Error("unselected task still checked")
	}
}

func TestRunUnknownTask(t *testing.T) {
	exe := fakeExecutable(t)
	output := filepath.Join(t.TempDir(), "fake.attaresult")
	err := execute(runArgs(exe, output, "--tasks", "sorted insert")...)
	if err == nil || !strings.Contains(err.Error(), "unknown tasks") {
		t.Fatalf("unknown task: got %v, want an unknown tasks error", err)
	}
}

func TestTasksFromExecutable(t *testing.T) {
	exe := fakeExecutable(t)
	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tasks", exe})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if got, want := stdout.String(), "linear scan\nbinary search\n"; got != want {
		t.Errorf("tasks output = %q, want %q", got, want)
	}
}
