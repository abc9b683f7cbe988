// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/azeff/Attabench/attaresult"
	"github.com/azeff/Attabench/benchrun"
)

func newRunCmd(r *root) *cobra.Command {
	f := new(runFlags)
	var source, output string
	var watch bool
	cmd := &cobra.Command{
		Use:   "run --source <benchmark>",
		Short: "measure the benchmark's checked tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = source + ".attaresult"
			}
			return runBenchmark(cmd.OutOrStdout(), cmd.ErrOrStderr(), cmd.Flags(), f, r.cfg, source, output, watch)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "benchmark executable to measure")
	cmd.Flags().StringVar(&output, "output", "", "result document to update (default <source>.attaresult)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep measuring; reload when the executable is rebuilt")
	f.register(cmd.Flags())
	cmd.MarkFlagRequired("source")
	return cmd
}

// runBenchmark loads the benchmark, applies the configured options and
// task selection, and measures until the run finishes or is
// interrupted, saving the document as results arrive. With watch it
// starts a new pass whenever the previous one finishes and reloads the
// benchmark when its executable changes on disk.
func runBenchmark(outW, errW io.Writer, fs *pflag.FlagSet, f *runFlags, cfg fileConfig, source, output string, watch bool) error {
	store, err := loadOrCreate(output)
	if err != nil {
		return err
	}

	c := benchrun.NewController(store, slog.Default())
	defer c.Close()

	notify := make(chan struct{}, 1)
	c.OnStateChange = func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
	c.Progress = func(text string) {
		fmt.Fprintln(errW, text)
	}

	// Saves are serialized: the final save must not race a pending
	// autosave into renaming a stale temp file over a fresh one.
	var saveMu sync.Mutex
	save := func() error {
		saveMu.Lock()
		defer saveMu.Unlock()
		return store.Save(output)
	}
	autosave := benchrun.NewRateLimiter(store.ChartOptions().ProgressRefreshInterval, func() {
		if err := save(); err != nil {
			slog.Warn("autosave failed", "path", output, "err", err)
		}
	})
	defer autosave.Stop()
	store.Subscribe(func(attaresult.Change) {
		autosave.Later()
	})

	if err := c.Load(source); err != nil {
		return err
	}
	if err := waitLoaded(c, notify, source); err != nil {
		return err
	}
	if err := applyRunOptions(store, fs, f, cfg); err != nil {
		return err
	}
	if err := selectTasks(store, fs, f, cfg); err != nil {
		return err
	}

	if watch {
		w, err := benchrun.WatchExecutable(source, func() { c.Reload() }, slog.Default())
		if err != nil {
			return err
		}
		defer w.Close()
	}

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	if err := c.Start(); err != nil {
		return err
	}
	stopping := false
	for {
		select {
		case <-sig:
			if stopping {
				return errors.New("aborted")
			}
			stopping = true
			fmt.Fprintln(errW, "stopping (interrupt again to abort)")
			c.Stop()
		case <-notify:
		}
		switch c.State() {
		case benchrun.Idle:
			if watch && !stopping {
				if err := c.Start(); err != nil {
					// The executable may be mid-rebuild; the watcher
					// reload recovers once the build settles.
					slog.Warn("restart failed", "source", source, "err", err)
				}
				continue
			}
			if err := save(); err != nil {
				return err
			}
			tasks := store.SnapshotTasks()
			var total int64
			for _, t := range tasks {
				total += t.SampleCount()
			}
			fmt.Fprintf(outW, "%s: %d tasks, %d measurements\n", output, len(tasks), total)
			return nil
		case benchrun.Waiting:
			if stopping {
				c.Stop()
				continue
			}
			if !watch {
				return errors.New("no checked runnable tasks; nothing to measure")
			}
		case benchrun.Failed:
			if watch && !stopping {
				slog.Warn("benchmark failed; waiting for a rebuild", "source", source)
				continue
			}
			return fmt.Errorf("benchmark %s failed; see log for its stderr", source)
		}
	}
}

// loadOrCreate opens an existing result document, or starts a fresh
// one when output does not exist yet.
func loadOrCreate(output string) (*attaresult.Store, error) {
	store, err := attaresult.Load(output)
	if errors.Is(err, os.ErrNotExist) {
		return attaresult.New(), nil
	}
	return store, err
}

// waitLoaded blocks until the initial task-list fetch settles.
func waitLoaded(c *benchrun.Controller, notify <-chan struct{}, source string) error {
	for {
		switch c.State() {
		case benchrun.Idle:
			return nil
		case benchrun.Failed:
			return fmt.Errorf("benchmark %s failed to load; see log for its stderr", source)
		}
		<-notify
	}
}

// selectTasks applies the configured task selection: the named tasks
// are checked, all others unchecked. An empty selection keeps the
// document's checkboxes. Names matching no known task are an error,
// reported before anything is changed.
func selectTasks(store *attaresult.Store, fs *pflag.FlagSet, f *runFlags, cfg fileConfig) error {
	names := cfg.Tasks
	if fs.Changed("tasks") {
		names = f.tasks
	}
	if len(names) == 0 {
		return nil
	}
	tasks := store.Tasks()
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.Name()] = true
	}
	want := make(map[string]bool, len(names))
	var unknown []string
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
			continue
		}
		want[name] = true
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("unknown tasks: %s", strings.Join(unknown, ", "))
	}
	for _, t := range tasks {
		store.SetTaskChecked(t.Name(), want[t.Name()])
	}
	return nil
}
