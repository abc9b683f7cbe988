// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func startWatcher(t *testing.T, path string) (*Watcher, *atomic.Int32) {
	t.Helper()
	var reloads atomic.Int32
	w, err := WatchExecutable(path, func() { reloads.Add(1) },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("WatchExecutable: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, &reloads
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench")
	if err := os.WriteFile(path, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, reloads := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("v2"), 0o755); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "debounced reload", func() bool { return reloads.Load() >= 1 })
}

func TestWatcherRenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench")
	if err := os.WriteFile(path, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, reloads := startWatcher(t, path)

	// The usual build-tool dance: write to a scratch name, rename
	// over the real one.
	tmp := filepath.Join(dir, "bench.tmp")
	if err := os.WriteFile(tmp, []byte("v2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "reload after rename", func() bool { return reloads.Load() >= 1 })
}

func TestWatcherIgnoresNeighbors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench")
	if err := os.WriteFile(path, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, reloads := startWatcher(t, path)

	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(watchDebounce + 200*time.Millisecond)
	if got := reloads.Load(); got != 0 {
		t.Errorf("a neighboring file change triggered %d reloads", got)
	}
}
