// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Builds produce bursts of filesystem events; reload only once they
// have settled this long.
const watchDebounce = 500 * time.Millisecond

// A Watcher invokes a reload callback when the benchmark executable
// changes on disk. It watches the executable's directory rather than
// the file: build tools replace the file by rename, which would
// silently drop a watch on the file itself.
type Watcher struct {
	fw   *fsnotify.Watcher
	log  *slog.Logger
	done chan struct{}
}

// WatchExecutable starts watching path and calls reload, debounced,
// after the file is written, created, or renamed into place. A nil
// logger uses slog.Default().
func WatchExecutable(path string, reload func(), log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{fw: fw, log: log, done: make(chan struct{})}
	go w.loop(filepath.Base(path), reload)
	return w, nil
}

func (w *Watcher) loop(base string, reload func()) {
	defer close(w.done)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Rename) {
				continue
			}
			w.log.Debug("benchmark executable changed", "op", ev.Op.String(), "path", ev.Name)
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, reload)
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

// Close stops watching. It does not wait for an in-flight reload
// callback to return.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}
