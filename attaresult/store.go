// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package attaresult holds benchmark results: named tasks with their
// per-size statistics, the run configuration and the chart
// configuration, persisted together as one JSON document.
//
// The Store is the owning aggregate. It keeps the ordered task list
// and the name index in lockstep behind one mutation API, so the two
// can never drift apart, and it notifies subscribed observers after
// every mutation.
package attaresult

import (
	"math"
	"sync"

	"github.com/azeff/Attabench/benchtime"
)

// A Change describes which part of a Store a mutation touched.
type Change int

const (
	// ChangedTaskList: tasks were added, pruned, or re-flagged
	// runnable from a fresh executable task list.
	ChangedTaskList Change = iota
	// ChangedTaskSelection: a task's checked flag was toggled.
	ChangedTaskSelection
	// ChangedMeasurements: samples were added or deleted.
	ChangedMeasurements
	// ChangedRunOptions: the run configuration was replaced.
	ChangedRunOptions
	// ChangedChartOptions: the chart configuration was replaced.
	ChangedChartOptions
)

// A Store is the aggregate root for one result document.
//
// All methods are safe for concurrent use, but the data model assumes
// one logical writer: the run controller and the user interface
// serialize their mutations through it one at a time.
type Store struct {
	mu        sync.Mutex
	source    string
	tasks     []*Task
	index     map[string]*Task
	run       RunOptions
	chart     ChartOptions
	observers []func(Change)
}

// New returns an empty Store with default run and chart options.
func New() *Store {
	return &Store{
		index: make(map[string]*Task),
		run:   DefaultRunOptions(),
		chart: DefaultChartOptions(),
	}
}

// Subscribe registers an observer called after every mutation, in
// mutation order. Observers run outside the Store's lock and may call
// back into the Store.
func (s *Store) Subscribe(fn func(Change)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) notify(c Change) {
	s.mu.Lock()
	obs := make([]func(Change), len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()
	for _, fn := range obs {
		fn(c)
	}
}

// SetSource records the path of the benchmark executable this
// document measures.
func (s *Store) SetSource(path string) {
	s.mu.Lock()
	s.source = path
	s.mu.Unlock()
}

// Source returns the recorded benchmark executable path, or "".
func (s *Store) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Task returns the named task, or nil.
func (s *Store) Task(name string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index[name]
}

// Tasks returns the tasks in document order. The slice is fresh; the
// elements are the live tasks and must only be read.
func (s *Store) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// SnapshotTasks returns deep copies of the tasks in document order,
// safe to read while the store keeps mutating.
func (s *Store) SnapshotTasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.clone()
	}
	return out
}

// ApplyTaskList merges a fresh task list from the benchmark
// executable. Unknown names are appended in list order as checked,
// runnable tasks. Existing tasks keep their position; those missing
// from the fresh list become non-runnable but are never deleted while
// they hold samples. Non-runnable tasks without samples are pruned.
func (s *Store) ApplyTaskList(names []string) {
	s.mu.Lock()
	fresh := make(map[string]bool, len(names))
	for _, name := range names {
		fresh[name] = true
	}
	for _, t := range s.tasks {
		t.runnable = fresh[t.name]
	}
	for _, name := range names {
		if _, ok := s.index[name]; ok {
			continue
		}
		t := newTask(name)
		t.runnable = true
		s.tasks = append(s.tasks, t)
		s.index[name] = t
	}
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.runnable && t.sampleCount == 0 {
			delete(s.index, t.name)
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	s.mu.Unlock()
	s.notify(ChangedTaskList)
}

// AddMeasurement records one measured duration for (name, size),
// creating the task on first reference.
func (s *Store) AddMeasurement(name string, size int64, d benchtime.Time) {
	s.mu.Lock()
	t := s.index[name]
	if t == nil {
		t = newTask(name)
		s.tasks = append(s.tasks, t)
		s.index[name] = t
	}
	t.addMeasurement(size, d)
	s.mu.Unlock()
	s.notify(ChangedMeasurements)
}

// SetTaskChecked toggles whether the named task is selected. It is a
// no-op for unknown names.
func (s *Store) SetTaskChecked(name string, checked bool) {
	s.mu.Lock()
	t := s.index[name]
	changed := t != nil && t.checked != checked
	if changed {
		t.checked = checked
	}
	s.mu.Unlock()
	if changed {
		s.notify(ChangedTaskSelection)
	}
}

// CheckedRunnableNames returns, in document order, the names the next
// run should measure: tasks both checked and runnable.
func (s *Store) CheckedRunnableNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, t := range s.tasks {
		if t.checked && t.runnable {
			out = append(out, t.name)
		}
	}
	return out
}

// DeleteResults drops samples from every task: all of them with r nil,
// otherwise only cells whose size lies in r.
func (s *Store) DeleteResults(r *SizeRange) {
	s.mu.Lock()
	for _, t := range s.tasks {
		t.deleteResults(r)
	}
	s.mu.Unlock()
	s.notify(ChangedMeasurements)
}

// RunOptions returns the current run configuration.
func (s *Store) RunOptions() RunOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// SetRunOptions replaces the run configuration. Both endpoints of each
// range are replaced together; crossed endpoints are swapped, scale
// exponents are clamped to [0, 32].
func (s *Store) SetRunOptions(o RunOptions) {
	o.normalize()
	s.mu.Lock()
	s.run = o
	s.mu.Unlock()
	s.notify(ChangedRunOptions)
}

// ChartOptions returns the current chart configuration.
func (s *Store) ChartOptions() ChartOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chart
}

// SetChartOptions replaces the chart configuration.
func (s *Store) SetChartOptions(o ChartOptions) {
	o.normalize()
	s.mu.Lock()
	s.chart = o
	s.mu.Unlock()
	s.notify(ChangedChartOptions)
}

// SelectedSizes returns the log-spaced size set the run configuration
// selects: floor(2^(i/subdivisions)) for every exponent step i from
// MinimumScale·subdivisions through MaximumScale·subdivisions,
// deduplicated, ascending.
func (s *Store) SelectedSizes() []int64 {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	var out []int64
	var last int64 = -1
	for i := run.MinimumScale * run.Subdivisions; i <= run.MaximumScale*run.Subdivisions; i++ {
		size := int64(math.Pow(2, float64(i)/float64(run.Subdivisions)))
		if size != last {
			out = append(out, size)
			last = size
		}
	}
	return out
}
