// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attaresult

import (
	"sort"

	"github.com/azeff/Attabench/benchsample"
	"github.com/azeff/Attabench/benchtime"
)

// A Task is one named benchmark subject and its accumulated statistics,
// held as a sparse map from input size to TimeSample. Task identity is
// the name; two tasks with the same name are the same task.
//
// Tasks are owned by a Store and mutated only through it.
type Task struct {
	name        string
	samples     map[int64]*benchsample.TimeSample
	checked     bool
	runnable    bool
	sampleCount int64
}

func newTask(name string) *Task {
	return &Task{
		name:    name,
		samples: make(map[int64]*benchsample.TimeSample),
		checked: true,
	}
}

// Name returns the task's identifying name.
func (t *Task) Name() string { return t.name }

// Checked reports whether the task is selected for running and
// charting.
func (t *Task) Checked() bool { return t.checked }

// Runnable reports whether the most recent task list from the
// benchmark executable included this task.
func (t *Task) Runnable() bool { return t.runnable }

// SampleCount returns the total number of measurements across all
// sizes.
func (t *Task) SampleCount() int64 { return t.sampleCount }

// Sizes returns the sizes with recorded samples, ascending.
func (t *Task) Sizes() []int64 {
	out := make([]int64, 0, len(t.samples))
	for size := range t.samples {
		out = append(out, size)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sample returns the accumulator for size, or nil if the task has no
// measurements at that size.
func (t *Task) Sample(size int64) *benchsample.TimeSample {
	return t.samples[size]
}

// Bounds returns the size range and time range spanned by the cells
// where band resolves. With amortized set, each resolved time is
// divided by its size first. It reports false when no cell resolves.
func (t *Task) Bounds(band benchsample.Band, amortized bool) (SizeRange, TimeRange, bool) {
	var (
		sizes SizeRange
		times TimeRange
		any   bool
	)
	for size, sample := range t.samples {
		v, ok := sample.Band(band)
		if !ok {
			continue
		}
		if amortized {
			v = v.DivInt(size)
		}
		if !any {
			sizes = SizeRange{size, size}
			times = TimeRange{v, v}
			any = true
			continue
		}
		if size < sizes.Lo {
			sizes.Lo = size
		}
		if size > sizes.Hi {
			sizes.Hi = size
		}
		if v.Cmp(times.Lo) < 0 {
			times.Lo = v
		}
		if v.Cmp(times.Hi) > 0 {
			times.Hi = v
		}
	}
	return sizes, times, any
}

// addMeasurement folds one measurement into the cell for size,
// creating the cell on first use.
func (t *Task) addMeasurement(size int64, d benchtime.Time) {
	sample := t.samples[size]
	if sample == nil {
		sample = new(benchsample.TimeSample)
		t.samples[size] = sample
	}
	sample.AddMeasurement(d)
	t.sampleCount++
}

// deleteResults drops every cell, or with r non-nil only the cells
// whose size lies in r, and recomputes the sample count.
func (t *Task) deleteResults(r *SizeRange) {
	if r == nil {
		t.samples = make(map[int64]*benchsample.TimeSample)
		t.sampleCount = 0
		return
	}
	for size := range t.samples {
		if r.Contains(size) {
			delete(t.samples, size)
		}
	}
	var n int64
	for _, sample := range t.samples {
		n += sample.Count()
	}
	t.sampleCount = n
}

// clone returns a deep copy safe for concurrent reading. TimeSample
// values are copied; the Times inside are immutable and shared.
func (t *Task) clone() *Task {
	c := &Task{
		name:        t.name,
		samples:     make(map[int64]*benchsample.TimeSample, len(t.samples)),
		checked:     t.checked,
		runnable:    t.runnable,
		sampleCount: t.sampleCount,
	}
	for size, sample := range t.samples {
		dup := *sample
		c.samples[size] = &dup
	}
	return c
}
