// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attaresult

import (
	"time"

	"github.com/azeff/Attabench/benchsample"
	"github.com/azeff/Attabench/benchtime"
)

// Size-scale exponents are clamped to this range; a scale of n selects
// input size 2^n, so 32 already exceeds the 32-bit range.
const (
	MinScale = 0
	MaxScale = 32
)

// A SizeRange is an inclusive range of input sizes.
type SizeRange struct {
	Lo, Hi int64
}

// Contains reports whether size lies in r.
func (r SizeRange) Contains(size int64) bool {
	return r.Lo <= size && size <= r.Hi
}

// A TimeRange is an inclusive range of durations.
type TimeRange struct {
	Lo, Hi benchtime.Time
}

// RunOptions configure how a benchmark run samples its tasks.
type RunOptions struct {
	// Iterations is the number of measurements requested per
	// (task, size) cell.
	Iterations int
	// MinimumDuration and MaximumDuration budget the time spent on
	// one cell: the subprocess keeps repeating at least the minimum
	// and stops after the maximum.
	MinimumDuration benchtime.Time
	MaximumDuration benchtime.Time
	// MinimumScale and MaximumScale bound the size exponents;
	// sizes run from 2^MinimumScale to 2^MaximumScale.
	MinimumScale int
	MaximumScale int
	// Subdivisions is the number of log-spaced sizes per factor of
	// two.
	Subdivisions int
}

// DefaultRunOptions returns the documented defaults: three iterations,
// a 0.01s–10s duration budget, scales 0–20, eight subdivisions.
func DefaultRunOptions() RunOptions {
	min, _ := benchtime.ParseSeconds("0.01")
	max, _ := benchtime.ParseSeconds("10")
	return RunOptions{
		Iterations:      3,
		MinimumDuration: min,
		MaximumDuration: max,
		MinimumScale:    0,
		MaximumScale:    20,
		Subdivisions:    8,
	}
}

// normalize clamps scales and subdivisions and keeps both ranges
// ordered, swapping endpoints when a caller crossed them.
func (o *RunOptions) normalize() {
	if o.Iterations < 1 {
		o.Iterations = 1
	}
	if o.Subdivisions < 1 {
		o.Subdivisions = 1
	}
	o.MinimumScale = clampScale(o.MinimumScale)
	o.MaximumScale = clampScale(o.MaximumScale)
	if o.MinimumScale > o.MaximumScale {
		o.MinimumScale, o.MaximumScale = o.MaximumScale, o.MinimumScale
	}
	if o.MinimumDuration.Cmp(o.MaximumDuration) > 0 {
		o.MinimumDuration, o.MaximumDuration = o.MaximumDuration, o.MinimumDuration
	}
}

func clampScale(n int) int {
	if n < MinScale {
		return MinScale
	}
	if n > MaxScale {
		return MaxScale
	}
	return n
}

// ChartOptions configure which statistics are charted and how the
// axes are scaled. The zero value of a band field means that band is
// not drawn.
type ChartOptions struct {
	// Amortized divides every plotted time by its input size,
	// charting per-element cost.
	Amortized bool
	// LogarithmicSize and LogarithmicTime select log₂ and log₁₀ axes;
	// unset they select linear axes.
	LogarithmicSize bool
	LogarithmicTime bool
	// The three drawn statistics, outermost to innermost.
	TopBand    benchsample.Band
	CenterBand benchsample.Band
	BottomBand benchsample.Band
	// HighlightSelectedSizes marks the currently selected size set on
	// the chart.
	HighlightSelectedSizes bool
	// DisplaySizeRange, when non-nil, pins the size axis; with
	// IncludeAllMeasuredSizes the axis also grows to cover measured
	// sizes. If neither is configured the size axis is empty.
	DisplaySizeRange        *SizeRange
	IncludeAllMeasuredSizes bool
	// DisplayTimeRange and IncludeAllMeasuredTimes mirror the size
	// axis rules for the time axis.
	DisplayTimeRange        *TimeRange
	IncludeAllMeasuredTimes bool
	// Theme names the renderer theme; the core does not interpret it.
	Theme string
	// ProgressRefreshInterval caps how often buffered measurements
	// are flushed; ChartRefreshInterval caps chart and status
	// recomputation.
	ProgressRefreshInterval time.Duration
	ChartRefreshInterval    time.Duration
}

// DefaultChartOptions returns the documented defaults: a 2-sigma top
// band over the average with a minimum floor, log-log axes, all
// measured data included, 0.2s and 5s refresh intervals.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		Amortized:               false,
		LogarithmicSize:         true,
		LogarithmicTime:         true,
		TopBand:                 benchsample.Sigma(2),
		CenterBand:              benchsample.Average,
		BottomBand:              benchsample.Minimum,
		IncludeAllMeasuredSizes: true,
		IncludeAllMeasuredTimes: true,
		ProgressRefreshInterval: 200 * time.Millisecond,
		ChartRefreshInterval:    5 * time.Second,
	}
}

// normalize keeps ranges ordered and intervals positive.
func (o *ChartOptions) normalize() {
	if o.DisplaySizeRange != nil && o.DisplaySizeRange.Lo > o.DisplaySizeRange.Hi {
		o.DisplaySizeRange.Lo, o.DisplaySizeRange.Hi = o.DisplaySizeRange.Hi, o.DisplaySizeRange.Lo
	}
	if o.DisplayTimeRange != nil && o.DisplayTimeRange.Lo.Cmp(o.DisplayTimeRange.Hi) > 0 {
		o.DisplayTimeRange.Lo, o.DisplayTimeRange.Hi = o.DisplayTimeRange.Hi, o.DisplayTimeRange.Lo
	}
	if o.ProgressRefreshInterval <= 0 {
		o.ProgressRefreshInterval = 200 * time.Millisecond
	}
	if o.ChartRefreshInterval <= 0 {
		o.ChartRefreshInterval = 5 * time.Second
	}
}
