// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchchart turns measured tasks into render-ready chart
// data: curves selected per task and band, projected into the unit
// square, plus labelled axis ticks. Build is a pure function of its
// inputs and carries no rendering dependencies, so any front end can
// consume its output.
package benchchart

import (
	"math"
	"strconv"

	"github.com/azeff/Attabench/attaresult"
	"github.com/azeff/Attabench/benchsample"
	"github.com/azeff/Attabench/benchtime"
)

// A BandSlot names one of the three curve positions a task can plot.
type BandSlot int

const (
	SlotTop BandSlot = iota
	SlotCenter
	SlotBottom
)

var slotNames = [...]string{"top", "center", "bottom"}

func (s BandSlot) String() string {
	if s < 0 || int(s) >= len(slotNames) {
		return "invalid"
	}
	return slotNames[s]
}

// A Point is one plotted measurement. Size and Value carry the raw
// data (seconds, amortized when configured) for tables and tooltips;
// X and Y are the position in the unit square, X along the size axis
// and Y along the time axis.
type Point struct {
	Size  int64
	Value float64
	X, Y  float64
}

// A Tick is an axis label at a normalized position.
type Tick struct {
	Position float64
	Label    string
}

// An Axis describes one chart dimension. Min and Max are in data
// units (input size, or seconds); tick positions are normalized to
// [0, 1]. An Empty axis has no configured extent, so nothing can be
// plotted against it.
type Axis struct {
	Empty bool
	Min   float64
	Max   float64
	Ticks []Tick
}

// A Curve holds one task's points for one band, ascending along the
// size axis.
type Curve struct {
	Task   string
	Slot   BandSlot
	Band   benchsample.Band
	Points []Point
}

// A Chart is the render-ready selection: two axes and the curves of
// every checked task.
type Chart struct {
	SizeAxis Axis
	TimeAxis Axis
	Curves   []Curve
}

// Logarithmic bounds are floored at the smallest values the data
// model produces: size one, and one picosecond.
const minLogTime = 1e-12

// Build selects and projects chart data from a task snapshot. Only
// checked tasks contribute, each with up to three curves, one per
// configured band. With Amortized set, every plotted time is divided
// by its input size first. Points outside the configured extent are
// clipped out, and curves left without points are dropped. When
// either axis ends up empty the chart has no curves at all.
func Build(tasks []*attaresult.Task, opts attaresult.ChartOptions) *Chart {
	type rawPoint struct {
		size  int64
		value float64 // seconds, possibly amortized
	}
	type rawCurve struct {
		task   string
		slot   BandSlot
		band   benchsample.Band
		points []rawPoint
	}

	slots := [...]struct {
		slot BandSlot
		band benchsample.Band
	}{
		{SlotTop, opts.TopBand},
		{SlotCenter, opts.CenterBand},
		{SlotBottom, opts.BottomBand},
	}

	var (
		raw              []rawCurve
		haveData         bool
		minSize, maxSize int64
		minVal, maxVal   float64
	)
	for _, task := range tasks {
		if !task.Checked() {
			continue
		}
		for _, sl := range slots {
			if !sl.band.Valid() {
				continue
			}
			rc := rawCurve{task: task.Name(), slot: sl.slot, band: sl.band}
			for _, size := range task.Sizes() {
				t, ok := task.Sample(size).Band(sl.band)
				if !ok {
					continue
				}
				v := t.Float64()
				if opts.Amortized {
					v /= float64(size)
				}
				rc.points = append(rc.points, rawPoint{size, v})
				if !haveData {
					minSize, maxSize = size, size
					minVal, maxVal = v, v
					haveData = true
					continue
				}
				if size < minSize {
					minSize = size
				}
				if size > maxSize {
					maxSize = size
				}
				if v < minVal {
					minVal = v
				}
				if v > maxVal {
					maxVal = v
				}
			}
			if len(rc.points) > 0 {
				raw = append(raw, rc)
			}
		}
	}

	c := new(Chart)
	c.SizeAxis = sizeAxis(opts, haveData, float64(minSize), float64(maxSize))
	c.TimeAxis = timeAxis(opts, haveData, minVal, maxVal)
	if c.SizeAxis.Empty || c.TimeAxis.Empty {
		return c
	}

	sx := axisScale{opts.LogarithmicSize, c.SizeAxis.Min, c.SizeAxis.Max}
	sy := axisScale{opts.LogarithmicTime, c.TimeAxis.Min, c.TimeAxis.Max}
	for _, rc := range raw {
		curve := Curve{Task: rc.task, Slot: rc.slot, Band: rc.band}
		for _, p := range rc.points {
			x, okX := sx.project(float64(p.size))
			y, okY := sy.project(p.value)
			if !okX || !okY {
				continue
			}
			curve.Points = append(curve.Points, Point{p.size, p.value, x, y})
		}
		if len(curve.Points) > 0 {
			c.Curves = append(c.Curves, curve)
		}
	}
	return c
}

// axisBounds unions an optional explicit range with the measured
// extent. ok reports whether either source was configured.
func axisBounds(explicit bool, exLo, exHi float64, includeAll, haveData bool, dataLo, dataHi float64) (lo, hi float64, ok bool) {
	if explicit {
		lo, hi, ok = exLo, exHi, true
	}
	if includeAll && haveData {
		if !ok || dataLo < lo {
			lo = dataLo
		}
		if !ok || dataHi > hi {
			hi = dataHi
		}
		ok = true
	}
	return lo, hi, ok
}

func sizeAxis(opts attaresult.ChartOptions, haveData bool, dataLo, dataHi float64) Axis {
	var exLo, exHi float64
	if r := opts.DisplaySizeRange; r != nil {
		exLo, exHi = float64(r.Lo), float64(r.Hi)
	}
	lo, hi, ok := axisBounds(opts.DisplaySizeRange != nil, exLo, exHi,
		opts.IncludeAllMeasuredSizes, haveData, dataLo, dataHi)
	if !ok {
		return Axis{Empty: true}
	}
	if opts.LogarithmicSize && lo < 1 {
		lo = 1
		if hi < lo {
			hi = lo
		}
	}
	ax := Axis{Min: lo, Max: hi}
	ax.Ticks = sizeTicks(opts.LogarithmicSize, ax)
	return ax
}

func timeAxis(opts attaresult.ChartOptions, haveData bool, dataLo, dataHi float64) Axis {
	var exLo, exHi float64
	if r := opts.DisplayTimeRange; r != nil {
		exLo, exHi = r.Lo.Float64(), r.Hi.Float64()
	}
	lo, hi, ok := axisBounds(opts.DisplayTimeRange != nil, exLo, exHi,
		opts.IncludeAllMeasuredTimes, haveData, dataLo, dataHi)
	if !ok {
		return Axis{Empty: true}
	}
	if opts.LogarithmicTime && lo < minLogTime {
		lo = minLogTime
		if hi < lo {
			hi = lo
		}
	}
	ax := Axis{Min: lo, Max: hi}
	ax.Ticks = timeTicks(opts.LogarithmicTime, ax)
	return ax
}

type axisScale struct {
	log    bool
	lo, hi float64
}

// project maps x into [0, 1], reporting false when x lies outside the
// axis. A degenerate axis projects everything to 0. The logarithm
// base cancels in the ratio, so one scale serves log₂ and log₁₀ axes
// alike.
func (s axisScale) project(x float64) (float64, bool) {
	if x < s.lo || x > s.hi {
		return 0, false
	}
	lo, hi, v := s.lo, s.hi, x
	if s.log {
		lo, hi, v = math.Log(lo), math.Log(hi), math.Log(v)
	}
	if hi == lo {
		return 0, true
	}
	return (v - lo) / (hi - lo), true
}

// sizeTicks lays out the size labels: every power of two in range on
// a logarithmic axis, the two endpoints on a linear one, the single
// value of a degenerate axis at 0.
func sizeTicks(log bool, ax Axis) []Tick {
	if ax.Min == ax.Max {
		return []Tick{{0, SizeLabel(int64(math.Round(ax.Min)))}}
	}
	if !log {
		return []Tick{
			{0, SizeLabel(int64(math.Round(ax.Min)))},
			{1, SizeLabel(int64(math.Round(ax.Max)))},
		}
	}
	s := axisScale{true, ax.Min, ax.Max}
	var ticks []Tick
	eLo := int(math.Ceil(math.Log2(ax.Min) - 1e-9))
	eHi := int(math.Floor(math.Log2(ax.Max) + 1e-9))
	for e := eLo; e <= eHi; e++ {
		if e < 0 || e > 62 {
			continue
		}
		pos, ok := s.project(math.Pow(2, float64(e)))
		if !ok {
			continue
		}
		ticks = append(ticks, Tick{pos, SizeLabel(int64(1) << uint(e))})
	}
	return ticks
}

// timeTicks lays out the time labels: every power of ten in range on
// a logarithmic axis, the two endpoints on a linear one, the single
// value of a degenerate axis at 0.
func timeTicks(log bool, ax Axis) []Tick {
	if ax.Min == ax.Max {
		return []Tick{{0, TimeLabel(ax.Min)}}
	}
	if !log {
		return []Tick{{0, TimeLabel(ax.Min)}, {1, TimeLabel(ax.Max)}}
	}
	s := axisScale{true, ax.Min, ax.Max}
	var ticks []Tick
	kLo := int(math.Ceil(math.Log10(ax.Min) - 1e-9))
	kHi := int(math.Floor(math.Log10(ax.Max) + 1e-9))
	for k := kLo; k <= kHi; k++ {
		pos, ok := s.project(math.Pow(10, float64(k)))
		if !ok {
			continue
		}
		ticks = append(ticks, Tick{pos, powerLabel(k)})
	}
	return ticks
}

// powerLabel formats 10^k seconds through the exact picosecond
// representation where it fits, keeping labels like "1ns" and "100µs"
// free of floating point noise.
func powerLabel(k int) string {
	if k < -12 || k > 6 {
		return TimeLabel(math.Pow(10, float64(k)))
	}
	ps := int64(1)
	for i := -12; i < k; i++ {
		ps *= 10
	}
	return benchtime.FromPicoseconds(ps).String()
}

// TimeLabel renders a duration in seconds with an auto-scaled unit,
// "977ps" or "2.05µs". Values are carried through the exact picosecond
// representation so labels stay free of floating point noise.
func TimeLabel(sec float64) string {
	ps := math.Round(sec * 1e12)
	if ps < 0 || ps > math.MaxInt64 {
		return strconv.FormatFloat(sec, 'g', 3, 64) + "s"
	}
	return benchtime.FromPicoseconds(int64(ps)).String()
}

// SizeLabel labels an input size, using binary suffixes for exact
// multiples: "512", "1K", "64K", "1M".
func SizeLabel(n int64) string {
	switch {
	case n >= 1<<30 && n%(1<<30) == 0:
		return strconv.FormatInt(n>>30, 10) + "G"
	case n >= 1<<20 && n%(1<<20) == 0:
		return strconv.FormatInt(n>>20, 10) + "M"
	case n >= 1<<10 && n%(1<<10) == 0:
		return strconv.FormatInt(n>>10, 10) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}
