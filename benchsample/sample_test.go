// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchsample

import (
	"math"
	"testing"

	"github.com/aclements/go-moremath/stats"

	"github.com/azeff/Attabench/benchtime"
)

func sampleOf(t *testing.T, times ...string) *TimeSample {
	t.Helper()
	s := new(TimeSample)
	for _, ts := range times {
		d, err := benchtime.ParseTime(ts)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", ts, err)
		}
		s.AddMeasurement(d)
	}
	return s
}

func TestSampleMoments(t *testing.T) {
	s := sampleOf(t, "30ms", "10ms", "20ms", "20ms")
	if s.Count() != 4 {
		t.Errorf("Count = %d, want 4", s.Count())
	}
	if got := s.Minimum().Seconds(); got != "0.01" {
		t.Errorf("Minimum = %q s, want \"0.01\"", got)
	}
	if got := s.Maximum().Seconds(); got != "0.03" {
		t.Errorf("Maximum = %q s, want \"0.03\"", got)
	}
	avg, ok := s.Average()
	if !ok || avg.Seconds() != "0.02" {
		t.Errorf("Average = %q s, %v, want \"0.02\", true", avg.Seconds(), ok)
	}

	// Cross-check the mean against a two-pass float computation.
	fl := stats.Sample{Xs: []float64{0.03, 0.01, 0.02, 0.02}}
	if diff := math.Abs(avg.Float64() - fl.Mean()); diff > 1e-12 {
		t.Errorf("Average differs from two-pass mean by %g", diff)
	}
}

func TestAverageRounding(t *testing.T) {
	// 1ps + 2ps over 2 measurements: 1.5ps rounds half-up to 2ps.
	s := new(TimeSample)
	s.AddMeasurement(benchtime.FromPicoseconds(1))
	s.AddMeasurement(benchtime.FromPicoseconds(2))
	avg, ok := s.Average()
	if !ok || !avg.Equal(benchtime.FromPicoseconds(2)) {
		t.Errorf("Average = %sps, %v, want 2ps, true", avg.Picoseconds(), ok)
	}
}

func TestStandardDeviation(t *testing.T) {
	t.Run("one measurement", func(t *testing.T) {
		s := sampleOf(t, "10ms")
		if sd, ok := s.StandardDeviation(); ok {
			t.Errorf("StandardDeviation = %v, want absent", sd)
		}
	})

	t.Run("identical measurements", func(t *testing.T) {
		s := sampleOf(t, "10ms", "10ms", "10ms")
		sd, ok := s.StandardDeviation()
		if !ok {
			t.Fatal("StandardDeviation absent, want zero")
		}
		if !sd.IsZero() {
			t.Errorf("StandardDeviation = %s, want zero", sd)
		}
	})

	t.Run("spread measurements", func(t *testing.T) {
		s := sampleOf(t, "10ms", "20ms", "30ms")
		sd, ok := s.StandardDeviation()
		if !ok {
			t.Fatal("StandardDeviation absent")
		}
		// (3·(100+400+900) − 60²) / (3·2) = 100 ms², whose root is
		// exactly 10ms.
		if got := sd.Seconds(); got != "0.01" {
			t.Errorf("StandardDeviation = %q s, want \"0.01\"", got)
		}
		// And the independent two-pass computation agrees.
		fl := stats.Sample{Xs: []float64{0.01, 0.02, 0.03}}
		if diff := math.Abs(sd.Float64() - fl.StdDev()); diff > 1e-12 {
			t.Errorf("StandardDeviation differs from two-pass value by %g", diff)
		}
	})
}

func TestAddSample(t *testing.T) {
	all := sampleOf(t, "10ms", "20ms", "30ms", "40ms", "50ms")
	a := sampleOf(t, "10ms", "20ms")
	b := sampleOf(t, "30ms", "40ms", "50ms")
	a.AddSample(b)

	if a.Count() != all.Count() {
		t.Errorf("merged Count = %d, want %d", a.Count(), all.Count())
	}
	if !a.Minimum().Equal(all.Minimum()) || !a.Maximum().Equal(all.Maximum()) {
		t.Errorf("merged extrema = [%s, %s], want [%s, %s]",
			a.Minimum(), a.Maximum(), all.Minimum(), all.Maximum())
	}
	if !a.Sum().Equal(all.Sum()) || !a.SumSquared().Equal(all.SumSquared()) {
		t.Errorf("merged sums differ from direct accumulation")
	}

	// Merging into an empty sample copies it.
	empty := new(TimeSample)
	empty.AddSample(all)
	if empty.Count() != all.Count() || !empty.Minimum().Equal(all.Minimum()) {
		t.Errorf("merge into empty sample lost data")
	}
	// Merging an empty or nil sample is a no-op.
	before := all.Count()
	all.AddSample(new(TimeSample))
	all.AddSample(nil)
	if all.Count() != before {
		t.Errorf("merging empty sample changed count to %d", all.Count())
	}
}

func TestBandResolution(t *testing.T) {
	s := sampleOf(t, "10ms", "20ms", "30ms")
	tests := []struct {
		band Band
		want string // exact seconds, "" means absent
	}{
		{Minimum, "0.01"},
		{Maximum, "0.03"},
		{Average, "0.02"},
		{Count, "3"},
		{Sigma(0), "0.02"},
		{Sigma(2), "0.04"},
		{Band{}, ""},
	}
	for _, test := range tests {
		got, ok := s.Band(test.band)
		if test.want == "" {
			if ok {
				t.Errorf("Band(%v) = %s, want absent", test.band, got)
			}
			continue
		}
		if !ok || got.Seconds() != test.want {
			t.Errorf("Band(%q) = %q s, %v, want %q", test.band, got.Seconds(), ok, test.want)
		}
	}

	// Sigma bands need at least two measurements even for k = 0.
	one := sampleOf(t, "10ms")
	if _, ok := one.Band(Sigma(2)); ok {
		t.Errorf("Band(2sigma) resolved on a single measurement")
	}
	// An empty sample resolves nothing.
	if _, ok := new(TimeSample).Band(Minimum); ok {
		t.Errorf("Band(minimum) resolved on an empty sample")
	}
}

func TestNewTimeSample(t *testing.T) {
	ten, _ := benchtime.ParseTime("10ms")
	thirty, _ := benchtime.ParseTime("30ms")
	if _, err := NewTimeSample(-1, ten, thirty, ten, ten.Squared()); err == nil {
		t.Errorf("NewTimeSample accepted a negative count")
	}
	if _, err := NewTimeSample(2, thirty, ten, thirty, thirty.Squared()); err == nil {
		t.Errorf("NewTimeSample accepted minimum > maximum")
	}
	s, err := NewTimeSample(1, ten, ten, ten, ten.Squared())
	if err != nil {
		t.Fatalf("NewTimeSample: %v", err)
	}
	if got, ok := s.Average(); !ok || !got.Equal(ten) {
		t.Errorf("reconstructed Average = %v, %v, want 10ms", got, ok)
	}
}
