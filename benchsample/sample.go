// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchsample accumulates benchmark timings into streaming
// sufficient statistics.
//
// A TimeSample records count, minimum, maximum, sum and sum of squares
// for one (task, size) cell. That is enough to derive the mean and the
// unbiased standard deviation without retaining raw samples, so memory
// stays O(1) per cell no matter how many measurements arrive.
package benchsample

import (
	"fmt"
	"math/big"

	"github.com/azeff/Attabench/benchtime"
)

// A TimeSample is a streaming accumulator of measured durations.
// The zero value is an empty sample ready for use. A TimeSample is not
// safe for concurrent mutation.
type TimeSample struct {
	count int64
	min   benchtime.Time
	max   benchtime.Time
	sum   benchtime.Time
	sumSq benchtime.TimeSquared
}

// NewTimeSample reconstructs a sample from its five statistics, as
// read from a persisted document. It rejects inconsistent values.
func NewTimeSample(count int64, min, max, sum benchtime.Time, sumSq benchtime.TimeSquared) (*TimeSample, error) {
	if count < 0 {
		return nil, fmt.Errorf("negative sample count %d", count)
	}
	if count > 0 && min.Cmp(max) > 0 {
		return nil, fmt.Errorf("sample minimum %s exceeds maximum %s", min, max)
	}
	return &TimeSample{count: count, min: min, max: max, sum: sum, sumSq: sumSq}, nil
}

// AddMeasurement folds one measured duration into the sample.
func (s *TimeSample) AddMeasurement(t benchtime.Time) {
	if s.count == 0 {
		s.min, s.max = t, t
	} else {
		if t.Cmp(s.min) < 0 {
			s.min = t
		}
		if t.Cmp(s.max) > 0 {
			s.max = t
		}
	}
	s.sum = s.sum.Add(t)
	s.sumSq = s.sumSq.Add(t.Squared())
	s.count++
}

// AddSample merges another sample into s, as if every measurement in o
// had been added to s. It is the tool for combining statistics from
// independent runs; nothing in the run path calls it.
func (s *TimeSample) AddSample(o *TimeSample) {
	if o == nil || o.count == 0 {
		return
	}
	if s.count == 0 {
		s.min, s.max = o.min, o.max
	} else {
		if o.min.Cmp(s.min) < 0 {
			s.min = o.min
		}
		if o.max.Cmp(s.max) > 0 {
			s.max = o.max
		}
	}
	s.count += o.count
	s.sum = s.sum.Add(o.sum)
	s.sumSq = s.sumSq.Add(o.sumSq)
}

// Count returns the number of accumulated measurements.
func (s *TimeSample) Count() int64 { return s.count }

// Minimum returns the smallest accumulated duration, or zero if the
// sample is empty.
func (s *TimeSample) Minimum() benchtime.Time { return s.min }

// Maximum returns the largest accumulated duration, or zero if the
// sample is empty.
func (s *TimeSample) Maximum() benchtime.Time { return s.max }

// Sum returns the sum of all accumulated durations.
func (s *TimeSample) Sum() benchtime.Time { return s.sum }

// SumSquared returns the sum of the squares of all accumulated
// durations.
func (s *TimeSample) SumSquared() benchtime.TimeSquared { return s.sumSq }

// Average returns the mean duration, rounded half-up to the
// picosecond. It reports false for an empty sample.
func (s *TimeSample) Average() (benchtime.Time, bool) {
	if s.count == 0 {
		return benchtime.Time{}, false
	}
	return s.sum.DivInt(s.count), true
}

// StandardDeviation returns the unbiased standard deviation computed
// from the sufficient statistics:
//
//	√( (count·sumSquared − sum²) / (count·(count−1)) )
//
// It reports false when fewer than two measurements have been
// accumulated; callers must treat that as insufficient data, never as
// zero.
func (s *TimeSample) StandardDeviation() (benchtime.Time, bool) {
	if s.count < 2 {
		return benchtime.Time{}, false
	}
	num := s.sumSq.MulInt(s.count).Sub(s.sum.Squared())
	den := new(big.Int).Mul(big.NewInt(s.count), big.NewInt(s.count-1))
	return num.Div(den).Sqrt(), true
}

// Band resolves the statistic b against the sample. It reports false
// when the sample cannot supply the statistic: always for an empty
// sample, and for sigma bands with fewer than two measurements.
func (s *TimeSample) Band(b Band) (benchtime.Time, bool) {
	if s.count == 0 {
		return benchtime.Time{}, false
	}
	switch b.kind {
	case bandMinimum:
		return s.min, true
	case bandMaximum:
		return s.max, true
	case bandAverage:
		return s.Average()
	case bandCount:
		return benchtime.FromCount(s.count), true
	case bandSigma:
		avg, _ := s.Average()
		sd, ok := s.StandardDeviation()
		if !ok {
			return benchtime.Time{}, false
		}
		return avg.Add(sd.MulInt(int64(b.sigma))), true
	}
	return benchtime.Time{}, false
}
