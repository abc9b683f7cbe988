// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchsample

import (
	"fmt"
	"strconv"
)

// A Band names one statistic extracted from a TimeSample: the extrema,
// the mean, the sample count plotted as a pseudo-time, or the mean
// plus an integer number of standard deviations. The persisted string
// forms are "maximum", "minimum", "average", "count" and "<N>sigma".
//
// The zero Band is invalid; use the package variables or Sigma.
type Band struct {
	kind  bandKind
	sigma int
}

type bandKind int

const (
	bandInvalid bandKind = iota
	bandMinimum
	bandMaximum
	bandAverage
	bandCount
	bandSigma
)

var (
	Minimum = Band{kind: bandMinimum}
	Maximum = Band{kind: bandMaximum}
	Average = Band{kind: bandAverage}
	Count   = Band{kind: bandCount}
)

// Sigma returns the band for the mean plus k standard deviations.
// It panics if k is negative.
func Sigma(k int) Band {
	if k < 0 {
		panic("benchsample: negative sigma multiplier")
	}
	return Band{kind: bandSigma, sigma: k}
}

// ParseBand parses the persisted band grammar:
//
//	"maximum" | "minimum" | "average" | "count" | "<N>sigma"
//
// with N a non-negative integer.
func ParseBand(s string) (Band, error) {
	switch s {
	case "maximum":
		return Maximum, nil
	case "minimum":
		return Minimum, nil
	case "average":
		return Average, nil
	case "count":
		return Count, nil
	}
	if n, ok := cutSigma(s); ok {
		return Band{kind: bandSigma, sigma: n}, nil
	}
	return Band{}, fmt.Errorf("invalid band %q", s)
}

func cutSigma(s string) (int, bool) {
	const suffix = "sigma"
	if len(s) <= len(suffix) || s[len(s)-len(suffix):] != suffix {
		return 0, false
	}
	digits := s[:len(s)-len(suffix)]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String returns the persisted form of b, or "" for the zero Band.
func (b Band) String() string {
	switch b.kind {
	case bandMinimum:
		return "minimum"
	case bandMaximum:
		return "maximum"
	case bandAverage:
		return "average"
	case bandCount:
		return "count"
	case bandSigma:
		return strconv.Itoa(b.sigma) + "sigma"
	}
	return ""
}

// Valid reports whether b is one of the defined bands.
func (b Band) Valid() bool { return b.kind != bandInvalid }
