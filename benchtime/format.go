// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchtime

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// unitTab maps unit suffixes to the power of ten picoseconds each
// represents. Longer suffixes come first so "ms" is never read as a
// mantissa ending in "m" with unit "s".
var unitTab = []struct {
	suffix string
	exp    int
}{
	{"ps", 0},
	{"ns", 3},
	{"us", 6},
	{"µs", 6},
	{"μs", 6}, // U+03BC, pasted from terminals that fold the micro sign
	{"ms", 9},
	{"s", 12},
}

// ParseTime parses a non-negative decimal number followed by a unit
// suffix: ps, ns, us (or µs), ms, or s. A single space may separate
// the number from the unit. Digits beyond picosecond resolution round
// half-up.
func ParseTime(s string) (Time, error) {
	str := strings.TrimSpace(s)
	for _, u := range unitTab {
		num, ok := strings.CutSuffix(str, u.suffix)
		if !ok {
			continue
		}
		num = strings.TrimRight(num, " ")
		if num == "" {
			break
		}
		x, err := parseFixed(num, u.exp)
		if err != nil {
			return Time{}, fmt.Errorf("invalid time %q: %w", s, err)
		}
		return Time{x}, nil
	}
	return Time{}, fmt.Errorf("invalid time %q: missing or unknown unit", s)
}

// ParseSeconds parses a non-negative decimal number of seconds with no
// unit suffix, the form used in persisted documents. Exponent notation
// ("2.5e-8") is accepted.
func ParseSeconds(s string) (Time, error) {
	x, err := parseFixed(strings.TrimSpace(s), 12)
	if err != nil {
		return Time{}, fmt.Errorf("invalid seconds value %q: %w", s, err)
	}
	return Time{x}, nil
}

// ParseSecondsSquared parses a non-negative decimal number of seconds
// squared, the persisted form of a TimeSquared.
func ParseSecondsSquared(s string) (TimeSquared, error) {
	x, err := parseFixed(strings.TrimSpace(s), 24)
	if err != nil {
		return TimeSquared{}, fmt.Errorf("invalid seconds² value %q: %w", s, err)
	}
	return TimeSquared{x}, nil
}

// Seconds formats t as an exact decimal number of seconds with
// trailing zeros trimmed, the canonical persisted form.
func (t Time) Seconds() string {
	return formatScaled(t.int(), 12)
}

// Seconds formats q as an exact decimal number of seconds squared.
func (q TimeSquared) Seconds() string {
	return formatScaled(q.int(), 24)
}

// String formats t for display: three significant digits and an
// auto-selected unit, like "12.5ms" or "980ns".
func (t Time) String() string {
	x := t.int()
	if x.Sign() == 0 {
		return "0s"
	}
	sel := 0
	for i, u := range unitsForDisplay {
		if x.Cmp(pow10(u.exp)) >= 0 {
			sel = i
		}
	}
	f := quoFloat(x, unitsForDisplay[sel].exp)
	s := strconv.FormatFloat(f, 'g', 3, 64)
	if strings.ContainsAny(s, "eE") {
		// The mantissa rounded up into the next magnitude.
		if sel+1 < len(unitsForDisplay) {
			sel++
			s = strconv.FormatFloat(quoFloat(x, unitsForDisplay[sel].exp), 'g', 3, 64)
		} else {
			s = strconv.FormatFloat(f, 'f', 0, 64)
		}
	}
	return s + unitsForDisplay[sel].suffix
}

var unitsForDisplay = []struct {
	suffix string
	exp    int
}{
	{"ps", 0},
	{"ns", 3},
	{"µs", 6},
	{"ms", 9},
	{"s", 12},
}

func quoFloat(x *big.Int, exp int) float64 {
	f := new(big.Float).SetInt(x)
	f.Quo(f, new(big.Float).SetInt(pow10(exp)))
	v, _ := f.Float64()
	return v
}

// parseFixed parses a non-negative decimal, optionally with an
// exponent, and returns its value scaled by 10^unitExp with sub-unit
// digits rounded half-up.
func parseFixed(s string, unitExp int) (*big.Int, error) {
	exp := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return nil, fmt.Errorf("bad exponent %q", s[i+1:])
		}
		if e < -99 || e > 99 {
			return nil, fmt.Errorf("exponent %d out of range", e)
		}
		exp = e
		s = s[:i]
	}
	mant := new(big.Int)
	ten := big.NewInt(10)
	d := new(big.Int)
	digits, frac := 0, 0
	seenDot := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '.':
			if seenDot {
				return nil, fmt.Errorf("repeated decimal point")
			}
			seenDot = true
		case '0' <= c && c <= '9':
			mant.Mul(mant, ten)
			mant.Add(mant, d.SetInt64(int64(c-'0')))
			digits++
			if seenDot {
				frac++
			}
		default:
			return nil, fmt.Errorf("bad character %q", c)
		}
	}
	if digits == 0 {
		return nil, fmt.Errorf("no digits")
	}
	scale := unitExp + exp - frac
	if scale >= 0 {
		return mant.Mul(mant, pow10(scale)), nil
	}
	return divRound(mant, pow10(-scale)), nil
}

// formatScaled renders x·10^-frac as a plain decimal string.
func formatScaled(x *big.Int, frac int) string {
	s := x.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= frac {
		s = strings.Repeat("0", frac-len(s)+1) + s
	}
	ip, fp := s[:len(s)-frac], s[len(s)-frac:]
	fp = strings.TrimRight(fp, "0")
	out := ip
	if fp != "" {
		out += "." + fp
	}
	if neg {
		out = "-" + out
	}
	return out
}
