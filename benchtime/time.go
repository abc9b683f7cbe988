// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchtime provides exact fixed-point duration arithmetic for
// benchmark measurements.
//
// A Time is an arbitrary-precision count of picoseconds. Unlike a
// floating-point number of seconds, it accumulates millions of very
// small measurements without drift, and its square (a TimeSquared)
// retains enough precision for streaming variance computation.
//
// All operations that can lose sub-picosecond precision use a single
// rounding rule, round-half-up: a remainder of exactly one half rounds
// away from zero. Parsing, division and square roots all follow it.
package benchtime

import (
	"math/big"
	"time"
)

// A Time is a non-negative duration with picosecond resolution and
// unbounded range. The zero value is a zero duration, ready to use.
// Times are immutable; operations return new values.
type Time struct {
	ps *big.Int // nil means zero
}

// A TimeSquared is the product of two Times, in units of picoseconds
// squared. It exists so sums of squares never round. The zero value is
// zero.
type TimeSquared struct {
	ps2 *big.Int // nil means zero
}

var (
	bigZero     = new(big.Int)
	psPerSecond = big.NewInt(1_000_000_000_000)
)

func (t Time) int() *big.Int {
	if t.ps == nil {
		return bigZero
	}
	return t.ps
}

func (q TimeSquared) int() *big.Int {
	if q.ps2 == nil {
		return bigZero
	}
	return q.ps2
}

// FromPicoseconds returns the Time of ps picoseconds.
// It panics if ps is negative.
func FromPicoseconds(ps int64) Time {
	if ps < 0 {
		panic("benchtime: negative duration")
	}
	return Time{big.NewInt(ps)}
}

// FromCount returns the pseudo-time used to plot a bare sample count
// on a time axis: a count of n maps to n seconds.
func FromCount(n int64) Time {
	if n < 0 {
		panic("benchtime: negative count")
	}
	return Time{new(big.Int).Mul(big.NewInt(n), psPerSecond)}
}

// FromDuration converts a time.Duration, for producers that measure
// with the runtime clock. It panics if d is negative.
func FromDuration(d time.Duration) Time {
	if d < 0 {
		panic("benchtime: negative duration")
	}
	x := big.NewInt(d.Nanoseconds())
	return Time{x.Mul(x, big.NewInt(1000))}
}

// Picoseconds returns a copy of t's picosecond count.
func (t Time) Picoseconds() *big.Int {
	return new(big.Int).Set(t.int())
}

// IsZero reports whether t is the zero duration.
func (t Time) IsZero() bool {
	return t.int().Sign() == 0
}

// Cmp compares t and u, returning -1, 0 or +1.
func (t Time) Cmp(u Time) int {
	return t.int().Cmp(u.int())
}

// Equal reports whether t and u are the same duration.
func (t Time) Equal(u Time) bool {
	return t.Cmp(u) == 0
}

// Add returns t+u.
func (t Time) Add(u Time) Time {
	return Time{new(big.Int).Add(t.int(), u.int())}
}

// MulInt returns t·n exactly. It panics if n is negative.
func (t Time) MulInt(n int64) Time {
	if n < 0 {
		panic("benchtime: negative multiplier")
	}
	return Time{new(big.Int).Mul(t.int(), big.NewInt(n))}
}

// DivInt returns t/n rounded half-up to the picosecond.
// It panics if n is not positive.
func (t Time) DivInt(n int64) Time {
	if n <= 0 {
		panic("benchtime: division by non-positive count")
	}
	return Time{divRound(t.int(), big.NewInt(n))}
}

// Squared returns t·t as a TimeSquared.
func (t Time) Squared() TimeSquared {
	x := t.int()
	return TimeSquared{new(big.Int).Mul(x, x)}
}

// Float64 returns t in seconds as a float64 approximation, for
// plotting and display scaling only.
func (t Time) Float64() float64 {
	f := new(big.Float).SetInt(t.int())
	f.Quo(f, new(big.Float).SetInt(psPerSecond))
	sec, _ := f.Float64()
	return sec
}

// PicosecondsSquared returns a copy of q's count of squared
// picoseconds.
func (q TimeSquared) PicosecondsSquared() *big.Int {
	return new(big.Int).Set(q.int())
}

// IsZero reports whether q is zero.
func (q TimeSquared) IsZero() bool {
	return q.int().Sign() == 0
}

// Cmp compares q and r, returning -1, 0 or +1.
func (q TimeSquared) Cmp(r TimeSquared) int {
	return q.int().Cmp(r.int())
}

// Equal reports whether q and r are equal.
func (q TimeSquared) Equal(r TimeSquared) bool {
	return q.Cmp(r) == 0
}

// Add returns q+r.
func (q TimeSquared) Add(r TimeSquared) TimeSquared {
	return TimeSquared{new(big.Int).Add(q.int(), r.int())}
}

// Sub returns q-r. The difference may be negative; only Sqrt rejects
// negative values.
func (q TimeSquared) Sub(r TimeSquared) TimeSquared {
	return TimeSquared{new(big.Int).Sub(q.int(), r.int())}
}

// MulInt returns q·n exactly. It panics if n is negative.
func (q TimeSquared) MulInt(n int64) TimeSquared {
	if n < 0 {
		panic("benchtime: negative multiplier")
	}
	return TimeSquared{new(big.Int).Mul(q.int(), big.NewInt(n))}
}

// DivInt returns q/n rounded half-up. It panics if n is not positive.
func (q TimeSquared) DivInt(n int64) TimeSquared {
	if n <= 0 {
		panic("benchtime: division by non-positive count")
	}
	return TimeSquared{divRound(q.int(), big.NewInt(n))}
}

// Div returns q/n rounded half-up, for divisors that exceed the int64
// range. It panics if n is not positive.
func (q TimeSquared) Div(n *big.Int) TimeSquared {
	if n.Sign() <= 0 {
		panic("benchtime: division by non-positive count")
	}
	return TimeSquared{divRound(q.int(), n)}
}

// Sqrt returns the square root of q, rounded to the nearest
// picosecond (half rounds up). It panics if q is negative.
func (q TimeSquared) Sqrt() Time {
	x := q.int()
	if x.Sign() < 0 {
		panic("benchtime: square root of negative value")
	}
	r := new(big.Int).Sqrt(x)
	// r is the floor root. Round up when the remainder x-r² exceeds r,
	// since (r+½)² = r²+r+¼.
	rem := new(big.Int).Mul(r, r)
	rem.Sub(x, rem)
	if rem.Cmp(r) > 0 {
		r.Add(r, big.NewInt(1))
	}
	return Time{r}
}

// divRound returns x/n rounding half away from zero, which is
// round-half-up for the non-negative dividends used throughout.
// n must be positive.
func divRound(x, n *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(x, n, new(big.Int))
	r.Abs(r)
	r.Lsh(r, 1)
	if r.Cmp(n) >= 0 {
		if x.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return q
}

// pow10 returns 10^n for n ≥ 0.
func pow10(n int) *big.Int {
	if n < len(pow10tab) {
		return pow10tab[n]
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

var pow10tab = func() []*big.Int {
	tab := make([]*big.Int, 28)
	x := big.NewInt(1)
	ten := big.NewInt(10)
	for i := range tab {
		tab[i] = new(big.Int).Set(x)
		x.Mul(x, ten)
	}
	return tab
}()
