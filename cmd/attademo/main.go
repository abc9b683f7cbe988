// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Attademo is a small benchmark executable speaking the attabench
// protocol. It measures three ways of finding every element of a
// sorted int64 slice: a linear scan, a binary search, and a map probe.
// Useful for trying the attabench command without writing a benchmark:
//
//	attabench run --source $(which attademo) --watch
//
// The linear scan goes quadratic as sizes grow while the other two
// stay near-linear, which makes for an instructive chart.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/azeff/Attabench/benchproto"
	"github.com/azeff/Attabench/benchtime"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("attademo: ")
	if len(os.Args) < 2 {
		log.Fatal("usage: attademo list | attademo run [flags] [task...]")
	}
	switch os.Args[1] {
	case "list":
		for _, t := range tasks {
			fmt.Println(t.name)
		}
	case "run":
		if err := runMain(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown command %q", os.Args[1])
	}
}

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	iterations := fs.Int("iterations", 3, "measurements per task and size")
	minDur := fs.String("min-duration", "0.01", "keep repeating a cell at least this many seconds")
	maxDur := fs.String("max-duration", "10", "stop repeating a cell after this many seconds")
	sizesFlag := fs.String("sizes", "", "comma-separated input sizes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	minTotal, err := benchtime.ParseSeconds(*minDur)
	if err != nil {
		return fmt.Errorf("--min-duration: %w", err)
	}
	maxTotal, err := benchtime.ParseSeconds(*maxDur)
	if err != nil {
		return fmt.Errorf("--max-duration: %w", err)
	}
	sizes, err := benchproto.ParseSizes(*sizesFlag)
	if err != nil {
		return fmt.Errorf("--sizes: %w", err)
	}
	names := fs.Args()
	if len(names) == 0 {
		for _, t := range tasks {
			names = append(names, t.name)
		}
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return measure(ctx, os.Stdout, names, sizes, *iterations, minTotal, maxTotal)
}

type benchTask struct {
	name string
	run  func(*input) int64
}

var tasks = []benchTask{
	{"linear scan", linearScan},
	{"binary search", binarySearch},
	{"map probe", mapProbe},
}

// Batch results accumulate here so the lookups cannot be optimized
// away.
var sink int64

// measure runs every named task over every size, writing protocol
// lines to w. A cell is measured iterations times, repeating past that
// until the cell's total reaches the minimum and stopping early once
// it reaches the maximum. Cancelling ctx finishes the measurement in
// flight and returns cleanly.
func measure(ctx context.Context, w io.Writer, names []string, sizes []int64, iterations int, minTotal, maxTotal benchtime.Time) error {
	byName := make(map[string]func(*input) int64, len(tasks))
	for _, t := range tasks {
		byName[t.name] = t.run
	}
	var selected []benchTask
	for _, name := range names {
		fn, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown task %q", name)
		}
		selected = append(selected, benchTask{name, fn})
	}
	if iterations < 1 {
		iterations = 1
	}
	out := benchproto.NewWriter(w)
	rng := rand.New(rand.NewSource(1))
	for _, size := range sizes {
		in := newInput(size, rng)
		for _, t := range selected {
			if ctx.Err() != nil {
				return nil
			}
			if err := out.WriteStatus(fmt.Sprintf("%s (%d)", t.name, size)); err != nil {
				return err
			}
			if err := measureCell(ctx, out, t, in, size, iterations, minTotal, maxTotal); err != nil {
				return err
			}
		}
	}
	return nil
}

func measureCell(ctx context.Context, out *benchproto.Writer, t benchTask, in *input, size int64, iterations int, minTotal, maxTotal benchtime.Time) error {
	var total benchtime.Time
	for i := 0; ; i++ {
		start := time.Now()
		sink += t.run(in)
		elapsed := benchtime.FromDuration(time.Since(start))
		if err := out.WriteMeasurement(t.name, size, elapsed); err != nil {
			return err
		}
		total = total.Add(elapsed)
		if ctx.Err() != nil || total.Cmp(maxTotal) >= 0 {
			return nil
		}
		if i+1 >= iterations && total.Cmp(minTotal) >= 0 {
			return nil
		}
	}
}

// input is one prepared lookup problem: a sorted haystack, the keys to
// find in shuffled order, and a prebuilt index for the map probe. Only
// the lookups are timed.
type input struct {
	haystack []int64
	probes   []int64
	index    map[int64]int
}

func newInput(size int64, rng *rand.Rand) *input {
	haystack := make([]int64, size)
	for i := range haystack {
		haystack[i] = int64(i) * 2
	}
	probes := make([]int64, size)
	copy(probes, haystack)
	rng.Shuffle(len(probes), func(i, j int) { probes[i], probes[j] = probes[j], probes[i] })
	index := make(map[int64]int, size)
	for i, v := range haystack {
		index[v] = i
	}
	return &input{haystack: haystack, probes: probes, index: index}
}

func linearScan(in *input) int64 {
	var sum int64
	for _, key := range in.probes {
		for i, v := range in.haystack {
			if v == key {
				sum += int64(i)
				break
			}
		}
	}
	return sum
}

func binarySearch(in *input) int64 {
	var sum int64
	for _, key := range in.probes {
		if i, ok := slices.BinarySearch(in.haystack, key); ok {
			sum += int64(i)
		}
	}
	return sum
}

func mapProbe(in *input) int64 {
	var sum int64
	for _, key := range in.probes {
		if i, ok := in.index[key]; ok {
			sum += int64(i)
		}
	}
	return sum
}
