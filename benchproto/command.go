// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchproto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/azeff/Attabench/benchtime"
)

// ListCommand returns the argument vector that asks the benchmark
// executable at exe to print its task list.
func ListCommand(exe string) []string {
	return []string{exe, "list"}
}

// RunCommand returns the argument vector that starts a measurement
// run. Sizes must be ascending; durations are passed as decimal
// seconds.
func RunCommand(exe string, tasks []string, sizes []int64, iterations int, minDuration, maxDuration benchtime.Time) []string {
	argv := []string{
		exe, "run",
		"--iterations", strconv.Itoa(iterations),
		"--min-duration", minDuration.Seconds(),
		"--max-duration", maxDuration.Seconds(),
		"--sizes", formatSizes(sizes),
	}
	return append(argv, tasks...)
}

func formatSizes(sizes []int64) string {
	var b strings.Builder
	for i, s := range sizes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(s, 10))
	}
	return b.String()
}

// ParseSizes parses the --sizes argument back into its size list,
// for executables implementing the run command.
func ParseSizes(arg string) ([]int64, error) {
	if arg == "" {
		return nil, nil
	}
	parts := strings.Split(arg, ",")
	sizes := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid size %q", p)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}
