// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"github.com/spf13/cobra"

	"github.com/azeff/Attabench/attaresult"
	"github.com/azeff/Attabench/benchchart"
)

func newReportCmd(r *root) *cobra.Command {
	f := new(chartFlags)
	cmd := &cobra.Command{
		Use:   "report <document>",
		Short: "print a result document's chart as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attaresult.Load(args[0])
			if err != nil {
				return err
			}
			opts := store.ChartOptions()
			if err := applyChartOptions(&opts, cmd.Flags(), f, r.cfg); err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), benchchart.Build(store.SnapshotTasks(), opts), opts)
		},
	}
	f.register(cmd.Flags())
	return cmd
}

// writeReport renders chart as tab-separated text: the axis bounds, a
// header row naming each curve, one row per measured size in ascending
// order, and a geometric mean summary row. Cells without a measurement
// are left blank.
func writeReport(w io.Writer, chart *benchchart.Chart, opts attaresult.ChartOptions) error {
	var buf bytes.Buffer
	writeAxis(&buf, "size", chart.SizeAxis, opts.LogarithmicSize, "log2", func(v float64) string {
		return benchchart.SizeLabel(int64(math.Round(v)))
	})
	writeAxis(&buf, "time", chart.TimeAxis, opts.LogarithmicTime, "log10", benchchart.TimeLabel)

	if len(chart.Curves) > 0 {
		header := []string{"size"}
		cols := make([]map[int64]float64, len(chart.Curves))
		var sizes []int64
		seen := make(map[int64]bool)
		for i, cv := range chart.Curves {
			header = append(header, fmt.Sprintf("%s (%s)", cv.Task, cv.Band))
			cols[i] = make(map[int64]float64, len(cv.Points))
			for _, p := range cv.Points {
				cols[i][p.Size] = p.Value
				if !seen[p.Size] {
					seen[p.Size] = true
					sizes = append(sizes, p.Size)
				}
			}
		}
		slices.Sort(sizes)
		fmt.Fprintln(&buf, strings.Join(header, "\t"))
		for _, size := range sizes {
			row := []string{benchchart.SizeLabel(size)}
			for _, col := range cols {
				if v, ok := col[size]; ok {
					row = append(row, benchchart.TimeLabel(v))
				} else {
					row = append(row, "")
				}
			}
			fmt.Fprintln(&buf, strings.Join(row, "\t"))
		}
		row := []string{"geomean"}
		for _, cv := range chart.Curves {
			vals := make([]float64, 0, len(cv.Points))
			for _, p := range cv.Points {
				vals = append(vals, p.Value)
			}
			if g := stats.GeoMean(vals); math.IsNaN(g) {
				row = append(row, "")
			} else {
				row = append(row, benchchart.TimeLabel(g))
			}
		}
		fmt.Fprintln(&buf, strings.Join(row, "\t"))
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func writeAxis(buf *bytes.Buffer, name string, ax benchchart.Axis, logarithmic bool, logScale string, label func(float64) string) {
	if ax.Empty {
		fmt.Fprintf(buf, "%s axis: empty\n", name)
		return
	}
	scale := "linear"
	if logarithmic {
		scale = logScale
	}
	fmt.Fprintf(buf, "%s axis: %s [%s, %s]\n", name, scale, label(ax.Min), label(ax.Max))
}
