// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Attabench drives benchmark executables and reports their results.
//
// Usage:
//
//	attabench tasks <benchmark|document>
//	attabench run --source <benchmark> [flags]
//	attabench report <document> [flags]
//
// The tasks command lists the task names offered by a benchmark
// executable, or recorded in a saved result document.
//
// The run command drives a benchmark executable through the selected
// tasks and sizes, accumulating measurements into a result document
// that is saved as results arrive. The first interrupt stops the run
// cleanly after the measurement in flight; a second aborts. With
// --watch the command keeps measuring and reloads the benchmark
// whenever its executable is rebuilt.
//
// The report command prints a document's chart as a tab-separated
// table: one row per input size, one column per plotted curve, a
// geometric mean summary row, and the axis bounds above. Chart flags
// adjust the report without touching the document.
//
// Option flags may also be supplied from a YAML file named by
// --config, keyed by flag name. Values in the document are overridden
// by the file, and both by explicit flags.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "attabench: %s\n", err)
		os.Exit(1)
	}
}

// root carries the persistent flags shared by every subcommand.
type root struct {
	configPath string
	logLevel   string
	cfg        fileConfig
}

func newRootCmd() *cobra.Command {
	r := new(root)
	cmd := &cobra.Command{
		Use:           "attabench",
		Short:         "drive benchmark executables and report their results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(r.logLevel)); err != nil {
				return fmt.Errorf("invalid log level %q", r.logLevel)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			cfg, err := loadConfig(r.configPath)
			if err != nil {
				return err
			}
			r.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&r.configPath, "config", "", "YAML `file` supplying default option values")
	cmd.PersistentFlags().StringVar(&r.logLevel, "log-level", "warn", "log verbosity: debug, info, warn or error")
	cmd.AddCommand(newTasksCmd(), newRunCmd(r), newReportCmd(r))
	return cmd
}
