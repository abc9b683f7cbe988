// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/azeff/Attabench/attaresult"
	"github.com/azeff/Attabench/benchproto"
)

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <benchmark|document>",
		Short: "list the benchmark's task names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTasks(cmd.OutOrStdout(), args[0])
		},
	}
}

// listTasks prints one task name per line. A path ending in
// .attaresult is read as a saved result document; anything else is
// executed as a benchmark and asked for its task list.
func listTasks(w io.Writer, path string) error {
	var names []string
	if strings.HasSuffix(path, ".attaresult") {
		store, err := attaresult.Load(path)
		if err != nil {
			return err
		}
		for _, t := range store.Tasks() {
			names = append(names, t.Name())
		}
	} else {
		var err error
		names, err = queryTaskList(path)
		if err != nil {
			return err
		}
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

// queryTaskList runs the benchmark in list mode and parses its output.
// The benchmark's stderr passes through to ours.
func queryTaskList(exe string) ([]string, error) {
	argv := benchproto.ListCommand(exe)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing tasks of %s: %w", exe, err)
	}
	names, err := benchproto.ReadTaskList(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("listing tasks of %s: %w", exe, err)
	}
	return names, nil
}
