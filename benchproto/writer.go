// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchproto

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/azeff/Attabench/benchtime"
)

// A Writer writes the run-mode output stream. It is the producer half
// of the protocol, used by benchmark executables.
type Writer struct {
	w   io.Writer
	buf bytes.Buffer
}

// NewWriter returns a writer that emits protocol lines to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMeasurement emits one measurement line. The elapsed time is
// written in exact decimal seconds so no precision is lost in transit.
func (w *Writer) WriteMeasurement(task string, size int64, elapsed benchtime.Time) error {
	if task == "" {
		return fmt.Errorf("empty task name")
	}
	if err := checkLine("task name", task); err != nil {
		return err
	}
	if size < 1 {
		return fmt.Errorf("size must be positive, have %d", size)
	}
	w.buf.WriteString(task)
	w.buf.WriteByte('\t')
	w.buf.WriteString(strconv.FormatInt(size, 10))
	w.buf.WriteByte('\t')
	w.buf.WriteString(elapsed.Seconds())
	w.buf.WriteString("s\n")
	return w.flush()
}

// WriteStatus emits one freeform status line.
func (w *Writer) WriteStatus(text string) error {
	if err := checkLine("status", text); err != nil {
		return err
	}
	w.buf.WriteString(text)
	w.buf.WriteByte('\n')
	return w.flush()
}

// flush writes the buffer out to the io.Writer. Writes to the buffer
// can't fail, so this is the only error path.
func (w *Writer) flush() error {
	_, err := w.w.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

// checkLine rejects text that would corrupt the protocol: a tab turns
// a status line into a broken measurement, and a line break splits
// one logical line into two.
func checkLine(what, s string) error {
	if strings.Contains(s, "\t") {
		return fmt.Errorf("%s %q contains a tab", what, s)
	}
	if strings.ContainsAny(s, "\n\r") {
		return fmt.Errorf("%s %q contains a line break", what, s)
	}
	return nil
}
