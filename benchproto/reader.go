// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchproto implements the line protocol spoken between the
// harness and a benchmark executable.
//
// A benchmark executable supports two commands, selected by its first
// argument:
//
//	exe list
//	exe run --iterations N --min-duration S --max-duration S \
//	        --sizes 1,2,4,... TASK...
//
// In list mode it prints one task name per line and exits. In run mode
// it prints one line per completed measurement:
//
//	<task name> \t <size> \t <elapsed>
//
// where elapsed is a duration with a unit suffix ("12.5ms", "0.25s").
// Task names may contain spaces but never tabs or newlines. Any stdout
// line without a tab is freeform status text; stderr is unstructured
// diagnostics. Durations passed on the command line are decimal
// seconds.
package benchproto

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/azeff/Attabench/benchtime"
)

// A Reader reads the run-mode output stream of a benchmark executable.
//
// Its API is modeled on bufio.Scanner: Scan advances to the next
// event, Event returns it, and Err reports the first I/O error. A
// malformed measurement line produces an error from Event but is not
// fatal; the caller logs it and keeps scanning.
type Reader struct {
	s        *bufio.Scanner
	fileName string
	lineNum  int
	err      error // current I/O error

	event    Event
	eventErr error

	interns map[string]string
}

// An Event is one line of the run stream: either a *Measurement or a
// *Status.
type Event interface {
	event()
}

// A Measurement reports one timed run of a task at one input size.
type Measurement struct {
	Task    string
	Size    int64
	Elapsed benchtime.Time
}

// A Status carries a freeform progress line.
type Status struct {
	Text string
}

func (*Measurement) event() {}
func (*Status) event()      {}

// A SyntaxError describes a malformed measurement line.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (s *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", s.FileName, s.Line, s.Msg)
}

var noEvent = errors.New("Reader.Scan has not been called")

// NewReader constructs a reader that parses the run stream from r.
// fileName is used in error messages; it is purely diagnostic.
func NewReader(r io.Reader, fileName string) *Reader {
	reader := new(Reader)
	reader.Reset(r, fileName)
	return reader
}

// Reset resets the reader to begin reading from a new stream.
func (r *Reader) Reset(ior io.Reader, fileName string) {
	r.s = bufio.NewScanner(ior)
	if fileName == "" {
		fileName = "<unknown>"
	}
	r.fileName = fileName
	r.lineNum = 0
	r.err = nil
	r.event = nil
	r.eventErr = noEvent
	if r.interns == nil {
		r.interns = make(map[string]string)
	}
}

// Scan advances the reader to the next event and reports whether one
// was read. The caller should use the Event method to get the event.
// If Scan reaches EOF or an I/O error occurs, it returns false, in
// which case the caller should use the Err method to check for errors.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}

	for r.s.Scan() {
		r.lineNum++
		line := r.s.Bytes()
		if len(line) == 0 {
			continue
		}
		// A tab commits the line to being a measurement. If it is
		// malformed, that is an error; there is no way to tell a
		// broken measurement from status text once a tab appears.
		if bytes.IndexByte(line, '\t') >= 0 {
			r.event, r.eventErr = r.parseMeasurement(line)
			return true
		}
		r.event, r.eventErr = &Status{Text: string(line)}, nil
		return true
	}

	if err := r.s.Err(); err != nil {
		r.err = fmt.Errorf("%s:%d: %w", r.fileName, r.lineNum, err)
		return false
	}
	r.err = nil
	return false
}

var tabSep = []byte("\t")

// parseMeasurement parses line as a measurement. The caller must have
// already checked that line contains a tab.
func (r *Reader) parseMeasurement(line []byte) (Event, error) {
	task, rest, _ := bytes.Cut(line, tabSep)
	sizeF, elapsedF, ok := bytes.Cut(rest, tabSep)
	if !ok || bytes.IndexByte(elapsedF, '\t') >= 0 {
		return nil, &SyntaxError{r.fileName, r.lineNum, "measurement must have exactly 3 tab-separated fields"}
	}
	if len(task) == 0 {
		return nil, &SyntaxError{r.fileName, r.lineNum, "empty task name"}
	}

	size, err := strconv.ParseInt(string(sizeF), 10, 64)
	switch err := err.(type) {
	case nil:
		// ok
	case *strconv.NumError:
		return nil, &SyntaxError{r.fileName, r.lineNum, "parsing size: " + err.Err.Error()}
	default:
		return nil, &SyntaxError{r.fileName, r.lineNum, err.Error()}
	}
	if size < 1 {
		return nil, &SyntaxError{r.fileName, r.lineNum, fmt.Sprintf("size must be positive, have %d", size)}
	}

	elapsed, err := benchtime.ParseTime(string(elapsedF))
	if err != nil {
		return nil, &SyntaxError{r.fileName, r.lineNum, err.Error()}
	}

	return &Measurement{
		Task:    r.intern(task),
		Size:    size,
		Elapsed: elapsed,
	}, nil
}

// intern returns x as a string, reusing a previously returned string
// when possible. A run stream repeats its few task names on every
// measurement line.
func (r *Reader) intern(x []byte) string {
	const maxIntern = 1024
	if s, ok := r.interns[string(x)]; ok {
		return s
	}
	if len(r.interns) >= maxIntern {
		// Evict a random item from the interns table.
		for k := range r.interns {
			delete(r.interns, k)
			break
		}
	}
	s := string(x)
	r.interns[s] = s
	return s
}

// Event returns the last event read, or an error if the line was a
// malformed measurement.
//
// Parse errors are non-fatal, so the caller can continue to call
// Scan.
func (r *Reader) Event() (Event, error) {
	if r.eventErr != nil {
		return nil, r.eventErr
	}
	return r.event, nil
}

// Err returns the first non-EOF I/O error that was encountered by the
// Reader.
func (r *Reader) Err() error {
	return r.err
}

// ReadTaskList reads list-mode output: one task name per line, blank
// lines ignored. It rejects names containing tabs and duplicates, and
// preserves the executable's declaration order.
func ReadTaskList(ior io.Reader) ([]string, error) {
	s := bufio.NewScanner(ior)
	var names []string
	seen := make(map[string]bool)
	lineNum := 0
	for s.Scan() {
		lineNum++
		line := s.Text()
		if line == "" {
			continue
		}
		if bytes.IndexByte(s.Bytes(), '\t') >= 0 {
			return nil, fmt.Errorf("task list line %d: name contains a tab", lineNum)
		}
		if seen[line] {
			return nil, fmt.Errorf("task list line %d: duplicate task %q", lineNum, line)
		}
		seen[line] = true
		names = append(names, line)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
