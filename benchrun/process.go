// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/azeff/Attabench/benchproto"
	"github.com/azeff/Attabench/benchtime"
)

// How long an interrupted subprocess gets before it is killed.
const stopGrace = 2 * time.Second

// Capacity of a process's event queue. The controller's own
// measurement buffer, not this queue, implements the backpressure
// limit.
const eventQueueLen = 64

// procEvent is one event from a subprocess. The set is closed: the
// pumps produce nothing else, and every event reaches the controller
// through the owning process's queue in stream order.
type procEvent interface{ procEvent() }

type taskListEvent struct{ names []string }

type measurementEvent struct {
	task    string
	size    int64
	elapsed benchtime.Time
}

type progressEvent struct{ text string }

type stderrEvent struct{ line string }

type failureEvent struct{ err error }

type stoppedEvent struct{ success bool }

func (*taskListEvent) procEvent()    {}
func (*measurementEvent) procEvent() {}
func (*progressEvent) procEvent()    {}
func (*stderrEvent) procEvent()      {}
func (*failureEvent) procEvent()     {}
func (*stoppedEvent) procEvent()     {}

// A process is one live benchmark subprocess together with its stream
// pumps. The generation number identifies it in staleness checks:
// events from a process whose generation differs from the current
// state's are discarded.
type process struct {
	gen    uint64
	exe    string
	events chan procEvent

	stopOnce sync.Once
	stop     func()
}

// signalStop asks the subprocess to stop. It never blocks and is safe
// to call any number of times.
func (p *process) signalStop() {
	p.stopOnce.Do(p.stop)
}

type procMode int

const (
	modeList procMode = iota
	modeRun
)

// launchProcess starts argv and the goroutines pumping its streams.
// One goroutine reads stdout (through the protocol reader in run
// mode), one reads stderr; when both finish and the process has
// exited, a final stoppedEvent is queued and the queue is closed.
func launchProcess(gen uint64, argv []string, mode procMode, log *slog.Logger) (*process, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &process{
		gen:    gen,
		exe:    argv[0],
		events: make(chan procEvent, eventQueueLen),
	}
	p.stop = func() { stopCmd(cmd) }

	g := new(errgroup.Group)
	g.Go(func() error {
		if mode == modeList {
			return pumpTaskList(p, stdout)
		}
		return pumpRun(p, stdout, log)
	})
	g.Go(func() error {
		return pumpStderr(p, stderr)
	})

	go func() {
		pumpErr := g.Wait()
		waitErr := cmd.Wait()
		if pumpErr != nil {
			p.events <- &failureEvent{pumpErr}
		}
		p.events <- &stoppedEvent{success: pumpErr == nil && waitErr == nil}
		close(p.events)
	}()

	return p, nil
}

// stopCmd interrupts the subprocess, falling back to an immediate kill
// where interrupts are unsupported and a delayed one where the process
// ignores them. Killing an already exited process is a no-op.
func stopCmd(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		cmd.Process.Kill()
		return
	}
	proc := cmd.Process
	time.AfterFunc(stopGrace, func() {
		proc.Kill()
	})
}

func pumpTaskList(p *process, r io.Reader) error {
	names, err := benchproto.ReadTaskList(r)
	if err != nil {
		return err
	}
	p.events <- &taskListEvent{names}
	return nil
}

func pumpRun(p *process, r io.Reader, log *slog.Logger) error {
	pr := benchproto.NewReader(r, p.exe)
	for pr.Scan() {
		ev, err := pr.Event()
		if err != nil {
			// Malformed measurement lines are logged and skipped;
			// the stream goes on.
			log.Warn("malformed benchmark output", "gen", p.gen, "err", err)
			continue
		}
		switch ev := ev.(type) {
		case *benchproto.Measurement:
			p.events <- &measurementEvent{ev.Task, ev.Size, ev.Elapsed}
		case *benchproto.Status:
			p.events <- &progressEvent{ev.Text}
		}
	}
	return pr.Err()
}

func pumpStderr(p *process, r io.Reader) error {
	s := bufio.NewScanner(r)
	for s.Scan() {
		p.events <- &stderrEvent{s.Text()}
	}
	return s.Err()
}
