// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchrun drives a benchmark executable through its
// list/run lifecycle and feeds the results into a store.
//
// A Controller owns at most one live subprocess at a time. Requests
// (Load, Start, Stop, Reload) and subprocess events are serialized
// through one mutex; while a subprocess winds down, later requests
// merge into a single followup state entered once it exits. Events
// carry the generation of the subprocess that produced them, and an
// event whose generation is not the current one is discarded without
// touching the store or the state.
package benchrun

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/azeff/Attabench/attaresult"
	"github.com/azeff/Attabench/benchproto"
)

// Measurements buffered beyond this limit are declared a fatal
// backlog: the run is stopped, keeping everything already flushed.
const maxPending = 10000

// A Controller runs one benchmark executable against a store.
//
// The exported hook fields must be set before the first call to any
// method and not changed afterwards. All hooks are called without the
// controller's lock held and may call back into the controller.
type Controller struct {
	store *attaresult.Store
	log   *slog.Logger

	// KeepAwake is called with true when measuring starts and false
	// when it ends, for wiring a system sleep inhibitor. Nil is a
	// no-op.
	KeepAwake func(on bool)

	// Progress receives freeform status lines from the benchmark.
	// Nil logs them instead.
	Progress func(text string)

	// Refresh is called, coalesced by the chart refresh interval,
	// after new measurements land in the store and immediately after
	// display option edits. Nil is a no-op.
	Refresh func()

	// OnStateChange is called after any state transition. Read State
	// for the current value; transitions may coalesce.
	OnStateChange func()

	// launch starts a subprocess; replaced in tests.
	launch func(gen uint64, argv []string, mode procMode) (*process, error)

	progressL *RateLimiter
	chartL    *RateLimiter

	mu      sync.Mutex
	st      state
	gen     uint64
	pending []measurementEvent
}

// NewController returns a controller feeding store. A nil logger uses
// slog.Default(). The controller subscribes to the store: run option
// and task selection edits restart a run in progress, and chart
// option edits retune the refresh limiters.
func NewController(store *attaresult.Store, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{store: store, log: log}
	c.launch = func(gen uint64, argv []string, mode procMode) (*process, error) {
		return launchProcess(gen, argv, mode, log)
	}
	opts := store.ChartOptions()
	c.progressL = NewRateLimiter(opts.ProgressRefreshInterval, c.flushPending)
	c.chartL = NewRateLimiter(opts.ChartRefreshInterval, c.doRefresh)
	store.Subscribe(c.onStoreChange)
	return c
}

// effects collects work that must happen after the lock is released:
// hook invocations and store writes, either of which may re-enter the
// controller.
type effects struct {
	stateChanged bool
	awake        *bool
	run          []func()
}

func (c *Controller) apply(fx effects) {
	if fx.awake != nil && c.KeepAwake != nil {
		c.KeepAwake(*fx.awake)
	}
	for _, f := range fx.run {
		f()
	}
	if fx.stateChanged && c.OnStateChange != nil {
		c.OnStateChange()
	}
}

// State returns the current state.
func (c *Controller) State() StateKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.kind
}

// Followup returns the state queued behind the stop in progress.
// It is meaningful only while State reports Stopping.
func (c *Controller) Followup() Followup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.followup
}

// Load attaches the benchmark executable at path and fetches its task
// list. An empty path detaches. While a subprocess is live, the load
// is queued behind its stop. The returned error is non-nil only when
// the executable cannot be launched.
func (c *Controller) Load(path string) error {
	var fx effects
	c.mu.Lock()
	c.store.SetSource(path)
	if path == "" {
		c.setStateLocked(state{kind: NoBenchmark}, &fx)
		c.mu.Unlock()
		c.apply(fx)
		return nil
	}
	if c.st.proc != nil {
		c.setStateLocked(state{
			kind:     Stopping,
			proc:     c.st.proc,
			followup: mergeFollowup(c.st.followup, FollowupReload),
		}, &fx)
		c.mu.Unlock()
		c.apply(fx)
		return nil
	}
	err := c.startLoadLocked(&fx)
	c.mu.Unlock()
	c.apply(fx)
	return err
}

// Reload re-fetches the task list, for example after the executable
// was rebuilt. While a subprocess is live, the reload is queued
// behind its stop.
func (c *Controller) Reload() error {
	var fx effects
	c.mu.Lock()
	var err error
	switch c.st.kind {
	case Idle, Waiting, Failed:
		err = c.startLoadLocked(&fx)
	case Loading, Running, Stopping:
		c.setStateLocked(state{
			kind:     Stopping,
			proc:     c.st.proc,
			followup: mergeFollowup(c.st.followup, FollowupReload),
		}, &fx)
	default:
		c.log.Debug("reload ignored", "state", c.st.kind)
	}
	c.mu.Unlock()
	c.apply(fx)
	return err
}

// Start begins measuring. It acts from Idle and Waiting, upgrades the
// followup of a stop in progress, and does nothing in the other
// states. The returned error is non-nil only when the executable
// cannot be launched.
func (c *Controller) Start() error {
	var fx effects
	c.mu.Lock()
	var err error
	switch c.st.kind {
	case Idle, Waiting:
		err = c.startRunLocked(&fx)
	case Stopping:
		c.setStateLocked(state{
			kind:     Stopping,
			proc:     c.st.proc,
			followup: mergeFollowup(c.st.followup, FollowupRestart),
		}, &fx)
	default:
		c.log.Debug("start ignored", "state", c.st.kind)
	}
	c.mu.Unlock()
	c.apply(fx)
	return err
}

// Stop ends the run or load in progress. It cancels whatever followup
// was pending, so a stop after a queued restart really stops.
func (c *Controller) Stop() {
	var fx effects
	c.mu.Lock()
	switch c.st.kind {
	case Loading, Running, Stopping:
		c.setStateLocked(state{
			kind:     Stopping,
			proc:     c.st.proc,
			followup: mergeFollowup(c.st.followup, FollowupIdle),
		}, &fx)
	case Waiting:
		c.setStateLocked(state{kind: Idle}, &fx)
	}
	c.mu.Unlock()
	c.apply(fx)
}

// Close stops any live subprocess and cancels the limiter timers. It
// does not wait for the subprocess to exit.
func (c *Controller) Close() {
	c.Stop()
	c.progressL.Stop()
	c.chartL.Stop()
}

// setStateLocked installs next and signals whichever process must now
// stop: the outgoing process when the new state no longer owns it,
// and a stopping state's own process. Signalling lives here rather
// than in the action handlers so that every transition path enforces
// the at-most-one-live-subprocess rule.
func (c *Controller) setStateLocked(next state, fx *effects) {
	old := c.st
	c.st = next
	if old.proc != nil && old.proc != next.proc {
		old.proc.signalStop()
	}
	if next.kind == Stopping {
		next.proc.signalStop()
	}
	if next.kind != old.kind || next.followup != old.followup {
		fx.stateChanged = true
	}
	if (next.kind == Running) != (old.kind == Running) {
		on := next.kind == Running
		fx.awake = &on
	}
	if next.kind == Stopping {
		c.log.Debug("state change", "from", old.kind, "to", next.kind, "followup", next.followup)
	} else {
		c.log.Debug("state change", "from", old.kind, "to", next.kind)
	}
}

// startLoadLocked launches the list-mode subprocess.
func (c *Controller) startLoadLocked(fx *effects) error {
	exe := c.store.Source()
	c.gen++
	p, err := c.launch(c.gen, benchproto.ListCommand(exe), modeList)
	if err != nil {
		c.log.Error("cannot launch benchmark", "exe", exe, "err", err)
		c.setStateLocked(state{kind: Failed}, fx)
		return fmt.Errorf("launching %s: %w", exe, err)
	}
	go c.dispatch(p)
	c.setStateLocked(state{kind: Loading, proc: p}, fx)
	return nil
}

// startRunLocked launches the run-mode subprocess, or parks in
// Waiting when there is no checked runnable task or no size to
// measure.
func (c *Controller) startRunLocked(fx *effects) error {
	tasks := c.store.CheckedRunnableNames()
	sizes := c.store.SelectedSizes()
	if len(tasks) == 0 || len(sizes) == 0 {
		c.setStateLocked(state{kind: Waiting}, fx)
		return nil
	}
	run := c.store.RunOptions()
	exe := c.store.Source()
	argv := benchproto.RunCommand(exe, tasks, sizes, run.Iterations, run.MinimumDuration, run.MaximumDuration)
	c.gen++
	p, err := c.launch(c.gen, argv, modeRun)
	if err != nil {
		c.log.Error("cannot launch benchmark", "exe", exe, "err", err)
		c.setStateLocked(state{kind: Failed}, fx)
		return fmt.Errorf("launching %s: %w", exe, err)
	}
	go c.dispatch(p)
	c.setStateLocked(state{kind: Running, proc: p}, fx)
	return nil
}

// dispatch delivers p's events in order until its queue closes.
func (c *Controller) dispatch(p *process) {
	for ev := range p.events {
		c.deliver(p, ev)
	}
}

// deliver applies one subprocess event. An event from any process but
// the one the current state owns is dropped, and the stale process is
// told once more to stop; such events never mutate the store or the
// state.
func (c *Controller) deliver(p *process, ev procEvent) {
	var fx effects
	c.mu.Lock()
	cur := c.st.proc
	if cur == nil || cur.gen != p.gen {
		c.mu.Unlock()
		p.signalStop()
		c.log.Debug("discarding stale event", "gen", p.gen, "event", fmt.Sprintf("%T", ev))
		return
	}

	switch ev := ev.(type) {
	case *taskListEvent:
		names := ev.names
		fx.run = append(fx.run, func() {
			c.store.ApplyTaskList(names)
			c.log.Info("task list loaded", "tasks", len(names))
		})

	case *measurementEvent:
		c.pending = append(c.pending, *ev)
		c.progressL.Later()
		if len(c.pending) > maxPending {
			c.log.Warn("measurement backlog over limit, stopping run", "buffered", len(c.pending))
			fx.run = append(fx.run, func() {
				c.flushPending()
				c.Stop()
			})
		}

	case *progressEvent:
		text := ev.text
		fx.run = append(fx.run, func() {
			if c.Progress != nil {
				c.Progress(text)
			} else {
				c.log.Info("benchmark status", "text", text)
			}
		})

	case *stderrEvent:
		c.log.Info("benchmark stderr", "line", ev.line)

	case *failureEvent:
		// The stream is gone, so treat it as a stop: the final
		// stoppedEvent resolves the transition, a failed load to
		// Failed and everything else per the followup. A stop
		// already in progress keeps its followup; the error here may
		// just be fallout from the kill.
		c.log.Error("benchmark stream failed", "gen", p.gen, "err", ev.err)
		switch c.st.kind {
		case Running:
			c.setStateLocked(state{kind: Stopping, proc: cur, followup: FollowupIdle}, &fx)
		case Loading:
			cur.signalStop()
		}

	case *stoppedEvent:
		c.handleStoppedLocked(ev.success, &fx)
	}
	c.mu.Unlock()
	c.apply(fx)
}

// handleStoppedLocked reacts to the current subprocess exiting:
// Loading resolves to Idle or Failed, Running to Idle, and Stopping
// to its followup. Buffered measurements are flushed and a pending
// refresh forced, so the final state is never stale.
func (c *Controller) handleStoppedLocked(success bool, fx *effects) {
	flush := func() {
		c.flushPending()
		c.chartL.FlushIfPending()
	}

	switch c.st.kind {
	case Loading:
		if success {
			c.setStateLocked(state{kind: Idle}, fx)
		} else {
			c.log.Error("benchmark task list failed", "exe", c.st.proc.exe)
			c.setStateLocked(state{kind: Failed}, fx)
		}

	case Running:
		if !success {
			c.log.Error("benchmark exited with failure")
		}
		c.setStateLocked(state{kind: Idle}, fx)
		fx.run = append(fx.run, flush)

	case Stopping:
		switch c.st.followup {
		case FollowupIdle:
			c.setStateLocked(state{kind: Idle}, fx)
		case FollowupReload:
			c.startLoadLocked(fx)
		case FollowupRestart:
			c.startRunLocked(fx)
		}
		fx.run = append(fx.run, flush)

	default:
		c.log.Warn("subprocess exit in unexpected state", "state", c.st.kind)
	}
}

// flushPending applies buffered measurements to the store. It runs
// without the controller lock because store observers may call back
// in.
func (c *Controller) flushPending() {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	for _, m := range batch {
		c.store.AddMeasurement(m.task, m.size, m.elapsed)
	}
	c.chartL.Later()
}

func (c *Controller) doRefresh() {
	if c.Refresh != nil {
		c.Refresh()
	}
}

// onStoreChange reacts to option edits. Changes the controller itself
// causes (task list merges, measurement flushes) are excluded, so a
// run never restarts itself.
func (c *Controller) onStoreChange(ch attaresult.Change) {
	switch ch {
	case attaresult.ChangedRunOptions, attaresult.ChangedTaskSelection:
		var fx effects
		c.mu.Lock()
		switch c.st.kind {
		case Running:
			// Config applies only by restart, never mid-run.
			c.setStateLocked(state{
				kind:     Stopping,
				proc:     c.st.proc,
				followup: FollowupRestart,
			}, &fx)
		case Waiting:
			// The parameters may be satisfiable now.
			c.startRunLocked(&fx)
		}
		c.mu.Unlock()
		c.apply(fx)

	case attaresult.ChangedChartOptions:
		opts := c.store.ChartOptions()
		c.progressL.SetInterval(opts.ProgressRefreshInterval)
		c.chartL.SetInterval(opts.ChartRefreshInterval)
		// Display changed under the user's hands: refresh right away.
		c.chartL.Now()
	}
}
