// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

// A StateKind identifies one state of the run controller.
//
// NoBenchmark and Failed are left only by an explicit Load or Reload.
// Loading, Running and Stopping hold a live subprocess; the other
// states never do.
type StateKind int

const (
	// NoBenchmark means no benchmark executable is attached.
	NoBenchmark StateKind = iota

	// Idle means a benchmark is attached and nothing is running.
	Idle

	// Loading means a list-mode subprocess is fetching the task list.
	Loading

	// Waiting means a run was requested but its parameters are not
	// satisfiable yet (no checked runnable task, or no sizes). The
	// run starts by itself once an option edit makes it possible.
	Waiting

	// Running means a run-mode subprocess is producing measurements.
	Running

	// Stopping means the subprocess has been told to stop; the
	// followup decides what happens when it exits.
	Stopping

	// Failed means the executable could not be launched or its task
	// list could not be read.
	Failed
)

var stateNames = [...]string{
	NoBenchmark: "no-benchmark",
	Idle:        "idle",
	Loading:     "loading",
	Waiting:     "waiting",
	Running:     "running",
	Stopping:    "stopping",
	Failed:      "failed",
}

func (k StateKind) String() string {
	if k < 0 || int(k) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[k]
}

// A Followup is the state to enter once a stopping subprocess has
// exited.
type Followup int

const (
	// FollowupIdle returns to Idle.
	FollowupIdle Followup = iota

	// FollowupReload re-runs the task-list load.
	FollowupReload

	// FollowupRestart starts measuring again.
	FollowupRestart
)

var followupNames = [...]string{
	FollowupIdle:    "idle",
	FollowupReload:  "reload",
	FollowupRestart: "restart",
}

func (f Followup) String() string {
	if f < 0 || int(f) >= len(followupNames) {
		return "invalid"
	}
	return followupNames[f]
}

// mergeFollowup merges a new request into the followup already pending
// while a subprocess winds down. Stop always downgrades to Idle, even
// cancelling a pending reload. Reload always wins otherwise. Start
// upgrades Idle to Restart but never displaces a pending reload.
func mergeFollowup(pending, request Followup) Followup {
	switch request {
	case FollowupIdle:
		return FollowupIdle
	case FollowupReload:
		return FollowupReload
	case FollowupRestart:
		if pending == FollowupReload {
			return FollowupReload
		}
		return FollowupRestart
	}
	return pending
}

// state is the controller's current state together with the process it
// owns, if any.
type state struct {
	kind     StateKind
	proc     *process // Loading, Running, Stopping
	followup Followup // Stopping
}
