// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package statemachine is the single source of truth for legal state
// transitions shared by PipelineRun and WorkflowRun state logs.
package statemachine

import "github.com/AMD-AGI/primus-workflows/pkg/errors"

// State is a stable, wire-level state code.
type State int

const (
	Queued      State = 1
	NotStarted  State = 2
	Running     State = 3
	Completed   State = 4
	Failed      State = 5
	Cancelled   State = 6
)

// String returns the canonical name for a state code.
func (s State) String() string {
	switch s {
	case Queued:
		return "QUEUED"
	case NotStarted:
		return "NOT_STARTED"
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s has no legal outgoing transitions.
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// transitions is the single legal-transition table, per §4.1: the codomain
// of each state lists every state it may move to (same-state transitions are
// handled separately as an idempotent no-op, never listed here).
var transitions = map[State]map[State]bool{
	Queued:     {NotStarted: true, Cancelled: true},
	NotStarted: {Running: true, Failed: true, Cancelled: true},
	Running:    {Completed: true, Failed: true, Cancelled: true},
	Completed:  {},
	Failed:     {},
	Cancelled:  {},
}

// IsValidTransition reports whether moving from `from` to `to` is legal.
// A same-state transition is always valid (idempotent no-op).
func IsValidTransition(from, to State) bool {
	if from == to {
		return true
	}
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsNoop reports whether applying `to` onto a run currently in `from` should
// be treated as a silent no-op rather than appending a new state entry.
func IsNoop(from, to State) bool {
	return from == to
}

// Validate enforces the transition table, returning an InvalidTransition
// error for any illegal edge. Same-state transitions are reported as valid
// but callers should additionally check IsNoop to avoid appending a
// redundant state-log entry.
func Validate(from, to State) error {
	if IsValidTransition(from, to) {
		return nil
	}
	return errors.InvalidTransition(from.String() + " -> " + to.String() + " is not a legal transition")
}
