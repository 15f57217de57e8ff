// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

// Package agent runs the bounded tool-orchestration loop: it drives the
// completion client, validates and executes tool calls against the
// dissection backend, and enforces the per-request budgets.
package agent

import (
	"strings"
	"time"

	"github.com/packetpilot/sidecar/internal/config"
)

// CompletionStatus is the terminal disposition of one analysis request.
type CompletionStatus string

const (
	StatusComplete CompletionStatus = "complete"
	StatusPartial  CompletionStatus = "partial"
	StatusError    CompletionStatus = "error"
)

// StopReason says why the loop stopped.
type StopReason string

const (
	StopCompleted        StopReason = "completed"
	StopMaxWallMS        StopReason = "max_wall_ms_exceeded"
	StopMaxIterations    StopReason = "max_iterations_exceeded"
	StopMaxModelCalls    StopReason = "max_model_calls_exceeded"
	StopMaxToolCalls     StopReason = "max_tool_calls_exceeded"
	StopAuthFailed       StopReason = "authentication_failed"
	StopQuotaExhausted   StopReason = "quota_exhausted"
	StopProviderError    StopReason = "provider_error"
)

// Policy is the read-only budget set shared by every step of one request.
type Policy struct {
	MaxIterations int
	MaxToolCalls  int
	MaxModelCalls int
	MaxWall       time.Duration
}

// PolicyFromConfig builds a Policy from loaded configuration.
func PolicyFromConfig(cfg config.LoopConfig) Policy {
	return Policy{
		MaxIterations: cfg.MaxIterations,
		MaxToolCalls:  cfg.MaxToolCalls,
		MaxModelCalls: cfg.MaxModelCalls,
		MaxWall:       time.Duration(cfg.MaxWallMS) * time.Millisecond,
	}
}

// State tracks one request's progress through the loop. Counters are
// monotone; nothing ever decrements them.
type State struct {
	StartTime  time.Time
	Iterations int
	ModelCalls int
	ToolCalls  int
	RetryCount int
	Status     CompletionStatus
	StopReason StopReason

	clock func() time.Time
}

func newState(clock func() time.Time) *State {
	if clock == nil {
		clock = time.Now
	}
	return &State{StartTime: clock(), clock: clock}
}

// RecordRetry satisfies provider.RetryRecorder.
func (s *State) RecordRetry() { s.RetryCount++ }

// Elapsed is the wall-clock time spent on the request so far.
func (s *State) Elapsed() time.Duration { return s.clock().Sub(s.StartTime) }

// LimitReason reports the first exceeded budget, or "" when all budgets
// still have headroom. Checked before every model call and before every
// tool dispatch; the evaluation order fixes which reason is reported when
// several trip at once.
func (p Policy) LimitReason(s *State) StopReason {
	switch {
	case s.Elapsed() > p.MaxWall:
		return StopMaxWallMS
	case s.Iterations >= p.MaxIterations:
		return StopMaxIterations
	case s.ModelCalls >= p.MaxModelCalls:
		return StopMaxModelCalls
	case s.ToolCalls >= p.MaxToolCalls:
		return StopMaxToolCalls
	}
	return ""
}

var stopNotes = map[StopReason]string{
	StopMaxWallMS:     "[Analysis stopped early: the time budget ran out. The answer above may be incomplete.]",
	StopMaxIterations: "[Analysis stopped early: the tool-iteration budget ran out. The answer above may be incomplete.]",
	StopMaxModelCalls: "[Analysis stopped early: the model-call budget ran out. The answer above may be incomplete.]",
	StopMaxToolCalls:  "[Analysis stopped early: the tool-call budget ran out. The answer above may be incomplete.]",
}

// appendStopNote attaches the fixed partial-result note for a stop reason.
// Idempotent: a text already carrying the note is returned unchanged.
func appendStopNote(text string, reason StopReason) string {
	note, ok := stopNotes[reason]
	if !ok || strings.Contains(text, note) {
		return text
	}
	if text == "" {
		return note
	}
	return text + "\n\n" + note
}
