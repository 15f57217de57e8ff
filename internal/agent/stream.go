// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package agent

import (
	"context"
	"log/slog"

	"github.com/packetpilot/sidecar/internal/provider"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

// EventType identifies one caller-visible streaming event.
type EventType string

const (
	EventMeta    EventType = "meta"
	EventText    EventType = "text"
	EventWarning EventType = "warning"
	EventFailure EventType = "error"
)

// Event is one element of the streamed analysis sequence. The sequence is
// one meta event, zero or more text events, and a single trailing warning
// event only when the run ended partial. A terminal provider failure ends
// the sequence with one error event instead.
type Event struct {
	Type       EventType
	RequestID  string
	Text       string
	Warning    string
	StopReason StopReason
	Err        error
}

// AnalyzeStream runs one streaming analysis request. The returned channel
// is closed when the run ends for any reason. Cancelling ctx stops the loop
// before its next provider or tool call.
func (a *Agent) AnalyzeStream(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		a.streamLoop(ctx, req, ch)
	}()
	return ch
}

func (a *Agent) streamLoop(ctx context.Context, req Request, ch chan<- Event) {
	id := requestID(req)
	state := newState(a.clock)
	model := a.modelFor(req)
	msgs := append([]provider.Message{{Role: provider.RoleSystem, Content: systemPrompt}}, buildMessages(req)...)

	log := a.log.With("request_id", id, "model", model)
	log.InfoContext(ctx, "streaming analysis started", "query_len", len(req.Query))

	if !emit(ctx, ch, Event{Type: EventMeta, RequestID: id}) {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if reason := a.policy.LimitReason(state); reason != "" {
			a.emitPartial(ctx, log, state, ch, reason)
			return
		}

		state.ModelCalls++
		events, err := a.client.Stream(ctx, provider.ChatRequest{
			Model:     model,
			Messages:  msgs,
			MaxTokens: a.maxTokens,
			Tools:     a.registry.Definitions(),
		}, "analyze_stream", state)
		if err != nil {
			a.emitFailure(ctx, log, state, ch, err)
			return
		}

		var (
			content   string
			toolCalls []provider.ToolCall
		)

		for ev := range events {
			switch ev.Type {
			case provider.EventTextDelta:
				content += ev.Text
				if !emit(ctx, ch, Event{Type: EventText, Text: ev.Text}) {
					return
				}
			case provider.EventToolCall:
				toolCalls = append(toolCalls, *ev.ToolCall)
			case provider.EventError:
				a.emitFailure(ctx, log, state, ch, ev.Err)
				return
			case provider.EventDone:
			}
		}

		if len(toolCalls) == 0 {
			state.Status = StatusComplete
			state.StopReason = StopCompleted
			log.InfoContext(ctx, "streaming analysis complete",
				"iterations", state.Iterations,
				"model_calls", state.ModelCalls,
				"tool_calls", state.ToolCalls,
				"retries", state.RetryCount)
			return
		}

		msgs = append(msgs, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})

		for _, tc := range toolCalls {
			if ctx.Err() != nil {
				return
			}
			if reason := a.policy.LimitReason(state); reason != "" {
				a.emitPartial(ctx, log, state, ch, reason)
				return
			}

			result := a.runToolCall(ctx, log, tc)
			msgs = append(msgs, provider.Message{
				Role:       provider.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
			state.ToolCalls++
		}

		state.Iterations++
	}
}

func (a *Agent) emitPartial(ctx context.Context, log *slog.Logger, state *State, ch chan<- Event, reason StopReason) {
	state.Status = StatusPartial
	state.StopReason = reason
	log.WarnContext(ctx, "streaming analysis stopped on budget", "stop_reason", string(reason))
	emit(ctx, ch, Event{
		Type:       EventWarning,
		Warning:    stopNotes[reason],
		StopReason: reason,
	})
}

func (a *Agent) emitFailure(ctx context.Context, log *slog.Logger, state *State, ch chan<- Event, err error) {
	state.Status = StatusError
	state.StopReason = errorStopReason(err)
	log.ErrorContext(ctx, "streaming analysis failed", "stop_reason", string(state.StopReason), "error", err)
	emit(ctx, ch, Event{Type: EventFailure, Err: err})
}

// emit delivers one event unless the consumer has gone away.
func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// UserFacingError maps a terminal loop error to the single message the
// caller is allowed to surface.
func UserFacingError(err error) string {
	return pperr.UserMessage(err)
}
