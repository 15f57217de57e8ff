// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/packetpilot/sidecar/internal/bridge"
	"github.com/packetpilot/sidecar/internal/provider"
	"github.com/packetpilot/sidecar/internal/tools"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

const systemPrompt = `You are PacketPilot AI, an expert network packet analyst assistant. You help users understand network traffic captured in PCAP files.

You have access to these tools to explore the packet capture:
- get_capture_overview(): High-level overview of the capture. Start here for exploratory questions.
- get_conversations(protocol, limit): List TCP/UDP conversations between endpoints
- get_endpoints(limit): List top hosts by traffic volume
- search_packets(filter, limit): Search for packets using Wireshark display filters
- get_stream(stream_id, protocol): Reconstruct TCP/UDP/HTTP stream conversations
- get_packet_details(packet_num): Get detailed protocol dissection for a specific packet
- find_anomalies(types): Detect network issues like retransmissions, resets, errors. Great for quick health checks.
- get_packet_context(packet_num, before, after): Get a packet with surrounding context to see what happened before/after
- compare_packets(packet_a, packet_b): Compare two packets field by field to find differences
- analyze_http_transaction(stream_id | request_frame): Examine one HTTP request/response exchange end to end

Your capabilities:
- Analyze packet captures to identify patterns, issues, and anomalies
- Explain network protocols and their behavior
- Generate Wireshark display filters from natural language descriptions
- Identify potential security issues or performance problems
- Summarize network conversations and streams

When analyzing packets, consider:
- Protocol layers (Ethernet, IP, TCP/UDP, Application)
- Source and destination addresses/ports
- Packet timing and sequence
- Error conditions and retransmissions
- Common attack patterns

When you need specific information about the capture, USE YOUR TOOLS to search for packets or examine streams. Don't just guess - search and verify.

Always provide clear, concise explanations. When suggesting filters, use valid Wireshark display filter syntax.`

const fallbackMessage = "I couldn't generate a response. Please try again."

// Result is the outcome of one buffered analysis request.
type Result struct {
	Message         string
	SuggestedFilter string
	SuggestedAction string
	RequestID       string
	Status          CompletionStatus
	StopReason      StopReason
}

// Agent drives the bounded orchestration loop.
type Agent struct {
	client       *provider.RetryClient
	registry     *tools.Registry
	backend      bridge.Backend
	policy       Policy
	model        string
	maxTokens    int
	guardrailMax int
	log          *slog.Logger

	clock func() time.Time
}

// Options configures an Agent.
type Options struct {
	Client       *provider.RetryClient
	Registry     *tools.Registry
	Backend      bridge.Backend
	Policy       Policy
	Model        string
	MaxTokens    int
	GuardrailMax int
	Log          *slog.Logger
}

// New creates an Agent.
func New(opts Options) *Agent {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Agent{
		client:       opts.Client,
		registry:     opts.Registry,
		backend:      opts.Backend,
		policy:       opts.Policy,
		model:        opts.Model,
		maxTokens:    opts.MaxTokens,
		guardrailMax: opts.GuardrailMax,
		log:          opts.Log,
		clock:        time.Now,
	}
}

func (a *Agent) modelFor(req Request) string {
	if req.ModelOverride != "" {
		return req.ModelOverride
	}
	return a.model
}

func requestID(req Request) string {
	if req.RequestID != "" {
		return req.RequestID
	}
	return uuid.NewString()
}

// Analyze runs one buffered analysis request to completion, a budget trip,
// or a terminal provider error.
func (a *Agent) Analyze(ctx context.Context, req Request) (*Result, error) {
	id := requestID(req)
	state := newState(a.clock)
	model := a.modelFor(req)
	msgs := append([]provider.Message{{Role: provider.RoleSystem, Content: systemPrompt}}, buildMessages(req)...)

	log := a.log.With("request_id", id, "model", model)
	log.InfoContext(ctx, "analysis started", "query_len", len(req.Query))

	var partial strings.Builder

	for {
		if reason := a.policy.LimitReason(state); reason != "" {
			return a.partialResult(ctx, log, state, id, partial.String(), reason), nil
		}

		state.ModelCalls++
		comp, err := a.client.Complete(ctx, provider.ChatRequest{
			Model:     model,
			Messages:  msgs,
			MaxTokens: a.maxTokens,
			Tools:     a.registry.Definitions(),
		}, "analyze", state)
		if err != nil {
			state.Status = StatusError
			state.StopReason = errorStopReason(err)
			log.ErrorContext(ctx, "analysis failed", "stop_reason", state.StopReason, "error", err)
			return nil, pperr.With(err, pperr.FieldRequestID(id))
		}

		if len(comp.ToolCalls) == 0 {
			state.Status = StatusComplete
			state.StopReason = StopCompleted

			text := comp.Content
			if text == "" {
				text = fallbackMessage
			}
			filter, action := ExtractSuggestedFilter(comp.Content)

			log.InfoContext(ctx, "analysis complete",
				"iterations", state.Iterations,
				"model_calls", state.ModelCalls,
				"tool_calls", state.ToolCalls,
				"retries", state.RetryCount)

			return &Result{
				Message:         text,
				SuggestedFilter: filter,
				SuggestedAction: action,
				RequestID:       id,
				Status:          StatusComplete,
				StopReason:      StopCompleted,
			}, nil
		}

		if comp.Content != "" {
			partial.WriteString(comp.Content)
		}

		msgs = append(msgs, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   comp.Content,
			ToolCalls: comp.ToolCalls,
		})

		for _, tc := range comp.ToolCalls {
			if reason := a.policy.LimitReason(state); reason != "" {
				// Tool messages executed so far stay in the log; the batch
				// is cut short, not dropped.
				return a.partialResult(ctx, log, state, id, partial.String(), reason), nil
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

// runToolCall takes one model-issued tool call through decode, validation,
// guardrail, and execution. Every failure mode becomes a result string the
// model can read; nothing here fails the loop.
func (a *Agent) runToolCall(ctx context.Context, log *slog.Logger, tc provider.ToolCall) string {
	args := map[string]any{}
	if tc.Arguments != "" {
		var decoded any
		if err := json.Unmarshal([]byte(tc.Arguments), &decoded); err != nil {
			log.WarnContext(ctx, "tool arguments not decodable", "tool", tc.Name, "error", err)
			return tools.Envelope(tc.Name, tools.EnvelopeCodeDecodeError,
				"arguments are not valid JSON: "+err.Error(), false, nil)
		}
		switch m := decoded.(type) {
		case map[string]any:
			args = m
		case nil:
		default:
			log.WarnContext(ctx, "tool arguments not an object", "tool", tc.Name)
			return tools.Envelope(tc.Name, tools.EnvelopeCodeInvalidArguments,
				"arguments must be a flat key/value object", false,
				map[string]any{"kind": string(tools.InvalidArguments)})
		}
	}

	if verr := a.registry.Validate(tc.Name, args); verr != nil {
		log.WarnContext(ctx, "tool arguments rejected", "tool", tc.Name, "kind", string(verr.Kind))
		return tools.Envelope(tc.Name, tools.EnvelopeCodeInvalidArguments, verr.Message, false,
			map[string]any{"kind": string(verr.Kind)})
	}

	if reason := tools.CheckGuardrail(tc.Arguments, a.guardrailMax); reason != "" {
		log.WarnContext(ctx, "tool arguments blocked by guardrail", "tool", tc.Name)
		return tools.Envelope(tc.Name, tools.EnvelopeCodeGuardrailRejected, reason, false, nil)
	}

	log.InfoContext(ctx, "executing tool", "tool", tc.Name)
	return a.registry.Execute(ctx, tc.Name, args)
}

func (a *Agent) partialResult(ctx context.Context, log *slog.Logger, state *State, id, accumulated string, reason StopReason) *Result {
	state.Status = StatusPartial
	state.StopReason = reason

	log.WarnContext(ctx, "analysis stopped on budget",
		"stop_reason", string(reason),
		"iterations", state.Iterations,
		"model_calls", state.ModelCalls,
		"tool_calls", state.ToolCalls,
		"elapsed_ms", state.Elapsed().Milliseconds())

	return &Result{
		Message:    appendStopNote(accumulated, reason),
		RequestID:  id,
		Status:     StatusPartial,
		StopReason: reason,
	}
}

func errorStopReason(err error) StopReason {
	switch {
	case pperr.IsAuthFailure(err):
		return StopAuthFailed
	case pperr.IsQuotaExhausted(err):
		return StopQuotaExhausted
	default:
		return StopProviderError
	}
}
