// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

// Package provider defines the chat-completion client boundary. The
// orchestration loop depends only on the Client interface; the openrouter
// subpackage supplies the production implementation.
package provider

import (
	"context"
)

// Client is the completion client the orchestration loop drives.
type Client interface {
	// Complete issues one non-streaming chat completion.
	Complete(ctx context.Context, req ChatRequest) (*Completion, error)

	// Stream opens a token stream for one chat completion. The returned
	// channel is closed when the stream ends; a nil error means the stream
	// opened successfully (mid-stream failures arrive as EventError).
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
}

// ChatRequest is one model call.
type ChatRequest struct {
	Model     string
	Messages  []Message
	MaxTokens int
	Tools     []ToolDefinition
}

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversation message. Assistant messages may carry tool
// calls with empty content; tool messages carry the id of the call they
// answer.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-initiated tool invocation. Arguments is the raw JSON
// string exactly as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes a callable tool for the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Completion is the model's reply to a non-streaming call.
type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// EventType identifies a streaming event.
type EventType string

const (
	EventTextDelta EventType = "text_delta"
	EventToolCall  EventType = "tool_call"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// StreamEvent is one event from an open token stream. Tool-call fragments
// are reassembled by index inside the provider, so EventToolCall always
// carries a complete call.
type StreamEvent struct {
	Type     EventType
	Text     string
	ToolCall *ToolCall
	Err      error
}
