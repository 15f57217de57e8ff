// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package tools

import (
	"encoding/json"
	"fmt"
)

// Envelope error codes. Every tool failure becomes a result string carrying
// one of these so the model can read the rejection and react; tool failures
// are never fatal to the conversation.
const (
	EnvelopeCodeUnknownTool       = "unknown_tool"
	EnvelopeCodeDecodeError       = "decode_error"
	EnvelopeCodeInvalidArguments  = "invalid_arguments"
	EnvelopeCodeGuardrailRejected = "guardrail_rejected"
	EnvelopeCodeExecutionFailed   = "execution_failed"
)

type envelopeError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	OK    bool          `json:"ok"`
	Tool  string        `json:"tool"`
	Error envelopeError `json:"error"`
}

// Envelope renders a structured tool-failure result string.
func Envelope(tool, code, message string, retryable bool, details map[string]any) string {
	env := errorEnvelope{
		OK:   false,
		Tool: tool,
		Error: envelopeError{
			Code:      code,
			Message:   message,
			Retryable: retryable,
			Details:   details,
		},
	}

	b, err := json.Marshal(env)
	if err != nil {
		// Unreachable for this shape; fall back to something readable.
		return fmt.Sprintf(`{"ok":false,"tool":%q,"error":{"code":%q,"message":"marshal failure","retryable":false}}`, tool, code)
	}
	return string(b)
}
