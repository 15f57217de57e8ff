// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package agent

import (
	"fmt"
	"strings"

	"github.com/packetpilot/sidecar/internal/bridge"
	"github.com/packetpilot/sidecar/internal/provider"
)

// CaptureContext is the caller-supplied snapshot of UI state.
type CaptureContext struct {
	FileName         string
	TotalFrames      int
	CurrentFilter    string
	SelectedPacketID int
}

// Turn is one prior conversation turn. Only user and assistant turns are
// carried forward into the model's history.
type Turn struct {
	Role    string
	Content string
}

// Request is one analysis request.
type Request struct {
	Query   string
	Context CaptureContext
	// SelectedPacket carries the dissection of the explicitly selected
	// packet, when there is one. Frames merely visible in the UI are never
	// injected; the model requests detail through tools instead.
	SelectedPacket *bridge.FrameDetails
	History        []Turn
	ModelOverride  string
	RequestID      string
}

const historyWindow = 10

const maxContextTreeLayers = 5

// ContextString renders the capture context for the model. Compact mode is
// a single pipe-separated line; verbose mode one field per line. Absent
// fields are omitted entirely.
func ContextString(c CaptureContext, compact bool) string {
	var parts []string
	if c.FileName != "" {
		parts = append(parts, fmt.Sprintf("Current file: %s", c.FileName))
	}
	if c.TotalFrames > 0 {
		parts = append(parts, fmt.Sprintf("Total frames: %d", c.TotalFrames))
	}
	if c.CurrentFilter != "" {
		parts = append(parts, fmt.Sprintf("Active filter: %s", c.CurrentFilter))
	}
	if c.SelectedPacketID > 0 {
		parts = append(parts, fmt.Sprintf("Selected packet: #%d", c.SelectedPacketID))
	}

	if len(parts) == 0 {
		return "No capture loaded"
	}
	if compact {
		return strings.Join(parts, " | ")
	}
	return strings.Join(parts, "\n")
}

// formatSelectedPacket renders the first protocol layers of the selected
// packet's dissection.
func formatSelectedPacket(details *bridge.FrameDetails) string {
	var lines []string
	for i, node := range details.Tree {
		if i >= maxContextTreeLayers {
			break
		}
		if node.Label != "" {
			lines = append(lines, "  - "+node.Label)
		}
	}
	if len(lines) == 0 {
		return "  No details available"
	}
	return strings.Join(lines, "\n")
}

// buildMessages assembles the model conversation: trimmed history followed
// by the current query wrapped in capture context.
func buildMessages(req Request) []provider.Message {
	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var msgs []provider.Message
	for _, turn := range history {
		if turn.Role != "user" && turn.Role != "assistant" {
			continue
		}
		msgs = append(msgs, provider.Message{
			Role:    provider.Role(turn.Role),
			Content: turn.Content,
		})
	}

	packetContext := ""
	if req.SelectedPacket != nil {
		packetContext = "\n\nSelected packet details:\n" + formatSelectedPacket(req.SelectedPacket)
	}

	userMessage := fmt.Sprintf("Capture Context:\n%s\n%s\n\nUser query: %s",
		ContextString(req.Context, false), packetContext, req.Query)

	return append(msgs, provider.Message{Role: provider.RoleUser, Content: userMessage})
}

// filterOperators is the token set a backtick span must contain before it
// is surfaced as a suggested filter.
var filterOperators = []string{"==", "!=", "&&", "||", ".", "contains"}

// ExtractSuggestedFilter scans a final answer for a display-filter
// suggestion. Best-effort UX sugar: the span is not validated here, only
// shape-checked against common filter operators.
func ExtractSuggestedFilter(text string) (filter, action string) {
	if text == "" {
		return "", ""
	}
	if !strings.Contains(strings.ToLower(text), "filter:") && !strings.Contains(text, "`") {
		return "", ""
	}

	start := strings.Index(text, "`")
	if start < 0 {
		return "", ""
	}
	rest := text[start+1:]
	end := strings.Index(rest, "`")
	if end <= 0 {
		return "", ""
	}
	span := rest[:end]

	for _, op := range filterOperators {
		if strings.Contains(span, op) {
			return span, "apply_filter"
		}
	}
	return "", ""
}
