// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/packetpilot/sidecar/internal/provider"
)

const filterSystemPrompt = "You are a Wireshark display filter expert. Generate valid display filters from natural language descriptions. Respond with only the filter expression."

const filterMaxTokens = 256

// FilterResult is a generated display filter plus its backend validation
// verdict.
type FilterResult struct {
	Filter      string
	IsValid     bool
	Explanation string
}

// GenerateFilter turns a natural-language description into a display
// filter. No tools are offered; the model answers in one shot and the
// result is validated against the backend's filter grammar.
func (a *Agent) GenerateFilter(ctx context.Context, query string, capture CaptureContext) (*FilterResult, error) {
	fileName := capture.FileName
	if fileName == "" {
		fileName = "Unknown"
	}
	currentFilter := capture.CurrentFilter
	if currentFilter == "" {
		currentFilter = "None"
	}

	userMessage := fmt.Sprintf(`Generate a Wireshark display filter for the following request:

%q

Current context:
- File: %s
- Total frames: %d
- Current filter: %s

Respond with ONLY the filter expression, nothing else. Use valid Wireshark display filter syntax.`,
		query, fileName, capture.TotalFrames, currentFilter)

	state := newState(a.clock)
	comp, err := a.client.Complete(ctx, provider.ChatRequest{
		Model: a.model,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: filterSystemPrompt},
			{Role: provider.RoleUser, Content: userMessage},
		},
		MaxTokens: filterMaxTokens,
	}, "generate_filter", state)
	if err != nil {
		return nil, err
	}

	filter := strings.TrimSpace(comp.Content)
	filter = strings.Trim(filter, "`'\"")

	valid := false
	if a.backend != nil && filter != "" {
		// A backend hiccup reports the filter as unvalidated, not an error.
		if ok, checkErr := a.backend.CheckFilter(ctx, filter); checkErr == nil {
			valid = ok
		} else {
			a.log.WarnContext(ctx, "filter validation unavailable", "error", checkErr)
		}
	}

	return &FilterResult{
		Filter:      filter,
		IsValid:     valid,
		Explanation: "Filter to show: " + query,
	}, nil
}
