// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package tools

import (
	"fmt"
	"strings"
)

// DefaultGuardrailMaxChars caps the serialized argument length.
const DefaultGuardrailMaxChars = 4000

// guardrailPhrases are prompt-injection markers scanned for in lowercased
// tool arguments. This is a coarse, best-effort filter, not a security
// boundary.
var guardrailPhrases = []string{
	"ignore previous instructions",
	"system prompt",
	"developer message",
	"openrouter_api_key",
	"api key",
}

// CheckGuardrail screens raw serialized tool arguments. It returns a
// human-readable rejection reason, or "" when the arguments pass. maxChars
// <= 0 selects the default cap.
func CheckGuardrail(rawArguments string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultGuardrailMaxChars
	}

	if len(rawArguments) > maxChars {
		return fmt.Sprintf("guardrail rejected arguments: serialized length %d exceeds limit %d",
			len(rawArguments), maxChars)
	}

	lowered := strings.ToLower(rawArguments)
	for _, phrase := range guardrailPhrases {
		if strings.Contains(lowered, phrase) {
			return fmt.Sprintf("guardrail rejected arguments: blocked phrase %q detected", phrase)
		}
	}

	return ""
}
