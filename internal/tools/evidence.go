// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package tools

import "encoding/json"

// EvidenceMarker separates the human-readable tool output from the
// machine-readable evidence tail appended by analytical tools.
const EvidenceMarker = "---EVIDENCE---"

type evidenceBody struct {
	Filters      []string `json:"filters"`
	SampleFrames []int    `json:"sample_frames"`
}

type evidenceTail struct {
	Summary  string       `json:"summary"`
	Evidence evidenceBody `json:"evidence"`
}

// appendEvidence attaches the evidence tail to a human-readable result.
func appendEvidence(human, summary string, filters []string, sampleFrames []int) string {
	if filters == nil {
		filters = []string{}
	}
	if sampleFrames == nil {
		sampleFrames = []int{}
	}

	tail := evidenceTail{
		Summary: summary,
		Evidence: evidenceBody{
			Filters:      filters,
			SampleFrames: sampleFrames,
		},
	}

	b, err := json.Marshal(tail)
	if err != nil {
		return human
	}
	return human + "\n" + EvidenceMarker + "\n" + string(b)
}
