// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package tools_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/packetpilot/sidecar/internal/bridge"
	"github.com/packetpilot/sidecar/internal/tools"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	searchRes *bridge.SearchResult
	searchErr error
	gotFilter string
	gotLimit  int

	streamRes   *bridge.StreamResult
	streamCalls int
	gotStreamID int
	gotProtocol string

	detailsRes *bridge.FrameDetails
	statsRes   *bridge.CaptureStats
	anomalyRes *bridge.AnomalyReport
	contextRes *bridge.PacketContext
	compareRes *bridge.PacketComparison
}

func (f *fakeBackend) GetFrames(context.Context, int, int) ([]bridge.FrameSummary, error) {
	return nil, nil
}

func (f *fakeBackend) GetFrameDetails(context.Context, int) (*bridge.FrameDetails, error) {
	if f.detailsRes == nil {
		return &bridge.FrameDetails{}, nil
	}
	return f.detailsRes, nil
}

func (f *fakeBackend) CheckFilter(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeBackend) SearchPackets(_ context.Context, filter string, limit, _ int) (*bridge.SearchResult, error) {
	f.gotFilter = filter
	f.gotLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchRes == nil {
		return &bridge.SearchResult{}, nil
	}
	return f.searchRes, nil
}

func (f *fakeBackend) GetStream(_ context.Context, streamID int, protocol, _ string) (*bridge.StreamResult, error) {
	f.streamCalls++
	f.gotStreamID = streamID
	f.gotProtocol = protocol
	if f.streamRes == nil {
		return &bridge.StreamResult{}, nil
	}
	return f.streamRes, nil
}

func (f *fakeBackend) GetCaptureStats(context.Context) (*bridge.CaptureStats, error) {
	if f.statsRes == nil {
		return &bridge.CaptureStats{}, nil
	}
	return f.statsRes, nil
}

func (f *fakeBackend) FindAnomalies(context.Context, []string, int) (*bridge.AnomalyReport, error) {
	if f.anomalyRes == nil {
		return &bridge.AnomalyReport{}, nil
	}
	return f.anomalyRes, nil
}

func (f *fakeBackend) GetPacketContext(context.Context, int, int, int) (*bridge.PacketContext, error) {
	if f.contextRes == nil {
		return &bridge.PacketContext{}, nil
	}
	return f.contextRes, nil
}

func (f *fakeBackend) ComparePackets(context.Context, int, int) (*bridge.PacketComparison, error) {
	if f.compareRes == nil {
		return &bridge.PacketComparison{}, nil
	}
	return f.compareRes, nil
}

// splitEvidence separates the human-readable body from the evidence tail.
func splitEvidence(t *testing.T, result string) (string, map[string]any) {
	t.Helper()
	parts := strings.SplitN(result, "\n"+tools.EvidenceMarker+"\n", 2)
	require.Len(t, parts, 2, "result should carry an evidence tail")
	var tail map[string]any
	require.NoError(t, json.Unmarshal([]byte(parts[1]), &tail))
	return parts[0], tail
}

func TestRegistryDefinitions(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{})
	defs := r.Definitions()
	require.Len(t, defs, 10)

	names := make(map[string]bool)
	for _, def := range defs {
		names[def.Name] = true
		require.NotEmpty(t, def.Description)
		require.Equal(t, "object", def.Parameters["type"])
	}
	for _, want := range []string{
		"get_capture_overview", "get_conversations", "get_endpoints",
		"search_packets", "get_stream", "get_packet_details",
		"find_anomalies", "get_packet_context", "compare_packets",
		"analyze_http_transaction",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestSearchPacketsFormatting(t *testing.T) {
	backend := &fakeBackend{
		searchRes: &bridge.SearchResult{
			Frames: []bridge.FrameSummary{
				{Number: 4, Protocol: "HTTP", Source: "10.0.0.2", Destination: "10.0.0.9", Info: "GET /index.html HTTP/1.1"},
				{Number: 7, Protocol: "HTTP", Source: "10.0.0.9", Destination: "10.0.0.2", Info: "HTTP/1.1 200 OK"},
			},
			TotalMatching: 42,
		},
	}
	r := tools.NewRegistry(backend)

	out := r.Execute(context.Background(), "search_packets", map[string]any{
		"filter": "http.request",
		"limit":  float64(50),
	})

	human, tail := splitEvidence(t, out)
	assert.Contains(t, human, "Found 42 packets matching 'http.request'. Showing first 2:")
	assert.Contains(t, human, "#4: HTTP 10.0.0.2 -> 10.0.0.9 | GET /index.html HTTP/1.1")
	assert.Equal(t, "http.request", backend.gotFilter)
	assert.Equal(t, 50, backend.gotLimit)

	evidence := tail["evidence"].(map[string]any)
	assert.Equal(t, []any{"http.request"}, evidence["filters"])
	assert.Equal(t, []any{float64(4), float64(7)}, evidence["sample_frames"])
}

func TestSearchPacketsNoMatches(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{searchRes: &bridge.SearchResult{}})
	out := r.Execute(context.Background(), "search_packets", map[string]any{"filter": "bogus"})
	human, _ := splitEvidence(t, out)
	assert.Contains(t, human, "No packets found matching 'bogus'")
}

func TestSearchPacketsInfoTruncatedAt80(t *testing.T) {
	longInfo := strings.Repeat("x", 200)
	r := tools.NewRegistry(&fakeBackend{
		searchRes: &bridge.SearchResult{
			Frames:        []bridge.FrameSummary{{Number: 1, Protocol: "TCP", Info: longInfo}},
			TotalMatching: 1,
		},
	})
	out := r.Execute(context.Background(), "search_packets", map[string]any{"filter": "tcp"})
	human, _ := splitEvidence(t, out)
	assert.Contains(t, human, strings.Repeat("x", 80))
	assert.NotContains(t, human, strings.Repeat("x", 81))
}

func TestGetStreamTruncation(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{
		streamRes: &bridge.StreamResult{
			Server:       bridge.StreamEndpoint{Host: "10.0.0.9", Port: 80},
			Client:       bridge.StreamEndpoint{Host: "10.0.0.2", Port: 51234},
			CombinedText: strings.Repeat("y", 5000),
		},
	})
	out := r.Execute(context.Background(), "get_stream", map[string]any{"stream_id": float64(3)})

	assert.Contains(t, out, "Stream 3 (TCP):")
	assert.Contains(t, out, "Server: 10.0.0.9:80")
	assert.Contains(t, out, "Client: 10.0.0.2:51234")
	assert.Contains(t, out, "... [truncated]")
	assert.NotContains(t, out, strings.Repeat("y", 4001))
}

func TestFindAnomaliesHealthy(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{
		anomalyRes: &bridge.AnomalyReport{
			Summary: bridge.AnomalySummary{TotalAnomalies: 0, BySeverity: map[string]int{}},
		},
	})
	out := r.Execute(context.Background(), "find_anomalies", map[string]any{})
	human, tail := splitEvidence(t, out)
	assert.Contains(t, human, "No anomalies detected")
	assert.Equal(t, "no anomalies detected", tail["summary"])
}

func TestFindAnomaliesFormatting(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{
		anomalyRes: &bridge.AnomalyReport{
			Summary: bridge.AnomalySummary{
				TotalAnomalies: 3,
				BySeverity:     map[string]int{"error": 1, "warning": 2, "info": 0},
			},
			Anomalies: []bridge.Anomaly{
				{
					Type:        "reset",
					Description: "TCP connections aborted by RST",
					Severity:    "error",
					Count:       1,
					SamplePackets: []bridge.FrameSummary{
						{Number: 90, Source: "10.0.0.2", Destination: "10.0.0.9", Info: "RST"},
					},
				},
			},
		},
	})
	out := r.Execute(context.Background(), "find_anomalies", map[string]any{})
	human, tail := splitEvidence(t, out)

	assert.Contains(t, human, "Found 3 anomalies:")
	assert.Contains(t, human, "RESET (1 packets)")
	assert.Contains(t, human, "#90: 10.0.0.2 -> 10.0.0.9 | RST")

	evidence := tail["evidence"].(map[string]any)
	assert.Equal(t, []any{float64(90)}, evidence["sample_frames"])
}

func TestPacketContextFormatting(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{
		contextRes: &bridge.PacketContext{
			Target: bridge.ContextTarget{
				Summary: bridge.FrameSummary{Number: 50, Protocol: "TCP", Source: "a", Destination: "b", Info: "RST"},
				Details: bridge.FrameDetails{Tree: []bridge.TreeNode{{Label: "Transmission Control Protocol"}}},
			},
			Before: []bridge.FrameSummary{{Number: 49, Protocol: "TCP", Source: "a", Destination: "b", Info: "ACK"}},
			After:  []bridge.FrameSummary{{Number: 51, Protocol: "TCP", Source: "b", Destination: "a", Info: "SYN"}},
		},
	})
	out := r.Execute(context.Background(), "get_packet_context", map[string]any{"packet_num": float64(50)})

	assert.Contains(t, out, "Context around packet #50:")
	assert.Contains(t, out, "BEFORE:")
	assert.Contains(t, out, ">>> TARGET #50:")
	assert.Contains(t, out, "- Transmission Control Protocol")
	assert.Contains(t, out, "AFTER:")
}

func TestExecuteBackendFailureBecomesEnvelope(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{
		searchErr: pperr.New(pperr.CodeBridgeCallFailure, "backend unreachable"),
	})
	out := r.Execute(context.Background(), "search_packets", map[string]any{"filter": "tcp"})

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, false, env["ok"])
	assert.Equal(t, "search_packets", env["tool"])

	errObj := env["error"].(map[string]any)
	assert.Equal(t, "execution_failed", errObj["code"])
	assert.Equal(t, true, errObj["retryable"])
}

func TestExecuteUnknownToolBecomesEnvelope(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{})
	out := r.Execute(context.Background(), "no_such_tool", nil)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, false, env["ok"])
	assert.Equal(t, "unknown_tool", env["error"].(map[string]any)["code"])
}

func TestHTTPTransactionByStreamID(t *testing.T) {
	backend := &fakeBackend{
		streamRes: &bridge.StreamResult{
			Server:       bridge.StreamEndpoint{Host: "10.0.0.9", Port: 80},
			Client:       bridge.StreamEndpoint{Host: "10.0.0.2", Port: 51234},
			ClientBytes:  120,
			ServerBytes:  2048,
			CombinedText: "GET / HTTP/1.1\r\n\r\nHTTP/1.1 200 OK\r\n",
		},
	}
	r := tools.NewRegistry(backend)
	out := r.Execute(context.Background(), "analyze_http_transaction", map[string]any{"stream_id": float64(3)})

	human, tail := splitEvidence(t, out)
	assert.Contains(t, human, "HTTP transaction (stream 3):")
	assert.Equal(t, 3, backend.gotStreamID)
	assert.Equal(t, "HTTP", backend.gotProtocol)

	evidence := tail["evidence"].(map[string]any)
	assert.Equal(t, []any{"tcp.stream == 3 && http"}, evidence["filters"])
}

func TestHTTPTransactionResolvesStreamFromFrame(t *testing.T) {
	backend := &fakeBackend{
		detailsRes: &bridge.FrameDetails{
			Tree: []bridge.TreeNode{
				{Label: "Ethernet II"},
				{Label: "Transmission Control Protocol", Children: []bridge.TreeNode{
					{Label: "Stream index: 7"},
				}},
			},
		},
		streamRes: &bridge.StreamResult{CombinedText: "GET /"},
	}
	r := tools.NewRegistry(backend)
	out := r.Execute(context.Background(), "analyze_http_transaction", map[string]any{"request_frame": float64(12)})

	human, tail := splitEvidence(t, out)
	assert.Contains(t, human, "HTTP transaction (stream 7):")
	assert.Equal(t, 7, backend.gotStreamID)

	evidence := tail["evidence"].(map[string]any)
	assert.Equal(t, []any{float64(12)}, evidence["sample_frames"])
}

func TestHTTPTransactionUnresolvableFrame(t *testing.T) {
	backend := &fakeBackend{
		detailsRes: &bridge.FrameDetails{Tree: []bridge.TreeNode{{Label: "Ethernet II"}}},
	}
	r := tools.NewRegistry(backend)
	out := r.Execute(context.Background(), "analyze_http_transaction", map[string]any{"request_frame": float64(12)})

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, false, env["ok"])
	assert.Equal(t, 0, backend.streamCalls, "stream must not be fetched when resolution fails")
}

func TestEndpointsSortedByVolume(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{
		statsRes: &bridge.CaptureStats{
			Endpoints: []bridge.Endpoint{
				{Host: "10.0.0.1", TxBytes: 10, RxBytes: 10},
				{Host: "10.0.0.2", TxBytes: 5000, RxBytes: 100},
				{Host: "10.0.0.3", TxBytes: 300, RxBytes: 300},
			},
		},
	})
	out := r.Execute(context.Background(), "get_endpoints", map[string]any{"limit": float64(2)})

	assert.Contains(t, out, "TOP ENDPOINTS (2 shown):")
	first := strings.Index(out, "10.0.0.2")
	second := strings.Index(out, "10.0.0.3")
	assert.Greater(t, first, 0)
	assert.Greater(t, second, first, "endpoints ordered by total bytes descending")
	assert.NotContains(t, out, "10.0.0.1")
}

func TestConversationsProtocolSelection(t *testing.T) {
	stats := &bridge.CaptureStats{
		TCPConversations: []bridge.Conversation{
			{SrcAddr: "10.0.0.2", SrcPort: 51234, DstAddr: "10.0.0.9", DstPort: 80, RxFrames: 4, TxFrames: 5, RxBytes: 400, TxBytes: 500},
		},
		UDPConversations: []bridge.Conversation{
			{SrcAddr: "10.0.0.2", SrcPort: 5353, DstAddr: "224.0.0.251", DstPort: 5353, RxFrames: 1, TxFrames: 1},
		},
	}
	r := tools.NewRegistry(&fakeBackend{statsRes: stats})

	out := r.Execute(context.Background(), "get_conversations", map[string]any{"protocol": "tcp"})
	assert.Contains(t, out, "TCP CONVERSATIONS (1 shown):")
	assert.Contains(t, out, "10.0.0.2:51234 <-> 10.0.0.9:80")
	assert.Contains(t, out, "9 packets, 900 bytes")
	assert.NotContains(t, out, "UDP CONVERSATIONS")

	out = r.Execute(context.Background(), "get_conversations", map[string]any{"protocol": "both"})
	assert.Contains(t, out, "TCP CONVERSATIONS")
	assert.Contains(t, out, "UDP CONVERSATIONS")
}

func TestComparePacketsFormatting(t *testing.T) {
	r := tools.NewRegistry(&fakeBackend{
		compareRes: &bridge.PacketComparison{
			PacketA:         bridge.FrameSummary{Number: 10, Protocol: "TCP", Source: "a", Destination: "b", Info: "PSH, ACK"},
			PacketB:         bridge.FrameSummary{Number: 15, Protocol: "TCP", Source: "a", Destination: "b", Info: "PSH, ACK (retransmission)"},
			CommonFields:    12,
			DifferentFields: 2,
			Differences: map[string]bridge.FieldDiff{
				"Time":            {PacketA: "1.002", PacketB: "1.430"},
				"Checksum Status": {PacketA: "Good", PacketB: ""},
			},
		},
	})
	out := r.Execute(context.Background(), "compare_packets", map[string]any{
		"packet_a": float64(10),
		"packet_b": float64(15),
	})

	assert.Contains(t, out, "Comparison of packet #10 vs #15:")
	assert.Contains(t, out, "Common fields: 12")
	assert.Contains(t, out, "KEY DIFFERENCES:")
	// Important key appears before the alphabetical remainder.
	assert.Less(t, strings.Index(out, "Time:"), strings.Index(out, "Checksum Status:"))
	assert.Contains(t, out, "B: N/A")
}
