// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/packetpilot/sidecar/internal/bridge"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

const (
	maxFrameLines     = 20
	maxInfoChars      = 80
	maxStreamChars    = 4000
	maxTreeLines      = 10
	maxContextTree    = 6
	maxSampleFrames   = 20
	anomaliesPerType  = 10
	maxDiffLines      = 15
	maxImportantDiffs = 10
)

// Execute runs the named tool, converting any failure into a structured
// error-envelope result string. The loop never sees a tool error as a Go
// error; failures flow back to the model as text it can react to.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) string {
	t, ok := r.tools[name]
	if !ok {
		return Envelope(name, EnvelopeCodeUnknownTool, fmt.Sprintf("unknown tool %q", name), false, nil)
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		retryable := pperr.HasCode(err, pperr.CodeBridgeCallFailure) || pperr.IsRetryable(err)
		return Envelope(name, EnvelopeCodeExecutionFailed, err.Error(), retryable, nil)
	}
	return out
}

func registerCaptureTools(r *Registry, backend bridge.Backend) {
	r.Register(&Tool{
		Name: "get_capture_overview",
		Description: `Get a high-level overview of the entire capture.

RETURNS: Total packets, duration, protocol hierarchy, conversation counts, endpoint counts.

WHEN TO USE: Start here when you need to understand the capture before drilling down.
- "What's in this capture?"
- "What protocols are being used?"
- Any exploratory analysis`,
		Fields: map[string]FieldSpec{},
		Execute: func(ctx context.Context, _ map[string]any) (string, error) {
			return executeCaptureOverview(ctx, backend)
		},
	})

	r.Register(&Tool{
		Name: "get_conversations",
		Description: `List network conversations (connections between endpoints).

RETURNS: TCP and/or UDP conversations with addresses, ports, packet/byte counts.

WHEN TO USE: When you need to see who is talking to whom.
- "Show me the connections"
- "Find the largest data transfers"
- "Who is this IP talking to?"`,
		Fields: map[string]FieldSpec{
			"protocol": {
				Type:        FieldString,
				Description: "Filter by protocol (default: both)",
				Enum:        []string{"tcp", "udp", "both"},
				Default:     "both",
			},
			"limit": {
				Type:        FieldInteger,
				Description: "Max conversations to return (default 20)",
				Default:     20,
				Min:         1, Max: 100, Bounded: true,
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeConversations(ctx, backend, strArg(args, "protocol", "both"), intArg(args, "limit", 20))
		},
	})

	r.Register(&Tool{
		Name: "get_endpoints",
		Description: `List top network endpoints (hosts) by traffic volume.

RETURNS: IP addresses with packets sent/received and bytes sent/received.

WHEN TO USE: When you need to identify the most active hosts.
- "What are the busiest hosts?"
- "Find the top talkers"`,
		Fields: map[string]FieldSpec{
			"limit": {
				Type:        FieldInteger,
				Description: "Max endpoints to return (default 20)",
				Default:     20,
				Min:         1, Max: 100, Bounded: true,
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeEndpoints(ctx, backend, intArg(args, "limit", 20))
		},
	})

	r.Register(&Tool{
		Name: "search_packets",
		Description: `Search packets using a Wireshark display filter expression.

RETURNS: List of matching packets with frame number, protocol, addresses, and info.

FILTER EXAMPLES:
- Protocol: 'http', 'dns', 'tcp', 'tls'
- IP: 'ip.addr == 192.168.1.1', 'ip.src == 10.0.0.1'
- Port: 'tcp.port == 443', 'udp.port == 53'
- Flags: 'tcp.flags.syn == 1', 'tcp.flags.rst == 1'
- Combined: 'http.request && ip.dst == 10.0.0.1'
- Content: 'http.request.uri contains "api"'`,
		Fields: map[string]FieldSpec{
			"filter": {
				Type:        FieldString,
				Description: "Wireshark display filter (e.g., 'http.request', 'tcp.port == 443')",
			},
			"limit": {
				Type:        FieldInteger,
				Description: "Max packets to return (default 50)",
				Default:     50,
				Min:         1, Max: 200, Bounded: true,
			},
		},
		Required: []string{"filter"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeSearchPackets(ctx, backend, strArg(args, "filter", ""), intArg(args, "limit", 50))
		},
	})

	r.Register(&Tool{
		Name: "get_stream",
		Description: `Reconstruct the full content of a TCP, UDP, or HTTP conversation.

RETURNS: Complete data exchanged between client and server.

WHEN TO USE: When you need to see actual payload data, not just headers.

WORKFLOW: First search_packets to find traffic, note the stream number, then use this.`,
		Fields: map[string]FieldSpec{
			"stream_id": {
				Type:        FieldInteger,
				Description: "Stream index (from packet info, e.g., tcp.stream=0)",
				Min:         0, Max: 1000000, Bounded: true,
			},
			"protocol": {
				Type:        FieldString,
				Description: "Protocol type (default TCP)",
				Enum:        []string{"TCP", "UDP", "HTTP"},
				Default:     "TCP",
			},
		},
		Required: []string{"stream_id"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeStream(ctx, backend, intArg(args, "stream_id", 0), strArg(args, "protocol", "TCP"))
		},
	})

	r.Register(&Tool{
		Name: "get_packet_details",
		Description: `Get detailed protocol dissection for a specific packet.

RETURNS: Full protocol tree with all layers and field values.

WHEN TO USE: When you need to examine one packet in detail, after finding it via search.`,
		Fields: map[string]FieldSpec{
			"packet_num": {
				Type:        FieldInteger,
				Description: "Frame number of the packet",
				Min:         1, Max: 100000000, Bounded: true,
			},
		},
		Required: []string{"packet_num"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executePacketDetails(ctx, backend, intArg(args, "packet_num", 0))
		},
	})

	r.Register(&Tool{
		Name: "find_anomalies",
		Description: `Detect network anomalies and issues in the capture.

RETURNS: Summary of issues with severity and sample packets.

WHEN TO USE: For quick health checks or troubleshooting.
- "Is there anything wrong?"
- "Why is it slow?"

DETECTS: retransmissions, duplicate ACKs, resets, zero window, malformed packets, ICMP errors, DNS errors, HTTP 4xx/5xx, TLS alerts`,
		Fields: map[string]FieldSpec{
			"types": {
				Type:        FieldArray,
				Description: "Specific types to check (omit for all): retransmission, reset, dns_error, http_error, tls_alert, etc.",
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeFindAnomalies(ctx, backend, strSliceArg(args, "types"))
		},
	})

	r.Register(&Tool{
		Name: "get_packet_context",
		Description: `Get a packet with surrounding packets for context.

RETURNS: Target packet plus packets before and after it.

WHEN TO USE: To understand what happened around a specific event.
- "What caused this reset?"
- "What happened before the error?"`,
		Fields: map[string]FieldSpec{
			"packet_num": {
				Type:        FieldInteger,
				Description: "Frame number of the target packet",
				Min:         1, Max: 100000000, Bounded: true,
			},
			"before": {
				Type:        FieldInteger,
				Description: "Packets before to include (default 5)",
				Default:     5,
				Min:         0, Max: 50, Bounded: true,
			},
			"after": {
				Type:        FieldInteger,
				Description: "Packets after to include (default 5)",
				Default:     5,
				Min:         0, Max: 50, Bounded: true,
			},
		},
		Required: []string{"packet_num"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executePacketContext(ctx, backend,
				intArg(args, "packet_num", 0), intArg(args, "before", 5), intArg(args, "after", 5))
		},
	})

	r.Register(&Tool{
		Name: "compare_packets",
		Description: `Compare two packets field by field.

RETURNS: Differences between the packets.

WHEN TO USE: To analyze related packets.
- Compare request vs response
- Compare original vs retransmission`,
		Fields: map[string]FieldSpec{
			"packet_a": {
				Type:        FieldInteger,
				Description: "Frame number of first packet",
				Min:         1, Max: 100000000, Bounded: true,
			},
			"packet_b": {
				Type:        FieldInteger,
				Description: "Frame number of second packet",
				Min:         1, Max: 100000000, Bounded: true,
			},
		},
		Required: []string{"packet_a", "packet_b"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return executeComparePackets(ctx, backend, intArg(args, "packet_a", 0), intArg(args, "packet_b", 0))
		},
	})

	r.Register(&Tool{
		Name: "analyze_http_transaction",
		Description: `Analyze one HTTP request/response transaction in depth.

RETURNS: The reconstructed request and response exchanged on the transaction's stream.

WHEN TO USE: To examine one HTTP exchange end to end.
- "What did this request send and what came back?"
- "Why did this request fail?"

Provide exactly one of stream_id (if known) or request_frame (the frame number of the HTTP request).`,
		Fields: map[string]FieldSpec{
			"stream_id": {
				Type:        FieldInteger,
				Description: "TCP stream index carrying the transaction",
				Min:         0, Max: 1000000, Bounded: true,
			},
			"request_frame": {
				Type:        FieldInteger,
				Description: "Frame number of the HTTP request packet",
				Min:         1, Max: 100000000, Bounded: true,
			},
		},
		ExactlyOneOf: []string{"stream_id", "request_frame"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			streamID, hasStream := args["stream_id"]
			if hasStream {
				id, _ := asInt(streamID)
				return executeHTTPTransaction(ctx, backend, id, 0)
			}
			return executeHTTPTransaction(ctx, backend, -1, intArg(args, "request_frame", 0))
		},
	})
}

func executeSearchPackets(ctx context.Context, backend bridge.Backend, filter string, limit int) (string, error) {
	res, err := backend.SearchPackets(ctx, filter, limit, 0)
	if err != nil {
		return "", err
	}

	if len(res.Frames) == 0 {
		human := fmt.Sprintf("No packets found matching '%s'", filter)
		return appendEvidence(human,
			fmt.Sprintf("0 packets match filter %q", filter),
			[]string{filter}, nil), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d packets matching '%s'. Showing first %d:\n", res.TotalMatching, filter, len(res.Frames))

	var samples []int
	for i, frame := range res.Frames {
		if i >= maxFrameLines {
			break
		}
		fmt.Fprintf(&b, "  #%d: %s %s -> %s | %s\n",
			frame.Number, frame.Protocol, frame.Source, frame.Destination, truncate(frame.Info, maxInfoChars))
		samples = append(samples, frame.Number)
	}

	return appendEvidence(b.String(),
		fmt.Sprintf("%d packets match filter %q", res.TotalMatching, filter),
		[]string{filter}, samples), nil
}

func executeStream(ctx context.Context, backend bridge.Backend, streamID int, protocol string) (string, error) {
	res, err := backend.GetStream(ctx, streamID, protocol, "ascii")
	if err != nil {
		return "", err
	}

	combined := res.CombinedText
	if len(combined) > maxStreamChars {
		combined = combined[:maxStreamChars] + "\n... [truncated]"
	}

	return fmt.Sprintf("Stream %d (%s):\nServer: %s:%d\nClient: %s:%d\n\n%s",
		streamID, protocol,
		res.Server.Host, res.Server.Port,
		res.Client.Host, res.Client.Port,
		combined), nil
}

func executePacketDetails(ctx context.Context, backend bridge.Backend, packetNum int) (string, error) {
	res, err := backend.GetFrameDetails(ctx, packetNum)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Packet #%d details:\n", packetNum)
	for i, node := range res.Tree {
		if i >= maxTreeLines {
			break
		}
		if node.Label != "" {
			fmt.Fprintf(&b, "  - %s\n", node.Label)
		}
	}
	return b.String(), nil
}

var severityIcons = map[string]string{
	"error":   "\U0001F534",
	"warning": "\U0001F7E1",
	"info":    "\U0001F535",
}

func executeFindAnomalies(ctx context.Context, backend bridge.Backend, types []string) (string, error) {
	res, err := backend.FindAnomalies(ctx, types, anomaliesPerType)
	if err != nil {
		return "", err
	}

	if res.Summary.TotalAnomalies == 0 {
		human := "No anomalies detected in the capture. The network traffic appears healthy."
		return appendEvidence(human, "no anomalies detected", types, nil), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d anomalies:\n", res.Summary.TotalAnomalies)
	fmt.Fprintf(&b, "  - Errors: %d\n", res.Summary.BySeverity["error"])
	fmt.Fprintf(&b, "  - Warnings: %d\n", res.Summary.BySeverity["warning"])
	fmt.Fprintf(&b, "  - Info: %d\n\n", res.Summary.BySeverity["info"])

	var samples []int
	for _, anomaly := range res.Anomalies {
		fmt.Fprintf(&b, "%s %s (%d packets)\n", severityIcons[anomaly.Severity], strings.ToUpper(anomaly.Type), anomaly.Count)
		fmt.Fprintf(&b, "   %s\n", anomaly.Description)
		if len(anomaly.SamplePackets) > 0 {
			b.WriteString("   Sample packets:\n")
			for i, packet := range anomaly.SamplePackets {
				if i >= 3 {
					break
				}
				fmt.Fprintf(&b, "     #%d: %s -> %s | %s\n",
					packet.Number, packet.Source, packet.Destination, packet.Info)
				if len(samples) < maxSampleFrames {
					samples = append(samples, packet.Number)
				}
			}
		}
		b.WriteString("\n")
	}

	return appendEvidence(b.String(),
		fmt.Sprintf("%d anomalies detected across %d classes", res.Summary.TotalAnomalies, len(res.Anomalies)),
		types, samples), nil
}

func executePacketContext(ctx context.Context, backend bridge.Backend, packetNum, before, after int) (string, error) {
	res, err := backend.GetPacketContext(ctx, packetNum, before, after)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Context around packet #%d:\n\n", packetNum)

	if len(res.Before) > 0 {
		b.WriteString("BEFORE:\n")
		for _, packet := range res.Before {
			fmt.Fprintf(&b, "  #%d: %s %s -> %s | %s\n",
				packet.Number, packet.Protocol, packet.Source, packet.Destination, packet.Info)
		}
		b.WriteString("\n")
	}

	target := res.Target.Summary
	fmt.Fprintf(&b, ">>> TARGET #%d:\n", target.Number)
	fmt.Fprintf(&b, "    %s %s -> %s\n", target.Protocol, target.Source, target.Destination)
	fmt.Fprintf(&b, "    %s\n", target.Info)

	if len(res.Target.Details.Tree) > 0 {
		b.WriteString("    Details:\n")
		for i, node := range res.Target.Details.Tree {
			if i >= maxContextTree {
				break
			}
			if node.Label != "" {
				fmt.Fprintf(&b, "      - %s\n", node.Label)
			}
		}
	}
	b.WriteString("\n")

	if len(res.After) > 0 {
		b.WriteString("AFTER:\n")
		for _, packet := range res.After {
			fmt.Fprintf(&b, "  #%d: %s %s -> %s | %s\n",
				packet.Number, packet.Protocol, packet.Source, packet.Destination, packet.Info)
		}
	}

	return b.String(), nil
}

// importantDiffKeys are surfaced first when comparing packets.
var importantDiffKeys = []string{"Sequence Number", "Acknowledgment Number", "Time", "Length", "Flags"}

func executeComparePackets(ctx context.Context, backend bridge.Backend, packetA, packetB int) (string, error) {
	res, err := backend.ComparePackets(ctx, packetA, packetB)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Comparison of packet #%d vs #%d:\n\n", packetA, packetB)

	fmt.Fprintf(&b, "Packet A (#%d):\n", res.PacketA.Number)
	fmt.Fprintf(&b, "  %s %s -> %s\n", res.PacketA.Protocol, res.PacketA.Source, res.PacketA.Destination)
	fmt.Fprintf(&b, "  %s\n\n", res.PacketA.Info)

	fmt.Fprintf(&b, "Packet B (#%d):\n", res.PacketB.Number)
	fmt.Fprintf(&b, "  %s %s -> %s\n", res.PacketB.Protocol, res.PacketB.Source, res.PacketB.Destination)
	fmt.Fprintf(&b, "  %s\n\n", res.PacketB.Info)

	fmt.Fprintf(&b, "Common fields: %d\n", res.CommonFields)
	fmt.Fprintf(&b, "Different fields: %d\n\n", res.DifferentFields)

	if len(res.Differences) > 0 {
		b.WriteString("KEY DIFFERENCES:\n")
		shown := 0
		writeDiff := func(key string, diff bridge.FieldDiff) {
			fmt.Fprintf(&b, "  %s:\n", key)
			fmt.Fprintf(&b, "    A: %s\n", orNA(diff.PacketA))
			fmt.Fprintf(&b, "    B: %s\n", orNA(diff.PacketB))
		}

		for _, key := range importantDiffKeys {
			if diff, ok := res.Differences[key]; ok && shown < maxImportantDiffs {
				writeDiff(key, diff)
				shown++
			}
		}

		var others []string
		for key := range res.Differences {
			if !contains(importantDiffKeys, key) {
				others = append(others, key)
			}
		}
		sort.Strings(others)
		for _, key := range others {
			if shown >= maxDiffLines {
				break
			}
			writeDiff(key, res.Differences[key])
			shown++
		}
	}

	return b.String(), nil
}

func executeCaptureOverview(ctx context.Context, backend bridge.Backend) (string, error) {
	res, err := backend.GetCaptureStats(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("CAPTURE OVERVIEW:\n")
	fmt.Fprintf(&b, "  Total frames: %d\n", res.Summary.TotalFrames)
	if res.Summary.Duration > 0 {
		fmt.Fprintf(&b, "  Duration: %.2f seconds\n", res.Summary.Duration)
	}
	fmt.Fprintf(&b, "  TCP conversations: %d\n", res.Summary.TCPConversationCount)
	fmt.Fprintf(&b, "  UDP conversations: %d\n", res.Summary.UDPConversationCount)
	fmt.Fprintf(&b, "  Endpoints: %d\n\n", res.Summary.EndpointCount)

	b.WriteString("PROTOCOL HIERARCHY:\n")
	for i, proto := range res.ProtocolHierarchy {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&b, "  - %s: %d packets, %d bytes\n", proto.Protocol, proto.Frames, proto.Bytes)
		for j, child := range proto.Children {
			if j >= 3 {
				break
			}
			fmt.Fprintf(&b, "    - %s: %d packets\n", child.Protocol, child.Frames)
		}
	}

	return b.String(), nil
}

func executeConversations(ctx context.Context, backend bridge.Backend, protocol string, limit int) (string, error) {
	res, err := backend.GetCaptureStats(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("NETWORK CONVERSATIONS:\n\n")
	wrote := false

	writeSection := func(label string, conversations []bridge.Conversation) {
		if len(conversations) > limit {
			conversations = conversations[:limit]
		}
		if len(conversations) == 0 {
			return
		}
		wrote = true
		fmt.Fprintf(&b, "%s CONVERSATIONS (%d shown):\n", label, len(conversations))
		for _, conv := range conversations {
			totalBytes := conv.RxBytes + conv.TxBytes
			totalFrames := conv.RxFrames + conv.TxFrames
			fmt.Fprintf(&b, "  %s:%d <-> %s:%d\n", conv.SrcAddr, conv.SrcPort, conv.DstAddr, conv.DstPort)
			fmt.Fprintf(&b, "    %d packets, %d bytes\n", totalFrames, totalBytes)
		}
		b.WriteString("\n")
	}

	if protocol == "tcp" || protocol == "both" {
		writeSection("TCP", res.TCPConversations)
	}
	if protocol == "udp" || protocol == "both" {
		writeSection("UDP", res.UDPConversations)
	}

	if !wrote {
		return "No conversations found", nil
	}
	return b.String(), nil
}

func executeEndpoints(ctx context.Context, backend bridge.Backend, limit int) (string, error) {
	res, err := backend.GetCaptureStats(ctx)
	if err != nil {
		return "", err
	}

	if len(res.Endpoints) == 0 {
		return "No endpoints found", nil
	}

	endpoints := make([]bridge.Endpoint, len(res.Endpoints))
	copy(endpoints, res.Endpoints)
	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].RxBytes+endpoints[i].TxBytes > endpoints[j].RxBytes+endpoints[j].TxBytes
	})
	if len(endpoints) > limit {
		endpoints = endpoints[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TOP ENDPOINTS (%d shown):\n\n", len(endpoints))
	for _, endpoint := range endpoints {
		addr := endpoint.Host
		if endpoint.Port != 0 {
			addr = fmt.Sprintf("%s:%d", endpoint.Host, endpoint.Port)
		}
		fmt.Fprintf(&b, "  %s:\n", addr)
		fmt.Fprintf(&b, "    TX: %d pkts, %d bytes\n", endpoint.TxFrames, endpoint.TxBytes)
		fmt.Fprintf(&b, "    RX: %d pkts, %d bytes\n", endpoint.RxFrames, endpoint.RxBytes)
	}
	return b.String(), nil
}

// executeHTTPTransaction reconstructs one HTTP exchange. streamID < 0 means
// the stream must first be resolved from the request frame's dissection.
func executeHTTPTransaction(ctx context.Context, backend bridge.Backend, streamID, requestFrame int) (string, error) {
	var sampleFrames []int

	if streamID < 0 {
		details, err := backend.GetFrameDetails(ctx, requestFrame)
		if err != nil {
			return "", err
		}
		resolved, ok := findStreamIndex(details.Tree)
		if !ok {
			return "", pperr.Errorf(pperr.CodeToolExecutionFailure,
				"could not resolve a TCP stream from frame #%d", requestFrame)
		}
		streamID = resolved
		sampleFrames = []int{requestFrame}
	}

	res, err := backend.GetStream(ctx, streamID, "HTTP", "ascii")
	if err != nil {
		return "", err
	}

	combined := res.CombinedText
	if len(combined) > maxStreamChars {
		combined = combined[:maxStreamChars] + "\n... [truncated]"
	}

	human := fmt.Sprintf("HTTP transaction (stream %d):\nServer: %s:%d\nClient: %s:%d\n\n%s",
		streamID,
		res.Server.Host, res.Server.Port,
		res.Client.Host, res.Client.Port,
		combined)

	return appendEvidence(human,
		fmt.Sprintf("HTTP transaction on stream %d (%d client bytes, %d server bytes)",
			streamID, res.ClientBytes, res.ServerBytes),
		[]string{fmt.Sprintf("tcp.stream == %d && http", streamID)},
		sampleFrames), nil
}

// findStreamIndex scans a dissection tree for a "Stream index: N" label.
func findStreamIndex(nodes []bridge.TreeNode) (int, bool) {
	const marker = "Stream index:"
	for _, node := range nodes {
		if idx := strings.Index(node.Label, marker); idx >= 0 {
			raw := strings.TrimSpace(node.Label[idx+len(marker):])
			if cut := strings.IndexAny(raw, " ,"); cut >= 0 {
				raw = raw[:cut]
			}
			if n, err := strconv.Atoi(raw); err == nil {
				return n, true
			}
		}
		if n, ok := findStreamIndex(node.Children); ok {
			return n, true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	if n, ok := asInt(v); ok {
		return n
	}
	return def
}

func strArg(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return def
}

func strSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
