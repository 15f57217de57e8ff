// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package bridge

// FrameSummary is one row of the packet list as the dissection backend
// reports it.
type FrameSummary struct {
	Number      int    `json:"number"`
	Time        string `json:"time,omitempty"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Protocol    string `json:"protocol"`
	Length      int    `json:"length,omitempty"`
	Info        string `json:"info"`
}

// TreeNode is one node of a packet's protocol dissection tree. The backend
// uses compact single-letter keys on the wire.
type TreeNode struct {
	Label    string     `json:"l"`
	Children []TreeNode `json:"n,omitempty"`
}

// FrameDetails is the full dissection of one frame.
type FrameDetails struct {
	Tree  []TreeNode `json:"tree"`
	Bytes string     `json:"bytes,omitempty"`
}

// SearchResult is the outcome of a display-filter search.
type SearchResult struct {
	Frames        []FrameSummary `json:"frames"`
	TotalMatching int            `json:"total_matching"`
	FilterApplied string         `json:"filter_applied"`
}

// StreamEndpoint identifies one side of a reconstructed conversation.
type StreamEndpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StreamResult is a reconstructed TCP/UDP/HTTP conversation.
type StreamResult struct {
	Server       StreamEndpoint `json:"server"`
	Client       StreamEndpoint `json:"client"`
	ServerBytes  int            `json:"server_bytes"`
	ClientBytes  int            `json:"client_bytes"`
	Segments     int            `json:"segments"`
	CombinedText string         `json:"combined_text"`
}

// CaptureSummary holds the headline numbers of a capture.
type CaptureSummary struct {
	TotalFrames          int     `json:"total_frames"`
	Duration             float64 `json:"duration"`
	ProtocolCount        int     `json:"protocol_count"`
	TCPConversationCount int     `json:"tcp_conversation_count"`
	UDPConversationCount int     `json:"udp_conversation_count"`
	EndpointCount        int     `json:"endpoint_count"`
}

// ProtocolNode is one level of the protocol hierarchy statistics.
type ProtocolNode struct {
	Protocol string         `json:"protocol"`
	Frames   int            `json:"frames"`
	Bytes    int            `json:"bytes"`
	Children []ProtocolNode `json:"children,omitempty"`
}

// Conversation is one TCP or UDP conversation with per-direction counters.
type Conversation struct {
	SrcAddr  string `json:"src_addr"`
	SrcPort  int    `json:"src_port"`
	DstAddr  string `json:"dst_addr"`
	DstPort  int    `json:"dst_port"`
	RxFrames int    `json:"rx_frames"`
	RxBytes  int    `json:"rx_bytes"`
	TxFrames int    `json:"tx_frames"`
	TxBytes  int    `json:"tx_bytes"`
}

// Endpoint is one host seen in the capture with traffic totals.
type Endpoint struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	TxFrames int    `json:"tx_frames"`
	TxBytes  int    `json:"tx_bytes"`
	RxFrames int    `json:"rx_frames"`
	RxBytes  int    `json:"rx_bytes"`
}

// CaptureStats is the full statistics bundle for a capture.
type CaptureStats struct {
	Summary           CaptureSummary `json:"summary"`
	ProtocolHierarchy []ProtocolNode `json:"protocol_hierarchy"`
	TCPConversations  []Conversation `json:"tcp_conversations"`
	UDPConversations  []Conversation `json:"udp_conversations"`
	Endpoints         []Endpoint     `json:"endpoints"`
}

// AnomalySummary aggregates anomaly counts by severity.
type AnomalySummary struct {
	TotalAnomalies int            `json:"total_anomalies"`
	BySeverity     map[string]int `json:"by_severity"`
}

// Anomaly is one detected anomaly class with sample packets.
type Anomaly struct {
	Type          string         `json:"type"`
	Description   string         `json:"description"`
	Severity      string         `json:"severity"`
	Count         int            `json:"count"`
	SamplePackets []FrameSummary `json:"sample_packets,omitempty"`
}

// AnomalyReport is the result of an anomaly scan.
type AnomalyReport struct {
	Summary   AnomalySummary `json:"summary"`
	Anomalies []Anomaly      `json:"anomalies"`
}

// ContextTarget is the focal packet of a context window.
type ContextTarget struct {
	Summary FrameSummary `json:"summary"`
	Details FrameDetails `json:"details"`
}

// PacketContext is a packet plus its surrounding frames.
type PacketContext struct {
	Target ContextTarget  `json:"target"`
	Before []FrameSummary `json:"before"`
	After  []FrameSummary `json:"after"`
}

// FieldDiff holds the two values of a field that differs between packets.
type FieldDiff struct {
	PacketA string `json:"packet_a"`
	PacketB string `json:"packet_b"`
}

// PacketComparison is a field-by-field diff of two packets.
type PacketComparison struct {
	PacketA         FrameSummary         `json:"packet_a"`
	PacketB         FrameSummary         `json:"packet_b"`
	CommonFields    int                  `json:"common_fields"`
	DifferentFields int                  `json:"different_fields"`
	Common          map[string]string    `json:"common,omitempty"`
	Differences     map[string]FieldDiff `json:"differences,omitempty"`
}
