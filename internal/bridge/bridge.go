// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

// Package bridge is the typed HTTP client for the local packet-dissection
// backend. Every call decodes into an explicit result struct at the
// boundary; transport failures surface as errors the caller reports back
// to the model as a recoverable tool failure, never as a process fault.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

// Backend is the capability set the tool executors depend on. The concrete
// Client talks to the dissection backend; tests substitute fakes.
type Backend interface {
	GetFrames(ctx context.Context, skip, limit int) ([]FrameSummary, error)
	GetFrameDetails(ctx context.Context, frameNum int) (*FrameDetails, error)
	CheckFilter(ctx context.Context, filter string) (bool, error)
	SearchPackets(ctx context.Context, filter string, limit, skip int) (*SearchResult, error)
	GetStream(ctx context.Context, streamID int, protocol, format string) (*StreamResult, error)
	GetCaptureStats(ctx context.Context) (*CaptureStats, error)
	FindAnomalies(ctx context.Context, types []string, limitPerType int) (*AnomalyReport, error)
	GetPacketContext(ctx context.Context, packetNum, before, after int) (*PacketContext, error)
	ComparePackets(ctx context.Context, packetA, packetB int) (*PacketComparison, error)
}

// Client talks JSON-over-HTTP to the dissection backend.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Backend = (*Client)(nil)

// New creates a Client for the given base URL. The underlying http.Client
// is long-lived and safe for concurrent use across requests.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetFrames lists frames in capture order.
func (c *Client) GetFrames(ctx context.Context, skip, limit int) ([]FrameSummary, error) {
	var out struct {
		Frames []FrameSummary `json:"frames"`
	}
	req := map[string]any{"skip": skip, "limit": limit}
	if err := c.post(ctx, "/frames", req, &out); err != nil {
		return nil, err
	}
	return out.Frames, nil
}

// GetFrameDetails fetches the full dissection of one frame.
func (c *Client) GetFrameDetails(ctx context.Context, frameNum int) (*FrameDetails, error) {
	var out FrameDetails
	req := map[string]any{"frame_num": frameNum}
	if err := c.post(ctx, "/frame-details", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckFilter validates a display filter expression against the backend's
// filter grammar. A transport failure reports the filter as invalid rather
// than failing the request.
func (c *Client) CheckFilter(ctx context.Context, filter string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	req := map[string]any{"filter": filter}
	if err := c.post(ctx, "/check-filter", req, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// SearchPackets runs a display-filter search.
func (c *Client) SearchPackets(ctx context.Context, filter string, limit, skip int) (*SearchResult, error) {
	var out SearchResult
	req := map[string]any{"filter": filter, "limit": limit}
	if skip > 0 {
		req["skip"] = skip
	}
	if err := c.post(ctx, "/search", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStream reconstructs a TCP/UDP/HTTP conversation.
func (c *Client) GetStream(ctx context.Context, streamID int, protocol, format string) (*StreamResult, error) {
	var out StreamResult
	req := map[string]any{"stream_id": streamID, "protocol": protocol, "format": format}
	if err := c.post(ctx, "/stream", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCaptureStats fetches the capture-wide statistics bundle.
func (c *Client) GetCaptureStats(ctx context.Context) (*CaptureStats, error) {
	var out CaptureStats
	if err := c.post(ctx, "/stats", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindAnomalies scans the capture for anomalies. An empty types slice
// requests all anomaly classes.
func (c *Client) FindAnomalies(ctx context.Context, types []string, limitPerType int) (*AnomalyReport, error) {
	var out AnomalyReport
	req := map[string]any{"limit_per_type": limitPerType}
	if len(types) > 0 {
		req["types"] = types
	}
	if err := c.post(ctx, "/anomalies", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPacketContext fetches a packet with surrounding frames.
func (c *Client) GetPacketContext(ctx context.Context, packetNum, before, after int) (*PacketContext, error) {
	var out PacketContext
	req := map[string]any{"packet_num": packetNum, "before": before, "after": after}
	if err := c.post(ctx, "/packet-context", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ComparePackets diffs two packets field by field.
func (c *Client) ComparePackets(ctx context.Context, packetA, packetB int) (*PacketComparison, error) {
	var out PacketComparison
	req := map[string]any{"packet_a": packetA, "packet_b": packetB}
	if err := c.post(ctx, "/compare-packets", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pperr.Wrapf(err, pperr.CodeBridgeCallFailure, "encoding request for %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pperr.Wrapf(err, pperr.CodeBridgeCallFailure, "building request for %s", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pperr.Wrapf(err, pperr.CodeBridgeCallFailure, "calling backend %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount so the connection can be reused.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pperr.New(
			pperr.CodeBridgeStatusUnexpected,
			fmt.Sprintf("backend %s returned %d: %s", path, resp.StatusCode, string(snippet)),
			pperr.FieldStatus(resp.StatusCode),
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pperr.Wrapf(err, pperr.CodeBridgeResponseInvalid, "decoding backend response from %s", path)
	}

	return nil
}
