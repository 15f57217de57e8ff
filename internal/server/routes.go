// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/packetpilot/sidecar/internal/agent"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

// CaptureContextBody is the caller's snapshot of UI state. Visible-range
// fields are intentionally not accepted: the model requests packet detail
// through tools instead of having frame dumps injected.
type CaptureContextBody struct {
	FileName         string `json:"file_name,omitempty" doc:"Name of the loaded capture file"`
	TotalFrames      int    `json:"total_frames,omitempty" doc:"Total frames in the capture"`
	CurrentFilter    string `json:"current_filter,omitempty" doc:"Display filter currently applied"`
	SelectedPacketID int    `json:"selected_packet_id,omitempty" doc:"Frame number of the explicitly selected packet"`
}

// ChatMessageBody is one prior conversation turn.
type ChatMessageBody struct {
	Role    string `json:"role" enum:"user,assistant" doc:"Message author"`
	Content string `json:"content" doc:"Message text"`
}

// AnalyzeRequestBody is the /analyze and /analyze/stream request payload.
type AnalyzeRequestBody struct {
	Query               string             `json:"query" minLength:"1" doc:"Natural-language analysis question"`
	Context             CaptureContextBody `json:"context,omitempty"`
	ConversationHistory []ChatMessageBody  `json:"conversation_history,omitempty"`
	Model               string             `json:"model,omitempty" doc:"Model override for this request"`
	RequestID           string             `json:"request_id,omitempty" doc:"Caller-supplied correlation id"`
}

// AnalyzeResponseBody is the buffered analysis result.
type AnalyzeResponseBody struct {
	Message          string `json:"message"`
	SuggestedFilter  string `json:"suggested_filter,omitempty"`
	SuggestedAction  string `json:"suggested_action,omitempty"`
	RequestID        string `json:"request_id"`
	CompletionStatus string `json:"completion_status" enum:"complete,partial,error"`
	StopReason       string `json:"stop_reason"`
}

// AnalyzeResponse wraps the buffered analysis response.
type AnalyzeResponse struct {
	Body AnalyzeResponseBody
}

// AnalyzeRequest wraps the buffered analysis request.
type AnalyzeRequest struct {
	Body AnalyzeRequestBody
}

// FilterRequestBody asks for a display filter from natural language.
type FilterRequestBody struct {
	Query   string             `json:"query" minLength:"1" doc:"Natural-language filter description"`
	Context CaptureContextBody `json:"context,omitempty"`
}

// FilterRequest wraps the filter-generation request.
type FilterRequest struct {
	Body FilterRequestBody
}

// FilterResponseBody is a generated display filter.
type FilterResponseBody struct {
	Filter      string `json:"filter"`
	IsValid     bool   `json:"is_valid"`
	Explanation string `json:"explanation"`
}

// FilterResponse wraps the filter-generation response.
type FilterResponse struct {
	Body FilterResponseBody
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "analyze",
		Method:      http.MethodPost,
		Path:        "/analyze",
		Summary:     "Analyze the capture",
		Tags:        []string{"analysis"},
	}, s.handleAnalyze)

	huma.Register(s.api, huma.Operation{
		OperationID: "generate-filter",
		Method:      http.MethodPost,
		Path:        "/filter",
		Summary:     "Generate a display filter from natural language",
		Tags:        []string{"analysis"},
	}, s.handleFilter)

	// The SSE handler needs raw ResponseWriter access, so it bypasses huma.
	s.router.Post("/analyze/stream", s.handleAnalyzeStream)
}

// toAgentRequest converts the wire payload, enriching it with the selected
// packet's dissection when one is explicitly selected.
func (s *Server) toAgentRequest(ctx context.Context, body AnalyzeRequestBody) agent.Request {
	req := agent.Request{
		Query: body.Query,
		Context: agent.CaptureContext{
			FileName:         body.Context.FileName,
			TotalFrames:      body.Context.TotalFrames,
			CurrentFilter:    body.Context.CurrentFilter,
			SelectedPacketID: body.Context.SelectedPacketID,
		},
		ModelOverride: body.Model,
		RequestID:     body.RequestID,
	}

	for _, msg := range body.ConversationHistory {
		req.History = append(req.History, agent.Turn{Role: msg.Role, Content: msg.Content})
	}

	if body.Context.SelectedPacketID > 0 && s.backend != nil {
		details, err := s.backend.GetFrameDetails(ctx, body.Context.SelectedPacketID)
		if err != nil {
			// Enrichment is best-effort; the model can still fetch detail.
			s.log.WarnContext(ctx, "selected packet lookup failed",
				"packet", body.Context.SelectedPacketID, "error", err)
		} else {
			req.SelectedPacket = details
		}
	}

	return req
}

func (s *Server) handleAnalyze(ctx context.Context, input *AnalyzeRequest) (*AnalyzeResponse, error) {
	res, err := s.analyzer.Analyze(ctx, s.toAgentRequest(ctx, input.Body))
	if err != nil {
		return nil, huma.NewError(pperr.HTTPStatus(err), pperr.UserMessage(err))
	}

	return &AnalyzeResponse{Body: AnalyzeResponseBody{
		Message:          res.Message,
		SuggestedFilter:  res.SuggestedFilter,
		SuggestedAction:  res.SuggestedAction,
		RequestID:        res.RequestID,
		CompletionStatus: string(res.Status),
		StopReason:       string(res.StopReason),
	}}, nil
}

func (s *Server) handleFilter(ctx context.Context, input *FilterRequest) (*FilterResponse, error) {
	res, err := s.analyzer.GenerateFilter(ctx, input.Body.Query, agent.CaptureContext{
		FileName:      input.Body.Context.FileName,
		TotalFrames:   input.Body.Context.TotalFrames,
		CurrentFilter: input.Body.Context.CurrentFilter,
	})
	if err != nil {
		return nil, huma.NewError(pperr.HTTPStatus(err), pperr.UserMessage(err))
	}

	return &FilterResponse{Body: FilterResponseBody{
		Filter:      res.Filter,
		IsValid:     res.IsValid,
		Explanation: res.Explanation,
	}}, nil
}

// streamFrame is one SSE data payload.
type streamFrame struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Warning    string `json:"warning,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// doneSentinel terminates the SSE stream. Distinct from JSON frames so
// clients can tell normal end-of-stream apart from a dropped connection.
const doneSentinel = "[DONE]"

func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	var body AnalyzeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if body.Query == "" {
		http.Error(w, `{"error":"query is required"}`, http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Intermediaries must not coalesce frames.
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)

	writeFrame := func(frame streamFrame) bool {
		payload, err := json.Marshal(frame)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	events := s.analyzer.AnalyzeStream(r.Context(), s.toAgentRequest(r.Context(), body))
	for ev := range events {
		var frame streamFrame
		switch ev.Type {
		case agent.EventMeta:
			frame = streamFrame{Type: "meta", RequestID: ev.RequestID}
		case agent.EventText:
			frame = streamFrame{Type: "text", Text: ev.Text}
		case agent.EventWarning:
			frame = streamFrame{Type: "warning", Warning: ev.Warning, StopReason: string(ev.StopReason)}
		case agent.EventFailure:
			frame = streamFrame{Type: "error", Error: pperr.UserMessage(ev.Err)}
		default:
			continue
		}
		if !writeFrame(frame) {
			return
		}
	}

	_, _ = fmt.Fprintf(w, "data: %s\n\n", doneSentinel)
	if flusher != nil {
		flusher.Flush()
	}
}
