// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

// Package openrouter implements the provider.Client interface against the
// OpenRouter chat-completions API, which speaks the OpenAI wire format.
package openrouter

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"sort"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/packetpilot/sidecar/internal/provider"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

// DefaultBaseURL is the OpenRouter API endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config holds OpenRouter client configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Client implements provider.Client using the OpenAI SDK pointed at
// OpenRouter.
type Client struct {
	sdk openaisdk.Client
}

var _ provider.Client = (*Client)(nil)

// New creates a Client. Returns an error if the API key is missing.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, pperr.New(pperr.CodeProviderAuthUnauthorized, "openrouter: missing api key")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	sdk := openaisdk.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
	)
	return &Client{sdk: sdk}, nil
}

// Complete issues one buffered chat completion.
func (c *Client) Complete(ctx context.Context, req provider.ChatRequest) (*provider.Completion, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, pperr.New(pperr.CodeProviderUpstreamFailure, "completion returned no choices")
	}

	choice := resp.Choices[0]
	out := &provider.Completion{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		args := tc.Function.Arguments
		if !json.Valid([]byte(args)) {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// Stream opens a token stream. Open-time failures (bad key, quota, refused
// connection) are returned directly so the retry layer can classify them;
// mid-stream failures arrive on the channel as EventError.
func (c *Client) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.StreamEvent, error) {
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, buildParams(req))
	if err := stream.Err(); err != nil {
		return nil, classify(err)
	}

	ch := make(chan provider.StreamEvent, 64)
	go func() {
		defer close(ch)
		pump(stream, ch)
	}()
	return ch, nil
}

type streamIter interface {
	Next() bool
	Current() openaisdk.ChatCompletionChunk
	Err() error
}

// pump converts SDK chunks into StreamEvents. Tool-call fragments are
// accumulated by choice index until a finish_reason of "tool_calls" flushes
// them; a chunk with no choices is a keep-alive and carries nothing.
func pump(stream streamIter, ch chan<- provider.StreamEvent) {
	type toolAccum struct {
		id          string
		name        string
		partialArgs string
	}
	pending := make(map[int64]*toolAccum)

	flush := func() {
		indexes := make([]int64, 0, len(pending))
		for idx := range pending {
			indexes = append(indexes, idx)
		}
		sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

		for _, idx := range indexes {
			acc := pending[idx]
			if !json.Valid([]byte(acc.partialArgs)) {
				acc.partialArgs = "{}"
			}
			ch <- provider.StreamEvent{
				Type: provider.EventToolCall,
				ToolCall: &provider.ToolCall{
					ID:        acc.id,
					Name:      acc.name,
					Arguments: acc.partialArgs,
				},
			}
			delete(pending, idx)
		}
	}

	for stream.Next() {
		chunk := stream.Current()

		for _, choice := range chunk.Choices {
			delta := choice.Delta

			if delta.Content != "" {
				ch <- provider.StreamEvent{Type: provider.EventTextDelta, Text: delta.Content}
			}

			for _, tc := range delta.ToolCalls {
				acc, ok := pending[tc.Index]
				if !ok {
					acc = &toolAccum{}
					pending[tc.Index] = acc
				}
				if tc.ID != "" {
					acc.id += tc.ID
				}
				if tc.Function.Name != "" {
					acc.name += tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					acc.partialArgs += tc.Function.Arguments
				}
			}

			if choice.FinishReason == "tool_calls" {
				flush()
			}
		}
	}

	if err := stream.Err(); err != nil {
		ch <- provider.StreamEvent{Type: provider.EventError, Err: classify(err)}
		return
	}

	// Flush anything the model left unterminated.
	flush()
	ch <- provider.StreamEvent{Type: provider.EventDone}
}

func buildParams(req provider.ChatRequest) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: convertMessages(req.Messages),
	}

	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return params
}

func convertMessages(msgs []provider.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs))

	for _, msg := range msgs {
		switch msg.Role {
		case provider.RoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		case provider.RoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case provider.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, openaisdk.AssistantMessage(msg.Content))
				continue
			}
			assistant := openaisdk.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = param.NewOpt(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			result = append(result, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case provider.RoleTool:
			result = append(result, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return result
}

func convertTools(tools []provider.ToolDefinition) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	return result
}

// classify maps an SDK error onto a domain error code. Auth (401) and quota
// (402) failures are terminal; rate limits, 5xx, timeouts and connection
// drops are retryable; everything else fails the call immediately.
func classify(err error) error {
	var apiErr *openaisdk.Error
	if stderrors.As(err, &apiErr) {
		switch sc := apiErr.StatusCode; {
		case sc == http.StatusUnauthorized:
			return pperr.Wrap(err, pperr.CodeProviderAuthUnauthorized, "provider rejected credentials")
		case sc == http.StatusPaymentRequired:
			return pperr.Wrap(err, pperr.CodeProviderQuotaExhausted, "provider account out of credits")
		case sc == http.StatusTooManyRequests:
			return pperr.Wrap(err, pperr.CodeProviderRateLimited, "provider rate limit hit")
		case sc == http.StatusRequestTimeout, sc == http.StatusConflict, sc == http.StatusTooEarly, sc >= 500:
			return pperr.Wrap(err, pperr.CodeProviderUpstreamFailure, "provider upstream failure",
				pperr.FieldStatus(sc))
		default:
			return pperr.Wrap(err, pperr.CodeProviderRequestInvalid, "provider rejected request",
				pperr.FieldStatus(sc))
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return pperr.Wrap(err, pperr.CodeProviderUpstreamFailure, "provider call timed out")
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return pperr.Wrap(err, pperr.CodeProviderUpstreamFailure, "provider call timed out")
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "connection") {
		return pperr.Wrap(err, pperr.CodeProviderUpstreamFailure, "provider connection failure")
	}

	return pperr.Wrap(err, pperr.CodeProviderCallFailure, "provider call failed")
}
