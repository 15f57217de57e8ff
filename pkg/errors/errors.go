// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeProviderAuthUnauthorized Code = "provider.auth.unauthorized"
	CodeProviderQuotaExhausted   Code = "provider.quota.exhausted"
	CodeProviderRateLimited      Code = "provider.rate.limited"
	CodeProviderUpstreamFailure  Code = "provider.upstream.failure"
	CodeProviderRequestInvalid   Code = "provider.request.invalid"
	CodeProviderCallFailure      Code = "provider.call.failure"

	CodeToolNotFound          Code = "tool.registry.not_found"
	CodeToolArgumentsInvalid  Code = "tool.arguments.invalid"
	CodeToolGuardrailRejected Code = "tool.guardrail.rejected"
	CodeToolExecutionFailure  Code = "tool.execution.failure"

	CodeBridgeCallFailure      Code = "bridge.call.failure"
	CodeBridgeResponseInvalid  Code = "bridge.response.invalid"
	CodeBridgeStatusUnexpected Code = "bridge.status.unexpected"

	CodeLoopInvalidInput  Code = "loop.input.invalid"
	CodeLoopFailure       Code = "loop.failure"
	CodeLoopBudgetInvalid Code = "loop.budget.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldRequestID(value string) Attr {
	return Field("request_id", value)
}

func FieldTool(value string) Attr {
	return Field("tool", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldStatus(value int) Attr {
	return Field("http_status", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsAuthFailure reports whether the provider rejected our credentials.
// Auth failures are terminal and must never be retried.
func IsAuthFailure(err error) bool {
	return HasCode(err, CodeProviderAuthUnauthorized)
}

// IsQuotaExhausted reports the insufficient-credit case (HTTP 402).
// Like auth failures, quota errors are terminal.
func IsQuotaExhausted(err error) bool {
	return HasCode(err, CodeProviderQuotaExhausted)
}

// IsRetryable reports whether the error is a transient upstream condition
// worth another attempt: rate limits, timeouts, connection drops, 5xx.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeProviderRateLimited, CodeProviderUpstreamFailure:
		return true
	}
	return false
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// UserMessage maps provider errors to the single human-readable string the
// HTTP caller is allowed to see. Internal detail never leaks past here.
func UserMessage(err error) string {
	switch {
	case IsAuthFailure(err):
		return "Invalid API key. Please update your OpenRouter API key in Settings."
	case IsQuotaExhausted(err):
		return "Insufficient credits. Please add credits to your OpenRouter account or select a free model."
	case HasCode(err, CodeProviderRateLimited):
		return "Rate limit exceeded. Please wait a moment and try again."
	case IsInvalidInput(err):
		return "Invalid request. Please check your input and try again."
	default:
		return "AI service error. Please try again later."
	}
}

func HTTPStatus(err error) int {
	switch {
	case IsAuthFailure(err):
		return http.StatusUnauthorized
	case IsQuotaExhausted(err):
		return http.StatusPaymentRequired
	case HasCode(err, CodeProviderRateLimited):
		return http.StatusTooManyRequests
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
