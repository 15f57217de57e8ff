// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValidationKind classifies a validation failure.
type ValidationKind string

const (
	UnknownTool           ValidationKind = "unknown_tool"
	InvalidArguments      ValidationKind = "invalid_arguments"
	MissingRequired       ValidationKind = "missing_required"
	UnexpectedArgument    ValidationKind = "unexpected_argument"
	TypeMismatch          ValidationKind = "type_mismatch"
	EnumViolation         ValidationKind = "enum_violation"
	RangeViolation        ValidationKind = "range_violation"
	ExactlyOneOfViolation ValidationKind = "exactly_one_of_violation"
)

// ValidationError describes why an argument set was rejected. The message
// is written for the model to read and self-correct.
type ValidationError struct {
	Kind    ValidationKind
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// Validate checks an argument mapping against the named tool's declared
// schema. Pure function, no I/O. A nil return means the arguments are
// acceptable and the caller may proceed to the guardrail check.
func (r *Registry) Validate(name string, args map[string]any) *ValidationError {
	t, ok := r.tools[name]
	if !ok {
		return &ValidationError{
			Kind:    UnknownTool,
			Tool:    name,
			Message: fmt.Sprintf("unknown tool %q", name),
		}
	}

	if args == nil {
		args = map[string]any{}
	}

	var missing []string
	for _, req := range t.Required {
		if _, present := args[req]; !present {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{
			Kind:    MissingRequired,
			Tool:    name,
			Message: "missing required arguments: " + strings.Join(missing, ", "),
		}
	}

	var unexpected []string
	for key := range args {
		if _, declared := t.Fields[key]; !declared {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return &ValidationError{
			Kind:    UnexpectedArgument,
			Tool:    name,
			Message: "unexpected arguments: " + strings.Join(unexpected, ", "),
		}
	}

	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if verr := checkField(name, key, t.Fields[key], args[key]); verr != nil {
			return verr
		}
	}

	if len(t.ExactlyOneOf) > 0 {
		present := 0
		for _, key := range t.ExactlyOneOf {
			if _, ok := args[key]; ok {
				present++
			}
		}
		if present != 1 {
			return &ValidationError{
				Kind:    ExactlyOneOfViolation,
				Tool:    name,
				Message: "exactly one of " + strings.Join(t.ExactlyOneOf, ", ") + " must be provided",
			}
		}
	}

	return nil
}

func checkField(tool, key string, spec FieldSpec, value any) *ValidationError {
	mismatch := func() *ValidationError {
		return &ValidationError{
			Kind:    TypeMismatch,
			Tool:    tool,
			Message: fmt.Sprintf("%s must be of type %s", key, spec.Type),
		}
	}

	switch spec.Type {
	case FieldInteger:
		// A JSON boolean must never satisfy an integer declaration.
		if _, isBool := value.(bool); isBool {
			return mismatch()
		}
		n, ok := asInt(value)
		if !ok {
			return mismatch()
		}
		if spec.Bounded && (n < spec.Min || n > spec.Max) {
			return &ValidationError{
				Kind:    RangeViolation,
				Tool:    tool,
				Message: fmt.Sprintf("%s must be between %d and %d, got %d", key, spec.Min, spec.Max, n),
			}
		}
	case FieldString:
		s, ok := value.(string)
		if !ok {
			return mismatch()
		}
		if len(spec.Enum) > 0 && !contains(spec.Enum, s) {
			return &ValidationError{
				Kind:    EnumViolation,
				Tool:    tool,
				Message: fmt.Sprintf("%s must be one of %s, got %q", key, strings.Join(spec.Enum, ", "), s),
			}
		}
	case FieldArray:
		if _, ok := value.([]any); !ok {
			return mismatch()
		}
	case FieldObject:
		if _, ok := value.(map[string]any); !ok {
			return mismatch()
		}
	case FieldBoolean:
		if _, ok := value.(bool); !ok {
			return mismatch()
		}
	}

	return nil
}

func asInt(value any) (int, bool) {
	switch n := value.(type) {
	case float64:
		if math.Trunc(n) != n {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
