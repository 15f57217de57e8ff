// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

// Package tools declares the callable tool set exposed to the model:
// static definitions with typed field constraints, a pure argument
// validator, a best-effort content guardrail, and one executor per tool
// backed by the dissection bridge.
package tools

import (
	"context"

	"github.com/packetpilot/sidecar/internal/bridge"
	"github.com/packetpilot/sidecar/internal/provider"
)

// FieldType is the declared wire type of a tool argument.
type FieldType string

const (
	FieldInteger FieldType = "integer"
	FieldString  FieldType = "string"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
	FieldBoolean FieldType = "boolean"
)

// FieldSpec declares one tool argument: its type, optional closed value
// set, and optional inclusive numeric bounds.
type FieldSpec struct {
	Type        FieldType
	Description string
	Enum        []string
	Default     any
	Min         int
	Max         int
	Bounded     bool
}

// Tool is one registered tool: schema for the model, constraints for the
// validator, and the executor that does the work.
type Tool struct {
	Name        string
	Description string
	Fields      map[string]FieldSpec
	Required    []string
	// ExactlyOneOf names a field group of which exactly one member must be
	// present. Empty when the tool has no such constraint.
	ExactlyOneOf []string
	Execute      func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the tool set. Adding a tool is a single Register call.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry builds the full tool set over the given backend.
func NewRegistry(backend bridge.Backend) *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	registerCaptureTools(r, backend)
	return r
}

// Register adds a tool. Later registrations with the same name replace
// earlier ones.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions renders the tool set for a provider request, in
// registration order.
func (r *Registry) Definitions() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, provider.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.schema(),
		})
	}
	return defs
}

// schema renders the JSON-schema parameter object for the model.
func (t *Tool) schema() map[string]any {
	props := make(map[string]any, len(t.Fields))
	for name, f := range t.Fields {
		prop := map[string]any{
			"type":        string(f.Type),
			"description": f.Description,
		}
		if f.Type == FieldArray {
			prop["items"] = map[string]any{"type": "string"}
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		props[name] = prop
	}

	required := t.Required
	if required == nil {
		required = []string{}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
