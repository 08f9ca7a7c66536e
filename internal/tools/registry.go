/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package tools defines the callable surface the reasoning loop can reach:
// tool definitions advertised to the model and the handlers that execute
// them. Handlers never panic; failures come back as error-flagged responses
// so the model can react to them.
package tools

import (
	"context"
	"encoding/json"
	"sort"
)

// InputSchema is the JSON Schema fragment describing a tool's arguments.
type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// Spec is a tool definition as advertised to the model.
type Spec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Response is the outcome of one tool invocation. Content is the text fed
// back into the conversation, usually JSON.
type Response struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Handler executes a tool
type Handler func(ctx context.Context, args map[string]interface{}) (Response, error)

// Tool represents a registered tool
type Tool struct {
	Definition Spec
	Handler    Handler
}

// Registry manages available tools
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Definition.Name] = tool
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tool definitions, sorted by name so the model
// sees a stable ordering across turns.
func (r *Registry) List() []Spec {
	specs := make([]Spec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, tool.Definition)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Execute runs a tool by name with the given arguments. An unknown tool name
// is a model mistake, reported back as a tool error rather than a Go error.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (Response, error) {
	tool, exists := r.Get(name)
	if !exists {
		return NewError("Tool not found: " + name), nil
	}
	return tool.Handler(ctx, args)
}

// NewError wraps a message as an error-flagged tool response.
func NewError(text string) Response {
	return Response{Content: text, IsError: true}
}

// NewJSON marshals v as the response content.
func NewJSON(v interface{}) (Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{}, err
	}
	return Response{Content: string(data)}, nil
}
