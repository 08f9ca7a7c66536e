/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"landuse-agent/internal/agent"
	"landuse-agent/internal/config"
	"landuse-agent/internal/tools"
)

func userTurn(text string) agent.Turn {
	return agent.Turn{ID: "t1", Role: agent.RoleUser, Text: text}
}

func sqlSpec() []tools.Spec {
	return []tools.Spec{{
		Name:        "run_sql",
		Description: "Run a SELECT statement.",
		InputSchema: tools.InputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sql": map[string]interface{}{"type": "string"},
			},
			Required: []string{"sql"},
		},
	}}
}

func TestAnthropicReasonText(t *testing.T) {
	var captured claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := claudeResponse{
			Content:    []claudeContentBlock{{Type: "text", Text: "Forest loss is largest in the South."}},
			StopReason: "end_turn",
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewWithBaseURL("anthropic", "test-key", server.URL, "claude-sonnet-4-5")
	decision, err := client.Reason(context.Background(), []agent.Turn{userTurn("Where is forest loss largest?")}, sqlSpec())
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if decision.Text != "Forest loss is largest in the South." {
		t.Errorf("Text = %q", decision.Text)
	}
	if len(decision.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v", decision.ToolCalls)
	}

	if captured.System == "" {
		t.Error("request carried no system prompt")
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Name != "run_sql" {
		t.Errorf("request tools = %+v", captured.Tools)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Errorf("request messages = %+v", captured.Messages)
	}
}

func TestAnthropicReasonToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := claudeResponse{
			Content: []claudeContentBlock{
				{Type: "text", Text: "Let me check the data."},
				{Type: "tool_use", ID: "toolu_01", Name: "run_sql",
					Input: map[string]interface{}{"sql": "SELECT 1"}},
			},
			StopReason: "tool_use",
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewWithBaseURL("anthropic", "test-key", server.URL, "claude-sonnet-4-5")
	decision, err := client.Reason(context.Background(), []agent.Turn{userTurn("hi")}, sqlSpec())
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if decision.Text != "Let me check the data." {
		t.Errorf("Text = %q", decision.Text)
	}
	if len(decision.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %v", decision.ToolCalls)
	}
	call := decision.ToolCalls[0]
	if call.ID != "toolu_01" || call.Name != "run_sql" || call.Args["sql"] != "SELECT 1" {
		t.Errorf("call = %+v", call)
	}
}

func TestAnthropicAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		if _, err := w.Write([]byte(`{"error":{"message":"overloaded"}}`)); err != nil {
			t.Errorf("write: %v", err)
		}
	}))
	defer server.Close()

	client := NewWithBaseURL("anthropic", "test-key", server.URL, "claude-sonnet-4-5")
	if _, err := client.Reason(context.Background(), []agent.Turn{userTurn("hi")}, nil); err == nil {
		t.Fatal("Reason succeeded on a 500")
	}
}

func TestClaudeMessagesToolPlumbing(t *testing.T) {
	history := []agent.Turn{
		{Role: agent.RoleUser, Text: "How many counties?"},
		{Role: agent.RoleAssistant, Text: "Checking.", ToolCalls: []agent.ToolCall{
			{ID: "toolu_01", Name: "run_sql", Args: map[string]interface{}{"sql": "SELECT COUNT(*) FROM dim_geography"}},
		}},
		{Role: agent.RoleTool, ToolResult: &agent.ToolResult{
			CallID: "toolu_01", Name: "run_sql", Content: `{"row_count":1}`,
		}},
	}
	messages := claudeMessages(history)
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}

	assistant := messages[1]
	if assistant.Role != "assistant" || len(assistant.Content) != 2 {
		t.Fatalf("assistant message = %+v", assistant)
	}
	if assistant.Content[1].Type != "tool_use" || assistant.Content[1].ID != "toolu_01" {
		t.Errorf("tool_use block = %+v", assistant.Content[1])
	}

	result := messages[2]
	if result.Role != "user" {
		t.Errorf("tool result role = %q, want user", result.Role)
	}
	block := result.Content[0]
	if block.Type != "tool_result" || block.ToolUseID != "toolu_01" || block.Content != `{"row_count":1}` {
		t.Errorf("tool_result block = %+v", block)
	}
}

func TestOllamaReasonToolCalls(t *testing.T) {
	var captured ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := ollamaResponse{
			Choices: []ollamaChoice{{
				Message: ollamaMessage{
					Role: "assistant",
					ToolCalls: []ollamaToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: ollamaFunctionCall{
							Name:      "run_sql",
							Arguments: `{"sql":"SELECT 1"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewWithBaseURL("ollama", "", server.URL, "llama3.1")
	decision, err := client.Reason(context.Background(), []agent.Turn{userTurn("hi")}, sqlSpec())
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if len(decision.ToolCalls) != 1 || decision.ToolCalls[0].Args["sql"] != "SELECT 1" {
		t.Errorf("ToolCalls = %+v", decision.ToolCalls)
	}

	if len(captured.Messages) == 0 || captured.Messages[0].Role != "system" {
		t.Error("ollama request missing the system message")
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "run_sql" {
		t.Errorf("request tools = %+v", captured.Tools)
	}
}

func TestOllamaEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(ollamaResponse{}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewWithBaseURL("ollama", "", server.URL, "llama3.1")
	if _, err := client.Reason(context.Background(), []agent.Turn{userTurn("hi")}, nil); err == nil {
		t.Fatal("Reason succeeded on empty choices")
	}
}

func TestNewValidatesConfiguration(t *testing.T) {
	if _, err := New(config.LLMConfig{Provider: "watson"}); err == nil {
		t.Error("unsupported provider accepted")
	}
	if _, err := New(config.LLMConfig{Provider: "ollama", Model: "llama3.1"}); err == nil {
		t.Error("ollama without a URL accepted")
	}
	client, err := New(config.LLMConfig{Provider: "ollama", Model: "llama3.1", OllamaURL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !client.IsConfigured() {
		t.Error("configured client reports unconfigured")
	}
}
