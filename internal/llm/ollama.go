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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"landuse-agent/internal/agent"
	"landuse-agent/internal/logging"
	"landuse-agent/internal/tools"
)

// reasonWithOllama uses Ollama's OpenAI-compatible API.
func (c *Client) reasonWithOllama(ctx context.Context, history []agent.Turn, specs []tools.Spec) (agent.Decision, error) {
	reqBody := ollamaRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    ollamaMessages(history),
		Stream:      false,
	}
	for _, spec := range specs {
		reqBody.Tools = append(reqBody.Tools, ollamaTool{
			Type: "function",
			Function: ollamaFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.InputSchema,
			},
		})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return agent.Decision{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("failed to close HTTP response body", "error", err.Error())
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return agent.Decision{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return agent.Decision{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(ollamaResp.Choices) == 0 {
		return agent.Decision{}, fmt.Errorf("no choices in response")
	}

	choice := ollamaResp.Choices[0]
	decision := agent.Decision{Text: strings.TrimSpace(choice.Message.Content)}
	for _, call := range choice.Message.ToolCalls {
		args := make(map[string]interface{})
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return agent.Decision{}, fmt.Errorf("failed to parse tool arguments: %w", err)
			}
		}
		id := call.ID
		if id == "" {
			id = agent.NewCallID()
		}
		decision.ToolCalls = append(decision.ToolCalls, agent.ToolCall{
			ID:   id,
			Name: call.Function.Name,
			Args: args,
		})
	}

	if decision.Text == "" && len(decision.ToolCalls) == 0 {
		return agent.Decision{}, fmt.Errorf("no content in response")
	}
	return decision, nil
}

func ollamaMessages(history []agent.Turn) []ollamaMessage {
	messages := []ollamaMessage{{Role: "system", Content: systemPrompt}}
	for _, turn := range history {
		switch turn.Role {
		case agent.RoleUser:
			messages = append(messages, ollamaMessage{Role: "user", Content: turn.Text})
		case agent.RoleAssistant:
			msg := ollamaMessage{Role: "assistant", Content: turn.Text}
			for _, call := range turn.ToolCalls {
				args, _ := json.Marshal(call.Args)
				msg.ToolCalls = append(msg.ToolCalls, ollamaToolCall{
					ID:   call.ID,
					Type: "function",
					Function: ollamaFunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, msg)
		case agent.RoleTool:
			messages = append(messages, ollamaMessage{
				Role:       "tool",
				Content:    turn.ToolResult.Content,
				ToolCallID: turn.ToolResult.CallID,
			})
		}
	}
	return messages
}

// Internal types for Ollama API (OpenAI-compatible)
type ollamaRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature,omitempty"`
	Messages    []ollamaMessage `json:"messages"`
	Tools       []ollamaTool    `json:"tools,omitempty"`
	Stream      bool            `json:"stream"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  tools.InputSchema `json:"parameters"`
}

type ollamaMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type ollamaToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ollamaResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []ollamaChoice `json:"choices"`
}

type ollamaChoice struct {
	Index        int           `json:"index"`
	Message      ollamaMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}
