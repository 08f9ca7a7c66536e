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

func (c *Client) reasonWithAnthropic(ctx context.Context, history []agent.Turn, specs []tools.Spec) (agent.Decision, error) {
	reqBody := claudeRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		System:      systemPrompt,
		Messages:    claudeMessages(history),
	}
	for _, spec := range specs {
		reqBody.Tools = append(reqBody.Tools, claudeTool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema,
		})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return agent.Decision{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

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

	var claudeResp claudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return agent.Decision{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var decision agent.Decision
	var texts []string
	for _, block := range claudeResp.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			id := block.ID
			if id == "" {
				id = agent.NewCallID()
			}
			decision.ToolCalls = append(decision.ToolCalls, agent.ToolCall{
				ID:   id,
				Name: block.Name,
				Args: block.Input,
			})
		}
	}
	decision.Text = strings.TrimSpace(strings.Join(texts, "\n"))

	if decision.Text == "" && len(decision.ToolCalls) == 0 {
		return agent.Decision{}, fmt.Errorf("no content in response")
	}
	return decision, nil
}

// claudeMessages maps session turns onto the messages API shape: tool
// results travel in user-role messages, tool calls in assistant ones.
func claudeMessages(history []agent.Turn) []claudeMessage {
	var messages []claudeMessage
	for _, turn := range history {
		switch turn.Role {
		case agent.RoleUser:
			messages = append(messages, claudeMessage{
				Role:    "user",
				Content: []claudeContentBlock{{Type: "text", Text: turn.Text}},
			})
		case agent.RoleAssistant:
			var blocks []claudeContentBlock
			if turn.Text != "" {
				blocks = append(blocks, claudeContentBlock{Type: "text", Text: turn.Text})
			}
			for _, call := range turn.ToolCalls {
				blocks = append(blocks, claudeContentBlock{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  call.Name,
					Input: call.Args,
				})
			}
			messages = append(messages, claudeMessage{Role: "assistant", Content: blocks})
		case agent.RoleTool:
			result := turn.ToolResult
			messages = append(messages, claudeMessage{
				Role: "user",
				Content: []claudeContentBlock{{
					Type:      "tool_result",
					ToolUseID: result.CallID,
					Content:   result.Content,
					IsError:   result.IsError,
				}},
			})
		}
	}
	return messages
}

// Internal types for Claude API
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature,omitempty"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Tools       []claudeTool    `json:"tools,omitempty"`
}

type claudeTool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	InputSchema tools.InputSchema `json:"input_schema"`
}

type claudeMessage struct {
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use fields
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result fields
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type claudeResponse struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"`
	Role       string               `json:"role"`
	Content    []claudeContentBlock `json:"content"`
	StopReason string               `json:"stop_reason"`
}
