/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package llm implements the agent.Reasoner interface on top of LLM APIs
// (Anthropic or Ollama).
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"landuse-agent/internal/agent"
	"landuse-agent/internal/config"
	"landuse-agent/internal/tools"
)

// Client handles interactions with LLM APIs (Anthropic or Ollama)
type Client struct {
	provider    string // "anthropic" or "ollama"
	apiKey      string // Only for Anthropic
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// New creates a client from the LLM configuration.
func New(cfg config.LLMConfig) (*Client, error) {
	c := &Client{
		provider:    cfg.Provider,
		baseURL:     "https://api.anthropic.com/v1",
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
	switch cfg.Provider {
	case "anthropic":
		key, err := cfg.ResolveAnthropicAPIKey()
		if err != nil {
			return nil, err
		}
		c.apiKey = key
	case "ollama":
		c.baseURL = cfg.OllamaURL
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if !c.IsConfigured() {
		return nil, fmt.Errorf("LLM client not configured for provider %s", cfg.Provider)
	}
	return c, nil
}

// NewWithBaseURL builds a client pointed at an arbitrary endpoint. Tests use
// it to talk to a local stand-in server.
func NewWithBaseURL(provider, apiKey, baseURL, model string) *Client {
	return &Client{
		provider:   provider,
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		maxTokens:  1024,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured returns whether the client is properly configured
func (c *Client) IsConfigured() bool {
	switch c.provider {
	case "anthropic":
		return c.apiKey != "" && c.model != ""
	case "ollama":
		return c.baseURL != "" && c.model != ""
	default:
		return false
	}
}

// Reason asks the model for the next step given the conversation so far.
func (c *Client) Reason(ctx context.Context, history []agent.Turn, specs []tools.Spec) (agent.Decision, error) {
	switch c.provider {
	case "anthropic":
		return c.reasonWithAnthropic(ctx, history, specs)
	case "ollama":
		return c.reasonWithOllama(ctx, history, specs)
	default:
		return agent.Decision{}, fmt.Errorf("unsupported LLM provider: %s", c.provider)
	}
}
