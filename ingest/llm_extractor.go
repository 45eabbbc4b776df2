package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const worthinessPrompt = `You are a memory assistant. Decide if user input is worth remembering.

Worth remembering:
- Personal facts (name, age, location, preferences)
- Goals, aspirations, plans
- Relationships (people, organizations)
- Skills, knowledge, expertise
- Projects, work context
- Important events or deadlines
- Beliefs, opinions, values

NOT worth remembering:
- Casual conversation ("hey", "how are you")
- Transient state ("I'm typing", "loading...")
- Generic greetings
- Commands without context
- Random characters or gibberish

Return JSON:
{
  "is_worth_remembering": true/false,
  "reason": "explanation",
  "suggested_types": ["fact", "preference", "goal", ...]
}`

const extractionPrompt = `You extract structured memories from user input.

For each meaningful fact, preference, goal, or insight, create a memory.

Memory types:
- fact: Personal facts ("User's name is John", "User lives in SF")
- preference: Preferences ("User prefers dark mode", "User likes pizza")
- goal: Goals ("User wants to learn Swift", "User plans to travel")
- relationship: Relationships ("User works with Sarah", "User's manager is Mike")
- event: Events ("Meeting tomorrow at 3pm", "Deadline is Friday")
- skill: Skills ("User knows Python", "User is good at design")
- project: Projects ("User is building Cortex app", "Working on X feature")
- insight: General insights
- belief: Beliefs or values
- instruction: How user wants things done

Return a JSON object:
{"memories": [{"content": "Extracted fact", "type": "fact", "confidence": 0.9, "tags": ["tag1"]}]}`

// LLMConfig configures the chat-completions extractor. Any service exposing
// the /v1/chat/completions shape works through BaseURL.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	Model       string        `yaml:"model" json:"model"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultLLMConfig returns the standard extractor settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		Timeout:     60 * time.Second,
	}
}

// LLMExtractor triages and splits raw input with a chat model. A failing
// triage call defaults to worth-remembering so inputs are not silently
// dropped when the model is down.
type LLMExtractor struct {
	config LLMConfig
	client *http.Client
	logger *zap.Logger
}

// NewLLMExtractor creates an extractor from config, filling defaults.
func NewLLMExtractor(config LLMConfig, logger *zap.Logger) *LLMExtractor {
	def := DefaultLLMConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Temperature == 0 {
		config.Temperature = def.Temperature
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(zap.String("component", "llm_extractor")),
	}
}

// CheckWorthiness asks the model whether text should be remembered.
func (e *LLMExtractor) CheckWorthiness(ctx context.Context, text string) (Worthiness, error) {
	raw, err := e.complete(ctx, worthinessPrompt, text)
	if err != nil {
		e.logger.Warn("worthiness check failed, defaulting to remember", zap.Error(err))
		return Worthiness{WorthRemembering: true, Reason: "triage unavailable"}, nil
	}

	var w Worthiness
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		e.logger.Warn("unparseable worthiness verdict, defaulting to remember", zap.Error(err))
		return Worthiness{WorthRemembering: true, Reason: "triage unparseable"}, nil
	}
	return w, nil
}

// Extract asks the model to split text into memory drafts.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]Draft, error) {
	raw, err := e.complete(ctx, extractionPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	var wrapped struct {
		Memories []Draft `json:"memories"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && len(wrapped.Memories) > 0 {
		return wrapped.Memories, nil
	}

	// Some models return a bare array despite the prompt.
	var drafts []Draft
	if err := json.Unmarshal([]byte(raw), &drafts); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	return drafts, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e *LLMExtractor) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: e.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: "Input: " + user},
		},
		Temperature:    e.config.Temperature,
		ResponseFormat: &chatFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(e.config.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat endpoint returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
