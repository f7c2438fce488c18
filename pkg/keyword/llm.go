package keyword

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const extractPrompt = `You are an app store optimization analyst. Read the app listing text below and list the search keywords a user would type to find this app.

Rules:
- Return single lowercase words or short phrases (at most 3 words).
- Order them from most to least relevant.
- Leave out brand names of other companies and generic filler words.
- Return at most %d keywords.

Listing text:
%s

Respond with a JSON array of strings only, no other text.
Example: ["photo editor","filters","collage"]`

// LLMConfig configures an LLMExtractor.
type LLMConfig struct {
	Provider string // "openai", "anthropic" or "gemini"
	Model    string
	APIKey   string
	BaseURL  string // custom endpoint (optional, openai/anthropic only)
	Limit    int    // keywords per call (default: 20)
}

// LLMExtractor asks a language model for the keywords of a listing.
type LLMExtractor struct {
	client   *http.Client
	gemini   *genai.Client
	provider string
	model    string
	apiKey   string
	baseURL  string
	limit    int
}

// NewLLMExtractor creates an extractor for cfg.Provider.
func NewLLMExtractor(ctx context.Context, cfg LLMConfig) (*LLMExtractor, error) {
	model := cfg.Model
	if model == "" {
		switch cfg.Provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		case "gemini":
			model = "gemini-2.5-flash"
		default:
			model = "gpt-4o-mini"
		}
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 20
	}

	e := &LLMExtractor{
		client:   &http.Client{Timeout: 60 * time.Second},
		provider: cfg.Provider,
		model:    model,
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		limit:    limit,
	}

	if cfg.Provider == "gemini" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		e.gemini = client
	}
	return e, nil
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	prompt := fmt.Sprintf(extractPrompt, e.limit, truncateStr(text, 4000))

	var raw string
	var err error
	switch e.provider {
	case "anthropic":
		raw, err = e.callAnthropic(ctx, prompt)
	case "gemini":
		raw, err = e.callGemini(ctx, prompt)
	default:
		raw, err = e.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}
	return parseKeywordList(raw, e.limit)
}

func parseKeywordList(raw string, limit int) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		}
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "```"))
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("parse llm keywords: %w\nraw: %s", err, truncateStr(raw, 500))
	}

	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, kw := range list {
		kw = strings.ToLower(strings.Join(strings.Fields(kw), " "))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (e *LLMExtractor) callOpenAI(ctx context.Context, prompt string) (string, error) {
	baseURL := e.baseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	payload := map[string]any{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("openai status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

func (e *LLMExtractor) callAnthropic(ctx context.Context, prompt string) (string, error) {
	baseURL := e.baseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	payload := map[string]any{
		"model":      e.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("anthropic status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

func (e *LLMExtractor) callGemini(ctx context.Context, prompt string) (string, error) {
	content := genai.NewContentFromText(prompt, genai.RoleUser)
	resp, err := e.gemini.Models.GenerateContent(ctx, e.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
