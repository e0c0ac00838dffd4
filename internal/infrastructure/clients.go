package infrastructure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	claudeBaseURL = "https://api.anthropic.com/v1"
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	DefaultOpenAIModel = "gpt-5-nano"
	DefaultClaudeModel = "claude-3-sonnet-20240229"
	DefaultGeminiModel = "gemini-1.5-flash"

	claudeAPIVersion = "2023-06-01"
	maxErrorBody     = 512
)

var ErrNotConfigured = errors.New("provider: api key not configured")

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.Status, e.Body)
}

// postJSON sends payload to endpoint and decodes the JSON reply into out.
func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, headers map[string]string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Provider: provider, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

func dataURL(m *entities.Media) string {
	return "data:" + m.MimeType + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
}

// OpenAIClient calls the OpenAI Responses API. It is the only provider that
// supports continuation of incomplete answers.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{apiKey: apiKey, baseURL: openAIBaseURL, client: &http.Client{}}
}

var _ interfaces.CompletionProvider = (*OpenAIClient)(nil)

func (c *OpenAIClient) Name() string     { return "openai" }
func (c *OpenAIClient) Configured() bool { return c.apiKey != "" }

type openAIResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Model      string `json:"model"`
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (r *openAIResponse) text() string {
	if strings.TrimSpace(r.OutputText) != "" {
		return r.OutputText
	}
	var sb strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
	}
	return sb.String()
}

func (c *OpenAIClient) Invoke(ctx context.Context, req entities.CompletionRequest) (*entities.CompletionResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	model := req.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	body := map[string]interface{}{
		"model":             model,
		"max_output_tokens": req.MaxOutputTokens,
		"truncation":        "disabled",
		"store":             false,
	}
	switch {
	case req.ContinuationHandle != "":
		body["previous_response_id"] = req.ContinuationHandle
	case req.Media != nil:
		body["input"] = []map[string]interface{}{{
			"role": "user",
			"content": []map[string]string{
				{"type": "input_text", "text": req.Prompt},
				{"type": "input_image", "image_url": dataURL(req.Media)},
			},
		}}
		body["reasoning"] = map[string]string{"effort": "medium"}
		body["text"] = map[string]string{"verbosity": "medium"}
	default:
		body["input"] = req.Prompt
		body["reasoning"] = map[string]string{"effort": "minimal"}
		body["text"] = map[string]string{"verbosity": "low"}
	}

	var out openAIResponse
	err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/responses",
		map[string]string{"Authorization": "Bearer " + c.apiKey}, body, &out)
	if err != nil {
		return nil, err
	}

	resp := &entities.CompletionResponse{
		Text:        out.text(),
		Status:      entities.StatusCompleted,
		Model:       model,
		TotalTokens: out.Usage.TotalTokens,
	}
	if out.Status == string(entities.StatusIncomplete) {
		resp.Status = entities.StatusIncomplete
		resp.ContinuationHandle = out.ID
	}
	return resp, nil
}

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewClaudeClient(apiKey string) *ClaudeClient {
	return &ClaudeClient{apiKey: apiKey, model: DefaultClaudeModel, baseURL: claudeBaseURL, client: &http.Client{}}
}

var _ interfaces.CompletionProvider = (*ClaudeClient)(nil)

func (c *ClaudeClient) Name() string     { return "claude" }
func (c *ClaudeClient) Configured() bool { return c.apiKey != "" }

type claudeResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *ClaudeClient) Invoke(ctx context.Context, req entities.CompletionRequest) (*entities.CompletionResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	var content interface{} = req.Prompt
	if req.Media != nil {
		content = []map[string]interface{}{
			{"type": "text", "text": req.Prompt},
			{"type": "image", "source": map[string]string{
				"type":       "base64",
				"media_type": req.Media.MimeType,
				"data":       base64.StdEncoding.EncodeToString(req.Media.Data),
			}},
		}
	}
	body := map[string]interface{}{
		"model":      model,
		"max_tokens": req.MaxOutputTokens,
		"messages":   []map[string]interface{}{{"role": "user", "content": content}},
	}

	var out claudeResponse
	err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/messages", map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": claudeAPIVersion,
	}, body, &out)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, item := range out.Content {
		if item.Type == "text" {
			sb.WriteString(item.Text)
		}
	}
	return &entities.CompletionResponse{
		Text:        sb.String(),
		Status:      entities.StatusCompleted,
		Model:       model,
		TotalTokens: out.Usage.InputTokens + out.Usage.OutputTokens,
	}, nil
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, model: DefaultGeminiModel, baseURL: geminiBaseURL, client: &http.Client{}}
}

var _ interfaces.CompletionProvider = (*GeminiClient)(nil)

func (c *GeminiClient) Name() string     { return "gemini" }
func (c *GeminiClient) Configured() bool { return c.apiKey != "" }

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (c *GeminiClient) Invoke(ctx context.Context, req entities.CompletionRequest) (*entities.CompletionResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	parts := []map[string]interface{}{{"text": req.Prompt}}
	if req.Media != nil {
		parts = append(parts, map[string]interface{}{
			"inline_data": map[string]string{
				"mime_type": req.Media.MimeType,
				"data":      base64.StdEncoding.EncodeToString(req.Media.Data),
			},
		})
	}
	body := map[string]interface{}{
		"contents": []map[string]interface{}{{"parts": parts}},
		"generationConfig": map[string]interface{}{
			"temperature":     0.7,
			"maxOutputTokens": req.MaxOutputTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(model), url.QueryEscape(c.apiKey))
	var out geminiResponse
	if err := postJSON(ctx, c.client, c.Name(), endpoint, nil, body, &out); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return &entities.CompletionResponse{
		Text:        sb.String(),
		Status:      entities.StatusCompleted,
		Model:       model,
		TotalTokens: out.UsageMetadata.TotalTokenCount,
	}, nil
}
