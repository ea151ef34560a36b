package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"

	"github.com/go-resty/resty/v2"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4.1-mini"
)

type openAIClient struct {
	client      *resty.Client
	model       string
	apiKey      string
	temperature float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a client for OpenAI-compatible chat completion endpoints.
func NewOpenAIClient(config *common.ClassifierConfig) interfaces.ClassifierService {
	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(config.Model)
	if model == "" || strings.HasPrefix(model, "gemini") {
		model = defaultOpenAIModel
	}
	timeout := config.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &openAIClient{
		client:      client,
		model:       model,
		apiKey:      strings.TrimSpace(config.APIKey),
		temperature: config.Temperature,
	}
}

func (oc *openAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if oc.apiKey == "" {
		return "", ErrClassifierDisabled
	}

	payload := map[string]any{
		"model": oc.model,
		"messages": []chatMessage{
			{Role: "system", Content: "You classify medical business listings. Emit nothing outside the JSON object."},
			{Role: "user", Content: prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	}
	if oc.temperature > 0 {
		payload["temperature"] = oc.temperature
	}

	var decoded chatCompletionResponse
	resp, err := oc.client.R().
		SetContext(ctx).
		SetAuthToken(oc.apiKey).
		SetBody(payload).
		SetResult(&decoded).
		Post("/chat/completions")
	if err != nil {
		return "", &ServiceError{Provider: "openai", Cause: err}
	}

	if resp.StatusCode() != http.StatusOK {
		return "", &ServiceError{Provider: "openai", StatusCode: resp.StatusCode(), Body: truncateBody(resp.String())}
	}

	if len(decoded.Choices) == 0 {
		return "", errors.New("openai empty response")
	}
	content := decoded.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("openai empty message content")
	}

	return content, nil
}
