package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"

	"github.com/go-resty/resty/v2"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash"
)

type geminiClient struct {
	client      *resty.Client
	model       string
	apiKey      string
	temperature float64
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string   `json:"responseMimeType"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// NewGeminiClient creates a client for the generateContent endpoint that asks for a JSON reply.
func NewGeminiClient(config *common.ClassifierConfig) interfaces.ClassifierService {
	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = defaultGeminiModel
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

	return &geminiClient{
		client:      client,
		model:       model,
		apiKey:      strings.TrimSpace(config.APIKey),
		temperature: config.Temperature,
	}
}

func (gc *geminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if gc.apiKey == "" {
		return "", ErrClassifierDisabled
	}

	request := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
		GenerationConfig: geminiGenerationConfig{ResponseMimeType: "application/json"},
	}
	if gc.temperature > 0 {
		temperature := gc.temperature
		request.GenerationConfig.Temperature = &temperature
	}

	var response geminiResponse
	resp, err := gc.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", gc.apiKey).
		SetBody(request).
		SetResult(&response).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", gc.model))
	if err != nil {
		return "", &ServiceError{Provider: "gemini", Cause: err}
	}

	if resp.StatusCode() != http.StatusOK {
		return "", &ServiceError{Provider: "gemini", StatusCode: resp.StatusCode(), Body: truncateBody(resp.String())}
	}

	if len(response.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("gemini returned an empty candidate (finish reason %q)", response.Candidates[0].FinishReason)
	}

	return text.String(), nil
}
