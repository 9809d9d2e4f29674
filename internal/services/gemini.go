package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmaxmax/go-sse"
)

// Gemini generates text with Google's Gemini models through the Generative Language REST API. The
// response is requested as a server-sent event stream and accumulated into one completion.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string

	params LLMParameters

	client *http.Client

	logger *slog.Logger
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

const geminiAPIEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// NewGemini creates a new Gemini instance. An empty baseURL targets the public Gemini API.
func NewGemini(apiKey, model, baseURL string, params LLMParameters, logger *slog.Logger) Gemini {
	if baseURL == "" {
		baseURL = geminiAPIEndpoint
	}
	return Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		params:  params,
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "gemini")),
	}
}

// Generate sends prompt as a single user turn and returns the concatenated text of the first candidate.
// The context bounds the whole exchange, including reading the stream.
func (g Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: prompt}},
			},
		},
	}
	if g.params != (LLMParameters{}) {
		reqBody.GenerationConfig = &geminiGenerationConfig{
			Temperature:     g.params.Temperature,
			TopP:            g.params.TopP,
			MaxOutputTokens: g.params.MaxTokens,
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var res geminiResponse
		if err := json.Unmarshal(body, &res); err == nil && res.Error != nil {
			return "", fmt.Errorf("gemini error %s: %s", res.Error.Status, res.Error.Message)
		}
		return "", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var sb strings.Builder
	blockReason := ""
	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			return "", fmt.Errorf("error reading response: %w", err)
		}

		g.logger.Debug("Received event", slog.String("event", ev.Data))

		var res geminiResponse
		if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
			return "", fmt.Errorf("error unmarshaling response: %w", err)
		}
		if res.Error != nil {
			return "", fmt.Errorf("gemini error %s: %s", res.Error.Status, res.Error.Message)
		}
		if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
			blockReason = res.PromptFeedback.BlockReason
		}
		if len(res.Candidates) == 0 {
			continue
		}
		for _, part := range res.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}

	if blockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", blockReason)
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response")
	}

	return sb.String(), nil
}
