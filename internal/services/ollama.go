package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the LLM interface for models served by an Ollama instance. It
// needs no credential.
type Ollama struct {
	model string

	params LLMParameters

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. It returns an error
// if host is not a valid URL.
func NewOllama(host, model string, params LLMParameters, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		model:  model,
		params: params,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

// Generate sends prompt to the generate endpoint without streaming and returns the response text.
func (o Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	f := false
	req := api.GenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  &f,
		Options: o.options(),
	}

	var sb strings.Builder
	if err := o.client.Generate(ctx, &req, func(res api.GenerateResponse) error {
		sb.WriteString(res.Response)
		if res.Done {
			o.logger.Debug("Generation done",
				slog.String("doneReason", res.DoneReason),
				slog.Int("evalCount", res.EvalCount))
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if sb.Len() == 0 {
		return "", errors.New("empty response")
	}

	return sb.String(), nil
}

func (o Ollama) options() map[string]any {
	opts := map[string]any{}
	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.MaxTokens != nil {
		opts["num_predict"] = *o.params.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
