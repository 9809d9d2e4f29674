// Package assistant wraps a text-generation provider behind the contract the chat needs: one call per
// prompt, bounded by a timeout, that always yields something displayable.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LLM represents a text-generation provider. Generate makes exactly one request for prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Builder constructs a provider client from the credential read at initialization time. The credential
// is empty for providers that need none.
type Builder func(apiKey string) (LLM, error)

var (
	// ErrMissingCredential is returned by Connect when the credential variable is unset or blank.
	ErrMissingCredential = errors.New("missing provider credential")
	// ErrProviderConfig is returned by Connect when the provider client cannot be constructed.
	ErrProviderConfig = errors.New("provider configuration failed")
)

// FallbackPrefix starts every reply produced for a failed request.
const FallbackPrefix = "Maaf, terjadi kesalahan dalam sistem: "

const errLoggerKey = "err"

// Client sends prompts to an LLM and converts every failure into a fallback reply.
type Client struct {
	llm     LLM
	timeout time.Duration

	logger *slog.Logger
}

// NewClient creates a Client. A zero timeout leaves the request bounded only by the caller's context.
func NewClient(llm LLM, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		llm:     llm,
		timeout: timeout,
		logger:  logger.With(slog.String("module", "assistant")),
	}
}

// GenerateResponse returns the provider completion for prompt verbatim. Network, quota, decoding and
// timeout errors, and panics inside the provider, are turned into a reply starting with FallbackPrefix.
// It never returns an error.
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (reply string) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Provider panicked", slog.String(errLoggerKey, fmt.Sprint(r)))
			reply = Fallback(fmt.Errorf("provider panic: %v", r))
		}
	}()

	start := time.Now()
	text, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		c.logger.Error("Failed to generate response",
			slog.Duration("elapsed", time.Since(start)),
			slog.String(errLoggerKey, err.Error()))
		return Fallback(err)
	}

	c.logger.Debug("Generated response",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("length", len(text)))
	return text
}

// Fallback returns the reply shown to the customer in place of a failed completion.
func Fallback(err error) string {
	return FallbackPrefix + err.Error()
}

// Connector performs the initialization precondition of a Client: it reads the provider credential from
// the process environment and builds the provider with it.
type Connector struct {
	credentialEnv string
	build         Builder
	timeout       time.Duration

	logger *slog.Logger
}

// NewConnector creates a Connector. An empty credentialEnv means the provider needs no credential.
func NewConnector(credentialEnv string, build Builder, timeout time.Duration, logger *slog.Logger) Connector {
	return Connector{
		credentialEnv: credentialEnv,
		build:         build,
		timeout:       timeout,
		logger:        logger,
	}
}

// CredentialEnv returns the name of the environment variable holding the credential.
func (c Connector) CredentialEnv() string {
	return c.credentialEnv
}

// Connect reads the credential and builds a Client. No network request is made. A missing credential
// yields ErrMissingCredential, a provider construction failure ErrProviderConfig.
func (c Connector) Connect() (*Client, error) {
	var apiKey string
	if c.credentialEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(c.credentialEnv))
		if apiKey == "" {
			return nil, fmt.Errorf("%w: %s is not set", ErrMissingCredential, c.credentialEnv)
		}
	}

	llm, err := c.build(apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderConfig, err)
	}

	return NewClient(llm, c.timeout, c.logger), nil
}
