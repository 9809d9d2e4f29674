// Package chat implements the conversation of the customer service: the per-session transcript and the
// handlers for the events the web page emits (initialize, quick action, question, clear).
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/assistant"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/models"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/prompt"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/quickaction"
)

var (
	// ErrNotInitialized is returned for chat actions on a session that has not been initialized.
	ErrNotInitialized = errors.New("session is not initialized")
	// ErrRequestPending is returned while the session waits for a model reply.
	ErrRequestPending = errors.New("a request is already in progress")
	// ErrEmptyQuery is returned when a question has no content.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrSessionNotFound is returned by the Registry for unknown session identifiers.
	ErrSessionNotFound = errors.New("session not found")
)

const errLoggerKey = "err"

// Connector builds the model client bound to a session at initialization.
type Connector interface {
	Connect() (*assistant.Client, error)
}

// Service handles the conversation events of a session. It holds no session state itself: every
// operation acts on the Session passed in.
type Service struct {
	connector Connector
	prompts   prompt.Builder

	logger *slog.Logger
}

// NewService creates a Service that initializes sessions through connector and builds prompts with
// prompts.
func NewService(connector Connector, prompts prompt.Builder, logger *slog.Logger) Service {
	return Service{
		connector: connector,
		prompts:   prompts,
		logger:    logger.With(slog.String("module", "chat")),
	}
}

// Initialize moves s to the ready state by connecting a model client. A session that already has a
// client keeps it and is only marked initialized. On failure s stays uninitialized and the error wraps
// assistant.ErrMissingCredential or assistant.ErrProviderConfig.
func (svc Service) Initialize(s *Session) error {
	if s.restore() {
		return nil
	}

	client, err := svc.connector.Connect()
	if err != nil {
		svc.logger.Error("Failed to initialize session",
			slog.String("sessionID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
		return fmt.Errorf("failed to initialize session: %w", err)
	}

	if s.bind(client) {
		svc.logger.Info("Session initialized", slog.String("sessionID", s.ID()))
	}
	return nil
}

// QuickAction appends the customer utterance of the action and its canned answer to the transcript.
// Unknown keys get the unavailable answer.
func (svc Service) QuickAction(s *Session, key string) error {
	question := models.NewMessage(models.RoleUser, quickaction.Utterance(key))
	answer := models.NewMessage(models.RoleBot, quickaction.Resolve(key))

	if err := s.appendExchange(question, answer); err != nil {
		return err
	}

	svc.logger.Debug("Quick action answered",
		slog.String("sessionID", s.ID()),
		slog.String("action", key))
	return nil
}

// Ask appends query to the transcript, waits for the model reply and appends it too. The reply is
// returned; a failed request yields the fallback reply, not an error.
func (svc Service) Ask(ctx context.Context, s *Session, query string) (models.Message, error) {
	client, err := svc.begin(s, query)
	if err != nil {
		return models.Message{}, err
	}
	return svc.answer(ctx, s, client, query), nil
}

// Submit is the non-blocking form of Ask. The question is appended and s becomes pending before Submit
// returns; the reply is appended from a new goroutine, after which done is called with s.
func (svc Service) Submit(ctx context.Context, s *Session, query string, done func(*Session)) error {
	client, err := svc.begin(s, query)
	if err != nil {
		return err
	}

	// The reply outlives the request that submitted the question.
	ctx = context.WithoutCancel(ctx)
	go func() {
		svc.answer(ctx, s, client, query)
		if done != nil {
			done(s)
		}
	}()
	return nil
}

// Clear empties the transcript of s. It is refused while a reply is pending, so a reply never lands in
// a transcript without its question.
func (svc Service) Clear(s *Session) error {
	if err := s.clearIdle(); err != nil {
		return err
	}
	svc.logger.Debug("Transcript cleared", slog.String("sessionID", s.ID()))
	return nil
}

func (svc Service) begin(s *Session, query string) (*assistant.Client, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	return s.begin(models.NewMessage(models.RoleUser, query))
}

func (svc Service) answer(ctx context.Context, s *Session, client *assistant.Client, query string) models.Message {
	reply := client.GenerateResponse(ctx, svc.prompts.Build(query, ""))
	msg := models.NewMessage(models.RoleBot, reply)
	s.finish(msg)
	return msg
}
