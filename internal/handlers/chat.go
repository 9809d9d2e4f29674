package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/assistant"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/chat"
	"github.com/go-chi/chi/v5"
	"github.com/tmaxmax/go-sse"
)

// HandleInitialize connects the model client of the caller's session. Plain form posts are redirected to
// the page with the outcome carried in a flash cookie; script requests get the page itself, answering 503
// when initialization failed.
func (m Main) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	s := m.session(w, r)

	status := http.StatusOK
	f := flash{Message: "✅ System berhasil diinisialisasi!"}
	if err := m.conversation.Initialize(s); err != nil {
		status = http.StatusServiceUnavailable
		f = flash{Message: "❌ Gagal menginisialisasi system: " + err.Error(), Error: true}
		if errors.Is(err, assistant.ErrMissingCredential) {
			f.Message = fmt.Sprintf("❌ %s tidak ditemukan. Pastikan file .env berisi %s", m.credentialEnv, m.credentialEnv)
		}
	}

	if r.Header.Get(partialHeader) != "" {
		m.renderHome(w, s, status, f)
		return
	}

	setFlash(w, f)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleQuickAction appends the canned exchange of the action named in the URL.
func (m Main) HandleQuickAction(w http.ResponseWriter, r *http.Request) {
	s := m.session(w, r)
	action := chi.URLParam(r, "action")

	if err := m.conversation.QuickAction(s, action); err != nil {
		m.actionError(w, s, "quick action", err)
		return
	}

	m.respond(w, r, s)
}

// HandleMessages submits the "message" form field as a question to the model. The response carries the
// transcript with the question and a loading placeholder; the reply follows as an SSE event.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	s := m.session(w, r)

	msg := r.FormValue("message")
	if strings.TrimSpace(msg) == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	if err := m.conversation.Submit(r.Context(), s, msg, m.publishTranscript); err != nil {
		m.actionError(w, s, "submit", err)
		return
	}

	m.respond(w, r, s)
}

// HandleClear empties the transcript of the caller's session.
func (m Main) HandleClear(w http.ResponseWriter, r *http.Request) {
	s := m.session(w, r)

	if err := m.conversation.Clear(s); err != nil {
		m.actionError(w, s, "clear", err)
		return
	}

	m.respond(w, r, s)
}

// respond re-renders the transcript for script requests and sends plain form posts back to the page.
func (m Main) respond(w http.ResponseWriter, r *http.Request, s *chat.Session) {
	if r.Header.Get(partialHeader) == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.renderTranscript(w, s); err != nil {
		m.logger.Error("Failed to render transcript",
			slog.String("sessionID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) actionError(w http.ResponseWriter, s *chat.Session, action string, err error) {
	m.logger.Warn("Action rejected",
		slog.String("sessionID", s.ID()),
		slog.String("action", action),
		slog.String(errLoggerKey, err.Error()))

	switch {
	case errors.Is(err, chat.ErrEmptyQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, chat.ErrNotInitialized), errors.Is(err, chat.ErrRequestPending):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// publishTranscript pushes the current transcript of s to the clients subscribed to its topic.
func (m Main) publishTranscript(s *chat.Session) {
	var sb strings.Builder
	if err := m.renderTranscript(&sb, s); err != nil {
		m.logger.Error("Failed to render transcript",
			slog.String("sessionID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: transcriptSSEType,
	}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, sessionTopic(s.ID())); err != nil {
		m.logger.Error("Failed to publish transcript",
			slog.String("sessionID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
	}
}
