package handlers

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/chat"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/models"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/quickaction"
)

type message struct {
	ID      string
	Role    string
	Content template.HTML
	Time    string
}

type transcriptData struct {
	Messages []message
	Pending  bool
	Version  uint64
}

type homePageData struct {
	Initialized   bool
	CredentialEnv string

	Flash flash

	QuickActions []quickaction.Action
	Transcript   transcriptData

	TotalChat      int
	ActiveSessions int
}

// flash is a one-shot status line shown above the page after a redirect.
type flash struct {
	Message string
	Error   bool
}

const flashCookieName = "cs_flash"

// IsUser reports whether the message was sent by the customer.
func (m message) IsUser() bool {
	return m.Role == string(models.RoleUser)
}

// HandleHome renders the full customer service page for the caller's session.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	s := m.session(w, r)
	m.renderHome(w, s, http.StatusOK, takeFlash(w, r))
}

func setFlash(w http.ResponseWriter, f flash) {
	v := url.Values{"msg": {f.Message}}
	if f.Error {
		v.Set("error", "1")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    v.Encode(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns the flash of the request, if any, and expires its cookie.
func takeFlash(w http.ResponseWriter, r *http.Request) flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return flash{}
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Path: "/", MaxAge: -1})

	v, err := url.ParseQuery(c.Value)
	if err != nil {
		return flash{}
	}
	return flash{Message: v.Get("msg"), Error: v.Get("error") != ""}
}

// HandleTranscript renders only the transcript of the caller's session.
func (m Main) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	s := m.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.renderTranscript(w, s); err != nil {
		m.logger.Error("Failed to render transcript",
			slog.String("sessionID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) renderHome(w http.ResponseWriter, s *chat.Session, status int, f flash) {
	transcript, err := m.transcriptData(s)
	if err != nil {
		m.logger.Error("Failed to prepare transcript",
			slog.String("sessionID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		Initialized:    s.IsInitialized(),
		CredentialEnv:  m.credentialEnv,
		Flash:          f,
		QuickActions:   quickaction.Actions(),
		Transcript:     transcript,
		TotalChat:      len(transcript.Messages),
		ActiveSessions: m.sessions.Len(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page",
			slog.String("sessionID", s.ID()),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) renderTranscript(w io.Writer, s *chat.Session) error {
	data, err := m.transcriptData(s)
	if err != nil {
		return err
	}
	if err := m.templates.ExecuteTemplate(w, "transcript", data); err != nil {
		return fmt.Errorf("failed to execute transcript template: %w", err)
	}
	return nil
}

func (m Main) transcriptData(s *chat.Session) (transcriptData, error) {
	snap := s.Snapshot()
	msgs := make([]message, len(snap.Messages))
	for i, msg := range snap.Messages {
		content, err := m.renderContent(msg)
		if err != nil {
			return transcriptData{}, err
		}
		msgs[i] = message{
			ID:      msg.ID,
			Role:    string(msg.Role),
			Content: content,
			Time:    msg.TimeOfDay(),
		}
	}
	return transcriptData{
		Messages: msgs,
		Pending:  snap.Pending,
		Version:  snap.Version,
	}, nil
}

// renderContent escapes customer messages and renders bot replies as markdown.
func (m Main) renderContent(msg models.Message) (template.HTML, error) {
	if msg.IsUser() {
		return template.HTML(template.HTMLEscapeString(msg.Content)), nil
	}
	return m.markdown.render(msg.Content)
}
