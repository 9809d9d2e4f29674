package handlers

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	cswebui "github.com/MegaGrindStone/retail-cs-web-ui"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/chat"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tmaxmax/go-sse"
)

// Conversation handles the conversation events of a session. chat.Service implements it.
type Conversation interface {
	Initialize(s *chat.Session) error
	QuickAction(s *chat.Session, key string) error
	Submit(ctx context.Context, s *chat.Session, query string, done func(*chat.Session)) error
	Clear(s *chat.Session) error
}

// Main serves the customer service page. It maps every request to the caller's session, forwards the
// event to the Conversation, and re-renders the transcript, either in the response or, for replies that
// arrive later, through server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  markdownRenderer

	conversation  Conversation
	sessions      *chat.Registry
	credentialEnv string

	logger *slog.Logger
}

const (
	sessionCookieName = "cs_session"
	// partialHeader marks requests sent by the page script, which expect the transcript fragment
	// instead of a redirect.
	partialHeader = "X-Partial"

	errLoggerKey = "err"
)

var transcriptSSEType = sse.Type("transcript")

// NewMain creates a new Main instance. credentialEnv is shown on the welcome page as the variable the
// operator has to provide. It parses the templates from the embedded filesystem and configures the SSE
// server so that each client only receives updates of its own session.
func NewMain(
	conversation Conversation,
	sessions *chat.Registry,
	credentialEnv string,
	logger *slog.Logger,
) (Main, error) {
	md := newMarkdownRenderer()

	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		cswebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				c, err := s.Req.Cookie(sessionCookieName)
				if err != nil {
					return sse.Subscription{}, false
				}
				if _, err := sessions.Get(c.Value); err != nil {
					return sse.Subscription{}, false
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, sessionTopic(c.Value)},
				}, true
			},
		},
		templates:     tmpl,
		markdown:      md,
		conversation:  conversation,
		sessions:      sessions,
		credentialEnv: credentialEnv,
		logger:        logger.With(slog.String("module", "handlers")),
	}, nil
}

func sessionTopic(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

// Routes returns the HTTP handler with every page, action, SSE and static route registered.
func (m Main) Routes() (http.Handler, error) {
	staticFS, err := fs.Sub(cswebui.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(m.logger))
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	r.Get("/", m.HandleHome)
	r.Get("/transcript", m.HandleTranscript)
	r.Post("/initialize", m.HandleInitialize)
	r.Post("/quick-actions/{action}", m.HandleQuickAction)
	r.Post("/messages", m.HandleMessages)
	r.Post("/clear", m.HandleClear)
	r.Get("/sse/messages", m.HandleSSE)

	return r, nil
}

// HandleSSE streams transcript updates of the caller's session.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// session returns the session of the request, creating it and setting the cookie on first contact.
func (m Main) session(w http.ResponseWriter, r *http.Request) *chat.Session {
	var id string
	if c, err := r.Cookie(sessionCookieName); err == nil {
		id = c.Value
	}

	s, created := m.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    s.ID(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}
