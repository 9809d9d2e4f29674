package chat_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/assistant"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/chat"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/knowledge"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/models"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/prompt"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/quickaction"
)

type mockLLM struct {
	mu      sync.Mutex
	err     error
	prompts []string
	release chan struct{}
}

type mockConnector struct {
	llm   assistant.LLM
	err   error
	calls int
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, connector chat.Connector) (chat.Service, prompt.Builder) {
	t.Helper()

	b, err := prompt.NewBuilder(knowledge.Default())
	if err != nil {
		t.Fatal(err)
	}
	return chat.NewService(connector, b, discardLogger()), b
}

func readySession(t *testing.T, svc chat.Service) *chat.Session {
	t.Helper()

	s := chat.NewSession("test")
	if err := svc.Initialize(s); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return s
}

func TestSessionAppendAndClear(t *testing.T) {
	s := chat.NewSession("s1")

	const n = 25
	for i := range n {
		s.Append(models.NewMessage(models.RoleUser, fmt.Sprintf("msg-%d", i)))
	}

	msgs := s.Messages()
	if len(msgs) != n || s.Len() != n {
		t.Fatalf("len = %d/%d, want %d", len(msgs), s.Len(), n)
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("msg-%d", i); m.Content != want {
			t.Errorf("Messages()[%d] = %q, want %q", i, m.Content, want)
		}
	}

	msgs[0].Content = "changed"
	if s.Messages()[0].Content != "msg-0" {
		t.Error("Messages() exposed the transcript")
	}

	s.SetInitialized(true)
	s.Clear()
	if s.Len() != 0 || len(s.Messages()) != 0 {
		t.Errorf("transcript not empty after Clear(): %d", s.Len())
	}
	if !s.IsInitialized() {
		t.Error("Clear() reset the initialization flag")
	}

	s.Clear()
	if s.Len() != 0 {
		t.Error("Clear() on empty transcript")
	}
}

func TestInitialize(t *testing.T) {
	t.Run("Failure keeps the session uninitialized", func(t *testing.T) {
		conn := &mockConnector{err: fmt.Errorf("%w: GOOGLE_API_KEY is not set", assistant.ErrMissingCredential)}
		svc, _ := newService(t, conn)
		s := chat.NewSession("s1")

		err := svc.Initialize(s)
		if !errors.Is(err, assistant.ErrMissingCredential) {
			t.Fatalf("Initialize() error = %v, want ErrMissingCredential", err)
		}
		if s.IsInitialized() {
			t.Error("session initialized after failure")
		}
		if _, err := svc.Ask(context.Background(), s, "halo"); !errors.Is(err, chat.ErrNotInitialized) {
			t.Errorf("Ask() error = %v, want ErrNotInitialized", err)
		}
		if err := svc.QuickAction(s, quickaction.Promotions); !errors.Is(err, chat.ErrNotInitialized) {
			t.Errorf("QuickAction() error = %v, want ErrNotInitialized", err)
		}
		if s.Len() != 0 {
			t.Errorf("transcript has %d messages, want 0", s.Len())
		}
	})

	t.Run("Success transitions once", func(t *testing.T) {
		conn := &mockConnector{llm: &mockLLM{}}
		svc, _ := newService(t, conn)
		s := chat.NewSession("s1")

		for range 3 {
			if err := svc.Initialize(s); err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}
		}
		if !s.IsInitialized() {
			t.Error("session not initialized")
		}
		if conn.calls != 1 {
			t.Errorf("Connect() called %d times, want 1", conn.calls)
		}
	})

	t.Run("Cleared flag is restored without reconnecting", func(t *testing.T) {
		conn := &mockConnector{llm: &mockLLM{}}
		svc, _ := newService(t, conn)
		s := readySession(t, svc)

		s.SetInitialized(false)
		if s.IsInitialized() {
			t.Fatal("SetInitialized(false) ignored")
		}
		if err := svc.QuickAction(s, quickaction.Hours); !errors.Is(err, chat.ErrNotInitialized) {
			t.Errorf("QuickAction() error = %v, want ErrNotInitialized", err)
		}

		if err := svc.Initialize(s); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if !s.IsInitialized() {
			t.Error("session not initialized after Initialize()")
		}
		if conn.calls != 1 {
			t.Errorf("Connect() called %d times, want 1", conn.calls)
		}
		if _, err := svc.Ask(context.Background(), s, "halo"); err != nil {
			t.Errorf("Ask() error = %v", err)
		}
	})

	t.Run("Flag without client is completed by Initialize", func(t *testing.T) {
		conn := &mockConnector{llm: &mockLLM{}}
		svc, _ := newService(t, conn)
		s := chat.NewSession("s1")

		s.SetInitialized(true)
		if _, err := svc.Ask(context.Background(), s, "halo"); !errors.Is(err, chat.ErrNotInitialized) {
			t.Errorf("Ask() without client error = %v, want ErrNotInitialized", err)
		}

		if err := svc.Initialize(s); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if conn.calls != 1 {
			t.Errorf("Connect() called %d times, want 1", conn.calls)
		}
		reply, err := svc.Ask(context.Background(), s, "halo")
		if err != nil {
			t.Fatalf("Ask() error = %v", err)
		}
		if reply.Role != models.RoleBot || !s.IsInitialized() {
			t.Errorf("reply = %+v, initialized = %v", reply, s.IsInitialized())
		}
	})
}

func TestSessionSnapshot(t *testing.T) {
	llm := &mockLLM{release: make(chan struct{})}
	svc, _ := newService(t, &mockConnector{llm: llm})
	s := readySession(t, svc)

	start := s.Snapshot()
	if len(start.Messages) != 0 || start.Pending {
		t.Fatalf("initial snapshot = %+v", start)
	}

	done := make(chan struct{})
	if err := svc.Submit(context.Background(), s, "Apakah ada diskon?", func(*chat.Session) {
		close(done)
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	asked := s.Snapshot()
	if len(asked.Messages) != 1 || !asked.Pending || asked.Version <= start.Version {
		t.Errorf("snapshot while pending = %+v", asked)
	}

	close(llm.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reply not delivered")
	}

	answered := s.Snapshot()
	if len(answered.Messages) != 2 || answered.Pending || answered.Version <= asked.Version {
		t.Errorf("snapshot after reply = %+v", answered)
	}

	if err := svc.Clear(s); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	cleared := s.Snapshot()
	if len(cleared.Messages) != 0 || cleared.Version <= answered.Version {
		t.Errorf("snapshot after clear = %+v", cleared)
	}
}

func TestQuickActionPromotions(t *testing.T) {
	svc, _ := newService(t, &mockConnector{llm: &mockLLM{}})
	s := readySession(t, svc)

	if err := svc.QuickAction(s, quickaction.Promotions); err != nil {
		t.Fatalf("QuickAction() error = %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "Tanya tentang promo" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleBot || msgs[1].Content != quickaction.Resolve(quickaction.Promotions) {
		t.Errorf("second message = %+v", msgs[1])
	}
	if msgs[1].Timestamp.Before(msgs[0].Timestamp) {
		t.Error("timestamps decrease")
	}
}

func TestQuickActionUnknown(t *testing.T) {
	svc, _ := newService(t, &mockConnector{llm: &mockLLM{}})
	s := readySession(t, svc)

	if err := svc.QuickAction(s, "refund"); err != nil {
		t.Fatalf("QuickAction() error = %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[1].Content != quickaction.Unavailable {
		t.Errorf("transcript = %+v", msgs)
	}
}

func TestAsk(t *testing.T) {
	llm := &mockLLM{}
	svc, builder := newService(t, &mockConnector{llm: llm})
	s := readySession(t, svc)

	const query = "Apakah ada diskon?"
	reply, err := svc.Ask(context.Background(), s, query)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	want := assistant.NewClient(&mockLLM{}, 0, discardLogger()).
		GenerateResponse(context.Background(), builder.Build(query, ""))

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != query {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleBot || msgs[1].Content != want {
		t.Errorf("second message content = %q, want %q", msgs[1].Content, want)
	}
	if reply.ID != msgs[1].ID {
		t.Error("Ask() did not return the appended reply")
	}
	if len(llm.prompts) != 1 || !strings.Contains(llm.prompts[0], "PERTANYAAN CUSTOMER: "+query) {
		t.Errorf("prompts = %q", llm.prompts)
	}
	if s.Pending() {
		t.Error("session still pending")
	}
}

func TestAskProviderFailure(t *testing.T) {
	svc, _ := newService(t, &mockConnector{llm: &mockLLM{err: errors.New("connection refused")}})
	s := readySession(t, svc)

	reply, err := svc.Ask(context.Background(), s, "Apakah ada diskon?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.HasPrefix(reply.Content, assistant.FallbackPrefix) || !strings.Contains(reply.Content, "connection refused") {
		t.Errorf("reply = %q, want fallback", reply.Content)
	}
	if s.Len() != 2 {
		t.Errorf("transcript has %d messages, want 2", s.Len())
	}
}

func TestAskEmptyQuery(t *testing.T) {
	svc, _ := newService(t, &mockConnector{llm: &mockLLM{}})
	s := readySession(t, svc)

	for _, q := range []string{"", "   ", "\n"} {
		if _, err := svc.Ask(context.Background(), s, q); !errors.Is(err, chat.ErrEmptyQuery) {
			t.Errorf("Ask(%q) error = %v, want ErrEmptyQuery", q, err)
		}
	}
	if s.Len() != 0 {
		t.Errorf("transcript has %d messages, want 0", s.Len())
	}
}

func TestSubmit(t *testing.T) {
	llm := &mockLLM{release: make(chan struct{})}
	svc, _ := newService(t, &mockConnector{llm: llm})
	s := readySession(t, svc)

	done := make(chan *chat.Session, 1)
	if err := svc.Submit(context.Background(), s, "Apakah ada diskon?", func(s *chat.Session) {
		done <- s
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if !s.Pending() {
		t.Error("session not pending while the reply is outstanding")
	}
	if s.Len() != 1 || s.Messages()[0].Content != "Apakah ada diskon?" {
		t.Errorf("transcript = %+v, want only the question", s.Messages())
	}

	if err := svc.Submit(context.Background(), s, "Halo?", nil); !errors.Is(err, chat.ErrRequestPending) {
		t.Errorf("second Submit() error = %v, want ErrRequestPending", err)
	}
	if err := svc.QuickAction(s, quickaction.Hours); !errors.Is(err, chat.ErrRequestPending) {
		t.Errorf("QuickAction() error = %v, want ErrRequestPending", err)
	}
	if err := svc.Clear(s); !errors.Is(err, chat.ErrRequestPending) {
		t.Errorf("Clear() error = %v, want ErrRequestPending", err)
	}

	close(llm.release)

	select {
	case got := <-done:
		if got != s {
			t.Error("done called with another session")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reply not delivered")
	}

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleBot {
		t.Fatalf("transcript = %+v", msgs)
	}
	if s.Pending() {
		t.Error("session still pending")
	}

	if err := svc.Clear(s); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.Len() != 0 {
		t.Error("transcript not cleared")
	}
}

func (m *mockLLM) Generate(_ context.Context, prompt string) (string, error) {
	if m.release != nil {
		<-m.release
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return "jawaban untuk: " + prompt, nil
}

func (m *mockConnector) Connect() (*assistant.Client, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return assistant.NewClient(m.llm, time.Second, discardLogger()), nil
}
