package dispatcher_test

import (
	"context"
	"sync"
	"time"

	"github.com/envologia/envo/internal/config"
	"github.com/envologia/envo/internal/database"
	"github.com/envologia/envo/internal/gemini"
	"github.com/envologia/envo/internal/transport"
)

func testConfig() *config.Config {
	return &config.Config{
		Commands: config.CommandsConfig{
			Prefix:             ".",
			ContextMessages:    5,
			SearchResults:      5,
			SearchPreviewChars: 100,
			RateLimitPerMinute: 10,
		},
		Database: config.DatabaseConfig{
			Path:          ":memory:",
			RetentionDays: 30,
			OpTimeout:     5 * time.Second,
		},
		Messages: config.MessagesConfig{
			Working:     "🤔 Thinking...",
			RateLimited: "⏳ Too many commands, slow down.",
			NoResults:   "🔍 No messages found.",
			Help:        "Available commands: ask, summarize, search...",
		},
	}
}

type mockStore struct {
	mu            sync.Mutex
	saved         []*database.Message
	sessions      map[int64]*database.UserSession
	invocations   []*database.CommandInvocation
	recent        []database.Message
	searchResults []database.Message
	invCount      int
	invCountErr   error
}

func newMockStore() *mockStore {
	return &mockStore{sessions: make(map[int64]*database.UserSession)}
}

func (m *mockStore) Ping(context.Context) error { return nil }

func (m *mockStore) SaveMessage(_ context.Context, msg *database.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, msg)
	return nil
}

func (m *mockStore) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *mockStore) GetRecentMessages(context.Context, int64, int, string) ([]database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent, nil
}

func (m *mockStore) SearchMessages(context.Context, int64, string, int) ([]database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchResults, nil
}

func (m *mockStore) GetUserSession(_ context.Context, userID int64) (*database.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID], nil
}

func (m *mockStore) SaveUserSession(_ context.Context, session *database.UserSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.UserID] = session
	return nil
}

func (m *mockStore) ClearUserSession(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		s.Persona = ""
		s.Context = ""
	}
	return nil
}

func (m *mockStore) SaveInvocation(_ context.Context, inv *database.CommandInvocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invocations = append(m.invocations, inv)
	return nil
}

func (m *mockStore) FinishInvocation(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invocations {
		if inv.ID == id {
			inv.Status = status
		}
	}
	return nil
}

func (m *mockStore) lastInvocationStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.invocations) == 0 {
		return ""
	}
	return m.invocations[len(m.invocations)-1].Status
}

func (m *mockStore) CountRecentInvocations(context.Context, int64, time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invCount, m.invCountErr
}

func (m *mockStore) PurgeOldData(context.Context, time.Time, time.Time) error { return nil }
func (m *mockStore) RunSQLMaintenance(context.Context) error                  { return nil }

type mockAI struct {
	mu sync.Mutex

	answerCalls    int
	transformCalls int
	examineCalls   int

	lastQuestion string
	lastSubject  string
	lastHistory  string
	lastPersona  string
	lastContent  string

	answerText     string
	transformText  string
	examineText    string
	describeText   string
	transcribeText string
	transcribeErr  error
}

var _ gemini.Client = (*mockAI)(nil)

func (m *mockAI) Answer(_ context.Context, question, subject, history, persona string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answerCalls++
	m.lastQuestion = question
	m.lastSubject = subject
	m.lastHistory = history
	m.lastPersona = persona
	return m.answerText
}

func (m *mockAI) Transform(_ context.Context, content string, _ gemini.TransformOp) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transformCalls++
	m.lastContent = content
	return m.transformText
}

func (m *mockAI) Examine(_ context.Context, content string, _ gemini.ExamineOp) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.examineCalls++
	m.lastContent = content
	return m.examineText
}

func (m *mockAI) DescribeImage(context.Context, string, []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.describeText
}

func (m *mockAI) Transcribe(context.Context, string, []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcribeText, m.transcribeErr
}

type mockTransport struct {
	mu           sync.Mutex
	edits        []string
	sent         []string
	downloadPath string
	downloadErr  error
}

var _ transport.Client = (*mockTransport)(nil)

func (m *mockTransport) SendMessage(_ context.Context, _ int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return int64(len(m.sent)), nil
}

func (m *mockTransport) EditMessage(_ context.Context, _, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, text)
	return nil
}

func (m *mockTransport) DeleteMessage(context.Context, int64, int64) error { return nil }

func (m *mockTransport) Download(context.Context, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloadPath, m.downloadErr
}

func (m *mockTransport) lastEdit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 {
		return ""
	}
	return m.edits[len(m.edits)-1]
}

func (m *mockTransport) editCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edits)
}
