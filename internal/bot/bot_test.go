package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
	"github.com/ternarybob/tessera/internal/services/llm"
)

// fakeTelegram captures Bot API calls made during a test.
type fakeTelegram struct {
	mu       sync.Mutex
	sent     []string
	edited   []string
	server   *httptest.Server
	nextID   int64
	failSend bool
}

func newFakeTelegram(t *testing.T) (*fakeTelegram, *TelegramClient) {
	t.Helper()

	f := &fakeTelegram{nextID: 100}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			payload = map[string]interface{}{}
		}
		text, _ := payload["text"].(string)

		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.failSend {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
				return
			}
			f.sent = append(f.sent, text)
			f.nextID++
			fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d}}`, f.nextID)
		case strings.HasSuffix(r.URL.Path, "/editMessageText"):
			f.edited = append(f.edited, text)
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		default:
			fmt.Fprint(w, `{"ok":true,"result":{}}`)
		}
	}))
	t.Cleanup(f.server.Close)

	client := NewTelegramClient("test-token", WithAPIBase(f.server.URL), WithLogger(arbor.NewLogger()))
	return f, client
}

func (f *fakeTelegram) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTelegram) editedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.edited...)
}

// stubJira implements interfaces.JiraService for bot tests.
type stubJira struct {
	authenticated bool
	result        *models.TicketResult
	created       []*models.TicketData
	attached      []string
}

func (s *stubJira) AuthorizationURL(state string) string                { return "https://auth.example.com" }
func (s *stubJira) ExchangeCode(ctx context.Context, code string) error { return nil }
func (s *stubJira) Refresh(ctx context.Context) error                   { return nil }
func (s *stubJira) IsAuthenticated() bool                               { return s.authenticated }
func (s *stubJira) SiteID() string                                      { return "" }
func (s *stubJira) Ping(ctx context.Context) error                      { return nil }

func (s *stubJira) GetProject(ctx context.Context, key string) (map[string]interface{}, error) {
	return map[string]interface{}{"key": key}, nil
}

func (s *stubJira) CreateTicket(ctx context.Context, data *models.TicketData) *models.TicketResult {
	s.created = append(s.created, data)
	return s.result
}

func (s *stubJira) AttachFile(ctx context.Context, issueKey, filePath string) error {
	s.attached = append(s.attached, issueKey)
	return nil
}

// stubLLM returns a canned response for extraction.
type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return s.response, s.err
}
func (s *stubLLM) HealthCheck(ctx context.Context) error { return nil }
func (s *stubLLM) Close() error                          { return nil }

// memoryTickets implements interfaces.TicketStorage in memory.
type memoryTickets struct {
	records []*models.TicketRecord
}

func (m *memoryTickets) Store(ctx context.Context, record *models.TicketRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memoryTickets) Get(ctx context.Context, id string) (*models.TicketRecord, error) {
	return nil, nil
}

func (m *memoryTickets) List(ctx context.Context, limit int) ([]*models.TicketRecord, error) {
	return m.records, nil
}

func (m *memoryTickets) Stats(ctx context.Context) (*interfaces.TicketStats, error) {
	stats := &interfaces.TicketStats{Processed: len(m.records)}
	for _, r := range m.records {
		if r.Success {
			stats.Created++
		} else {
			stats.Failed++
		}
	}
	return stats, nil
}

// nullEvents discards published events but records their types.
type nullEvents struct {
	mu    sync.Mutex
	types []interfaces.EventType
}

func (n *nullEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (n *nullEvents) Publish(ctx context.Context, event interfaces.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.types = append(n.types, event.Type)
	return nil
}

func (n *nullEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return n.Publish(ctx, event)
}

func (n *nullEvents) Close() error { return nil }

func newTestBot(t *testing.T, jiraService *stubJira, llmResponse string) (*Bot, *fakeTelegram, *memoryTickets, *nullEvents) {
	t.Helper()

	fake, client := newFakeTelegram(t)
	extractor := llm.NewExtractor(&stubLLM{response: llmResponse}, "gemini", arbor.NewLogger())
	tickets := &memoryTickets{}
	events := &nullEvents{}

	b := NewBot(client, jiraService, extractor, tickets, events, t.TempDir(), arbor.NewLogger())
	return b, fake, tickets, events
}

func ticketMessage(text string) *Update {
	return &Update{
		UpdateID: 1,
		Message: &Message{
			MessageID: 10,
			From:      &User{ID: 42, FirstName: "Ada", Username: "ada"},
			Chat:      &Chat{ID: -100, Type: "group", Title: "Support"},
			Text:      text,
		},
	}
}

const extractedJSON = `{"title":"Login page broken","description":"500 after password reset","priority":"High","issue_type":"Bug"}`

func TestHandleUpdateCreatesTicket(t *testing.T) {
	jiraService := &stubJira{
		authenticated: true,
		result: &models.TicketResult{
			Success: true,
			Key:     "PROJ-42",
			URL:     "https://yourcompany.atlassian.net/browse/PROJ-42",
		},
	}
	b, fake, tickets, events := newTestBot(t, jiraService, extractedJSON)

	b.HandleUpdate(context.Background(), ticketMessage("#ticket login page shows a 500 after password reset"))

	require.Len(t, jiraService.created, 1)
	assert.Equal(t, "Login page broken", jiraService.created[0].Title)

	sent := fake.sentTexts()
	require.Len(t, sent, 1)
	assert.Equal(t, "Creating ticket...", sent[0])

	edited := fake.editedTexts()
	require.Len(t, edited, 1)
	assert.Contains(t, edited[0], "PROJ-42")
	assert.Contains(t, edited[0], "browse/PROJ-42")

	require.Len(t, tickets.records, 1)
	record := tickets.records[0]
	assert.True(t, record.Success)
	assert.Equal(t, "PROJ-42", record.IssueKey)
	assert.Equal(t, "@ada", record.Username)
	assert.Equal(t, "gemini", record.Provider)

	assert.Contains(t, events.types, interfaces.EventTicketSubmitted)
	assert.Contains(t, events.types, interfaces.EventTicketCreated)
}

func TestHandleUpdateReportsFailure(t *testing.T) {
	jiraService := &stubJira{
		authenticated: true,
		result: &models.TicketResult{
			Success:    false,
			StatusCode: 400,
			Error:      "project does not exist",
		},
	}
	b, fake, tickets, events := newTestBot(t, jiraService, extractedJSON)

	b.HandleUpdate(context.Background(), ticketMessage("#ticket export fails with a timeout every morning"))

	edited := fake.editedTexts()
	require.Len(t, edited, 1)
	assert.Contains(t, edited[0], "Could not create the ticket")

	require.Len(t, tickets.records, 1)
	assert.False(t, tickets.records[0].Success)
	assert.Equal(t, "project does not exist", tickets.records[0].Error)

	assert.Contains(t, events.types, interfaces.EventTicketFailed)
	assert.NotContains(t, events.types, interfaces.EventTicketCreated)
}

func TestHandleUpdateRejectsShortMessage(t *testing.T) {
	jiraService := &stubJira{authenticated: true, result: &models.TicketResult{Success: true}}
	b, fake, tickets, _ := newTestBot(t, jiraService, extractedJSON)

	b.HandleUpdate(context.Background(), ticketMessage("#ticket short"))

	assert.Empty(t, jiraService.created)
	assert.Empty(t, tickets.records)

	sent := fake.sentTexts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "too short")
}

func TestHandleUpdateRequiresAuthentication(t *testing.T) {
	jiraService := &stubJira{authenticated: false}
	b, fake, _, _ := newTestBot(t, jiraService, extractedJSON)

	b.HandleUpdate(context.Background(), ticketMessage("#ticket login page shows a 500 after password reset"))

	assert.Empty(t, jiraService.created)
	sent := fake.sentTexts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "not connected")
}

func TestHandleUpdateIgnoresBotsAndPlainMessages(t *testing.T) {
	jiraService := &stubJira{authenticated: true, result: &models.TicketResult{Success: true}}
	b, fake, _, _ := newTestBot(t, jiraService, extractedJSON)

	update := ticketMessage("#ticket login page shows a 500 after password reset")
	update.Message.From.IsBot = true
	b.HandleUpdate(context.Background(), update)

	b.HandleUpdate(context.Background(), ticketMessage("just chatting about lunch"))
	b.HandleUpdate(context.Background(), &Update{UpdateID: 3})

	assert.Empty(t, jiraService.created)
	assert.Empty(t, fake.sentTexts())
}

func TestHandleUpdateHelpCommand(t *testing.T) {
	b, fake, _, _ := newTestBot(t, &stubJira{}, extractedJSON)

	b.HandleUpdate(context.Background(), ticketMessage("/help"))
	b.HandleUpdate(context.Background(), ticketMessage("/start@tessera_bot"))

	sent := fake.sentTexts()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "#ticket")
	assert.Equal(t, sent[0], sent[1])
}

func TestHandleUpdateStatsCommand(t *testing.T) {
	b, fake, tickets, _ := newTestBot(t, &stubJira{}, extractedJSON)
	tickets.records = []*models.TicketRecord{
		{Success: true},
		{Success: true},
		{Success: false},
	}

	b.HandleUpdate(context.Background(), ticketMessage("/stats"))

	sent := fake.sentTexts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "processed: 3")
	assert.Contains(t, sent[0], "created: 2")
	assert.Contains(t, sent[0], "Errors: 1")
}
