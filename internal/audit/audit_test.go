package audit

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func ptr(s string) *string { return &s }

func TestNewEvent(t *testing.T) {
	before := time.Now().Unix()
	event := NewEvent(ActionShorten, ptr("user-123"), "abc123", "https://example.com")
	after := time.Now().Unix()

	assert.Equal(t, ActionShorten, event.Action)
	assert.Equal(t, "user-123", event.UserID)
	assert.Equal(t, "abc123", event.Code)
	assert.Equal(t, "https://example.com", event.URL)
	assert.GreaterOrEqual(t, event.Timestamp, before)
	assert.LessOrEqual(t, event.Timestamp, after)
}

func TestNewEvent_Anonymous(t *testing.T) {
	event := NewEvent(ActionFollow, nil, "abc123", "https://google.com")

	assert.Equal(t, ActionFollow, event.Action)
	assert.Empty(t, event.UserID)
}

func TestPublisher_Publish(t *testing.T) {
	pub := NewPublisher()
	mock := &mockObserver{}
	pub.Subscribe(mock)

	event := NewEvent(ActionDelete, ptr("user-1"), "abc", "")
	pub.Publish(event)

	mock.mu.Lock()
	defer mock.mu.Unlock()
	require.Len(t, mock.events, 1)
	assert.Equal(t, event, mock.events[0])
}

func TestPublisher_PublishMultipleObservers(t *testing.T) {
	pub := NewPublisher()
	mock1 := &mockObserver{}
	mock2 := &mockObserver{}
	pub.Subscribe(mock1)
	pub.Subscribe(mock2)
	assert.Equal(t, 2, pub.Len())

	pub.Publish(NewEvent(ActionUpdate, ptr("user-2"), "abc", "https://multi.com"))

	assert.Len(t, mock1.events, 1)
	assert.Len(t, mock2.events, 1)
}

func TestPublisher_NoObservers(t *testing.T) {
	pub := NewPublisher()
	pub.Publish(NewEvent(ActionFollow, nil, "abc", "https://x.com"))
	assert.NoError(t, pub.Close())
}

func TestPublisher_Close(t *testing.T) {
	pub := NewPublisher()
	mock := &mockObserver{}
	pub.Subscribe(mock)

	err := pub.Close()

	assert.NoError(t, err)
	assert.True(t, mock.closed)
	assert.Zero(t, pub.Len())
}

func TestPublisher_CloseClosesAllOnError(t *testing.T) {
	pub := NewPublisher()
	failing := &mockObserver{closeErr: errors.New("disk full")}
	healthy := &mockObserver{}
	pub.Subscribe(failing)
	pub.Subscribe(healthy)

	err := pub.Close()

	assert.ErrorContains(t, err, "disk full")
	assert.True(t, healthy.closed)
}

// Mock observer для тестов
type mockObserver struct {
	mu     sync.Mutex
	events   []Event
	closed   bool
	closeErr error
}

func (m *mockObserver) Notify(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockObserver) Close() error {
	m.closed = true
	return m.closeErr
}

// === FileObserver tests ===

func TestFileObserver_Notify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	obs, err := NewFileObserver(path, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer obs.Close()

	event := NewEvent(ActionShorten, ptr("user-123"), "abc123", "https://example.com")
	obs.Notify(event)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed Event
	err = json.Unmarshal(content[:len(content)-1], &parsed) // убираем \n
	require.NoError(t, err)
	assert.Equal(t, event, parsed)
}

func TestFileObserver_MultipleWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	obs, err := NewFileObserver(path, zap.NewNop().Sugar())
	require.NoError(t, err)

	obs.Notify(NewEvent(ActionShorten, ptr("user-1"), "one", "https://one.com"))
	obs.Notify(NewEvent(ActionFollow, nil, "two", "https://two.com"))
	obs.Close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"action":"shorten"`)
	assert.Contains(t, lines[1], `"action":"follow"`)
}

func TestFileObserver_InvalidPath(t *testing.T) {
	_, err := NewFileObserver("/nonexistent/path/audit.log", zap.NewNop().Sugar())
	assert.Error(t, err)
}

// === HTTPObserver tests ===

func TestHTTPObserver_Notify(t *testing.T) {
	var received Event
	var receivedContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	obs := NewHTTPObserver(server.URL, zap.NewNop().Sugar())
	event := NewEvent(ActionShorten, ptr("user-http"), "abc", "https://http-test.com")
	obs.Notify(event)

	assert.Equal(t, "application/json", receivedContentType)
	assert.Equal(t, event, received)
}

func TestHTTPObserver_ServerErrorIsLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	obs := NewHTTPObserver(server.URL, zap.New(core).Sugar())
	obs.Notify(NewEvent(ActionFollow, nil, "abc", "https://test.com"))

	assert.Equal(t, 1, logs.Len())
}

func TestHTTPObserver_ConnectionError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	obs := NewHTTPObserver("http://localhost:99999", zap.New(core).Sugar()) // несуществующий порт
	// Не должно паниковать
	obs.Notify(NewEvent(ActionFollow, nil, "abc", "https://test.com"))

	assert.Equal(t, 1, logs.Len())
	assert.NoError(t, obs.Close())
}

// === Event JSON serialization ===

func TestEvent_JSONFormat(t *testing.T) {
	event := Event{
		Timestamp: 1234567890,
		Action:    ActionShorten,
		UserID:    "user-json",
		Code:      "abc123",
		URL:       "https://json.com",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	expected := `{"ts":1234567890,"action":"shorten","user_id":"user-json","code":"abc123","url":"https://json.com"}`
	assert.JSONEq(t, expected, string(data))
}

func TestEvent_JSONOmitEmpty(t *testing.T) {
	data, err := json.Marshal(Event{Timestamp: 1, Action: ActionDelete, Code: "abc"})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "user_id")
	assert.NotContains(t, string(data), "url")
}
