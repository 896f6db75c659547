package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/db"
	"github.com/taskmind/taskmind/internal/events"
	"github.com/taskmind/taskmind/internal/intent"
	"github.com/taskmind/taskmind/internal/llm"
	"github.com/taskmind/taskmind/internal/models"
	"github.com/taskmind/taskmind/internal/orchestrator"
	"github.com/taskmind/taskmind/internal/skills"
	"github.com/taskmind/taskmind/internal/tools"
)

// cannedGenerator replays a fixed sequence of replies.
type cannedGenerator struct {
	replies []string
	calls   int
}

func (g *cannedGenerator) Generate(ctx context.Context, messages []llm.ChatMessage, temperature float64, maxTokens int) (string, error) {
	if g.calls >= len(g.replies) {
		return "", errors.New("unexpected generate call")
	}
	reply := g.replies[g.calls]
	g.calls++
	return reply, nil
}

func newTestHandler(t *testing.T, gen llm.Generator) (*Handler, *db.Store) {
	t.Helper()
	store, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := zap.NewNop()
	newRegistry := func(rc tools.RequestContext) *tools.Registry {
		reg := tools.NewRegistry(rc, logger)
		tools.RegisterTaskTools(reg, store, events.NopPublisher{})
		return reg
	}
	loop := orchestrator.NewLoop(store, gen, intent.NewDetector(),
		skills.NewExtractors(gen, logger, nil), newRegistry, logger)
	auth := NewTokenAuth(map[string]string{
		"alice-token": "alice",
		"bob-token":   "bob",
	})
	return NewHandler(store, loop, auth, logger), store
}

func postChat(handler *Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/command", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.HandleChatCommand(rec, req)
	return rec
}

func TestChatCommand(t *testing.T) {
	gen := &cannedGenerator{replies: []string{
		`{"title": "buy milk", "confidence": 0.95}`,
		`TOOL_CALL: {"tool": "create_task", "parameters": {"title": "buy milk"}}`,
		`Task 'buy milk' has been added.`,
	}}
	handler, store := newTestHandler(t, gen)

	rec := postChat(handler, "alice-token", `{"message": "Create a task to buy milk"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Task 'buy milk' has been added.", resp.Reply)
	assert.NotEmpty(t, resp.ConversationID)

	tasks, err := store.ListTasks("alice", db.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestChatCommandUnauthorized(t *testing.T) {
	handler, _ := newTestHandler(t, &cannedGenerator{})

	rec := postChat(handler, "", `{"message": "hello"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postChat(handler, "wrong-token", `{"message": "hello"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatCommandValidation(t *testing.T) {
	handler, _ := newTestHandler(t, &cannedGenerator{})

	rec := postChat(handler, "alice-token", `{"message": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postChat(handler, "alice-token", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/command", nil)
	rec = httptest.NewRecorder()
	handler.HandleChatCommand(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChatCommandForeignConversation(t *testing.T) {
	handler, store := newTestHandler(t, &cannedGenerator{})

	conv, err := store.CreateConversation("alice")
	require.NoError(t, err)

	rec := postChat(handler, "bob-token",
		`{"message": "show all tasks", "conversation_id": "`+conv.ID+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetConversationsAndMessages(t *testing.T) {
	handler, store := newTestHandler(t, &cannedGenerator{})

	conv, err := store.CreateConversation("alice")
	require.NoError(t, err)
	require.NoError(t, store.SaveMessage(&models.Message{
		ConvID: conv.ID, Role: models.RoleUser, Content: "hello",
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	rec := httptest.NewRecorder()
	handler.GetConversations(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var conversations []models.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conversations))
	require.Len(t, conversations, 1)
	assert.Equal(t, conv.ID, conversations[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/messages?conversation_id="+conv.ID, nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	rec = httptest.NewRecorder()
	handler.GetMessages(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var messages []models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)

	// Another user's token cannot read the conversation.
	req = httptest.NewRequest(http.MethodGet, "/api/messages?conversation_id="+conv.ID, nil)
	req.Header.Set("Authorization", "Bearer bob-token")
	rec = httptest.NewRecorder()
	handler.GetMessages(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTasks(t *testing.T) {
	handler, store := newTestHandler(t, &cannedGenerator{})

	require.NoError(t, store.CreateTask(&models.Task{UserID: "alice", Title: "buy milk"}))
	require.NoError(t, store.CreateTask(&models.Task{UserID: "bob", Title: "walk dog"}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	rec := httptest.NewRecorder()
	handler.GetTasks(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []models.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "buy milk", tasks[0].Title)
}

func TestHealthCheck(t *testing.T) {
	handler, _ := newTestHandler(t, &cannedGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.HealthCheck(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, rec.Body.String())
}

func TestSanitizeMessage(t *testing.T) {
	assert.Equal(t, "hello alert(1) world",
		sanitizeMessage("hello <script>alert(1)</script>   world"))
	assert.Equal(t, "buy milk", sanitizeMessage("  buy \t milk \n"))
	assert.Equal(t, "", sanitizeMessage("<br/>"))
}
