// Package api exposes the chat orchestrator and the task data over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/db"
	"github.com/taskmind/taskmind/internal/orchestrator"
)

type Handler struct {
	store  *db.Store
	loop   *orchestrator.Loop
	auth   AuthProvider
	logger *zap.Logger
}

func NewHandler(store *db.Store, loop *orchestrator.Loop, auth AuthProvider, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		loop:   loop,
		auth:   auth,
		logger: logger,
	}
}

type ChatCommandRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// HandleChatCommand runs one message through the orchestration loop.
func (h *Handler) HandleChatCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := h.auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ChatCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.loop.Handle(r.Context(), orchestrator.Command{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Message:        sanitizeMessage(req.Message),
	})
	if err != nil {
		var vErr *orchestrator.ValidationError
		switch {
		case errors.As(err, &vErr):
			http.Error(w, vErr.Error(), http.StatusBadRequest)
		case errors.Is(err, orchestrator.ErrConversationNotFound):
			http.Error(w, "Conversation not found", http.StatusNotFound)
		default:
			h.logger.Error("chat command failed", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, h.logger, resp)
}

func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := h.auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversations, err := h.store.ListConversations(userID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, conversations)
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := h.auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}
	conv, err := h.store.GetConversation(convID)
	if err != nil || conv.UserID != userID {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	messages, err := h.store.GetConversationHistory(convID, 50)
	if err != nil {
		h.logger.Error("failed to get messages", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, messages)
}

func (h *Handler) GetTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := h.auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tasks, err := h.store.ListTasks(userID, db.TaskFilter{
		Status:   r.URL.Query().Get("status"),
		Priority: r.URL.Query().Get("priority"),
	})
	if err != nil {
		h.logger.Error("failed to list tasks", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, tasks)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
