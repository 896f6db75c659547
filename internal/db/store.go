// Package db persists conversations, messages, tasks, and reminders in
// sqlite. Messages are append-only; the autoincrement id is the ordering key.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/taskmind/taskmind/internal/models"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    tool_calls TEXT,
    intent_detected TEXT,
    skill_agent_used TEXT,
    confidence_score REAL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    due_date TIMESTAMP,
    priority TEXT NOT NULL DEFAULT 'medium',
    tags TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);

CREATE TABLE IF NOT EXISTS reminders (
    id TEXT PRIMARY KEY,
    task_id TEXT,
    user_id TEXT NOT NULL,
    trigger_time TIMESTAMP NOT NULL,
    lead_time TEXT NOT NULL DEFAULT '15m',
    delivery_method TEXT NOT NULL DEFAULT 'email',
    destination TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer keeps per-conversation appends serialized at the store level.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateConversation(userID string) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:     uuid.NewString(),
		UserID: userID,
	}
	query := `
        INSERT INTO conversations (id, user_id, created_at, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
        RETURNING created_at, updated_at`
	if err := s.db.QueryRow(query, conv.ID, conv.UserID).Scan(&conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *Store) GetConversation(id string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	query := `SELECT id, user_id, created_at, updated_at FROM conversations WHERE id = ?`
	err := s.db.QueryRow(query, id).Scan(&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Store) ListConversations(userID string) ([]models.Conversation, error) {
	query := `
        SELECT id, user_id, created_at, updated_at
        FROM conversations
        WHERE user_id = ?
        ORDER BY updated_at DESC`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// SaveMessage appends a message and bumps the conversation's updated_at.
// The returned id is strictly greater than every previously written message
// id for the conversation.
func (s *Store) SaveMessage(msg *models.Message) error {
	var toolCalls any
	if len(msg.ToolCalls) > 0 {
		raw, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to encode tool calls: %w", err)
		}
		toolCalls = string(raw)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO messages (conversation_id, role, content, created_at, tool_calls, intent_detected, skill_agent_used, confidence_score)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP, ?, ?, ?, ?)
        RETURNING id, created_at`
	err = tx.QueryRow(query,
		msg.ConvID, msg.Role, msg.Content, toolCalls,
		nullString(msg.IntentDetected), nullString(msg.SkillAgentUsed), msg.ConfidenceScore,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	if _, err := tx.Exec(`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, msg.ConvID); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return tx.Commit()
}

// GetConversationHistory returns the most recent messages in ascending
// creation order.
func (s *Store) GetConversationHistory(conversationID string, limit int) ([]models.Message, error) {
	query := `
        SELECT id, conversation_id, role, content, created_at, tool_calls, intent_detected, skill_agent_used, confidence_score
        FROM (
            SELECT * FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
        ) ORDER BY id ASC`
	rows, err := s.db.Query(query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var toolCalls, intentDetected, agent sql.NullString
		var confidence sql.NullFloat64
		err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &msg.CreatedAt,
			&toolCalls, &intentDetected, &agent, &confidence)
		if err != nil {
			return nil, err
		}
		if toolCalls.Valid {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls: %w", err)
			}
		}
		msg.IntentDetected = intentDetected.String
		msg.SkillAgentUsed = agent.String
		if confidence.Valid {
			v := confidence.Float64
			msg.ConfidenceScore = &v
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// TaskFilter narrows ListTasks. Zero values mean no filtering.
type TaskFilter struct {
	Status   string
	Priority string
	Limit    int
}

func (s *Store) CreateTask(task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.Status == "" {
		task.Status = models.StatusActive
	}
	tags, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
        INSERT INTO tasks (id, user_id, title, description, due_date, priority, tags, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
        RETURNING created_at, updated_at`
	err = s.db.QueryRow(query,
		task.ID, task.UserID, task.Title, task.Description, task.DueDate,
		task.Priority, string(tags), task.Status,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(userID, taskID string) (*models.Task, error) {
	query := `
        SELECT id, user_id, title, description, due_date, priority, tags, status, created_at, updated_at
        FROM tasks WHERE id = ? AND user_id = ?`
	task, err := scanTask(s.db.QueryRow(query, taskID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

func (s *Store) ListTasks(userID string, filter TaskFilter) ([]models.Task, error) {
	query := `
        SELECT id, user_id, title, description, due_date, priority, tags, status, created_at, updated_at
        FROM tasks WHERE user_id = ?`
	args := []any{userID}
	if filter.Status != "" && filter.Status != "all" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, filter.Priority)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// TaskUpdate carries the fields to change; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *string
	Status      *string
}

func (s *Store) UpdateTask(userID, taskID string, upd TaskUpdate) (*models.Task, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *upd.DueDate)
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *upd.Priority)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	args = append(args, taskID, userID)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ? AND user_id = ?", strings.Join(sets, ", "))
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetTask(userID, taskID)
}

func (s *Store) CompleteTask(userID, taskID string) (*models.Task, error) {
	status := models.StatusCompleted
	return s.UpdateTask(userID, taskID, TaskUpdate{Status: &status})
}

func (s *Store) DeleteTask(userID, taskID string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateReminder(rem *models.Reminder) error {
	if rem.ID == "" {
		rem.ID = uuid.NewString()
	}
	query := `
        INSERT INTO reminders (id, task_id, user_id, trigger_time, lead_time, delivery_method, destination, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        RETURNING created_at`
	err := s.db.QueryRow(query,
		rem.ID, nullString(rem.TaskID), rem.UserID, rem.TriggerTime,
		rem.LeadTime, rem.DeliveryMethod, rem.Destination,
	).Scan(&rem.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	var description sql.NullString
	var dueDate sql.NullTime
	var tags string
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &description, &dueDate,
		&task.Priority, &tags, &task.Status, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.Description = description.String
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	if err := json.Unmarshal([]byte(tags), &task.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return &task, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
