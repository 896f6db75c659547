// Package skills extracts structured drafts from free text, one extractor per
// intent. Extraction is LLM-first with a deterministic rule-based fallback
// whose confidence is capped low enough to route ambiguous input to
// clarification instead of a wrong action.
package skills

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/intent"
	"github.com/taskmind/taskmind/internal/llm"
)

// fallbackConfidence caps rule-based extractions so they never pass the tool
// execution gate on their own authority.
const (
	fallbackConfidenceLow  = 0.6
	fallbackConfidenceHigh = 0.7
)

// Draft is the uniform extraction result. Which fields are populated depends
// on the intent; Validate names the ones that are missing.
type Draft struct {
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence"`

	// Creation and update fields.
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	// Reference for update/complete/delete.
	TaskRef string `json:"task_ref,omitempty"`

	// Query filters.
	Status string `json:"status,omitempty"`

	// Reminder fields.
	TriggerTime    *time.Time `json:"trigger_time,omitempty"`
	LeadTime       string     `json:"lead_time,omitempty"`
	DeliveryMethod string     `json:"delivery_method,omitempty"`
	Destination    string     `json:"destination,omitempty"`
}

// Extractor produces a draft for one intent. Extract is total: when the model
// is unavailable or returns garbage it falls back to rules, it never errors.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text string) Draft
	Validate(d Draft) (ok bool, missing []string)
}

// NewExtractors builds the intent→extractor dispatch table.
func NewExtractors(gen llm.Generator, logger *zap.Logger, now func() time.Time) map[intent.Intent]Extractor {
	if now == nil {
		now = time.Now
	}
	task := &TaskExtractor{gen: gen, logger: logger, now: now}
	ref := &RefExtractor{gen: gen, logger: logger, now: now}
	return map[intent.Intent]Extractor{
		intent.CreateTask:   task,
		intent.UpdateTask:   ref,
		intent.CompleteTask: ref,
		intent.DeleteTask:   ref,
		intent.QueryTasks:   &QueryExtractor{gen: gen, logger: logger},
		intent.SetReminder:  &ReminderExtractor{gen: gen, logger: logger, now: now},
	}
}

// generateJSON runs one extraction call and returns the raw reply with any
// markdown fencing stripped. The error is the caller's cue to fall back.
func generateJSON(ctx context.Context, gen llm.Generator, systemPrompt, text string) (string, error) {
	reply, err := gen.Generate(ctx, []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}, 0.2, 512)
	if err != nil {
		return "", err
	}
	return stripFences(reply), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampConfidence(c float64, fallback float64) float64 {
	if c <= 0 || c > 1 {
		return fallback
	}
	return c
}
