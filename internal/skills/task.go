package skills

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/llm"
	"github.com/taskmind/taskmind/internal/models"
)

const taskExtractionPrompt = `You are a Task Extraction Agent. Extract task data from the user's message.

Return ONLY JSON in this format:
{
  "title": "task title",
  "description": "description or null",
  "due_date": "ISO 8601 datetime or null",
  "priority": "low|medium|high",
  "tags": ["tag1", "tag2"],
  "confidence": 0.0-1.0
}

Rules:
- Title is required. If information is missing, set the field to null and confidence below 0.7.
- Resolve relative times (e.g. "tomorrow at 5pm") to ISO 8601.
- Default priority to "medium" when not specified.
- No markdown, no explanation, just the JSON object.`

var tagPattern = regexp.MustCompile(`#(\w+)`)

// TaskExtractor produces creation drafts: title, description, due date,
// priority, and tags.
type TaskExtractor struct {
	gen    llm.Generator
	logger *zap.Logger
	now    func() time.Time
}

func (e *TaskExtractor) Name() string { return "TaskAgent" }

func (e *TaskExtractor) Extract(ctx context.Context, text string) Draft {
	raw, err := generateJSON(ctx, e.gen, taskExtractionPrompt, text)
	if err != nil {
		e.logger.Warn("task extraction model call failed, using fallback", zap.Error(err))
		return e.fallback(text)
	}

	var out struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		DueDate     string   `json:"due_date"`
		Priority    string   `json:"priority"`
		Tags        []string `json:"tags"`
		Confidence  float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out.Title == "" {
		e.logger.Warn("task extraction returned unparsable output, using fallback", zap.Error(err))
		return e.fallback(text)
	}

	draft := Draft{
		Agent:       e.Name(),
		Confidence:  clampConfidence(out.Confidence, 0.95),
		Title:       out.Title,
		Description: out.Description,
		Priority:    out.Priority,
		Tags:        out.Tags,
	}
	if !models.ValidPriority(draft.Priority) {
		draft.Priority = models.PriorityMedium
	}
	if out.DueDate != "" {
		if t, err := time.Parse(time.RFC3339, out.DueDate); err == nil {
			draft.DueDate = &t
		}
	}
	return draft
}

// fallback derives a draft from surface rules: first sentence as title,
// priority keywords, relative dates, #tags.
func (e *TaskExtractor) fallback(text string) Draft {
	title := text
	for _, sep := range []string{".", "!", "?"} {
		if idx := strings.Index(title, sep); idx >= 0 {
			title = title[:idx]
		}
	}
	title = strings.TrimSpace(title)
	// Strip the command phrasing so "Create a task to buy milk" titles the
	// task "buy milk".
	lowerTitle := strings.ToLower(title)
	for _, prefix := range []string{"create a task to ", "add a task to ", "make a task to ", "create a task ", "add a task ", "need to "} {
		if strings.HasPrefix(lowerTitle, prefix) {
			title = strings.TrimSpace(title[len(prefix):])
			break
		}
	}
	if len(title) > 100 {
		title = title[:100] + "..."
	}

	lower := strings.ToLower(text)
	priority := models.PriorityMedium
	if strings.Contains(lower, "high priority") || strings.Contains(lower, "urgent") {
		priority = models.PriorityHigh
	} else if strings.Contains(lower, "low priority") {
		priority = models.PriorityLow
	}

	var tags []string
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tags = append(tags, m[1])
	}

	description := ""
	if len(text) > len(title) {
		description = text
	}

	return Draft{
		Agent:       e.Name(),
		Confidence:  fallbackConfidenceLow,
		Title:       title,
		Description: description,
		DueDate:     ResolveTime(text, e.now()),
		Priority:    priority,
		Tags:        tags,
	}
}

func (e *TaskExtractor) Validate(d Draft) (bool, []string) {
	if strings.TrimSpace(d.Title) == "" {
		return false, []string{"title"}
	}
	return true, nil
}
