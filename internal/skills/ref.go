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

const refExtractionPrompt = `You are a Task Reference Agent. The user wants to update, complete, or delete an existing task. Extract which task they mean and any changed fields.

Return ONLY JSON in this format:
{
  "task_id": "the task identifier mentioned, or null",
  "title": "new title or null",
  "description": "new description or null",
  "due_date": "ISO 8601 datetime or null",
  "priority": "low|medium|high or null",
  "confidence": 0.0-1.0
}

Rules:
- task_id is whatever identifies the task: an id like "task #12", or the task's name in quotes.
- Only include fields the user explicitly wants changed.
- If you cannot tell which task is meant, set task_id to null and confidence below 0.7.
- No markdown, no explanation, just the JSON object.`

var taskRefPattern = regexp.MustCompile(`task\s*#?([\w-]+)`)

// RefExtractor serves the update, complete, and delete intents: it resolves
// which task the user means plus any fields to change.
type RefExtractor struct {
	gen    llm.Generator
	logger *zap.Logger
	now    func() time.Time
}

func (e *RefExtractor) Name() string { return "TaskRefAgent" }

func (e *RefExtractor) Extract(ctx context.Context, text string) Draft {
	raw, err := generateJSON(ctx, e.gen, refExtractionPrompt, text)
	if err != nil {
		e.logger.Warn("task ref extraction model call failed, using fallback", zap.Error(err))
		return e.fallback(text)
	}

	var out struct {
		TaskID      string  `json:"task_id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		DueDate     string  `json:"due_date"`
		Priority    string  `json:"priority"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		e.logger.Warn("task ref extraction returned unparsable output, using fallback", zap.Error(err))
		return e.fallback(text)
	}

	draft := Draft{
		Agent:       e.Name(),
		Confidence:  clampConfidence(out.Confidence, 0.9),
		TaskRef:     out.TaskID,
		Title:       out.Title,
		Description: out.Description,
	}
	if models.ValidPriority(out.Priority) {
		draft.Priority = out.Priority
	}
	if out.DueDate != "" {
		if t, err := time.Parse(time.RFC3339, out.DueDate); err == nil {
			draft.DueDate = &t
		}
	}
	return draft
}

// fallback looks for "task #12" style references or a short leading token.
func (e *RefExtractor) fallback(text string) Draft {
	draft := Draft{Agent: e.Name(), Confidence: 0.3}
	lower := strings.ToLower(text)
	if m := taskRefPattern.FindStringSubmatch(lower); m != nil {
		draft.TaskRef = m[1]
		draft.Confidence = fallbackConfidenceHigh
	} else if fields := strings.Fields(strings.TrimSpace(text)); len(fields) > 0 && len(fields[0]) < 10 && looksLikeID(fields[0]) {
		// "42 is done" style input leads with the identifier.
		draft.TaskRef = fields[0]
		draft.Confidence = fallbackConfidenceLow
	}
	return draft
}

// looksLikeID accepts short alphanumeric tokens that contain at least one
// digit, so ordinary words never get mistaken for task ids.
func looksLikeID(s string) bool {
	hasDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
		default:
			return false
		}
	}
	return hasDigit
}

func (e *RefExtractor) Validate(d Draft) (bool, []string) {
	if strings.TrimSpace(d.TaskRef) == "" {
		return false, []string{"task_id"}
	}
	return true, nil
}
