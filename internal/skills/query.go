package skills

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/llm"
	"github.com/taskmind/taskmind/internal/models"
)

const queryExtractionPrompt = `You are a Task Query Agent. The user wants to see their tasks. Extract the filters they asked for.

Return ONLY JSON in this format:
{
  "status": "active|completed|all",
  "priority": "low|medium|high or null",
  "confidence": 0.0-1.0
}

Rules:
- status defaults to "all" when the user does not narrow it.
- No markdown, no explanation, just the JSON object.`

// QueryExtractor derives list filters. Listing is read-only, so the
// rule-based fallback keeps the higher fallback confidence.
type QueryExtractor struct {
	gen    llm.Generator
	logger *zap.Logger
}

func (e *QueryExtractor) Name() string { return "QueryAgent" }

func (e *QueryExtractor) Extract(ctx context.Context, text string) Draft {
	raw, err := generateJSON(ctx, e.gen, queryExtractionPrompt, text)
	if err != nil {
		e.logger.Warn("query extraction model call failed, using fallback", zap.Error(err))
		return e.fallback(text)
	}

	var out struct {
		Status     string  `json:"status"`
		Priority   string  `json:"priority"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		e.logger.Warn("query extraction returned unparsable output, using fallback", zap.Error(err))
		return e.fallback(text)
	}

	draft := Draft{
		Agent:      e.Name(),
		Confidence: clampConfidence(out.Confidence, 0.9),
		Status:     out.Status,
	}
	if models.ValidPriority(out.Priority) {
		draft.Priority = out.Priority
	}
	if draft.Status == "" {
		draft.Status = "all"
	}
	return draft
}

func (e *QueryExtractor) fallback(text string) Draft {
	lower := strings.ToLower(text)
	draft := Draft{Agent: e.Name(), Confidence: fallbackConfidenceHigh, Status: "all"}
	switch {
	case strings.Contains(lower, "completed") || strings.Contains(lower, "done") || strings.Contains(lower, "finished"):
		draft.Status = models.StatusCompleted
	case strings.Contains(lower, "pending") || strings.Contains(lower, "active") || strings.Contains(lower, "open"):
		draft.Status = models.StatusActive
	}
	for _, p := range []string{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		if strings.Contains(lower, p+" priority") {
			draft.Priority = p
			break
		}
	}
	return draft
}

func (e *QueryExtractor) Validate(Draft) (bool, []string) {
	// Filters are all optional; an empty query lists everything.
	return true, nil
}
