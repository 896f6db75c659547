package skills

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/llm"
)

const reminderExtractionPrompt = `You are a Reminder Extraction Agent. Extract reminder data from the user's message.

Return ONLY JSON in this format:
{
  "trigger_time": "ISO 8601 datetime",
  "lead_time": "15m",
  "delivery_method": "email|push",
  "destination": "email address or push token, or null",
  "confidence": 0.0-1.0
}

Rules:
- trigger_time is when to send the reminder, resolved to absolute ISO 8601.
- lead_time is how long before the task to remind (e.g. "15m", "1h", "1d").
- Resolve relative times (e.g. "tomorrow at 5pm") against the current time.
- No markdown, no explanation, just the JSON object.`

// ReminderExtractor produces reminder drafts: trigger time, lead time, and
// delivery preferences.
type ReminderExtractor struct {
	gen    llm.Generator
	logger *zap.Logger
	now    func() time.Time
}

func (e *ReminderExtractor) Name() string { return "ReminderAgent" }

func (e *ReminderExtractor) Extract(ctx context.Context, text string) Draft {
	raw, err := generateJSON(ctx, e.gen, reminderExtractionPrompt, text)
	if err != nil {
		e.logger.Warn("reminder extraction model call failed, using fallback", zap.Error(err))
		return e.fallback(text)
	}

	var out struct {
		TriggerTime    string  `json:"trigger_time"`
		LeadTime       string  `json:"lead_time"`
		DeliveryMethod string  `json:"delivery_method"`
		Destination    string  `json:"destination"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		e.logger.Warn("reminder extraction returned unparsable output, using fallback", zap.Error(err))
		return e.fallback(text)
	}

	draft := Draft{
		Agent:          e.Name(),
		Confidence:     clampConfidence(out.Confidence, 0.9),
		LeadTime:       out.LeadTime,
		DeliveryMethod: out.DeliveryMethod,
		Destination:    out.Destination,
	}
	if out.TriggerTime != "" {
		if t, err := time.Parse(time.RFC3339, out.TriggerTime); err == nil {
			draft.TriggerTime = &t
		}
	}
	if draft.TriggerTime == nil {
		draft.TriggerTime = ResolveTime(text, e.now())
	}
	applyReminderDefaults(&draft)
	return draft
}

func (e *ReminderExtractor) fallback(text string) Draft {
	draft := Draft{
		Agent:       e.Name(),
		Confidence:  fallbackConfidenceHigh,
		TriggerTime: ResolveTime(text, e.now()),
		LeadTime:    ParseLeadTime(text),
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "push") || strings.Contains(lower, "notification") {
		draft.DeliveryMethod = "push"
	}
	applyReminderDefaults(&draft)
	return draft
}

func applyReminderDefaults(d *Draft) {
	if d.LeadTime == "" {
		d.LeadTime = "15m"
	}
	if d.DeliveryMethod != "push" {
		d.DeliveryMethod = "email"
	}
}

func (e *ReminderExtractor) Validate(d Draft) (bool, []string) {
	if d.TriggerTime == nil {
		return false, []string{"trigger_time"}
	}
	return true, nil
}
