package skills

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anchor is a fixed Tuesday morning so relative expressions resolve
// predictably.
var anchor = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

func TestResolveTimeRelativeDays(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"tomorrow defaults morning", "finish the report tomorrow", time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"tomorrow with clock", "call mom tomorrow at 5pm", time.Date(2025, 3, 5, 17, 0, 0, 0, time.UTC)},
		{"today with clock", "submit it today at 3pm", time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)},
		{"next week", "plan the trip next week", time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)},
		{"clock with minutes", "meeting tomorrow at 9:45am", time.Date(2025, 3, 5, 9, 45, 0, 0, time.UTC)},
		{"bare clock", "lunch at 12pm", time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTime(tt.text, anchor)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestResolveTimePastRollsForward(t *testing.T) {
	// 9am today is already past the 10:30 anchor, so it rolls to tomorrow.
	got := ResolveTime("remind me today at 9am", anchor)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC), *got)
}

func TestResolveTimeDurations(t *testing.T) {
	tests := []struct {
		text string
		want time.Duration
	}{
		{"remind me in 30 minutes", 30 * time.Minute},
		{"check the oven in 2 hours", 2 * time.Hour},
		{"follow up in 3 days", 72 * time.Hour},
		{"ping me in 1 min", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ResolveTime(tt.text, anchor)
			require.NotNil(t, got)
			assert.Equal(t, anchor.Add(tt.want), *got)
		})
	}
}

func TestResolveTimeNoExpression(t *testing.T) {
	assert.Nil(t, ResolveTime("buy milk", anchor))
	assert.Nil(t, ResolveTime("", anchor))
}

func TestParseLeadTime(t *testing.T) {
	assert.Equal(t, "10m", ParseLeadTime("remind me 10 minutes before"))
	assert.Equal(t, "5m", ParseLeadTime("alert me 5 min earlier"))
	assert.Equal(t, "", ParseLeadTime("remind me tomorrow"))
}
