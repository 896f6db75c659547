package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Locale
	}{
		{"english", "Create a task to buy milk", LocaleEnglish},
		{"empty", "", LocaleEnglish},
		{"urdu script", "مجھے دودھ لینا ہے", LocaleUrdu},
		{"mixed script", "please دودھ lena", LocaleUrdu},
		{"roman urdu", "mera task dikhao", LocaleUrdu},
		{"roman urdu punctuation", "Doodh lene ka task banao!", LocaleUrdu},
		{"single loanword stays english", "show me the hai task", LocaleEnglish},
		{"repeated loanword counts once", "hai hai hai", LocaleEnglish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	catalog := map[string]string{
		"create_task": "Create a new task",
		"list_tasks":  "List the user's tasks",
	}

	got := BuildSystemPrompt(LocaleEnglish, catalog)
	assert.Contains(t, got, "- create_task: Create a new task")
	assert.Contains(t, got, "- list_tasks: List the user's tasks")
	assert.Contains(t, got, toolCallMarker)

	// Tool listing is sorted by name regardless of map order.
	assert.Less(t, strings.Index(got, "create_task"), strings.Index(got, "list_tasks"))

	urdu := BuildSystemPrompt(LocaleUrdu, catalog)
	assert.NotEqual(t, got, urdu)
	assert.Contains(t, urdu, "- create_task: Create a new task")
	assert.Contains(t, urdu, toolCallMarker)
}

func TestParseToolCall(t *testing.T) {
	req, ok := ParseToolCall(`TOOL_CALL: {"tool": "create_task", "parameters": {"title": "buy milk", "priority": "high"}}`)
	require.True(t, ok)
	assert.Equal(t, "create_task", req.Tool)
	assert.Equal(t, "buy milk", req.Parameters["title"])
	assert.Equal(t, "high", req.Parameters["priority"])
}

func TestParseToolCallEmbedded(t *testing.T) {
	reply := "Sure, I can do that.\nTOOL_CALL: {\"tool\": \"list_tasks\", \"parameters\": {}}\nDone."
	req, ok := ParseToolCall(reply)
	require.True(t, ok)
	assert.Equal(t, "list_tasks", req.Tool)
	assert.NotNil(t, req.Parameters)
	assert.Empty(t, req.Parameters)
}

func TestParseToolCallInsideFence(t *testing.T) {
	reply := "```\nTOOL_CALL: {\"tool\": \"complete_task\", \"parameters\": {\"task_id\": \"12\"}}\n```"
	req, ok := ParseToolCall(reply)
	require.True(t, ok)
	assert.Equal(t, "complete_task", req.Tool)
	assert.Equal(t, "12", req.Parameters["task_id"])
}

func TestParseToolCallMalformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no marker", "I added the task for you."},
		{"truncated json", `TOOL_CALL: {"tool": "create_task", "parameters": {"title":`},
		{"empty tool", `TOOL_CALL: {"tool": "", "parameters": {}}`},
		{"not json", "TOOL_CALL: create_task please"},
		{"empty reply", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := ParseToolCall(tt.reply)
			assert.False(t, ok)
			assert.Nil(t, req)
		})
	}
}
