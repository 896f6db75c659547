// Package prompt renders bilingual system prompts with the tool catalog and
// parses the TOOL_CALL wire contract out of model replies.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

type Locale string

const (
	LocaleEnglish Locale = "english"
	LocaleUrdu    Locale = "urdu"
)

// romanUrduWords are common Urdu words written in Latin script. Two or more
// distinct hits flag the message as transliterated Urdu.
var romanUrduWords = []string{
	"karo", "kardo", "dikhao", "banao", "hatao", "batao",
	"mera", "meri", "mere", "kuch", "hai", "nahi",
	"ka", "ki", "ke", "ko", "se", "aur",
}

// urduScriptRanges are the Unicode blocks covering Urdu script: Arabic,
// Arabic Supplement, Arabic Extended-A, and the presentation forms.
var urduScriptRanges = [][2]rune{
	{0x0600, 0x06FF},
	{0x0750, 0x077F},
	{0x08A0, 0x08FF},
	{0xFB50, 0xFDFF},
	{0xFE70, 0xFEFF},
}

// DetectLanguage is total and deterministic: script presence wins, then the
// transliteration heuristic, then the English default.
func DetectLanguage(text string) Locale {
	for _, r := range text {
		for _, rng := range urduScriptRanges {
			if r >= rng[0] && r <= rng[1] {
				return LocaleUrdu
			}
		}
	}

	hits := 0
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if seen[word] {
			continue
		}
		for _, ru := range romanUrduWords {
			if word == ru {
				seen[word] = true
				hits++
				break
			}
		}
	}
	if hits >= 2 {
		return LocaleUrdu
	}
	return LocaleEnglish
}

const englishTemplate = `You are a helpful task management assistant. You help users create, list, update, complete, and delete tasks through natural conversation.

You have access to these tools:
%s

Tool call rules:
1. When the user clearly asks for a task operation, respond with exactly one line in this format:
TOOL_CALL: {"tool": "tool_name", "parameters": {"key": "value"}}
2. The line must contain nothing else: no markdown, no code fences, no explanation.
3. Only emit a TOOL_CALL when the user's intent is unambiguous. If you need more information, ask politely instead.
4. Always reply in the same language as the user's message.
5. After each action, confirm what you did (e.g. "Task 'Buy milk' has been added.").

Examples:
User: Create a task to buy groceries
Assistant: TOOL_CALL: {"tool": "create_task", "parameters": {"title": "buy groceries", "priority": "medium"}}

User: Show me my tasks
Assistant: TOOL_CALL: {"tool": "list_tasks", "parameters": {}}`

const urduTemplate = `Aap aik madadgar task management assistant hain. Aap users ko tasks banane, dekhne, update karne, mukammal karne aur hatane mein madad karte hain.

Aap ke paas yeh tools hain:
%s

Tool call ke usool:
1. Jab user wazeh tor par task operation chahe, bilkul aik line mein is format mein jawab dein:
TOOL_CALL: {"tool": "tool_name", "parameters": {"key": "value"}}
2. Is line ke ilawa kuch nahi: na markdown, na code fences, na wazahat.
3. Sirf tab TOOL_CALL likhein jab user ka irada bilkul saaf ho. Warna politely mazeed maloomat poochein.
4. Hamesha user ke paigham ki zabaan mein jawab dein.
5. Har karwai ke baad tasdeeq karein (maslan "'Doodh lena' task shamil ho gaya hai.").

Misalein:
User: Doodh lene ka task banao
Assistant: TOOL_CALL: {"tool": "create_task", "parameters": {"title": "doodh lena", "priority": "medium"}}

User: Mere tasks dikhao
Assistant: TOOL_CALL: {"tool": "list_tasks", "parameters": {}}`

// BuildSystemPrompt renders the per-locale instruction template with the tool
// catalog embedded. The catalog maps tool names to descriptions and comes
// from the tool registry.
func BuildSystemPrompt(locale Locale, catalog map[string]string) string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, catalog[name])
	}
	listing := strings.TrimRight(b.String(), "\n")

	if locale == LocaleUrdu {
		return fmt.Sprintf(urduTemplate, listing)
	}
	return fmt.Sprintf(englishTemplate, listing)
}
