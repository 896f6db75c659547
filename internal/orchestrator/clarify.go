package orchestrator

import (
	"fmt"
	"strings"

	"github.com/taskmind/taskmind/internal/intent"
	"github.com/taskmind/taskmind/internal/models"
	"github.com/taskmind/taskmind/internal/prompt"
)

// clarificationFor composes the low-confidence reply referencing the
// best-guess intent.
func clarificationFor(detected intent.Intent, userInput string, locale prompt.Locale) string {
	if locale == prompt.LocaleUrdu {
		return fmt.Sprintf("Mujhe theek se samajh nahi aaya. Aap ne kaha: %q. Kya aap dobara keh sakte hain? Main tasks banane, dekhne, mukammal karne aur hatane mein madad kar sakta hoon.", userInput)
	}
	switch detected {
	case intent.CreateTask:
		return fmt.Sprintf("I think you want to create a task, but I'm not sure about the details. You said: %q. Could you provide the task title?", userInput)
	case intent.UpdateTask:
		return "I'd like to help update your task, but I'm not sure which task or what changes. Could you clarify?"
	case intent.Unknown:
		return fmt.Sprintf("I'm not sure what you'd like to do. You said: %q. Could you rephrase that? I can help you create, update, complete, or list tasks.", userInput)
	default:
		return fmt.Sprintf("I'm not sure I understood correctly. You said: %q. Could you clarify?", userInput)
	}
}

// clarifyMissing names the fields an otherwise-understood request lacks.
func clarifyMissing(detected intent.Intent, missing []string, locale prompt.Locale) string {
	fields := strings.Join(missing, ", ")
	if locale == prompt.LocaleUrdu {
		return fmt.Sprintf("Is ke liye mujhe mazeed maloomat chahiye: %s. Bara-e-meharbani wazahat karein.", fields)
	}
	return fmt.Sprintf("I understood you want to %s, but I'm missing: %s. Could you provide that?",
		strings.ReplaceAll(string(detected), "_", " "), fields)
}

// defaultResponse is the canned confirmation used when the model cannot
// render a tool outcome.
func defaultResponse(detected intent.Intent, result models.ToolCallResult) string {
	if !result.Success {
		return fmt.Sprintf("I couldn't finish that: %s", result.Error)
	}
	switch detected {
	case intent.CreateTask:
		return "Task created successfully!"
	case intent.UpdateTask:
		return "Task updated successfully!"
	case intent.CompleteTask:
		return "Great job! Task completed."
	case intent.DeleteTask:
		return "Task deleted."
	case intent.QueryTasks:
		return "Here are your tasks."
	case intent.SetReminder:
		return "Reminder set!"
	default:
		return "Done!"
	}
}

// unavailableMessage is the safe fallback when something unexpected breaks
// mid-turn. Raw error text never reaches the user.
func unavailableMessage(locale prompt.Locale) string {
	if locale == prompt.LocaleUrdu {
		return "Assistant filhal dastyab nahi hai. Bara-e-meharbani thori dair baad dobara koshish karein."
	}
	return "The assistant is temporarily unavailable. Please try again."
}
