// Package intent classifies free-text user messages into task-management
// intents using weighted keyword matching.
package intent

import "strings"

type Intent string

const (
	CreateTask   Intent = "create_task"
	UpdateTask   Intent = "update_task"
	CompleteTask Intent = "complete_task"
	DeleteTask   Intent = "delete_task"
	QueryTasks   Intent = "query_tasks"
	SetReminder  Intent = "set_reminder"
	Unknown      Intent = "unknown"
)

// minConfidence is the floor below which a detection is reported as Unknown.
const minConfidence = 0.5

// detectionOrder fixes the iteration order so ties resolve deterministically.
var detectionOrder = []Intent{CreateTask, UpdateTask, CompleteTask, DeleteTask, QueryTasks, SetReminder}

type Detector struct {
	keywords map[Intent]map[string]float64
}

func NewDetector() *Detector {
	return &Detector{
		keywords: map[Intent]map[string]float64{
			CreateTask: {
				"create":      1.0,
				"add":         0.9,
				"new task":    1.0,
				"make a task": 0.9,
				"add a task":  0.9,
				"task to":     0.7,
				"need to":     0.5,
			},
			UpdateTask: {
				"update": 1.0,
				"change": 0.9,
				"modify": 1.0,
				"edit":   0.8,
				"set":    0.6,
			},
			CompleteTask: {
				"complete":         1.0,
				"done":             0.9,
				"finish":           0.9,
				"mark as done":     1.0,
				"mark as complete": 1.0,
				"finished":         0.8,
			},
			DeleteTask: {
				"delete":     1.0,
				"remove":     0.9,
				"get rid of": 0.8,
				"cancel":     0.7,
			},
			QueryTasks: {
				"list":         1.0,
				"show":         0.9,
				"what are my":  1.0,
				"get my tasks": 1.0,
				"display":      0.8,
				"all tasks":    0.9,
			},
			SetReminder: {
				"remind":    1.0,
				"reminder":  1.0,
				"remind me": 1.0,
				"notify":    0.8,
				"alert":     0.7,
			},
		},
	}
}

// Detect returns the best-matching intent with a confidence in [0,1].
// The score per intent is the average weight of the matched keyword phrases,
// so intents with many overlapping keywords are not favored. Detect is total:
// any input, including the empty string, yields an answer and never an error.
func (d *Detector) Detect(text string) (Intent, float64) {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return Unknown, 0.0
	}

	best := Unknown
	bestScore := 0.0
	for _, in := range detectionOrder {
		sum := 0.0
		matches := 0
		for keyword, weight := range d.keywords[in] {
			if strings.Contains(input, keyword) {
				sum += weight
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := sum / float64(matches)
		if score > bestScore {
			best = in
			bestScore = score
		}
	}

	if bestScore > 1.0 {
		bestScore = 1.0
	}
	if bestScore < minConfidence {
		return Unknown, bestScore
	}
	return best, bestScore
}
