package models

import "time"

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority"`
	Tags        []string   `json:"tags,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ValidPriority reports whether p is one of the accepted priority levels.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Reminder struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id,omitempty"`
	UserID         string    `json:"user_id"`
	TriggerTime    time.Time `json:"trigger_time"`
	LeadTime       string    `json:"lead_time"`
	DeliveryMethod string    `json:"delivery_method"`
	Destination    string    `json:"destination"`
	CreatedAt      time.Time `json:"created_at"`
}
