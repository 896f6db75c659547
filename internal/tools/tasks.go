package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskmind/taskmind/internal/db"
	"github.com/taskmind/taskmind/internal/events"
	"github.com/taskmind/taskmind/internal/models"
)

// RegisterTaskTools wires the task and reminder operations into the registry.
// Every callable reads its user id from the RequestContext, never from the
// model-supplied parameters. Mutating tools publish an event after success.
func RegisterTaskTools(reg *Registry, store *db.Store, pub events.Publisher) {
	reg.Register("create_task", createTask(store, pub),
		"Create a new task with title, description, priority, due date, and tags")
	reg.Register("list_tasks", listTasks(store),
		"List tasks for the current user, optionally filtered by status or priority")
	reg.Register("update_task", updateTask(store, pub),
		"Update an existing task's title, description, priority, or due date")
	reg.Register("complete_task", completeTask(store, pub),
		"Mark a task as completed")
	reg.Register("delete_task", deleteTask(store, pub),
		"Delete a task by its ID")
	reg.Register("set_reminder", setReminder(store, pub),
		"Create a reminder with a trigger time, lead time, and delivery method")
}

func createTask(store *db.Store, pub events.Publisher) Func {
	return func(ctx context.Context, rc RequestContext, params map[string]any) (any, error) {
		title := stringParam(params, "title")
		if title == "" {
			return nil, errors.New("title is required")
		}
		task := &models.Task{
			UserID:      rc.UserID,
			Title:       title,
			Description: stringParam(params, "description"),
			Priority:    stringParam(params, "priority"),
			Tags:        stringSliceParam(params, "tags"),
		}
		if !models.ValidPriority(task.Priority) {
			task.Priority = models.PriorityMedium
		}
		if due := stringParam(params, "due_date"); due != "" {
			t, err := time.Parse(time.RFC3339, due)
			if err != nil {
				return nil, fmt.Errorf("invalid due_date %q: %w", due, err)
			}
			task.DueDate = &t
		}
		if err := store.CreateTask(task); err != nil {
			return nil, err
		}
		pub.Publish(ctx, "task.created", task.ID, map[string]any{
			"task":           task,
			"correlation_id": rc.CorrelationID,
		})
		return task, nil
	}
}

func listTasks(store *db.Store) Func {
	return func(ctx context.Context, rc RequestContext, params map[string]any) (any, error) {
		filter := db.TaskFilter{
			Status:   stringParam(params, "status"),
			Priority: stringParam(params, "priority"),
		}
		tasks, err := store.ListTasks(rc.UserID, filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": len(tasks), "tasks": tasks}, nil
	}
}

func updateTask(store *db.Store, pub events.Publisher) Func {
	return func(ctx context.Context, rc RequestContext, params map[string]any) (any, error) {
		taskID := stringParam(params, "task_id")
		if taskID == "" {
			return nil, errors.New("task_id is required")
		}
		var upd db.TaskUpdate
		if v, ok := params["title"].(string); ok && v != "" {
			upd.Title = &v
		}
		if v, ok := params["description"].(string); ok {
			upd.Description = &v
		}
		if v, ok := params["priority"].(string); ok && models.ValidPriority(v) {
			upd.Priority = &v
		}
		if v, ok := params["due_date"].(string); ok && v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("invalid due_date %q: %w", v, err)
			}
			upd.DueDate = &t
		}
		task, err := store.UpdateTask(rc.UserID, taskID, upd)
		if err != nil {
			return nil, err
		}
		pub.Publish(ctx, "task.updated", task.ID, map[string]any{
			"task":           task,
			"correlation_id": rc.CorrelationID,
		})
		return task, nil
	}
}

func completeTask(store *db.Store, pub events.Publisher) Func {
	return func(ctx context.Context, rc RequestContext, params map[string]any) (any, error) {
		taskID := stringParam(params, "task_id")
		if taskID == "" {
			return nil, errors.New("task_id is required")
		}
		task, err := store.CompleteTask(rc.UserID, taskID)
		if err != nil {
			return nil, err
		}
		pub.Publish(ctx, "task.completed", task.ID, map[string]any{
			"task":           task,
			"correlation_id": rc.CorrelationID,
		})
		return task, nil
	}
}

func deleteTask(store *db.Store, pub events.Publisher) Func {
	return func(ctx context.Context, rc RequestContext, params map[string]any) (any, error) {
		taskID := stringParam(params, "task_id")
		if taskID == "" {
			return nil, errors.New("task_id is required")
		}
		if err := store.DeleteTask(rc.UserID, taskID); err != nil {
			return nil, err
		}
		pub.Publish(ctx, "task.deleted", taskID, map[string]any{
			"task_id":        taskID,
			"correlation_id": rc.CorrelationID,
		})
		return map[string]any{"task_id": taskID, "deleted": true}, nil
	}
}

func setReminder(store *db.Store, pub events.Publisher) Func {
	return func(ctx context.Context, rc RequestContext, params map[string]any) (any, error) {
		trigger := stringParam(params, "trigger_time")
		if trigger == "" {
			return nil, errors.New("trigger_time is required")
		}
		t, err := time.Parse(time.RFC3339, trigger)
		if err != nil {
			return nil, fmt.Errorf("invalid trigger_time %q: %w", trigger, err)
		}
		rem := &models.Reminder{
			TaskID:         stringParam(params, "task_id"),
			UserID:         rc.UserID,
			TriggerTime:    t,
			LeadTime:       stringParam(params, "lead_time"),
			DeliveryMethod: stringParam(params, "delivery_method"),
			Destination:    stringParam(params, "destination"),
		}
		if rem.LeadTime == "" {
			rem.LeadTime = "15m"
		}
		if rem.DeliveryMethod != "push" {
			rem.DeliveryMethod = "email"
		}
		if err := store.CreateReminder(rem); err != nil {
			return nil, err
		}
		pub.Publish(ctx, "reminder.created", rem.ID, map[string]any{
			"reminder":       rem,
			"correlation_id": rc.CorrelationID,
		})
		return rem, nil
	}
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func stringSliceParam(params map[string]any, key string) []string {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
