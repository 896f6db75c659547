// Package tools exposes user-scoped domain operations as named callables the
// model can request over the TOOL_CALL wire contract.
package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/models"
)

// RequestContext carries the request-scoped identity a tool runs under. The
// user id is fixed when the registry is built and is never accepted as a tool
// parameter, so a model reply cannot reach across users.
type RequestContext struct {
	UserID        string
	CorrelationID string
}

// Func is a tool implementation. Returned errors are wrapped into a
// structured per-tool failure by Call, never propagated to the caller.
type Func func(ctx context.Context, rc RequestContext, params map[string]any) (any, error)

type Descriptor struct {
	Name        string
	Description string
	fn          Func
}

type Registry struct {
	rc     RequestContext
	tools  map[string]Descriptor
	logger *zap.Logger
}

// NewRegistry builds a registry bound to one request's identity.
func NewRegistry(rc RequestContext, logger *zap.Logger) *Registry {
	return &Registry{
		rc:     rc,
		tools:  make(map[string]Descriptor),
		logger: logger,
	}
}

func (r *Registry) Register(name string, fn Func, description string) {
	r.tools[name] = Descriptor{Name: name, Description: description, fn: fn}
}

// List returns the tool catalog for prompt composition.
func (r *Registry) List() map[string]string {
	catalog := make(map[string]string, len(r.tools))
	for name, d := range r.tools {
		catalog[name] = d.Description
	}
	return catalog
}

// Call executes a registered tool. Unknown names and tool failures are
// returned as structured results so one failing tool cannot abort the turn.
func (r *Registry) Call(ctx context.Context, name string, params map[string]any) models.ToolCallResult {
	d, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested",
			zap.String("tool", name),
			zap.String("correlation_id", r.rc.CorrelationID))
		return models.ToolCallResult{
			Tool:    name,
			Success: false,
			Error:   fmt.Sprintf("tool %q not found", name),
		}
	}

	result, err := r.safeCall(ctx, d, params)
	if err != nil {
		r.logger.Error("tool execution failed",
			zap.String("tool", name),
			zap.String("correlation_id", r.rc.CorrelationID),
			zap.Error(err))
		return models.ToolCallResult{Tool: name, Success: false, Error: err.Error()}
	}

	r.logger.Info("tool executed",
		zap.String("tool", name),
		zap.String("correlation_id", r.rc.CorrelationID))
	return models.ToolCallResult{Tool: name, Success: true, Result: result}
}

func (r *Registry) safeCall(ctx context.Context, d Descriptor, params map[string]any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %q panicked: %v", d.Name, p)
		}
	}()
	return d.fn(ctx, r.rc, params)
}
