// Package orchestrator runs the per-message cycle: classify intent, extract a
// draft, let the model decide on a tool call, execute it, and respond. One
// cycle per inbound message; it is not a planner and holds no cross-turn
// goals.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/db"
	"github.com/taskmind/taskmind/internal/intent"
	"github.com/taskmind/taskmind/internal/llm"
	"github.com/taskmind/taskmind/internal/models"
	"github.com/taskmind/taskmind/internal/prompt"
	"github.com/taskmind/taskmind/internal/skills"
	"github.com/taskmind/taskmind/internal/tools"
)

// State tracks a turn through the processing machine. Responded and Error are
// terminal.
type State string

const (
	StateReceived       State = "received"
	StateIntentDetected State = "intent_detected"
	StateClarifying     State = "clarifying"
	StateExtracting     State = "extracting"
	StateValidated      State = "validated"
	StateExecuting      State = "executing"
	StateResponded      State = "responded"
	StateError          State = "error"
)

const (
	// confidenceGate applies before every tool-executing path: both the
	// detected intent and the extracted draft must clear it.
	confidenceGate = 0.7

	historyWindow = 10
	maxMessageLen = 1000
)

// ValidationError rejects malformed input before any model call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Reason }

// ErrConversationNotFound covers both unknown ids and conversations owned by
// another user; callers cannot tell the two apart.
var ErrConversationNotFound = fmt.Errorf("conversation not found")

// RegistryFactory builds a tool registry bound to one request's identity.
type RegistryFactory func(rc tools.RequestContext) *tools.Registry

type Command struct {
	UserID         string
	ConversationID string
	Message        string
}

type Response struct {
	Reply               string                  `json:"reply"`
	ConversationID      string                  `json:"conversation_id"`
	ToolCalls           []models.ToolCallResult `json:"tool_calls,omitempty"`
	IntentDetected      string                  `json:"intent_detected,omitempty"`
	SkillAgentUsed      string                  `json:"skill_agent_used,omitempty"`
	ConfidenceScore     float64                 `json:"confidence_score"`
	ClarificationNeeded bool                    `json:"clarification_needed,omitempty"`
}

type Loop struct {
	store       *db.Store
	gen         llm.Generator
	detector    *intent.Detector
	extractors  map[intent.Intent]skills.Extractor
	newRegistry RegistryFactory
	logger      *zap.Logger

	mu        sync.Mutex
	convLocks map[string]*convLock
}

// convLock is reference-counted so the lock map shrinks back once the last
// turn for a conversation releases it.
type convLock struct {
	sync.Mutex
	refs int
}

func NewLoop(store *db.Store, gen llm.Generator, detector *intent.Detector,
	extractors map[intent.Intent]skills.Extractor, newRegistry RegistryFactory,
	logger *zap.Logger) *Loop {
	return &Loop{
		store:       store,
		gen:         gen,
		detector:    detector,
		extractors:  extractors,
		newRegistry: newRegistry,
		logger:      logger,
		convLocks:   make(map[string]*convLock),
	}
}

// Handle processes one chat command through the full cycle. Turns for the
// same conversation are serialized; independent conversations proceed
// concurrently. Unexpected failures past the point where the user message is
// persisted are converted into a safe fallback reply, never surfaced raw.
func (l *Loop) Handle(ctx context.Context, cmd Command) (*Response, error) {
	if len(cmd.Message) == 0 {
		return nil, &ValidationError{Reason: "message is required"}
	}
	if len(cmd.Message) > maxMessageLen {
		return nil, &ValidationError{Reason: fmt.Sprintf("message exceeds %d characters", maxMessageLen)}
	}
	if cmd.UserID == "" {
		return nil, &ValidationError{Reason: "user id is required"}
	}

	conv, err := l.resolveConversation(cmd)
	if err != nil {
		return nil, err
	}

	unlock := l.lockConversation(conv.ID)
	defer unlock()

	correlationID := uuid.NewString()
	locale := prompt.DetectLanguage(cmd.Message)
	log := l.logger.With(
		zap.String("conversation_id", conv.ID),
		zap.String("correlation_id", correlationID),
	)

	// The inbound message is durable before any model or tool I/O.
	userMsg := &models.Message{ConvID: conv.ID, Role: models.RoleUser, Content: cmd.Message}
	if err := l.store.SaveMessage(userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	log.Info("message received", zap.String("state", string(StateReceived)), zap.Int("length", len(cmd.Message)))

	resp, err := l.process(ctx, cmd, conv, locale, correlationID, log)
	if err != nil {
		// Error boundary: whatever went wrong stays in the logs; the user
		// gets a generic failure and no raw error text.
		log.Error("turn failed", zap.String("state", string(StateError)), zap.Error(err))
		reply := unavailableMessage(locale)
		assistantMsg := &models.Message{ConvID: conv.ID, Role: models.RoleAssistant, Content: reply}
		if saveErr := l.store.SaveMessage(assistantMsg); saveErr != nil {
			log.Error("failed to persist fallback reply", zap.Error(saveErr))
		}
		return &Response{Reply: reply, ConversationID: conv.ID}, nil
	}
	return resp, nil
}

func (l *Loop) process(ctx context.Context, cmd Command, conv *models.Conversation,
	locale prompt.Locale, correlationID string, log *zap.Logger) (*Response, error) {

	detected, confidence := l.detector.Detect(cmd.Message)
	log.Info("intent detected",
		zap.String("state", string(StateIntentDetected)),
		zap.String("intent", string(detected)),
		zap.Float64("confidence", confidence))

	if detected == intent.Unknown || confidence < confidenceGate {
		return l.clarify(conv, clarificationFor(detected, cmd.Message, locale), detected, "", confidence, log)
	}

	extractor, ok := l.extractors[detected]
	if !ok {
		return l.clarify(conv, clarificationFor(intent.Unknown, cmd.Message, locale), detected, "", confidence, log)
	}

	log.Info("extracting", zap.String("state", string(StateExtracting)), zap.String("agent", extractor.Name()))
	draft := extractor.Extract(ctx, cmd.Message)
	if draft.Confidence < confidenceGate {
		return l.clarify(conv, clarificationFor(detected, cmd.Message, locale), detected, extractor.Name(), draft.Confidence, log)
	}
	if ok, missing := extractor.Validate(draft); !ok {
		return l.clarify(conv, clarifyMissing(detected, missing, locale), detected, extractor.Name(), draft.Confidence, log)
	}

	rc := tools.RequestContext{UserID: cmd.UserID, CorrelationID: correlationID}
	registry := l.newRegistry(rc)
	systemPrompt := prompt.BuildSystemPrompt(locale, registry.List())

	history, err := l.store.GetConversationHistory(conv.ID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	log.Info("calling model", zap.String("state", string(StateValidated)))
	reply, err := l.gen.Generate(ctx, messages, 0.7, 1024)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	final := reply
	var toolCalls []models.ToolCallResult
	if req, found := prompt.ParseToolCall(reply); found {
		log.Info("executing tool", zap.String("state", string(StateExecuting)), zap.String("tool", req.Tool))
		result := registry.Call(ctx, req.Tool, req.Parameters)
		toolCalls = []models.ToolCallResult{result}

		// The follow-up call is strictly sequential: it cannot start until
		// the tool result is fully available.
		final = l.renderToolResult(ctx, messages, reply, result, locale, detected, log)
	} else {
		// No marker, or a malformed directive: the reply stands as the
		// answer. A bad TOOL_CALL payload is logged by the parser path but
		// never fails the turn.
		log.Debug("no tool call in reply")
	}

	conf := draft.Confidence
	assistantMsg := &models.Message{
		ConvID:          conv.ID,
		Role:            models.RoleAssistant,
		Content:         final,
		ToolCalls:       toolCalls,
		IntentDetected:  string(detected),
		SkillAgentUsed:  extractor.Name(),
		ConfidenceScore: &conf,
	}
	if err := l.store.SaveMessage(assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	log.Info("turn complete", zap.String("state", string(StateResponded)), zap.Int("tool_calls", len(toolCalls)))
	return &Response{
		Reply:           final,
		ConversationID:  conv.ID,
		ToolCalls:       toolCalls,
		IntentDetected:  string(detected),
		SkillAgentUsed:  extractor.Name(),
		ConfidenceScore: draft.Confidence,
	}, nil
}

// renderToolResult asks the model to phrase the tool outcome in the user's
// locale. When that second call fails the tool effect already happened, so
// the turn falls back to a canned confirmation rather than erroring.
func (l *Loop) renderToolResult(ctx context.Context, messages []llm.ChatMessage, reply string,
	result models.ToolCallResult, locale prompt.Locale, detected intent.Intent, log *zap.Logger) string {

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return defaultResponse(detected, result)
	}
	followup := append(append([]llm.ChatMessage{}, messages...),
		llm.ChatMessage{Role: "assistant", Content: reply},
		llm.ChatMessage{Role: "user", Content: fmt.Sprintf(
			"Tool execution finished. Result:\n%s\n\nSummarize this outcome for the user in %s. Do not emit another TOOL_CALL.",
			resultJSON, locale)},
	)
	rendered, err := l.gen.Generate(ctx, followup, 0.7, 1024)
	if err != nil {
		log.Warn("tool result rendering failed, using default response", zap.Error(err))
		return defaultResponse(detected, result)
	}
	return rendered
}

// clarify persists and returns a clarification turn. No tool runs.
func (l *Loop) clarify(conv *models.Conversation, message string, detected intent.Intent,
	agent string, confidence float64, log *zap.Logger) (*Response, error) {

	conf := confidence
	msg := &models.Message{
		ConvID:          conv.ID,
		Role:            models.RoleAssistant,
		Content:         message,
		IntentDetected:  string(detected),
		SkillAgentUsed:  agent,
		ConfidenceScore: &conf,
	}
	if err := l.store.SaveMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to persist clarification: %w", err)
	}
	log.Info("clarification requested",
		zap.String("state", string(StateClarifying)),
		zap.String("intent", string(detected)),
		zap.Float64("confidence", confidence))
	return &Response{
		Reply:               message,
		ConversationID:      conv.ID,
		IntentDetected:      string(detected),
		SkillAgentUsed:      agent,
		ConfidenceScore:     confidence,
		ClarificationNeeded: true,
	}, nil
}

func (l *Loop) resolveConversation(cmd Command) (*models.Conversation, error) {
	if cmd.ConversationID == "" {
		return l.store.CreateConversation(cmd.UserID)
	}
	conv, err := l.store.GetConversation(cmd.ConversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if conv.UserID != cmd.UserID {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// lockConversation serializes turns per conversation so two tool executions
// for the same conversation can never overlap. The entry is dropped when the
// last waiter releases it.
func (l *Loop) lockConversation(id string) func() {
	l.mu.Lock()
	lock, ok := l.convLocks[id]
	if !ok {
		lock = &convLock{}
		l.convLocks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.convLocks, id)
		}
		l.mu.Unlock()
	}
}
