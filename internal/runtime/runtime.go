package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/hemv/internal/guard"
	"github.com/felixgeelhaar/hemv/internal/hint"
	"github.com/felixgeelhaar/hemv/internal/observe"
	"github.com/felixgeelhaar/hemv/internal/provider"
	"github.com/felixgeelhaar/hemv/internal/store"
	"github.com/felixgeelhaar/hemv/internal/ui"
)

// Result summarizes a finished session.
type Result struct {
	SessionID string         `json:"session_id"`
	Answer    Answer         `json:"answer"`
	Answered  bool           `json:"answered"`
	Steps     int            `json:"steps"`
	Usage     provider.Usage `json:"usage"`
}

// Runtime lets a model answer questions by calling the history tools.
type Runtime struct {
	store    store.Storage
	guard    *guard.Guard
	observe  *observe.Observer
	provider provider.Provider
	state    *StateManager
	events   *EventBus
	ui       ui.UI
}

func New(s store.Storage, g *guard.Guard, o *observe.Observer, p provider.Provider) *Runtime {
	return &Runtime{
		store:    s,
		guard:    g,
		observe:  o,
		provider: p,
		state:    NewStateManager(s),
		events:   NewEventBus(),
		ui:       ui.SilentUI{},
	}
}

func (r *Runtime) SetUI(u ui.UI) {
	if u != nil {
		r.ui = u
	}
}

// Events returns the bus the runtime publishes its progress on.
func (r *Runtime) Events() *EventBus {
	return r.events
}

// Ask records a new session for question and runs it.
func (r *Runtime) Ask(ctx context.Context, api *API, question string, metadata map[string]string) (*Result, error) {
	now := time.Now()
	session := &store.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusInitialized,
		Question:  question,
		Metadata:  metadata,
	}
	if err := r.store.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return r.ExecuteSession(ctx, session.ID, api)
}

// ExecuteSession runs the tool loop for a stored session until the model
// answers, the guard stops it, or the provider fails.
func (r *Runtime) ExecuteSession(ctx context.Context, sessionID string, api *API) (*Result, error) {
	ctx, span := r.observe.StartSpan(ctx, "ExecuteSession", attribute.String("session_id", sessionID))
	defer span.End()

	session, err := r.store.GetSession(sessionID)
	if err != nil {
		r.observe.Log().Error().Str("sessionID", sessionID).Err(err).Msg("failed to load session")
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	tools := NewToolRegistry()
	if err := api.Register(tools); err != nil {
		return nil, err
	}
	var offered []provider.ToolDef
	for _, t := range tools.ProviderTools() {
		if r.guard.CheckTool(t.Name) == nil {
			offered = append(offered, t)
		}
	}
	api.clearAnswer()

	r.state.InitSession(sessionID)
	defer r.state.CleanupSession(sessionID)
	r.state.AppendHistory(sessionID,
		provider.Message{Role: "system", Content: SystemPrompt},
		provider.Message{Role: "user", Content: questionMessage(session.Question)},
	)
	r.state.SetStatus(sessionID, StatusRunning)

	r.observe.Log().Info().
		Str("sessionID", sessionID).
		Str("question", session.Question).
		Int("tools", len(offered)).
		Msg("starting session execution")
	r.ui.UpdateStatus("Thinking")

	result := &Result{SessionID: sessionID}
	for {
		step := r.state.IncrementStep(sessionID)
		result.Steps = step
		r.ui.UpdateStep(step)
		r.events.Publish(Event{Type: EventStepStart, SessionID: sessionID, Step: step})

		// 1. Guard Check (Pre-Flight)
		prompt, output := r.state.TokenUsage(sessionID)
		if v := r.guard.CheckBudget(step, prompt, output); v != nil {
			r.observe.Log().Warn().Int("step", step).Str("violation", v.Rule).Msg("guard violation, stopping")
			r.events.Publish(Event{Type: EventGuardViolation, SessionID: sessionID, Step: step, Text: v.Message})
			r.finish(sessionID, StatusHalted, "")
			return result, fmt.Errorf("guard violation: %w", v)
		}

		// 2. Ask the model
		r.events.Publish(Event{Type: EventProviderRequest, SessionID: sessionID, Step: step})
		resp, err := r.provider.Chat(ctx, r.state.GetHistory(sessionID), offered)
		if err != nil {
			r.observe.Log().Error().Int("step", step).Err(err).Msg("provider call failed")
			r.events.Publish(Event{Type: EventSessionError, SessionID: sessionID, Step: step, Text: err.Error()})
			r.finish(sessionID, StatusFailed, "")
			return result, fmt.Errorf("provider call failed: %w", err)
		}

		// 3. Update Usage
		r.state.AddTokenUsage(sessionID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		result.Usage.PromptTokens += resp.Usage.PromptTokens
		result.Usage.CompletionTokens += resp.Usage.CompletionTokens
		result.Usage.TotalTokens += resp.Usage.TotalTokens
		r.events.Publish(Event{
			Type:      EventProviderResponse,
			SessionID: sessionID,
			Step:      step,
			Text:      resp.Content,
			Tokens:    resp.Usage.TotalTokens,
		})
		if resp.Content != "" {
			r.ui.Log(resp.Content)
		}

		r.state.AppendHistory(sessionID, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			r.state.AppendHistory(sessionID, provider.Message{Role: "user", Content: NoToolCallMessage})
			continue
		}

		// 4. Process Tools
		for _, call := range resp.ToolCalls {
			out, err := r.runTool(ctx, sessionID, step, tools, call)
			if err != nil {
				r.finish(sessionID, StatusFailed, "")
				return result, err
			}
			r.state.AppendHistory(sessionID, provider.Message{
				Role:       "tool",
				Content:    out,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
		r.events.Publish(Event{Type: EventStepEnd, SessionID: sessionID, Step: step})

		// 5. Completion Check
		if ans, ok := api.Answered(); ok {
			result.Answer, result.Answered = ans, true
			r.events.Publish(Event{Type: EventAnswer, SessionID: sessionID, Step: step, Text: ans.Text})
			r.finish(sessionID, StatusAnswered, ans.Text)
			r.events.Publish(Event{Type: EventSessionComplete, SessionID: sessionID, Step: step})
			r.observe.Log().Info().Str("sessionID", sessionID).Int("steps", step).Msg("session answered")
			return result, nil
		}

		if err := r.state.PersistSession(sessionID, ""); err != nil {
			return result, err
		}
	}
}

// runTool executes one call and returns what the model gets to read.
// Failures the model can react to become the output; only cancellation
// ends the session.
func (r *Runtime) runTool(ctx context.Context, sessionID string, step int, tools *ToolRegistry, call provider.ToolCall) (string, error) {
	ctx, span := r.observe.StartSpan(ctx, "tool", attribute.String("tool", call.Name))
	defer span.End()

	r.ui.Log(fmt.Sprintf("%s %s", call.Name, call.Args))
	r.events.Publish(Event{Type: EventToolCallStart, SessionID: sessionID, Step: step, Tool: call.Name, Text: call.Args})

	var out string
	if v := r.guard.CheckTool(call.Name); v != nil {
		out = v.Message
	} else if call.Name == ToolSearch {
		if v := r.guard.CheckSearches(r.state.IncrementSearches(sessionID)); v != nil {
			out = v.Message
		}
	}

	if out == "" {
		res, err := tools.Execute(ctx, sessionID, call)
		switch {
		case err == nil:
			out = res
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			if h, ok := hint.As(err); ok {
				out = h.Message
				r.events.Publish(Event{Type: EventHint, SessionID: sessionID, Step: step, Tool: call.Name, Text: h.Message})
			} else {
				out = "Error: " + err.Error()
				r.observe.Log().Warn().Str("tool", call.Name).Err(err).Msg("tool call failed")
			}
			span.RecordError(err)
		}
	}

	turn := &store.Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Step:      step,
		Tool:      call.Name,
		Args:      call.Args,
		Output:    out,
		CreatedAt: time.Now(),
	}
	if err := r.store.AppendTurn(turn); err != nil {
		r.observe.Log().Warn().Err(err).Msg("failed to record turn")
	}

	r.events.Publish(Event{Type: EventToolCallEnd, SessionID: sessionID, Step: step, Tool: call.Name, Text: out})
	return out, nil
}

func (r *Runtime) finish(sessionID, status, answer string) {
	r.state.SetStatus(sessionID, status)
	r.ui.UpdateStatus(status)
	if err := r.state.PersistSession(sessionID, answer); err != nil {
		r.observe.Log().Warn().Str("sessionID", sessionID).Err(err).Msg("failed to persist session")
	}
}
