package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"arxiv-scholar/internal/domain"
	"arxiv-scholar/internal/infra/tracer"
)

// stepChannelBuffer sizes the step channel so slow consumers do not stall
// tool dispatch for short bursts.
const stepChannelBuffer = 32

// AgentDeps holds injected dependencies for the agent.
type AgentDeps struct {
	LLM             domain.LLMProvider
	Tools           domain.ToolExecutor
	ContextBuilder  *ContextBuilder
	Logger          *slog.Logger
	MaxIterations   int
	Bus             domain.EventBus  // optional, nil = no events
	ErrorClassifier *ErrorClassifier // optional, nil = raw errors on the error step
	ContextGuard    *ContextGuard    // optional, nil = no context window guard
}

// Agent orchestrates the reason-act loop and streams progress as steps.
type Agent struct {
	deps AgentDeps
}

// NewAgent creates an agent with the given dependencies.
func NewAgent(deps AgentDeps) *Agent {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = 10
	}
	if deps.ErrorClassifier == nil {
		deps.ErrorClassifier = NewErrorClassifier()
	}
	return &Agent{deps: deps}
}

// Run processes a user query through the agent loop, streaming each
// transition on the returned channel. The channel is closed after the
// terminal done step. Cancelling ctx stops emission; in-flight tool calls
// are abandoned best-effort.
func (a *Agent) Run(ctx context.Context, session *Session, query string) <-chan domain.Step {
	steps := make(chan domain.Step, stepChannelBuffer)
	go func() {
		defer close(steps)
		a.run(ctx, session, query, steps)
	}()
	return steps
}

// emit sends a step unless the consumer has gone away.
func emit(ctx context.Context, steps chan<- domain.Step, s domain.Step) bool {
	select {
	case steps <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Agent) run(ctx context.Context, session *Session, query string, steps chan<- domain.Step) {
	ctx, span := tracer.StartSpan(ctx, "agent.run")
	defer span.End()

	ctx = domain.ContextWithSessionID(ctx, session.ID)
	a.publishEvent(ctx, domain.EventRunStarted, session.ID, nil)

	session.AddMessage(domain.Message{
		Role:      domain.RoleUser,
		Content:   query,
		Timestamp: time.Now(),
	})

	if a.deps.ContextGuard != nil {
		if err := a.deps.ContextGuard.Check(session); err != nil {
			a.finishWithError(ctx, session.ID, span, steps, err)
			return
		}
	}

	offerTools := true
	for i := 0; i < a.deps.MaxIterations; i++ {
		if ctx.Err() != nil {
			return
		}
		span.AddEvent("agent.iteration", trace.WithAttributes(tracer.IntAttr("iteration", i)))

		var schemas []domain.ToolSchema
		if offerTools {
			schemas = a.deps.Tools.Schemas()
		}
		chatReq := a.deps.ContextBuilder.Build(session.Messages(), schemas)

		a.publishEvent(ctx, domain.EventLLMCallStarted, session.ID, nil)
		llmCtx, llmSpan := tracer.StartSpan(ctx, "agent.llm_call")
		resp, err := a.deps.LLM.Chat(llmCtx, chatReq)
		llmSpan.End()

		if err != nil {
			// A reasoning-level failure ends the run. Rate limits here are
			// deliberately not retried: the loop would resend the entire
			// conversation and make the pressure worse.
			a.finishWithError(ctx, session.ID, span, steps, err)
			return
		}
		a.publishEvent(ctx, domain.EventLLMCallCompleted, session.ID, nil)

		msg := resp.Message
		session.AddMessage(msg)

		a.deps.Logger.Debug("llm response",
			"iteration", i,
			"tool_calls", len(msg.ToolCalls),
			"tokens", resp.Usage.TotalTokens,
		)

		// No tool calls = final answer.
		if len(msg.ToolCalls) == 0 {
			if !emit(ctx, steps, domain.Step{Type: domain.StepAnswer, Content: msg.Content}) {
				return
			}
			emit(ctx, steps, domain.Step{Type: domain.StepDone})
			a.publishEvent(ctx, domain.EventRunCompleted, session.ID, nil)
			tracer.SetOK(span)
			return
		}

		// Reasoning text alongside tool calls surfaces as a thinking step.
		if msg.Content != "" {
			if !emit(ctx, steps, domain.Step{Type: domain.StepThinking, Content: msg.Content}) {
				return
			}
		}

		for _, call := range msg.ToolCalls {
			if !emit(ctx, steps, domain.Step{
				Type:    domain.StepToolCall,
				Tool:    call.Name,
				Content: string(call.Arguments),
			}) {
				return
			}
		}

		// Execute tool calls in parallel. Results are collected in an
		// indexed array to preserve original call order, and the loop waits
		// for all of them before the next LLM call.
		toolMsgs := make([]domain.Message, len(msg.ToolCalls))
		stops := make([]bool, len(msg.ToolCalls))
		var wg sync.WaitGroup
		for idx, call := range msg.ToolCalls {
			wg.Add(1)
			go func(idx int, c domain.ToolCall) {
				defer wg.Done()
				toolMsgs[idx], stops[idx] = a.executeTool(ctx, session.ID, c)
			}(idx, call)
		}
		wg.Wait()

		for _, stop := range stops {
			if stop {
				// A tool asked the run to wrap up. The next call carries no
				// tool schemas, so the model must answer in text.
				offerTools = false
				a.deps.Logger.Info("tool phase ended by tool request", "session", session.ID)
				break
			}
		}

		for _, toolMsg := range toolMsgs {
			session.AddMessage(toolMsg)
			if !emit(ctx, steps, domain.Step{
				Type:    domain.StepToolResult,
				Tool:    toolMsg.Name,
				Content: domain.TruncateForDisplay(toolMsg.Content),
			}) {
				return
			}
		}

		if a.deps.ContextGuard != nil {
			if err := a.deps.ContextGuard.Check(session); err != nil {
				a.finishWithError(ctx, session.ID, span, steps, err)
				return
			}
		}
	}

	a.finishWithError(ctx, session.ID, span, steps, domain.ErrMaxIterations)
}

// finishWithError emits the terminal error and done steps.
func (a *Agent) finishWithError(ctx context.Context, sessionID string, span trace.Span, steps chan<- domain.Step, err error) {
	tracer.RecordError(span, err)
	a.publishEvent(ctx, domain.EventRunErrored, sessionID, map[string]string{"error": err.Error()})
	if !emit(ctx, steps, domain.Step{Type: domain.StepError, Content: err.Error()}) {
		return
	}
	emit(ctx, steps, domain.Step{Type: domain.StepDone})
}

// executeTool runs a single tool call and returns the result as a Message,
// plus whether the result asked the orchestrator to stop offering tools.
// An unknown tool name becomes an error result fed back to the model; the
// run itself continues.
func (a *Agent) executeTool(ctx context.Context, sessionID string, call domain.ToolCall) (domain.Message, bool) {
	ctx, span := tracer.StartSpan(ctx, "agent.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	toolResultMsg := func(content string) domain.Message {
		return domain.Message{
			Role:    domain.RoleTool,
			Name:    call.Name,
			Content: content,
			ToolCalls: []domain.ToolCall{{
				ID:   call.ID,
				Name: call.Name,
			}},
			Timestamp: time.Now(),
		}
	}

	tool, err := a.deps.Tools.Get(call.Name)
	if err != nil {
		tracer.RecordError(span, err)
		return toolResultMsg(err.Error()), false
	}

	a.publishEvent(ctx, domain.EventToolCallStarted, sessionID, map[string]string{"tool": call.Name})
	result, err := tool.Execute(ctx, call.Arguments)
	a.publishEvent(ctx, domain.EventToolCallCompleted, sessionID, map[string]string{
		"tool":    call.Name,
		"success": boolString(err == nil && (result == nil || !result.IsError)),
	})

	if err != nil {
		tracer.RecordError(span, err)
		return toolResultMsg(err.Error()), false
	}

	tracer.SetOK(span)
	return toolResultMsg(result.Content), result.StopToolUse
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// publishEvent publishes a domain event on the bus if it is configured.
func (a *Agent) publishEvent(ctx context.Context, eventType domain.EventType, sessionID string, payload any) {
	if a.deps.Bus == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	a.deps.Bus.Publish(ctx, domain.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Payload:   raw,
	})
}
