package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/jiya/internal/config"
	"github.com/harun/jiya/internal/observability"
	"github.com/harun/jiya/internal/tracing"
	"github.com/harun/jiya/pkg/conversation"
	"github.com/harun/jiya/pkg/tools"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FallbackReply is what the caller hears when no model reply could be
// produced: a failed call after retry, the round cap, or an empty
// transcript.
const FallbackReply = "I'm sorry, I couldn't generate a response."

// faultReply closes out a round the tool layer could not complete.
const faultReply = "I'm sorry, something went wrong on our end. We'll call you back shortly."

// Run outcomes as recorded in metrics.
const (
	OutcomeCompleted     = "completed"
	OutcomeModelFallback = "model_fallback"
	OutcomeRoundCap      = "round_cap"
	OutcomeToolFault     = "tool_fault"
	OutcomeErrored       = "errored"
)

// Runner drives one conversation forward: it feeds the transcript to the
// model, executes requested tools round by round and appends the resulting
// turns until the model produces a plain reply.
type Runner struct {
	provider LLMProvider
	tools    *tools.Registry
	cfg      config.AgentConfig
	logger   zerolog.Logger
}

// Config holds runner dependencies.
type Config struct {
	Provider LLMProvider
	Tools    *tools.Registry
	Agent    config.AgentConfig
	Logger   zerolog.Logger
}

// RunResult summarizes one completed run.
type RunResult struct {
	Rounds  int
	Outcome string
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Agent.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if cfg.Agent.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}

	agentCfg := cfg.Agent
	if agentCfg.MaxRounds <= 0 {
		agentCfg.MaxRounds = 8
	}
	if agentCfg.ModelTimeoutSeconds <= 0 {
		agentCfg.ModelTimeoutSeconds = 30
	}

	return &Runner{
		provider: cfg.Provider,
		tools:    cfg.Tools,
		cfg:      agentCfg,
		logger:   cfg.Logger.With().Str("component", "agent").Logger(),
	}, nil
}

// Run advances conv until the model produces a plain reply or a bound is
// hit. The conversation always gains a final agent turn: the model's reply
// on the happy path, a canned fallback on the error and cap paths. Tool
// rounds are committed all-or-nothing; a failed round never leaves partial
// turns behind.
func (r *Runner) Run(ctx context.Context, conv *conversation.Conversation) (RunResult, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(
		ctx,
		"jiya.agent",
		"agent.run",
		attribute.String("session_id", conv.SessionID),
		attribute.String("phase", conv.Phase.String()),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, r.logger)

	// An errored call never recovers: skip the model entirely.
	if conv.Phase == conversation.PhaseErrored {
		conv.AppendAgentReply(faultReply)
		observability.RecordCallRun(OutcomeErrored, time.Since(start), 0)
		return RunResult{Outcome: OutcomeErrored}, nil
	}

	for round := 1; round <= r.cfg.MaxRounds; round++ {
		select {
		case <-ctx.Done():
			return RunResult{}, ctx.Err()
		default:
		}

		response, err := r.callModelWithRetry(ctx, conv)
		if err != nil {
			logger.Error().Err(err).Int("round", round).Msg("Model call failed after retry")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			conv.AppendAgentReply(FallbackReply)
			observability.RecordCallRun(OutcomeModelFallback, time.Since(start), round)
			return RunResult{Rounds: round, Outcome: OutcomeModelFallback}, nil
		}

		// Plain reply ends the run.
		if len(response.ToolCalls) == 0 {
			conv.AppendAgentReply(response.Content)
			observability.RecordCallRun(OutcomeCompleted, time.Since(start), round)
			return RunResult{Rounds: round, Outcome: OutcomeCompleted}, nil
		}

		// Tool round, executed on a working copy so a fault cannot leave
		// the conversation with a tool-call turn missing its results.
		assignCallIDs(response.ToolCalls)
		working := conv.Clone()
		working.AppendToolCalls(response.Content, response.ToolCalls)

		var fault *tools.Fault
		for _, call := range response.ToolCalls {
			result, execErr := r.tools.Execute(ctx, working.Phase, call)
			if execErr != nil {
				if !errors.As(execErr, &fault) {
					fault = &tools.Fault{Tool: call.Name, Reason: "execution failed", Infra: true, Err: execErr}
				}
				break
			}
			working.AppendToolResult(call, result.Payload, result.OK)
		}

		if fault != nil {
			logger.Error().Err(fault).
				Int("round", round).
				Bool("infra", fault.Infra).
				Msg("Tool round aborted")
			span.RecordError(fault)
			span.SetStatus(codes.Error, fault.Error())
			if fault.Infra {
				conv.MarkErrored()
				conv.AppendAgentReply(faultReply)
			} else {
				conv.AppendAgentReply(FallbackReply)
			}
			observability.RecordCallRun(OutcomeToolFault, time.Since(start), round)
			return RunResult{Rounds: round, Outcome: OutcomeToolFault}, nil
		}

		*conv = *working

		logger.Debug().
			Int("round", round).
			Int("tool_calls", len(response.ToolCalls)).
			Str("phase", conv.Phase.String()).
			Msg("Tool round committed")
	}

	logger.Warn().Int("rounds", r.cfg.MaxRounds).Msg("Round cap reached")
	conv.AppendAgentReply(FallbackReply)
	observability.RecordCallRun(OutcomeRoundCap, time.Since(start), r.cfg.MaxRounds)
	return RunResult{Rounds: r.cfg.MaxRounds, Outcome: OutcomeRoundCap}, nil
}

// callModelWithRetry makes one model call with a single retry on transient
// failures. Each attempt gets its own timeout.
func (r *Runner) callModelWithRetry(ctx context.Context, conv *conversation.Conversation) (*LLMResponse, error) {
	request := LLMRequest{
		Model:        r.cfg.Model,
		Messages:     buildMessages(conv),
		Tools:        r.tools.Specs(conv.Phase.AllowedTools()),
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
		SystemPrompt: SystemPrompt(r.cfg),
	}
	logger := tracing.LoggerFromContext(ctx, r.logger)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		response, err := r.callOnce(ctx, request)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryableError(err) {
			return nil, err
		}
		if attempt == 0 {
			logger.Warn().Err(err).Msg("Model call failed, retrying once")
		}
	}

	return nil, fmt.Errorf("model call failed after retry: %w", lastErr)
}

// callOnce makes a single bounded model call.
func (r *Runner) callOnce(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.ModelTimeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	response, err := r.provider.Call(callCtx, request)
	observability.RecordModelCall(r.provider.Provider(), time.Since(start), err == nil)
	return response, err
}

// buildMessages converts the stored transcript to provider wire roles.
func buildMessages(conv *conversation.Conversation) []Message {
	messages := make([]Message, 0, len(conv.Turns))
	for _, turn := range conv.Turns {
		switch turn.Role {
		case conversation.RoleHuman:
			messages = append(messages, Message{Role: "user", Content: turn.Content})
		case conversation.RoleAgent:
			messages = append(messages, Message{
				Role:      "assistant",
				Content:   turn.Content,
				ToolCalls: turn.ToolCalls,
			})
		case conversation.RoleToolResult:
			messages = append(messages, Message{
				Role:       "tool",
				Content:    string(turn.Payload),
				ToolCallID: turn.ToolCallID,
			})
		}
	}
	return messages
}

// assignCallIDs fills in ids for providers that omit them, so tool results
// can be tied back to their calls.
func assignCallIDs(calls []conversation.ToolCall) {
	for i := range calls {
		if calls[i].ID == "" {
			id, err := gonanoid.New()
			if err != nil {
				id = fmt.Sprintf("call-%d", time.Now().UnixNano())
			}
			calls[i].ID = id
		}
	}
}
