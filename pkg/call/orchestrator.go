package call

import (
	"context"
	"fmt"

	"github.com/harun/jiya/internal/config"
	"github.com/harun/jiya/internal/observability"
	"github.com/harun/jiya/internal/tracing"
	"github.com/harun/jiya/pkg/agent"
	"github.com/harun/jiya/pkg/conversation"
	"github.com/harun/jiya/pkg/session"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Request is one caller turn: start a new call or continue an existing one.
type Request struct {
	SessionID  string `json:"session_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Message    string `json:"message,omitempty"`
	NewCall    bool   `json:"new_call,omitempty"`
}

// Response carries the agent's reply for one turn.
type Response struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// InvalidRequestError marks malformed caller input. The gateway surfaces
// the detail to the caller verbatim.
type InvalidRequestError struct {
	Detail string
}

func (e *InvalidRequestError) Error() string {
	return e.Detail
}

// Loop advances a conversation by one agent run.
type Loop interface {
	Run(ctx context.Context, conv *conversation.Conversation) (agent.RunResult, error)
}

// TurnSink observes turns once they are persisted, e.g. a transcript
// stream. Phase is the conversation phase after the handled request.
// Implementations must not block.
type TurnSink interface {
	TurnAppended(sessionID string, phase conversation.Phase, turn conversation.Turn)
}

// Orchestrator ties one caller request to a locked session: load, seed or
// append, run the agent loop, persist, publish.
type Orchestrator struct {
	store    session.Store
	locker   *session.Locker
	loop     Loop
	sink     TurnSink
	agentCfg config.AgentConfig
	logger   zerolog.Logger
}

// Config holds orchestrator dependencies. Sink is optional.
type Config struct {
	Store  session.Store
	Locker *session.Locker
	Loop   Loop
	Sink   TurnSink
	Agent  config.AgentConfig
	Logger zerolog.Logger
}

// NewOrchestrator creates a call orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Loop == nil {
		return nil, fmt.Errorf("agent loop is required")
	}

	locker := cfg.Locker
	if locker == nil {
		locker = session.NewLocker()
	}

	return &Orchestrator{
		store:    cfg.Store,
		locker:   locker,
		loop:     cfg.Loop,
		sink:     cfg.Sink,
		agentCfg: cfg.Agent,
		logger:   cfg.Logger.With().Str("component", "call").Logger(),
	}, nil
}

// SeedInstruction is the internal instruction that opens a call. It feeds
// the model and is never surfaced to the customer.
func SeedInstruction(customerID string, cfg config.AgentConfig) string {
	persona := cfg.PersonaName
	if persona == "" {
		persona = "Jiya"
	}
	company := cfg.CompanyName
	if company == "" {
		company = "ABC Finance"
	}
	return fmt.Sprintf(
		"Start an outbound collection call for customer id %s. "+
			"First, look up their details using tools if needed, then say: "+
			"'Hello, this is %s calling from %s. Am I speaking with <customer_name>?'",
		customerID, persona, company,
	)
}

// Handle processes one caller turn under the session lock. A request with
// new_call set, or one landing on an empty session, starts a fresh call and
// requires a customer id; otherwise the message is appended as the
// customer's turn. Whatever the agent loop produced is persisted before the
// reply is extracted.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.GenerateSessionID()
	}

	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx = tracing.WithSessionID(ctx, sessionID)
	if req.CustomerID != "" {
		ctx = tracing.WithCustomerID(ctx, req.CustomerID)
	}
	ctx, span := tracing.StartSpan(
		ctx,
		"jiya.call",
		"call.handle",
		attribute.String("session_id", sessionID),
		attribute.Bool("new_call", req.NewCall),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, o.logger)

	unlock := o.locker.Lock(sessionID)
	defer unlock()

	conv, err := o.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, fmt.Errorf("load session: %w", err)
	}

	base := len(conv.Turns)
	switch {
	case req.NewCall || conv.Empty():
		if req.CustomerID == "" {
			observability.RecordCallAudit(ctx, "start", sessionID, "rejected", nil)
			return Response{}, &InvalidRequestError{Detail: "customer_id is required to start a new call."}
		}
		conv = conversation.New(sessionID)
		conv.CustomerID = req.CustomerID
		conv.AppendSeed(SeedInstruction(req.CustomerID, o.agentCfg))
		base = 0
		logger.Info().Str("customer_id", req.CustomerID).Msg("Starting collection call")
	case req.Message != "":
		conv.AppendHuman(req.Message)
	default:
		return Response{}, &InvalidRequestError{Detail: "Either new_call must be true or a message must be provided."}
	}

	result, err := o.loop.Run(ctx, conv)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, fmt.Errorf("agent run: %w", err)
	}

	if err := o.store.Save(ctx, conv); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, fmt.Errorf("save session: %w", err)
	}

	o.publish(sessionID, conv.Phase, conv.Turns[base:])

	reply, found := conv.LastAgentReply()
	if !found {
		reply = agent.FallbackReply
	}

	logger.Info().
		Str("phase", conv.Phase.String()).
		Str("outcome", result.Outcome).
		Int("rounds", result.Rounds).
		Msg("Call turn handled")
	observability.RecordCallAudit(ctx, "turn", sessionID, result.Outcome, map[string]interface{}{
		"phase":  conv.Phase.String(),
		"rounds": result.Rounds,
	})

	return Response{SessionID: sessionID, Reply: reply}, nil
}

// publish forwards persisted turns to the sink, skipping internal seeds.
func (o *Orchestrator) publish(sessionID string, phase conversation.Phase, turns []conversation.Turn) {
	if o.sink == nil {
		return
	}
	for _, turn := range turns {
		if turn.Seed {
			continue
		}
		o.sink.TurnAppended(sessionID, phase, turn)
	}
}
