package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/harun/jiya/internal/observability"
	"github.com/harun/jiya/internal/tracing"
	"github.com/harun/jiya/pkg/conversation"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Parameter describes one argument of a tool.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Handler executes a tool. ok=false marks an in-band domain miss (record
// not found, name mismatch) returned to the model as data; err marks an
// infrastructure fault that aborts the round.
type Handler func(ctx context.Context, args map[string]interface{}) (payload interface{}, ok bool, err error)

// Definition declares a tool's name, argument schema and handler.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// Spec is the provider-facing description of one tool, shaped the way the
// chat-completion APIs expect function declarations.
type Spec struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Result is the outcome of one executed (or gated) tool invocation.
// Payload is always present and is what gets appended to the conversation;
// OK is true only for successful domain payloads.
type Result struct {
	Payload json.RawMessage
	OK      bool
}

// Fault marks a tool invocation that could not be executed at all: an
// unknown tool name, arguments failing schema validation, or an unexpected
// error inside the handler. Infra is set for store-level failures, which
// additionally poison the conversation (absorbing errored phase).
type Fault struct {
	Tool   string
	Reason string
	Infra  bool
	Err    error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("tool %s: %s: %v", f.Tool, f.Reason, f.Err)
	}
	return fmt.Sprintf("tool %s: %s", f.Tool, f.Reason)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// execTimeout bounds a single handler invocation.
const execTimeout = 10 * time.Second

// Registry holds the closed set of tools the model may invoke. The set is
// fixed at startup; the model supplies names and arguments, but legality
// (phase gate) and argument validity are enforced here, never trusted.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	observability.EnsureRegistered()

	return &Registry{
		defs:    make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logger.With().Str("component", "tools").Logger(),
	}
}

// Register adds a tool definition and compiles its argument schema.
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	r.defs[def.Name] = &def
	r.schemas[def.Name] = schema

	r.logger.Info().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}

// Specs returns provider-facing specs for the named tools, skipping names
// the registry does not know. Callers pass the phase's legal tool set so
// the model is only ever offered what it may actually call.
func (r *Registry) Specs(names []string) []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(names))
	for _, name := range names {
		def, exists := r.defs[name]
		if !exists {
			continue
		}
		specs = append(specs, Spec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: inputSchema(def),
		})
	}
	return specs
}

// Execute runs one tool invocation under the phase gate. Calls that are
// illegal in the current phase are not executed: a corrective payload is
// returned as the tool result so the model can react conversationally.
// Unknown names, invalid arguments and handler errors return a *Fault.
func (r *Registry) Execute(ctx context.Context, phase conversation.Phase, call conversation.ToolCall) (Result, error) {
	start := time.Now()
	logger := tracing.LoggerFromContext(ctx, r.logger).With().Str("tool", call.Name).Logger()

	r.mu.RLock()
	def := r.defs[call.Name]
	schema := r.schemas[call.Name]
	r.mu.RUnlock()

	if def == nil {
		logger.Error().Msg("Unknown tool requested")
		observability.RecordToolExecution(call.Name, time.Since(start), false)
		return Result{}, &Fault{Tool: call.Name, Reason: "unknown tool"}
	}

	if !phase.Allows(call.Name) {
		logger.Warn().Str("phase", phase.String()).Msg("Tool call rejected by phase gate")
		observability.RecordToolRejection(call.Name)
		observability.RecordToolAudit(ctx, call.Name, tracing.GetSessionID(ctx), "rejected", map[string]interface{}{
			"phase": phase.String(),
		})
		return Result{Payload: rejectionPayload(call.Name, phase)}, nil
	}

	args := call.Parameters
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validateArgs(schema, args); err != nil {
		logger.Error().Err(err).Msg("Tool argument validation failed")
		observability.RecordToolExecution(call.Name, time.Since(start), false)
		return Result{}, &Fault{Tool: call.Name, Reason: "invalid arguments", Err: err}
	}

	execCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	execCtx, span := tracing.StartSpan(
		execCtx,
		"jiya.tools",
		"tool.execute",
		attribute.String("tool", call.Name),
		attribute.String("phase", phase.String()),
	)
	defer span.End()

	payload, ok, err := def.Handler(execCtx, args)
	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("Tool execution failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordToolExecution(call.Name, duration, false)
		observability.RecordToolAudit(ctx, call.Name, tracing.GetSessionID(ctx), "failure", map[string]interface{}{
			"error": err.Error(),
		})
		return Result{}, &Fault{Tool: call.Name, Reason: "execution failed", Infra: true, Err: err}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		observability.RecordToolExecution(call.Name, duration, false)
		return Result{}, &Fault{Tool: call.Name, Reason: "unencodable payload", Infra: true, Err: err}
	}

	observability.RecordToolExecution(call.Name, duration, ok)
	status := "success"
	if !ok {
		status = "miss"
	}
	observability.RecordToolAudit(ctx, call.Name, tracing.GetSessionID(ctx), status, nil)

	logger.Debug().
		Bool("ok", ok).
		Dur("duration", duration).
		Msg("Tool executed")

	return Result{Payload: raw, OK: ok}, nil
}

// rejectionPayload builds the corrective in-band payload for a call the
// phase gate refused, phrased so the model can recover conversationally.
func rejectionPayload(tool string, phase conversation.Phase) json.RawMessage {
	var hint string
	switch {
	case phase == conversation.PhaseClosed:
		hint = "The call is already complete; confirm the commitment and close politely."
	case phase == conversation.PhaseErrored:
		hint = "The call cannot continue; apologise and end the call."
	case tool == "get_loan_details":
		hint = "Confirm you are speaking with the right customer before discussing the loan."
	case tool == "record_commitment":
		hint = "Share the outstanding amount and due date, then ask for a payment date first."
	default:
		hint = "Continue the conversation without this tool."
	}

	raw, _ := json.Marshal(map[string]string{
		"error": fmt.Sprintf("%s is not permitted at this stage of the call.", tool),
		"hint":  hint,
	})
	return raw
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
	}
	return nil
}

// inputSchema renders a definition's parameters as a JSON-schema object.
func inputSchema(def *Definition) map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		properties[param.Name] = map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(inputSchema(&def)))
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}
		return fmt.Errorf("validation errors: %v", issues)
	}
	return nil
}
