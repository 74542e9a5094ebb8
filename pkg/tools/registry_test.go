package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/harun/jiya/pkg/conversation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoDefinition(name string) Definition {
	return Definition{
		Name:        name,
		Description: "Echoes its input back.",
		Parameters: []Parameter{
			{Name: "input", Type: "string", Description: "Value to echo.", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, bool, error) {
			return map[string]interface{}{"echo": args["input"]}, true, nil
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	err := reg.Register(echoDefinition("get_customer_details"))
	assert.NoError(t, err)
	assert.Contains(t, reg.Names(), "get_customer_details")
}

func TestRegistry_Register_InvalidDefinition(t *testing.T) {
	handler := func(ctx context.Context, args map[string]interface{}) (interface{}, bool, error) {
		return nil, true, nil
	}

	tests := []struct {
		name string
		def  Definition
	}{
		{
			name: "empty name",
			def:  Definition{Description: "Test", Handler: handler},
		},
		{
			name: "empty description",
			def:  Definition{Name: "test", Handler: handler},
		},
		{
			name: "nil handler",
			def:  Definition{Name: "test", Description: "Test"},
		},
		{
			name: "invalid parameter type",
			def: Definition{
				Name:        "test",
				Description: "Test",
				Parameters:  []Parameter{{Name: "p", Type: "decimal", Description: "Bad type."}},
				Handler:     handler,
			},
		},
		{
			name: "parameter missing description",
			def: Definition{
				Name:        "test",
				Description: "Test",
				Parameters:  []Parameter{{Name: "p", Type: "string"}},
				Handler:     handler,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(zerolog.Nop())
			err := reg.Register(tt.def)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	require.NoError(t, reg.Register(echoDefinition("get_customer_details")))
	err := reg.Register(echoDefinition("get_customer_details"))
	assert.ErrorContains(t, err, "already registered")
}

func TestRegistry_Specs(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	require.NoError(t, reg.Register(echoDefinition("get_customer_details")))
	require.NoError(t, reg.Register(echoDefinition("get_loan_details")))

	specs := reg.Specs(conversation.PhaseAwaitingIdentity.AllowedTools())
	require.Len(t, specs, 1)
	assert.Equal(t, "get_customer_details", specs[0].Name)
	assert.Equal(t, "object", specs[0].InputSchema["type"])
	assert.Contains(t, specs[0].InputSchema["required"], "input")

	// Unknown names are skipped rather than invented.
	specs = reg.Specs([]string{"get_customer_details", "no_such_tool"})
	assert.Len(t, specs, 1)

	// Terminal phases offer nothing.
	assert.Empty(t, reg.Specs(conversation.PhaseClosed.AllowedTools()))
	assert.Empty(t, reg.Specs(conversation.PhaseErrored.AllowedTools()))
}

func TestRegistry_Execute(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	require.NoError(t, reg.Register(echoDefinition("get_customer_details")))

	res, err := reg.Execute(context.Background(), conversation.PhaseAwaitingIdentity, conversation.ToolCall{
		ID:         "call-1",
		Name:       "get_customer_details",
		Parameters: map[string]interface{}{"input": "C1001"},
	})
	require.NoError(t, err)
	assert.True(t, res.OK)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Payload, &payload))
	assert.Equal(t, "C1001", payload["echo"])
}

func TestRegistry_Execute_UnknownTool(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	_, err := reg.Execute(context.Background(), conversation.PhaseAwaitingIdentity, conversation.ToolCall{
		ID:   "call-1",
		Name: "drop_tables",
	})

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "drop_tables", fault.Tool)
	assert.False(t, fault.Infra)
}

func TestRegistry_Execute_InvalidArguments(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	require.NoError(t, reg.Register(echoDefinition("get_customer_details")))

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{name: "missing required", args: map[string]interface{}{}},
		{name: "wrong type", args: map[string]interface{}{"input": 42}},
		{name: "unknown property", args: map[string]interface{}{"input": "x", "extra": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Execute(context.Background(), conversation.PhaseAwaitingIdentity, conversation.ToolCall{
				ID:         "call-1",
				Name:       "get_customer_details",
				Parameters: tt.args,
			})

			var fault *Fault
			require.ErrorAs(t, err, &fault)
			assert.False(t, fault.Infra)
			assert.ErrorContains(t, fault, "invalid arguments")
		})
	}
}

func TestRegistry_Execute_PhaseGate(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	invoked := false
	def := echoDefinition("record_commitment")
	def.Handler = func(ctx context.Context, args map[string]interface{}) (interface{}, bool, error) {
		invoked = true
		return "noted", true, nil
	}
	require.NoError(t, reg.Register(def))

	res, err := reg.Execute(context.Background(), conversation.PhaseAwaitingIdentity, conversation.ToolCall{
		ID:         "call-1",
		Name:       "record_commitment",
		Parameters: map[string]interface{}{"input": "May 10th"},
	})

	require.NoError(t, err)
	assert.False(t, invoked, "gated calls must never reach the handler")
	assert.False(t, res.OK)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Payload, &payload))
	assert.Contains(t, payload["error"], "not permitted")
	assert.NotEmpty(t, payload["hint"])
}

func TestRegistry_Execute_HandlerError(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	def := echoDefinition("get_customer_details")
	def.Handler = func(ctx context.Context, args map[string]interface{}) (interface{}, bool, error) {
		return nil, false, errors.New("store unreachable")
	}
	require.NoError(t, reg.Register(def))

	_, err := reg.Execute(context.Background(), conversation.PhaseAwaitingIdentity, conversation.ToolCall{
		ID:         "call-1",
		Name:       "get_customer_details",
		Parameters: map[string]interface{}{"input": "C1001"},
	})

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.True(t, fault.Infra)
	assert.ErrorContains(t, fault, "store unreachable")
}

func TestRegistry_Execute_DomainMiss(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	def := echoDefinition("get_customer_details")
	def.Handler = func(ctx context.Context, args map[string]interface{}) (interface{}, bool, error) {
		return map[string]string{"error": "Customer ID not found"}, false, nil
	}
	require.NoError(t, reg.Register(def))

	res, err := reg.Execute(context.Background(), conversation.PhaseAwaitingIdentity, conversation.ToolCall{
		ID:         "call-1",
		Name:       "get_customer_details",
		Parameters: map[string]interface{}{"input": "C9999"},
	})

	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.JSONEq(t, `{"error": "Customer ID not found"}`, string(res.Payload))
}
