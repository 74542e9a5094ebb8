package agent

import (
	"encoding/json"
	"testing"

	"github.com/harun/jiya/internal/config"
	"github.com/harun/jiya/pkg/conversation"
	"github.com/harun/jiya/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleRequest exercises every message role plus a tool declaration, so the
// wire-shape tests below cover the full mapping surface of each provider.
func sampleRequest() LLMRequest {
	return LLMRequest{
		Model:        "llama-3.1-8b-instant",
		SystemPrompt: "You are Jiya, a loan collection agent calling on behalf of ABC Finance.",
		Temperature:  0.7,
		MaxTokens:    1024,
		Messages: []Message{
			{Role: "user", Content: "Hello"},
			{
				Role:    "assistant",
				Content: "Let me pull up your account.",
				ToolCalls: []conversation.ToolCall{{
					ID:         "call_1",
					Name:       "get_customer_details",
					Parameters: map[string]interface{}{"customer_id": "C1001"},
				}},
			},
			{Role: "tool", ToolCallID: "call_1", Content: `{"found":true,"customer_name":"Asha Rao"}`},
			{Role: "assistant", Content: "Am I speaking with Asha Rao?"},
		},
		Tools: []tools.Spec{{
			Name:        "get_customer_details",
			Description: "Fetch identity fields for a customer.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"customer_id": map[string]interface{}{"type": "string"},
				},
				"required": []string{"customer_id"},
			},
		}},
	}
}

// marshalWire round-trips SDK params through JSON so assertions run against
// what would actually be sent, not against SDK internals.
func marshalWire(t *testing.T, params interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &wire))
	return wire
}

func asObject(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	obj, ok := v.(map[string]interface{})
	require.True(t, ok, "expected JSON object, got %T", v)
	return obj
}

func asArray(t *testing.T, v interface{}) []interface{} {
	t.Helper()
	arr, ok := v.([]interface{})
	require.True(t, ok, "expected JSON array, got %T", v)
	return arr
}

func TestBuildOpenAIParams(t *testing.T) {
	params, err := buildOpenAIParams(sampleRequest())
	require.NoError(t, err)

	wire := marshalWire(t, params)
	assert.Equal(t, "llama-3.1-8b-instant", wire["model"])
	assert.Equal(t, float64(1024), wire["max_tokens"])
	assert.InDelta(t, 0.7, wire["temperature"], 0.001)

	msgs := asArray(t, wire["messages"])
	require.Len(t, msgs, 5)

	system := asObject(t, msgs[0])
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "Jiya")

	user := asObject(t, msgs[1])
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "Hello", user["content"])

	withCalls := asObject(t, msgs[2])
	assert.Equal(t, "assistant", withCalls["role"])
	calls := asArray(t, withCalls["tool_calls"])
	require.Len(t, calls, 1)
	call := asObject(t, calls[0])
	assert.Equal(t, "call_1", call["id"])
	assert.Equal(t, "function", call["type"])
	fn := asObject(t, call["function"])
	assert.Equal(t, "get_customer_details", fn["name"])
	args, ok := fn["arguments"].(string)
	require.True(t, ok, "arguments must be a JSON string")
	assert.JSONEq(t, `{"customer_id":"C1001"}`, args)

	toolMsg := asObject(t, msgs[3])
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_1", toolMsg["tool_call_id"])
	assert.Contains(t, toolMsg["content"], "Asha Rao")

	reply := asObject(t, msgs[4])
	assert.Equal(t, "assistant", reply["role"])
	assert.Equal(t, "Am I speaking with Asha Rao?", reply["content"])

	toolDefs := asArray(t, wire["tools"])
	require.Len(t, toolDefs, 1)
	toolDef := asObject(t, toolDefs[0])
	assert.Equal(t, "function", toolDef["type"])
	def := asObject(t, toolDef["function"])
	assert.Equal(t, "get_customer_details", def["name"])
	assert.Equal(t, "Fetch identity fields for a customer.", def["description"])
	schema := asObject(t, def["parameters"])
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, asObject(t, schema["properties"]), "customer_id")
}

func TestBuildOpenAIParamsOmitsUnsetKnobs(t *testing.T) {
	params, err := buildOpenAIParams(LLMRequest{
		Model:    "llama-3.1-8b-instant",
		Messages: []Message{{Role: "user", Content: "Hello"}},
	})
	require.NoError(t, err)

	wire := marshalWire(t, params)
	assert.NotContains(t, wire, "max_tokens")
	assert.NotContains(t, wire, "temperature")
	assert.NotContains(t, wire, "tools")

	// No system message is prepended when the prompt is empty.
	assert.Len(t, asArray(t, wire["messages"]), 1)
}

func TestBuildAnthropicParams(t *testing.T) {
	wire := marshalWire(t, buildAnthropicParams(sampleRequest()))

	assert.Equal(t, "llama-3.1-8b-instant", wire["model"])
	assert.Equal(t, float64(1024), wire["max_tokens"])
	assert.InDelta(t, 0.7, wire["temperature"], 0.001)

	system := asArray(t, wire["system"])
	require.Len(t, system, 1)
	assert.Contains(t, asObject(t, system[0])["text"], "Jiya")

	msgs := asArray(t, wire["messages"])
	require.Len(t, msgs, 4)

	user := asObject(t, msgs[0])
	assert.Equal(t, "user", user["role"])
	userBlock := asObject(t, asArray(t, user["content"])[0])
	assert.Equal(t, "text", userBlock["type"])
	assert.Equal(t, "Hello", userBlock["text"])

	withCalls := asObject(t, msgs[1])
	assert.Equal(t, "assistant", withCalls["role"])
	blocks := asArray(t, withCalls["content"])
	require.Len(t, blocks, 2)
	assert.Equal(t, "text", asObject(t, blocks[0])["type"])
	toolUse := asObject(t, blocks[1])
	assert.Equal(t, "tool_use", toolUse["type"])
	assert.Equal(t, "call_1", toolUse["id"])
	assert.Equal(t, "get_customer_details", toolUse["name"])
	assert.Equal(t, "C1001", asObject(t, toolUse["input"])["customer_id"])

	// Tool results ride user messages in the Messages API.
	result := asObject(t, msgs[2])
	assert.Equal(t, "user", result["role"])
	resultBlock := asObject(t, asArray(t, result["content"])[0])
	assert.Equal(t, "tool_result", resultBlock["type"])
	assert.Equal(t, "call_1", resultBlock["tool_use_id"])

	reply := asObject(t, msgs[3])
	assert.Equal(t, "assistant", reply["role"])

	toolDefs := asArray(t, wire["tools"])
	require.Len(t, toolDefs, 1)
	def := asObject(t, toolDefs[0])
	assert.Equal(t, "get_customer_details", def["name"])
	schema := asObject(t, def["input_schema"])
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, asObject(t, schema["properties"]), "customer_id")
	assert.Contains(t, asArray(t, schema["required"]), "customer_id")
}

func TestBuildAnthropicParamsSkipsEmptyText(t *testing.T) {
	wire := marshalWire(t, buildAnthropicParams(LLMRequest{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 256,
		Messages: []Message{
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: ""},
			{Role: "user", Content: "Anyone there?"},
		},
	}))

	// The API rejects empty text blocks, so the blank turn is dropped.
	msgs := asArray(t, wire["messages"])
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", asObject(t, msgs[0])["role"])
	assert.Equal(t, "user", asObject(t, msgs[1])["role"])
}

func TestProviderNames(t *testing.T) {
	assert.Equal(t, "openai", NewOpenAIProvider("sk-test").Provider())
	assert.Equal(t, "groq", NewGroqProvider("gsk-test").Provider())
	assert.Equal(t, "anthropic", NewAnthropicProvider("sk-ant-test").Provider())
}

func TestProviderFactory(t *testing.T) {
	factory := &ProviderFactory{}

	tests := []struct {
		name     string
		profile  config.AIProfile
		provider string
		wantErr  bool
	}{
		{name: "groq profile", profile: config.AIProfile{ID: "g", Provider: "groq", APIKey: "gsk-x"}, provider: "groq"},
		{name: "anthropic profile", profile: config.AIProfile{ID: "a", Provider: "anthropic", APIKey: "sk-ant-x"}, provider: "anthropic"},
		{name: "openai profile", profile: config.AIProfile{ID: "o", Provider: "openai", APIKey: "sk-x"}, provider: "openai"},
		{name: "missing key", profile: config.AIProfile{ID: "g", Provider: "groq"}, wantErr: true},
		{name: "unknown provider", profile: config.AIProfile{ID: "x", Provider: "cohere", APIKey: "k"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := factory.NewProvider(tt.profile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p.Provider())
		})
	}
}

func TestSelectProfile(t *testing.T) {
	profiles := []config.AIProfile{
		{ID: "backup", Provider: "anthropic", APIKey: "sk-ant-x", Priority: 2},
		{ID: "primary", Provider: "groq", APIKey: "gsk-x", Priority: 1},
	}

	t.Run("should pick highest priority when id is empty", func(t *testing.T) {
		profile, err := SelectProfile(profiles, "")
		require.NoError(t, err)
		assert.Equal(t, "primary", profile.ID)
	})

	t.Run("should pick by id", func(t *testing.T) {
		profile, err := SelectProfile(profiles, "backup")
		require.NoError(t, err)
		assert.Equal(t, "backup", profile.ID)
	})

	t.Run("should error on unknown id", func(t *testing.T) {
		_, err := SelectProfile(profiles, "missing")
		assert.Error(t, err)
	})

	t.Run("should error on empty profile list", func(t *testing.T) {
		_, err := SelectProfile(nil, "")
		assert.Error(t, err)
	})
}
