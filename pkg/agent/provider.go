package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/harun/jiya/internal/config"
	"github.com/harun/jiya/pkg/conversation"
	"github.com/harun/jiya/pkg/tools"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []Message
	Tools        []tools.Spec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content   string
	ToolCalls []conversation.ToolCall
	Usage     *TokenUsage
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider based on an AI profile
func (f *ProviderFactory) NewProvider(profile config.AIProfile) (LLMProvider, error) {
	if profile.APIKey == "" {
		return nil, fmt.Errorf("profile %s has no API key", profile.ID)
	}

	switch profile.Provider {
	case "groq":
		return NewGroqProvider(profile.APIKey), nil
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// SelectProfile picks the profile with the given id, or the highest-priority
// one (lower number wins) when id is empty.
func SelectProfile(profiles []config.AIProfile, id string) (config.AIProfile, error) {
	if len(profiles) == 0 {
		return config.AIProfile{}, fmt.Errorf("no AI profiles configured")
	}

	if id != "" {
		for _, profile := range profiles {
			if profile.ID == id {
				return profile, nil
			}
		}
		return config.AIProfile{}, fmt.Errorf("AI profile not found: %s", id)
	}

	sorted := make([]config.AIProfile, len(profiles))
	copy(sorted, profiles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted[0], nil
}
