package agent

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// groqBaseURL is Groq's OpenAI-compatible endpoint.
const groqBaseURL = "https://api.groq.com/openai/v1"

// NewGroqProvider creates a provider for Groq. Groq speaks the OpenAI chat
// completion protocol, so this reuses OpenAIProvider against its endpoint.
func NewGroqProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(groqBaseURL),
		),
		name: "groq",
	}
}
