package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/researchmesh/a2a-go/pkg/errors"
)

/*
AnthropicProvider is a planning oracle backed by the Anthropic API.
*/
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_0)
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (prvdr *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := prvdr.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(prvdr.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	if err != nil {
		return "", errors.ErrExecution.WithMessagef("anthropic completion failed: %v", err)
	}

	var sb strings.Builder

	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return sb.String(), nil
}

var _ Interface = (*AnthropicProvider)(nil)
var _ Interface = (*OpenAIProvider)(nil)
