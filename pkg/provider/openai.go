package provider

import (
	"context"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/researchmesh/a2a-go/pkg/errors"
)

/*
OpenAIProvider is a planning oracle backed by the OpenAI chat API.
*/
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (prvdr *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := prvdr.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(prvdr.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})

	if err != nil {
		return "", errors.ErrExecution.WithMessagef("openai completion failed: %v", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.ErrExecution.WithMessagef("openai returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
