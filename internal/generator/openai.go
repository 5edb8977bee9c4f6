package generator

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
)

type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, h Hints, instructions string) (*Draft, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(h, instructions)),
		},
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, appErrors.NewUpstream("openai generation failed", err)
	}
	if len(completion.Choices) == 0 {
		return nil, appErrors.NewUpstream("openai generation failed", fmt.Errorf("no choices returned"))
	}
	draft, err := parseDraft(completion.Choices[0].Message.Content, "openai:"+o.model)
	if err != nil {
		logrus.WithError(err).Warn("[OPENAI] unusable draft")
		return nil, appErrors.NewUpstream("openai returned an unusable draft", err)
	}
	return draft, nil
}
