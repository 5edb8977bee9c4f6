package generator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
)

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, h Hints, instructions string) (*Draft, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(h, instructions), genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseJsonSchema: &genai.Schema{
			Type: "object",
			Properties: map[string]*genai.Schema{
				"caption":     {Type: "string"},
				"hash_tags":   {Type: "array", Items: &genai.Schema{Type: "string"}},
				"used_topics": {Type: "array", Items: &genai.Schema{Type: "string"}},
				"tone":        {Type: "string"},
			},
			Required: []string{"caption", "hash_tags"},
		},
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, appErrors.NewUpstream("gemini generation failed", err)
	}
	if result == nil {
		return nil, appErrors.NewUpstream("gemini generation failed", fmt.Errorf("empty response"))
	}
	draft, err := parseDraft(result.Text(), "gemini:"+g.model)
	if err != nil {
		logrus.WithError(err).Warn("[GEMINI] unusable draft")
		return nil, appErrors.NewUpstream("gemini returned an unusable draft", err)
	}
	return draft, nil
}
