package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const briefSystemPrompt = `You write short safety briefs for construction crews.
Given a jobsite and the weather hazards forecast for it, reply with two or three plain sentences:
what to expect and one practical precaution. No greetings, no lists, no markdown.`

// OpenAIBrief writes crew briefs with a chat completion model.
type OpenAIBrief struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIBrief returns nil when apiKey is empty so the composer skips
// the brief. baseURL may be empty.
func NewOpenAIBrief(apiKey, baseURL string) *OpenAIBrief {
	if apiKey == "" {
		return nil
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIBrief{
		client: openai.NewClient(opts...),
		model:  openai.ChatModelGPT4oMini,
	}
}

func (b *OpenAIBrief) Brief(ctx context.Context, a Alert) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Jobsite: %s\n", a.JobsiteName)
	if a.Address != "" {
		fmt.Fprintf(&sb, "Address: %s\n", a.Address)
	}
	fmt.Fprintf(&sb, "Window: %s\n", formatWindow(a))
	for _, t := range a.Triggers {
		fmt.Fprintf(&sb, "- %s: %s\n", label(t.Hazard), t.Message)
	}

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(briefSystemPrompt),
			openai.UserMessage(sb.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("crew brief: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("crew brief: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
