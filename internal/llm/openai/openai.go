package openai

import (
	"context"
	"fmt"
	"os"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/store"
	"llm-fx-advisor/internal/trace"
	"llm-fx-advisor/internal/types"
)

const (
	DefaultModel = "gpt-4o-mini"
	APIKeyEnv    = "OPENAI_API_KEY"
)

// Oracle calls the chat completions API through go-openai.
type Oracle struct {
	cfg   *store.Config
	model string
}

var _ interfaces.Oracle = (*Oracle)(nil)

func New(cfg *store.Config) *Oracle {
	model := cfg.LLM.Model
	if model == "" {
		model = DefaultModel
	}
	return &Oracle{cfg: cfg, model: model}
}

func (o *Oracle) Name() string { return "openai/" + o.model }

func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	apiKey := os.Getenv(APIKeyEnv)
	if apiKey == "" {
		return "", fmt.Errorf("%s missing: %w", APIKeyEnv, types.ErrOracleUnavailable)
	}

	conf := goopenai.DefaultConfig(apiKey)
	if o.cfg.LLM.Endpoint != "" {
		conf.BaseURL = strings.TrimRight(o.cfg.LLM.Endpoint, "/")
	}
	client := goopenai.NewClientWithConfig(conf)

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: o.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: o.cfg.SystemPrompt()},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   o.cfg.LLM.MaxTokens,
		Temperature: o.cfg.LLM.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: %w: %w", o.model, types.ErrOracleUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai %s: no choices: %w", o.model, types.ErrOracleUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
