package claude

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"llm-fx-advisor/internal/api"
	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/store"
	"llm-fx-advisor/internal/trace"
	"llm-fx-advisor/internal/types"
)

const (
	defaultEndpoint  = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	DefaultModel     = "claude-3-5-haiku-latest"
	APIKeyEnv        = "CLAUDE_API_KEY"
)

// Oracle calls the Anthropic Messages API.
type Oracle struct {
	cfg    *store.Config
	model  string
	client *api.Client
}

var _ interfaces.Oracle = (*Oracle)(nil)

func New(cfg *store.Config) *Oracle {
	// a proxy, Bedrock or Vertex gateway can be set with llm.endpoint or CLAUDE_API_ENDPOINT
	endpoint := defaultEndpoint
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	if cfg.LLM.Endpoint != "" {
		endpoint = cfg.LLM.Endpoint
	}
	model := cfg.LLM.Model
	if model == "" {
		model = DefaultModel
	}
	return &Oracle{
		cfg:   cfg,
		model: model,
		client: api.NewClient(
			api.WithBaseURL(strings.TrimRight(endpoint, "/")),
			api.WithTimeout(cfg.LLMTimeout()+5*time.Second),
			api.WithHeader("anthropic-version", anthropicVersion),
			api.WithLogging(true),
		),
	}
}

func (o *Oracle) Name() string { return "claude/" + o.model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

// textPaths are the envelopes seen from the Messages API and compatible gateways, in order of preference.
var textPaths = []string{
	`content.#(type=="text").text`,
	"completion",
	"choices.0.message.content",
	"output_text",
}

func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	apiKey := os.Getenv(APIKeyEnv)
	if apiKey == "" {
		return "", fmt.Errorf("%s missing: %w", APIKeyEnv, types.ErrOracleUnavailable)
	}

	body := messagesRequest{
		Model:       o.model,
		System:      o.cfg.SystemPrompt(),
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   o.cfg.LLM.MaxTokens,
		Temperature: o.cfg.LLM.Temperature,
	}
	req := api.NewRequest(ctx, http.MethodPost, "/v1/messages").
		WithBody(body).
		WithHeader("x-api-key", apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude %s: %w: %w", o.model, types.ErrOracleUnavailable, err)
	}

	if !gjson.ValidBytes(resp.Body) {
		// not JSON; a gateway returned the text itself
		return string(resp.Body), nil
	}
	for _, p := range textPaths {
		if r := gjson.GetBytes(resp.Body, p); r.Exists() && strings.TrimSpace(r.String()) != "" {
			return r.String(), nil
		}
	}
	if msg := gjson.GetBytes(resp.Body, "error.message").String(); msg != "" {
		return "", fmt.Errorf("claude %s: %s: %w", o.model, msg, types.ErrOracleUnavailable)
	}
	return "", fmt.Errorf("claude %s: no text content: %w", o.model, types.ErrOracleUnavailable)
}
