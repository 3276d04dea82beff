package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
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
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-2.0-flash-exp"
	APIKeyEnv       = "GEMINI_API_KEY"
)

// Oracle calls the Gemini generateContent REST endpoint.
type Oracle struct {
	cfg    *store.Config
	model  string
	client *api.Client
}

var _ interfaces.Oracle = (*Oracle)(nil)

func New(cfg *store.Config) *Oracle {
	endpoint := defaultEndpoint
	if cfg.LLM.Endpoint != "" {
		endpoint = strings.TrimRight(cfg.LLM.Endpoint, "/")
	}
	model := cfg.LLM.Model
	if model == "" {
		model = DefaultModel
	}
	return &Oracle{
		cfg:   cfg,
		model: model,
		client: api.NewClient(
			api.WithBaseURL(endpoint),
			api.WithTimeout(cfg.LLMTimeout()+5*time.Second),
			api.WithLogging(true),
		),
	}
}

func (o *Oracle) Name() string { return "gemini/" + o.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-api-call")
	defer span.End()

	apiKey := os.Getenv(APIKeyEnv)
	if apiKey == "" {
		return "", fmt.Errorf("%s missing: %w", APIKeyEnv, types.ErrOracleUnavailable)
	}

	body := generateRequest{
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		SystemInstruction: &content{Parts: []part{{Text: o.cfg.SystemPrompt()}}},
		GenerationConfig: generationConfig{
			Temperature:     o.cfg.LLM.Temperature,
			MaxOutputTokens: o.cfg.LLM.MaxTokens,
		},
	}
	req := api.NewRequest(ctx, http.MethodPost, "/v1beta/models/"+url.PathEscape(o.model)+":generateContent").
		WithBody(body).
		WithHeader("x-goog-api-key", apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w: %w", o.model, types.ErrOracleUnavailable, err)
	}

	text := gjson.GetBytes(resp.Body, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		why := gjson.GetBytes(resp.Body, "promptFeedback.blockReason").String()
		if why == "" {
			why = gjson.GetBytes(resp.Body, "candidates.0.finishReason").String()
		}
		if why == "" {
			why = "no candidate text"
		}
		return "", fmt.Errorf("gemini %s: %s: %w", o.model, why, types.ErrOracleUnavailable)
	}
	return text.String(), nil
}

// IsAuthError reports whether err came from a rejected API key.
func IsAuthError(err error) bool {
	code := api.StatusCode(err)
	return errors.Is(err, types.ErrOracleUnavailable) && (code == http.StatusUnauthorized || code == http.StatusForbidden)
}
