package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
)

// OpenAIProvider speaks the OpenAI chat-completions API, natively or via
// any compatible gateway selected by base URL.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

func NewOpenAIProvider(cfg config.LLMConfig, log *logger.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		log:    log,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	if req.ForceJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewMalformedResponse("response has no choices")
	}

	p.log.WithFields(map[string]interface{}{
		"model":             resp.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("Chat completion returned")

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
		Model: resp.Model,
	}, nil
}

// classifyOpenAIError separates permanent client-side rejections from
// transient failures worth retrying. 429 counts as transient.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if apperrors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
			return apperrors.NewProviderRejected("request rejected",
				map[string]interface{}{"http_status": apiErr.HTTPStatusCode}).
				WithField("api_message", apiErr.Message)
		}
	}
	return apperrors.Wrap(err, "chat completion failed")
}
