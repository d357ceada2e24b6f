package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/magabrotheeeer/questgen/internal/models"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI генерирует вопросы через OpenAI Chat Completions.
type OpenAI struct {
	client chatCompleter
	model  string
	log    *slog.Logger
}

// NewOpenAI создаёт клиент OpenAI.
func NewOpenAI(apiKey, model string, httpClient *http.Client, log *slog.Logger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = httpClient
	return newOpenAIWithConfig(cfg, model, log)
}

func newOpenAIWithConfig(cfg openai.ClientConfig, model string, log *slog.Logger) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, log: log}
}

// Generate запрашивает вопросы у модели.
func (o *OpenAI) Generate(ctx context.Context, req Request) ([]models.GeneratedQuestion, error) {
	const op = "generator.OpenAI.Generate"
	log := o.log.With(slog.String("op", op), slog.String("model", o.model))

	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You write school examination questions and answer strictly in JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(req),
			},
		},
		Temperature: 0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	questions, err := generateWithRetry(ctx, log, func(ctx context.Context) (string, error) {
		resp, err := o.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("questions generated", slog.Int("count", len(questions)))
	return questions, nil
}
