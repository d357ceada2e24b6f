package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/magabrotheeeer/questgen/internal/models"
)

const defaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini генерирует вопросы через Gemini API.
type Gemini struct {
	models contentGenerator
	model  string
	log    *slog.Logger
}

// NewGemini создаёт клиент Gemini.
func NewGemini(ctx context.Context, apiKey, model string, httpClient *http.Client, log *slog.Logger) (*Gemini, error) {
	const op = "generator.NewGemini"

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{models: client.Models, model: model, log: log}, nil
}

// Generate запрашивает вопросы у модели.
func (g *Gemini) Generate(ctx context.Context, req Request) ([]models.GeneratedQuestion, error) {
	const op = "generator.Gemini.Generate"
	log := g.log.With(slog.String("op", op), slog.String("model", g.model))

	prompt := BuildPrompt(req)
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.7),
		ResponseMIMEType: "application/json",
	}

	questions, err := generateWithRetry(ctx, log, func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
		if err != nil {
			return "", err
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Text(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("questions generated", slog.Int("count", len(questions)))
	return questions, nil
}
