// Package generator получает текст вопросов от внешней языковой модели.
// Поддерживаются Gemini и OpenAI, оба используют общий промпт и общий разбор ответа.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// ErrEmptyResponse - модель не вернула ни одного вопроса.
var ErrEmptyResponse = errors.New("generator returned no questions")

// Generator генерирует вопросы по плану работы.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]models.GeneratedQuestion, error)
}

// Request - входные данные генерации.
type Request struct {
	Blueprint  []models.BlueprintItem
	ClassLevel string
	Subject    string
	Context    string
}

const maxRetries = 3

// New создаёт генератор провайдера из конфига.
func New(ctx context.Context, cfg config.Generator, log *slog.Logger) (Generator, error) {
	const op = "generator.New"

	// Timeout ограничивает только HTTP-обмен с провайдером, ожидание ответа идёт по контексту запроса.
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case "gemini", "":
		g, err := NewGemini(ctx, cfg.APIKey, cfg.Model, httpClient, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return g, nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, httpClient, log), nil
	default:
		return nil, fmt.Errorf("%s: unknown provider %q", op, cfg.Provider)
	}
}

// BuildPrompt формирует промпт для модели.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert examiner preparing a question paper for Class %s, subject %s.\n", req.ClassLevel, req.Subject)
	b.WriteString("Write exactly the questions described by the blueprint below.\n\n")
	b.WriteString("Blueprint:\n")
	for _, item := range req.Blueprint {
		fmt.Fprintf(&b, "- blueprint_id=%s; chapter=%q; topic=%q; type=%q; count=%d; marks_per_question=%d",
			item.ID, item.Chapter, item.Topic, item.Type, item.Count, item.MarksPerQuestion)
		if item.GenerateImage {
			b.WriteString("; include a short description of the diagram the question needs")
		}
		b.WriteString("\n")
	}
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		b.WriteString("\nFollow the style and difficulty of this sample paper:\n")
		b.WriteString(ctx)
		b.WriteString("\n")
	}
	b.WriteString(`
Respond with JSON only, no markdown, in this format:
{"questions":[{"blueprint_id":"...","type":"...","marks":1,"question_text":"...","options":["..."],"answer_key":"...","section":"A"}]}
Use "options" only for Multiple Choice Question and Assertion-Reason. Every question must reference its blueprint_id.`)
	return b.String()
}

// ParseQuestions разбирает ответ модели. Допускаются markdown-ограждения,
// массив вопросов или объект с полем questions.
func ParseQuestions(text string) ([]models.GeneratedQuestion, error) {
	const op = "generator.ParseQuestions"

	cleaned := cleanResponse(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}

	var questions []models.GeneratedQuestion
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		var wrapper struct {
			Questions []models.GeneratedQuestion `json:"questions"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		questions = wrapper.Questions
	}

	result := make([]models.GeneratedQuestion, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.QuestionText) == "" {
			continue
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		result = append(result, q)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return result, nil
}

func cleanResponse(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndexAny(s, "]}")
	if end < start {
		return ""
	}
	return s[start : end+1]
}

// generateWithRetry повторяет запрос к модели, пока не получит разбираемый ответ.
func generateWithRetry(ctx context.Context, log *slog.Logger, call func(ctx context.Context) (string, error)) ([]models.GeneratedQuestion, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := call(ctx)
		if err != nil {
			lastErr = err
			log.Warn("generation attempt failed", slog.Int("attempt", attempt), sl.Err(err))
			continue
		}
		questions, err := ParseQuestions(text)
		if err != nil {
			lastErr = err
			log.Warn("generation response rejected", slog.Int("attempt", attempt), sl.Err(err))
			continue
		}
		return questions, nil
	}
	return nil, lastErr
}
