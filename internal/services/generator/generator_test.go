package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/magabrotheeeer/questgen/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var testRequest = Request{
	Blueprint: []models.BlueprintItem{
		{ID: "b1", Chapter: "Motion", Topic: "Velocity", Type: models.QuestionMCQ, Count: 2, MarksPerQuestion: 1},
		{ID: "b2", Chapter: "Force", Type: models.QuestionDiagram, Count: 1, MarksPerQuestion: 5, GenerateImage: true},
	},
	ClassLevel: "9",
	Subject:    "Physics",
	Context:    "Sample: Q1. Define speed.",
}

const validResponse = `{"questions":[{"blueprint_id":"b1","type":"Multiple Choice Question","marks":1,"question_text":"What is velocity?","options":["a","b"]}]}`

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testRequest)

	assert.Contains(t, prompt, "Class 9, subject Physics")
	assert.Contains(t, prompt, "blueprint_id=b1")
	assert.Contains(t, prompt, `chapter="Force"`)
	assert.Contains(t, prompt, "diagram")
	assert.Contains(t, prompt, "Sample: Q1. Define speed.")

	noCtx := testRequest
	noCtx.Context = "  "
	assert.NotContains(t, BuildPrompt(noCtx), "sample paper")
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr error
	}{
		{name: "wrapped object", text: validResponse, want: 1},
		{name: "markdown fence", text: "```json\n" + validResponse + "\n```", want: 1},
		{name: "bare array", text: `[{"question_text":"Q1","marks":2},{"question_text":"Q2","marks":3}]`, want: 2},
		{name: "leading prose", text: "Here you go: " + validResponse, want: 1},
		{name: "empty list", text: `{"questions":[]}`, wantErr: ErrEmptyResponse},
		{name: "blank questions dropped", text: `[{"question_text":"  "}]`, wantErr: ErrEmptyResponse},
		{name: "no json", text: "sorry, I cannot", wantErr: ErrEmptyResponse},
		{name: "empty", text: "", wantErr: ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuestions(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, q := range got {
				assert.NotEmpty(t, q.ID)
			}
		})
	}

	_, err := ParseQuestions(`{"questions": broken}`)
	assert.Error(t, err)
}

type MockModels struct {
	mock.Mock
}

func (m *MockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genai.GenerateContentResponse), args.Error(1)
}

func geminiResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestGemini_Generate(t *testing.T) {
	t.Run("success after transient error", func(t *testing.T) {
		m := new(MockModels)
		m.On("GenerateContent", mock.Anything, "gemini-test", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable")).Once()
		m.On("GenerateContent", mock.Anything, "gemini-test", mock.Anything, mock.Anything).Return(geminiResponse(validResponse), nil).Once()

		g := &Gemini{models: m, model: "gemini-test", log: newNoopLogger()}
		questions, err := g.Generate(context.Background(), testRequest)
		require.NoError(t, err)
		require.Len(t, questions, 1)
		assert.Equal(t, "b1", questions[0].BlueprintID)
		m.AssertExpectations(t)
	})

	t.Run("empty candidates exhaust retries", func(t *testing.T) {
		m := new(MockModels)
		m.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&genai.GenerateContentResponse{}, nil).Times(maxRetries)

		g := &Gemini{models: m, model: "gemini-test", log: newNoopLogger()}
		_, err := g.Generate(context.Background(), testRequest)
		assert.ErrorIs(t, err, ErrEmptyResponse)
		m.AssertExpectations(t)
	})

	t.Run("canceled context", func(t *testing.T) {
		m := new(MockModels)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		g := &Gemini{models: m, model: "gemini-test", log: newNoopLogger()}
		_, err := g.Generate(ctx, testRequest)
		assert.ErrorIs(t, err, context.Canceled)
		m.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func newOpenAIServer(t *testing.T, handler func(w http.ResponseWriter, req openai.ChatCompletionRequest)) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openAIClient(srv *httptest.Server) *OpenAI {
	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	return newOpenAIWithConfig(cfg, "", newNoopLogger())
}

func TestOpenAI_Generate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newOpenAIServer(t, func(w http.ResponseWriter, req openai.ChatCompletionRequest) {
			assert.Equal(t, openai.GPT4oMini, req.Model)
			if assert.Len(t, req.Messages, 2) {
				assert.Contains(t, req.Messages[1].Content, "blueprint_id=b2")
			}

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: validResponse}}},
			})
		})

		questions, err := openAIClient(srv).Generate(context.Background(), testRequest)
		require.NoError(t, err)
		require.Len(t, questions, 1)
		assert.Equal(t, "What is velocity?", questions[0].QuestionText)
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := newOpenAIServer(t, func(w http.ResponseWriter, _ openai.ChatCompletionRequest) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
		})

		_, err := openAIClient(srv).Generate(context.Background(), testRequest)
		assert.Error(t, err)
		assert.Equal(t, int32(maxRetries), calls.Load())
	})
}

func TestNew(t *testing.T) {
	g, err := New(context.Background(), config.Generator{Provider: "openai", APIKey: "sk-test"}, newNoopLogger())
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, g)

	g, err = New(context.Background(), config.Generator{Provider: "gemini", APIKey: "test-key"}, newNoopLogger())
	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, g)

	_, err = New(context.Background(), config.Generator{Provider: "llama"}, newNoopLogger())
	assert.ErrorContains(t, err, "unknown provider")
}
