package login

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/auth"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Login(ctx context.Context, email, password string) (auth.LoginResult, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(auth.LoginResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type loginResponse struct {
	Status string           `json:"status"`
	Error  string           `json:"error"`
	Data   auth.LoginResult `json:"data"`
}

func TestLoginHandler(t *testing.T) {
	result := auth.LoginResult{
		Token:            "tok",
		User:             models.User{ID: "u1", Email: "asha@school.in", SubscriptionPlan: models.PlanFree, PapersGenerated: 1},
		Usage:            entitlement.Decision{Reason: "free trial limit reached (1)", UpgradeRequired: true, Used: 1, Limit: 1},
		UpgradeSuggested: true,
	}

	tests := []struct {
		name      string
		body      string
		mockRes   auth.LoginResult
		mockErr   error
		callMock  bool
		wantCode  int
		wantError string
	}{
		{name: "success", body: `{"email":"asha@school.in","password":"secret123"}`, callMock: true, mockRes: result, wantCode: http.StatusOK},
		{name: "invalid json", body: `{`, wantCode: http.StatusBadRequest, wantError: "invalid request body"},
		{name: "missing password", body: `{"email":"asha@school.in"}`, wantCode: http.StatusUnprocessableEntity, wantError: "field Password is a required field"},
		{
			name: "wrong credentials", body: `{"email":"asha@school.in","password":"secret123"}`, callMock: true,
			mockErr: fmt.Errorf("auth.Login: %w", auth.ErrInvalidCredentials), wantCode: http.StatusUnauthorized, wantError: "invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callMock {
				svc.On("Login", mock.Anything, "asha@school.in", "secret123").Return(tt.mockRes, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp loginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tt.wantError != "" {
				assert.Equal(t, "Error", resp.Status)
				assert.Contains(t, resp.Error, tt.wantError)
			} else {
				assert.Equal(t, "OK", resp.Status)
				assert.Equal(t, "tok", resp.Data.Token)
				assert.True(t, resp.Data.UpgradeSuggested)
				assert.Equal(t, 1, resp.Data.Usage.Used)
			}
			svc.AssertExpectations(t)
		})
	}
}
