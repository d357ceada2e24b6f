package remove

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/questgen/internal/http/middlewarectx"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/papers"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Delete(ctx context.Context, user models.User, id string) error {
	return m.Called(ctx, user, id).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRemoveHandler(t *testing.T) {
	user := models.User{ID: "u1"}

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "success", wantCode: http.StatusOK},
		{name: "foreign or missing", err: fmt.Errorf("papers.Delete: %w", papers.ErrPaperNotFound), wantCode: http.StatusNotFound},
		{name: "store failure", err: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Delete", mock.Anything, user, "p1").Return(tt.err).Once()

			r := chi.NewRouter()
			r.Delete("/papers/{id}", New(newNoopLogger(), svc).ServeHTTP)
			req := httptest.NewRequest(http.MethodDelete, "/papers/p1", nil)
			req = req.WithContext(middlewarectx.WithUser(req.Context(), user))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
