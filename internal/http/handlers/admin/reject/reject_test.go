package reject

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/subscription"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Reject(ctx context.Context, txID string) (models.Transaction, error) {
	args := m.Called(ctx, txID)
	return args.Get(0).(models.Transaction), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRejectHandler(t *testing.T) {
	tests := []struct {
		name     string
		tx       models.Transaction
		err      error
		wantCode int
	}{
		{name: "pending transaction", tx: models.Transaction{ID: "tx1", Plan: models.PlanMonthly, Status: models.TransactionRejected}, wantCode: http.StatusOK},
		{
			name:     "terminal or missing transaction",
			err:      fmt.Errorf("subscription.Reject: %w", subscription.ErrTransactionNotFound),
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Reject", mock.Anything, "tx1").Return(tt.tx, tt.err).Once()

			r := chi.NewRouter()
			r.Post("/admin/transactions/{id}/reject", New(newNoopLogger(), svc).ServeHTTP)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/transactions/tx1/reject", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				var resp struct {
					Data models.Transaction `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, models.TransactionRejected, resp.Data.Status)
			}
			svc.AssertExpectations(t)
		})
	}
}
