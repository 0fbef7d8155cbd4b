package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/wildberries-parser/internal/database"
)

type MockReader struct {
	mock.Mock
}

func (m *MockReader) GetProduct(ctx context.Context, wbID int64) (*database.StoredProduct, error) {
	args := m.Called(ctx, wbID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.StoredProduct), args.Error(1)
}

func (m *MockReader) ListPrices(ctx context.Context, productID int64, limit int) ([]database.PricePoint, error) {
	args := m.Called(ctx, productID, limit)
	return args.Get(0).([]database.PricePoint), args.Error(1)
}

func (m *MockReader) LatestStocks(ctx context.Context, productID int64) ([]database.StockLevel, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]database.StockLevel), args.Error(1)
}

func (m *MockReader) ListFeedbacks(ctx context.Context, productID int64, limit int) ([]database.StoredFeedback, error) {
	args := m.Called(ctx, productID, limit)
	return args.Get(0).([]database.StoredFeedback), args.Error(1)
}

func (m *MockReader) Stats(ctx context.Context) (*database.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Stats), args.Error(1)
}

var storedKettle = &database.StoredProduct{ID: 10, WBID: 146972802, Name: "Чайник", Brand: "Polaris"}

func serve(t *testing.T, reader Reader, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandlers(reader, nil), []string{"*"})
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestGetProduct(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("GetProduct", mock.Anything, int64(146972802)).Return(storedKettle, nil)

		rec := serve(t, reader, http.MethodGet, "/api/v1/products/146972802")
		assert.Equal(t, http.StatusOK, rec.Code)

		var got database.StoredProduct
		decode(t, rec, &got)
		assert.Equal(t, "Polaris", got.Brand)
	})

	t.Run("not stored", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("GetProduct", mock.Anything, int64(1)).Return(nil, nil)

		rec := serve(t, reader, http.MethodGet, "/api/v1/products/1")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		reader := new(MockReader)

		rec := serve(t, reader, http.MethodGet, "/api/v1/products/abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		reader.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})

	t.Run("database error", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("GetProduct", mock.Anything, int64(5)).Return(nil, errors.New("conn closed"))

		rec := serve(t, reader, http.MethodGet, "/api/v1/products/5")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetPrices(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	t.Run("default limit", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("GetProduct", mock.Anything, int64(146972802)).Return(storedKettle, nil)
		reader.On("ListPrices", mock.Anything, int64(10), defaultLimit).
			Return([]database.PricePoint{{Current: 99, Original: 120, Discount: 17.5, Timestamp: now}}, nil)

		rec := serve(t, reader, http.MethodGet, "/api/v1/products/146972802/prices")
		assert.Equal(t, http.StatusOK, rec.Code)

		var got []database.PricePoint
		decode(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, 17.5, got[0].Discount)
		reader.AssertExpectations(t)
	})

	t.Run("limit is capped", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("GetProduct", mock.Anything, int64(146972802)).Return(storedKettle, nil)
		reader.On("ListPrices", mock.Anything, int64(10), maxLimit).Return([]database.PricePoint{}, nil)

		rec := serve(t, reader, http.MethodGet, "/api/v1/products/146972802/prices?limit=100000")
		assert.Equal(t, http.StatusOK, rec.Code)
		reader.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("GetProduct", mock.Anything, int64(146972802)).Return(storedKettle, nil)

		rec := serve(t, reader, http.MethodGet, "/api/v1/products/146972802/prices?limit=-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetStocksAndFeedbacks(t *testing.T) {
	reader := new(MockReader)
	reader.On("GetProduct", mock.Anything, int64(146972802)).Return(storedKettle, nil)
	reader.On("LatestStocks", mock.Anything, int64(10)).
		Return([]database.StockLevel{{WarehouseID: 507, Quantity: 3}}, nil)
	reader.On("ListFeedbacks", mock.Anything, int64(10), 5).
		Return([]database.StoredFeedback{{ID: 1, UserID: "u1"}}, nil)

	rec := serve(t, reader, http.MethodGet, "/api/v1/products/146972802/stocks")
	assert.Equal(t, http.StatusOK, rec.Code)
	var stocks []database.StockLevel
	decode(t, rec, &stocks)
	assert.Equal(t, int64(507), stocks[0].WarehouseID)

	rec = serve(t, reader, http.MethodGet, "/api/v1/products/146972802/feedbacks?limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	var feedbacks []database.StoredFeedback
	decode(t, rec, &feedbacks)
	assert.Equal(t, "u1", feedbacks[0].UserID)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		stats      *database.Stats
		wantCode   int
		wantStatus string
	}{
		{"ok", &database.Stats{PendingEvents: 3}, http.StatusOK, "ok"},
		{"pending backlog", &database.Stats{PendingEvents: 1001}, http.StatusOK, "warning"},
		{"dead letters", &database.Stats{DeadLetters: 101}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockReader)
			reader.On("Stats", mock.Anything).Return(tt.stats, nil)

			rec := serve(t, reader, http.MethodGet, "/health")
			assert.Equal(t, tt.wantCode, rec.Code)

			var body map[string]any
			decode(t, rec, &body)
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}

	t.Run("database down", func(t *testing.T) {
		reader := new(MockReader)
		reader.On("Stats", mock.Anything).Return(nil, errors.New("dial tcp: refused"))

		rec := serve(t, reader, http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetStats(t *testing.T) {
	reader := new(MockReader)
	reader.On("Stats", mock.Anything).Return(&database.Stats{Products: 3, Feedbacks: 4}, nil)

	rec := serve(t, reader, http.MethodGet, "/api/v1/stats")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got database.Stats
	decode(t, rec, &got)
	assert.Equal(t, int64(3), got.Products)
	assert.Equal(t, int64(4), got.Feedbacks)
}
