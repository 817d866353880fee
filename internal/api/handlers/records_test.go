package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duewatch/internal/types"
)

type mockRecordReader struct {
	records []*types.BillingRecord
	err     error
}

func (m *mockRecordReader) List(ctx context.Context) ([]*types.BillingRecord, error) {
	return m.records, m.err
}

func (m *mockRecordReader) GetByID(ctx context.Context, id string) (*types.BillingRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundRecord, "billing record not found", nil)
}

func recordsRouter(reader *mockRecordReader) http.Handler {
	r := chi.NewRouter()
	NewRecordsHandler(reader).RegisterRoutes(r)
	return r
}

func sampleRecord() *types.BillingRecord {
	return &types.BillingRecord{
		ID:             "rec-1",
		CompanyName:    "Acme Co",
		AnchorDate:     types.NewDate(2026, time.September, 15),
		IntervalMonths: 3,
		AmountDue:      decimal.RequireFromString("1500.50"),
		Currency:       "THB",
	}
}

func TestHandleListRecords(t *testing.T) {
	router := recordsRouter(&mockRecordReader{records: []*types.BillingRecord{sampleRecord()}})

	req := httptest.NewRequest(http.MethodGet, "/billing-records", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		BillingRecords []*types.BillingRecord `json:"billing_records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.BillingRecords, 1)
	assert.Equal(t, "Acme Co", resp.BillingRecords[0].CompanyName)
}

func TestHandleListRecordsEmpty(t *testing.T) {
	router := recordsRouter(&mockRecordReader{})

	req := httptest.NewRequest(http.MethodGet, "/billing-records", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"billing_records":[]`)
}

func TestHandleGetRecord(t *testing.T) {
	router := recordsRouter(&mockRecordReader{records: []*types.BillingRecord{sampleRecord()}})

	req := httptest.NewRequest(http.MethodGet, "/billing-records/rec-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got types.BillingRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, "2026-09-15", got.AnchorDate.String())
}

func TestHandleGetRecordNotFound(t *testing.T) {
	router := recordsRouter(&mockRecordReader{})

	req := httptest.NewRequest(http.MethodGet, "/billing-records/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeNotFoundRecord))
}
