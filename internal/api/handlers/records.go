package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"duewatch/internal/core"
	"duewatch/internal/types"
)

// RecordReader is the read-only billing record access the audit view needs.
type RecordReader interface {
	List(ctx context.Context) ([]*types.BillingRecord, error)
	GetByID(ctx context.Context, id string) (*types.BillingRecord, error)
}

// RecordsHandler exposes a read-only view over billing records, mainly their
// notification audit state. The billing CRUD surface lives elsewhere.
type RecordsHandler struct {
	records RecordReader
}

func NewRecordsHandler(records RecordReader) *RecordsHandler {
	return &RecordsHandler{records: records}
}

// RegisterRoutes mounts the billing record endpoints on the given router.
func (h *RecordsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/billing-records", h.HandleList)
	r.Get("/billing-records/{id}", h.HandleGet)
}

func (h *RecordsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if records == nil {
		records = []*types.BillingRecord{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"billing_records": records})
}

func (h *RecordsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, rec)
}
