package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taha00000/book-for-me/internal/inventory"
	"github.com/taha00000/book-for-me/pkg/logging"
)

type inventoryReader interface {
	ListVendors(ctx context.Context, filter inventory.VendorFilter) ([]inventory.Vendor, error)
	ListSlots(ctx context.Context, vendorID, date string) ([]inventory.Slot, error)
}

// AdminInventoryHandler exposes vendor and slot listings for operators.
type AdminInventoryHandler struct {
	store  inventoryReader
	logger *logging.Logger
}

func NewAdminInventoryHandler(store inventoryReader, logger *logging.Logger) *AdminInventoryHandler {
	if store == nil {
		panic("handlers: inventory store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminInventoryHandler{store: store, logger: logger.WithComponent("admin.inventory")}
}

// ListVendors handles GET /admin/vendors with optional service_type, area
// and name filters.
func (h *AdminInventoryHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vendors, err := h.store.ListVendors(r.Context(), inventory.VendorFilter{
		ServiceType:  q.Get("service_type"),
		Area:         q.Get("area"),
		NameContains: q.Get("name"),
	})
	if err != nil {
		h.logger.Error("vendor listing failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "vendor listing failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vendors": vendors, "count": len(vendors)})
}

// ListSlots handles GET /admin/vendors/{vendorID}/slots?date=YYYY-MM-DD.
// Date defaults to today.
func (h *AdminInventoryHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	slots, err := h.store.ListSlots(r.Context(), vendorID, date)
	if err != nil {
		h.logger.Error("slot listing failed", "vendor", vendorID, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "slot listing failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vendor_id": vendorID, "date": date, "slots": slots, "count": len(slots)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
