package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"pos-backend/internal/core"
)

type createMovementRequest struct {
	ProductID     int     `json:"product_id"`
	MovementType  string  `json:"movement_type"`
	Quantity      int     `json:"quantity"`
	ReferenceType *string `json:"reference_type,omitempty"`
	ReferenceID   *int    `json:"reference_id,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

// createMovement handles POST /api/movements.
func (h *Handler) createMovement(w http.ResponseWriter, r *http.Request) {
	var req createMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	movement, err := h.stock.RecordMovement(r.Context(), core.MovementInput{
		ProductID:     req.ProductID,
		Type:          core.MovementType(req.MovementType),
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(movement)
}

type adjustStockRequest struct {
	ProductID int    `json:"product_id"`
	Quantity  int    `json:"quantity"` // signed: negative shrinks stock
	Notes     string `json:"notes,omitempty"`
}

// adjustStock handles POST /api/stock/adjustments.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	movement, err := h.stock.AdjustInventory(r.Context(), req.ProductID, req.Quantity, req.Notes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(movement)
}

// listMovements handles GET /api/movements with optional query filters:
// product_id, type, reference_type, reference_id, from, to (YYYY-MM-DD or
// RFC 3339), sort (created_at|quantity), order (asc|desc), limit, offset.
func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter core.MovementFilter

	if v := q.Get("product_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "product_id must be an integer", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
		filter.ProductID = &id
	}
	if v := q.Get("type"); v != "" {
		mt := core.MovementType(v)
		filter.Type = &mt
	}
	if v := q.Get("reference_type"); v != "" {
		filter.ReferenceType = &v
	}
	if v := q.Get("reference_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "reference_id must be an integer", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
		filter.ReferenceID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			writeError(w, r, "from must be YYYY-MM-DD or RFC 3339", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			writeError(w, r, "to must be YYYY-MM-DD or RFC 3339", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
		filter.To = &t
	}
	if v := q.Get("sort"); v != "" {
		filter.SortBy = core.MovementSort(v)
	}
	filter.SortDesc = q.Get("order") == "desc"
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, "limit must be a non-negative integer", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, "offset must be a non-negative integer", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
		filter.Offset = n
	}

	movements, err := h.stock.GetMovements(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if movements == nil {
		movements = []core.InventoryMovement{}
	}
	writeJSON(w, movements)
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
