package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pos-backend/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createTransactionRequest struct {
	CustomerID     *int                        `json:"customer_id,omitempty"`
	UserID         int                         `json:"user_id"`
	Items          []core.TransactionItemInput `json:"items"`
	TotalAmount    decimal.Decimal             `json:"total_amount"`
	DiscountAmount decimal.Decimal             `json:"discount_amount"`
	PaymentMethod  *string                     `json:"payment_method,omitempty"`
	Notes          *string                     `json:"notes,omitempty"`
}

// createTransaction handles POST /api/transactions.
func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	transaction, err := h.transactions.CreateSaleTransaction(r.Context(), core.CreateTransactionInput{
		CustomerID:     req.CustomerID,
		UserID:         req.UserID,
		Items:          req.Items,
		TotalAmount:    req.TotalAmount,
		DiscountAmount: req.DiscountAmount,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(transaction)
}

type updateTransactionRequest struct {
	CustomerID     *int             `json:"customer_id,omitempty"`
	TotalAmount    *decimal.Decimal `json:"total_amount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	Status         *string          `json:"status,omitempty"`
	PaymentMethod  *string          `json:"payment_method,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

// updateTransaction handles PATCH /api/transactions/{id}.
func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "transaction id must be an integer", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	patch := core.TransactionPatch{
		CustomerID:     req.CustomerID,
		TotalAmount:    req.TotalAmount,
		DiscountAmount: req.DiscountAmount,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
	}
	if req.Status != nil {
		status := core.TransactionStatus(*req.Status)
		patch.Status = &status
	}

	transaction, err := h.transactions.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, transaction)
}

// getTransaction handles GET /api/transactions/{id}.
func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "transaction id must be an integer", "INVALID_INPUT", http.StatusBadRequest)
		return
	}

	transaction, err := h.transactions.GetTransaction(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, transaction)
}

// listTransactions handles GET /api/transactions with an optional status filter.
func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	var status *core.TransactionStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := core.TransactionStatus(v)
		if !core.ValidStatus(s) {
			writeError(w, r, "unknown status filter", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
		status = &s
	}

	transactions, err := h.transactions.GetTransactions(r.Context(), status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []core.SaleTransaction{}
	}
	writeJSON(w, transactions)
}
