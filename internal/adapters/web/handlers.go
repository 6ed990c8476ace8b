package web

import (
	"net/http"
	"strings"

	"pos-backend/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Handler exposes the stock and transaction services as a JSON API.
type Handler struct {
	stock        core.StockService
	transactions core.TransactionService
}

// NewHandler creates and wires the chi router with all routes.
// allowedOrigins is a comma-separated list; empty disables CORS entirely.
func NewHandler(stock core.StockService, transactions core.TransactionService, allowedOrigins string) http.Handler {
	h := &Handler{stock: stock, transactions: transactions}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	if origins := splitAndTrim(allowedOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
			AllowCredentials: true,
		}))
	}

	r.Get("/api/health", h.health)

	r.Post("/api/movements", h.createMovement)
	r.Get("/api/movements", h.listMovements)
	r.Post("/api/stock/adjustments", h.adjustStock)
	r.Get("/api/stock", h.stockLevels)

	r.Post("/api/transactions", h.createTransaction)
	r.Get("/api/transactions", h.listTransactions)
	r.Get("/api/transactions/{id}", h.getTransaction)
	r.Patch("/api/transactions/{id}", h.updateTransaction)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.stock.GetStockLevels(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if levels == nil {
		levels = []core.StockLevel{}
	}
	writeJSON(w, levels)
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
