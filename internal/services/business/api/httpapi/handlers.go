// Package httpapi exposes the business ledger and chat history over JSON HTTP.
package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/httpx"
	"github.com/vmitra/vmitra/internal/services/business/app"
	"github.com/vmitra/vmitra/internal/services/business/history"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/money"
	"github.com/vmitra/vmitra/internal/services/business/sale"
)

// Handler serves business endpoints.
type Handler struct {
	service *app.Service
}

// NewHandler builds a handler over service.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register mounts every route on mux, wrapping each with protect.
func (h *Handler) Register(mux *http.ServeMux, protect httpx.Middleware) {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}
	routes := map[string]http.HandlerFunc{
		"GET /api/v1/business/stats":                  h.handleStats,
		"POST /api/v1/business/record-sale":           h.handleRecordSale,
		"POST /api/v1/business/restock":               h.handleRestock,
		"GET /api/v1/business/inventory":              h.handleListInventory,
		"POST /api/v1/business/inventory":             h.handleCreateItem,
		"GET /api/v1/business/inventory/{id}":         h.handleGetItem,
		"PUT /api/v1/business/inventory/{id}":         h.handleUpdateItem,
		"DELETE /api/v1/business/inventory/{id}":      h.handleDeleteItem,
		"GET /api/v1/business/inventory/{id}/history": h.handleItemHistory,
		"POST /api/v1/business/inventory/{id}/adjust": h.handleAdjustStock,
		"GET /api/v1/business/sales":                  h.handleListSales,
		"GET /api/v1/business/sales/export":           h.handleExportSales,
		"GET /api/v1/business/sales/{id}":             h.handleGetSale,
		"DELETE /api/v1/business/sales/{id}":          h.handleDeleteSale,

		"GET /api/v1/history":                                     h.handleListHistory,
		"POST /api/v1/history":                                    h.handleAddHistory,
		"DELETE /api/v1/history":                                  h.handleClearHistory,
		"DELETE /api/v1/history/{id}":                             h.handleDeleteHistory,
		"POST /api/v1/history/{id}/messages/{messageId}/feedback": h.handleFeedback,
	}
	for pattern, handler := range routes {
		mux.Handle(pattern, protect(handler))
	}
}

type saleRequest struct {
	Items         []sale.Request `json:"items"`
	PaymentMethod string         `json:"paymentMethod"`
}

type restockRequest struct {
	Items []inventory.RestockRequest `json:"items"`
}

type itemRequest struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	Stock     int         `json:"stock"`
	Unit      string      `json:"unit"`
	Price     money.Money `json:"price"`
	CostPrice money.Money `json:"costPrice"`
}

func (r itemRequest) input() inventory.ItemInput {
	return inventory.ItemInput{
		ID:        r.ID,
		Name:      r.Name,
		Category:  r.Category,
		Stock:     r.Stock,
		Unit:      r.Unit,
		Price:     r.Price,
		CostPrice: r.CostPrice,
	}
}

type adjustRequest struct {
	NewStock *int   `json:"newStock"`
	Note     string `json:"note"`
}

type historyRequest struct {
	Messages []history.Message `json:"messages"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	result, err := h.service.RecordSale(r.Context(), req.Items, req.PaymentMethod)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	result, err := h.service.Restock(r.Context(), req.Items)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListInventory(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	item, err := h.service.PutItem(r.Context(), req.input())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	itemID := r.PathValue("id")
	if _, err := h.service.GetItem(r.Context(), itemID); err != nil {
		httpx.WriteError(w, err)
		return
	}
	req.ID = itemID
	item, err := h.service.PutItem(r.Context(), req.input())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleItemHistory(w http.ResponseWriter, r *http.Request) {
	adjustments, err := h.service.ItemHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, adjustments)
}

func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.NewStock == nil {
		httpx.WriteError(w, apperrors.New(apperrors.CodeInvalidRequest, "newStock is required"))
		return
	}
	item, err := h.service.AdjustStock(r.Context(), r.PathValue("id"), *req.NewStock, req.Note)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.ListSales(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, sales)
}

func (h *Handler) handleExportSales(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportSales(r.Context(), &buf); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, "sales.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleGetSale(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSale(r.Context(), r.PathValue("id")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListHistory(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	session, err := h.service.AddChatSession(r.Context(), req.Messages)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearHistory(r.Context()); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteChatSession(r.Context(), r.PathValue("id")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.service.SetFeedback(r.Context(), r.PathValue("id"), r.PathValue("messageId"), req.Feedback); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
