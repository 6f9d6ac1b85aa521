package api

import (
	"net/http"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/handler"
	"github.com/dukerupert/goodboy/internal/service"
)

// OrderHandler serves order lookups, tracking and admin fulfillment.
type OrderHandler struct {
	orders  service.OrderService
	tracker service.TrackerService
}

func NewOrderHandler(orders service.OrderService, tracker service.TrackerService) *OrderHandler {
	return &OrderHandler{orders: orders, tracker: tracker}
}

// Create handles POST /api/orders (direct ordering only)
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.DirectOrderRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.CreateDirect(r.Context(), req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, order)
}

// Get handles GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, order)
}

// Tracking handles GET /api/orders/{id}/tracking
func (h *OrderHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	tracking, err := h.tracker.Track(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, tracking)
}

// History handles GET /api/orders/history (authenticated)
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())
	if principal == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	orders, err := h.orders.History(r.Context(), principal.Email)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, orders)
}

// ListAll handles GET /api/admin/orders (admin)
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /api/admin/orders/{id}/status (admin)
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, order)
}
