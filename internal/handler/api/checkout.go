package api

import (
	"net/http"

	"github.com/dukerupert/goodboy/internal/handler"
	"github.com/dukerupert/goodboy/internal/service"
)

type CheckoutHandler struct {
	checkout service.CheckoutService
}

func NewCheckoutHandler(checkout service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// CreateSession handles POST /api/create-checkout-session
//
// Responds with {"url": "<hosted checkout page>"} for the browser to
// redirect to. Nothing is persisted until the provider confirms payment.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	session, err := h.checkout.CreateSession(r.Context(), req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]string{"url": session.URL})
}
