// Package api implements the JSON endpoints used by the storefront pages.
package api

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/dukerupert/goodboy/internal/handler"
	"github.com/dukerupert/goodboy/internal/service"
	"github.com/shopspring/decimal"
)

// ProductHandler serves the catalog.
type ProductHandler struct {
	catalog service.CatalogService
}

func NewProductHandler(catalog service.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// List handles GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, products)
}

// Get handles GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, product)
}

type updateProductRequest struct {
	Price    *decimal.Decimal `json:"price"`
	Stock    *int             `json:"stock"`
	Variants []domain.Variant `json:"variants"`
}

// Update handles PUT /api/products/{id} (admin)
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updateProductRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), id, domain.ProductUpdate{
		Price:    req.Price,
		Stock:    req.Stock,
		Variants: req.Variants,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, product)
}

func productID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, domain.ErrProductNotFound
	}
	return id, nil
}
