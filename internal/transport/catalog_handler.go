package transport

import (
	"net/http"
	"strconv"
	"strings"

	"jewel-store/internal/domain"
	"jewel-store/internal/middleware"
	"jewel-store/internal/repository"
	"jewel-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuoteRequest prices a selection without touching the cart
type QuoteRequest struct {
	Selection domain.Selection `json:"selection"`
	Quantity  int              `json:"quantity" validate:"gte=0,lte=99"`
}

// OptionsResponse lists the labels of one variant dimension
type OptionsResponse struct {
	Dimension string   `json:"dimension"`
	Options   []string `json:"options"`
}

// CatalogHandler serves the public storefront catalog
type CatalogHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers the public catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/categories", h.ListCategories)
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetProduct)
			r.Get("/recommended", h.Recommended)
			r.Get("/options/{dimension}", h.Options)
			r.Post("/quote", h.Quote)
		})
	})
}

// ListCategories returns every category
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list categories")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// ListProducts handles ?category=&q=&page=&page_size=&sort_by=&sort_order=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.ProductQuery{
		CategorySlug: q.Get("category"),
		Query:        q.Get("q"),
		Page:         atoiOrZero(q.Get("page")),
		PageSize:     atoiOrZero(q.Get("page_size")),
		SortBy:       q.Get("sort_by"),
		SortOrder:    repository.SortOrder(strings.ToUpper(q.Get("sort_order"))),
	}

	page, err := h.catalog.ListProducts(r.Context(), query)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct returns one product with its variant catalog and pricing
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Recommended returns other products of the same category
func (h *CatalogHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	products, err := h.catalog.Recommended(r.Context(), id, atoiOrZero(r.URL.Query().Get("limit")))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to load recommendations")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Options lists the labels of one variant dimension in catalog order
func (h *CatalogHandler) Options(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	dimension := chi.URLParam(r, "dimension")
	labels, err := h.catalog.Options(r.Context(), id, dimension)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list options")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, OptionsResponse{Dimension: dimension, Options: labels})
}

// Quote prices a selection. A missing quantity quotes one unit.
func (h *CatalogHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}

	var req QuoteRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	quote, err := h.catalog.Quote(r.Context(), id, req.Selection, req.Quantity)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to quote product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, quote)
}

func productIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return uuid.Nil, false
	}
	return id, true
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
