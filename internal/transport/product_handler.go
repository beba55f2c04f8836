package transport

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nighttangerine-pos/internal/domain"
	"nighttangerine-pos/internal/middleware"
	"nighttangerine-pos/internal/repository"
	"nighttangerine-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductResponse represents product data returned to clients. When the
// product has no external URL but carries an embedded image, a data URI is
// synthesized on the fly.
type ProductResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Category  string    `json:"category"`
	Amount    *string   `json:"amount"`
	Available bool      `json:"available"`
	Hidden    bool      `json:"hidden"`
	ImageURL  *string   `json:"image_url"`
	HasImage  bool      `json:"has_image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(product *domain.Product) ProductResponse {
	imageURL := product.ImageURL
	if imageURL == nil && product.HasImage() {
		mime := "application/octet-stream"
		if product.ImageMimeType != nil {
			mime = *product.ImageMimeType
		}
		uri := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(product.ImageData))
		imageURL = &uri
	}

	return ProductResponse{
		ID:        product.ID.String(),
		Name:      product.Name,
		Price:     product.Price.InexactFloat64(),
		Category:  product.Category,
		Amount:    product.Amount,
		Available: product.Available,
		Hidden:    product.Hidden,
		ImageURL:  imageURL,
		HasImage:  product.HasImage(),
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
	}
}

func toProductResponses(products []*domain.Product) []ProductResponse {
	responses := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		responses = append(responses, toProductResponse(product))
	}
	return responses
}

// ProductHandler handles HTTP requests for product operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/available", h.ListAvailable)
		r.Get("/category/{category}", h.ListByCategory)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Patch("/{id}/availability", h.ToggleAvailability)
		r.Delete("/{id}", h.Delete)
	})
}

// List returns all products, optionally filtered by the category query param.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		products []*domain.Product
		err      error
	)

	if category := r.URL.Query().Get("category"); category != "" {
		products, err = h.productService.ListByCategory(r.Context(), category)
	} else {
		products, err = h.productService.ListAll(r.Context())
	}
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponses(products))
}

// ListAvailable returns products that are not hidden.
func (h *ProductHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.ListAvailable(r.Context())
	if err != nil {
		h.logger.Error("Failed to list available products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch available products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponses(products))
}

// ListByCategory returns products in the path category.
func (h *ProductHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	products, err := h.productService.ListByCategory(r.Context(), category)
	if err != nil {
		h.logger.Error("Failed to list products by category", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch products by category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponses(products))
}

// Get returns one product by ID.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.GetByID(r.Context(), id)
	if err != nil {
		h.respondProductError(w, err, "failed to fetch product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// Create handles product creation
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Product create decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := req.toCreateInput()
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.productService.Create(r.Context(), input)
	if err != nil {
		h.respondProductError(w, err, "failed to create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update handles partial product updates
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Product update decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := req.toUpdateInput()
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.productService.Update(r.Context(), id, input)
	if err != nil {
		h.respondProductError(w, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// ToggleAvailability flips the hidden flag on a product.
func (h *ProductHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.ToggleAvailability(r.Context(), id)
	if err != nil {
		h.respondProductError(w, err, "failed to toggle product availability")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete removes a product unless it has order history.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductHasOrders) {
			middleware.RespondWithError(w, http.StatusConflict,
				"This product appears in one or more orders and cannot be deleted. Hide it instead.")
			return
		}
		h.respondProductError(w, err, "failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) respondProductError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidImage):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}
