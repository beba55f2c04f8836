package transport

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"nighttangerine-pos/internal/domain"
	"nighttangerine-pos/internal/middleware"
	"nighttangerine-pos/internal/repository"
	"nighttangerine-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderItemRequest is one line of a new or imported order. Price is trusted
// as the current price at order-placement time and snapshotted verbatim.
type OrderItemRequest struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price" validate:"gt=0"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
}

// CreateOrderRequest represents the order creation payload
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ImportOrderData is one externally sourced order in a bulk import batch.
type ImportOrderData struct {
	ID        string             `json:"id" validate:"required"`
	Number    int                `json:"number" validate:"gt=0"`
	Status    string             `json:"status" validate:"required"`
	CreatedAt string             `json:"createdAt" validate:"required"`
	Items     []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ImportOrdersRequest represents the bulk import payload
type ImportOrdersRequest struct {
	Orders []ImportOrderData `json:"orders"`
}

// OrderItemResponse represents one order line returned to clients.
type OrderItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// OrderResponse represents an order returned to clients.
type OrderResponse struct {
	ID        string              `json:"id"`
	Number    int                 `json:"number"`
	Status    domain.OrderStatus  `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
	Items     []OrderItemResponse `json:"items"`
}

// ImportOrdersResponse represents the bulk import result.
type ImportOrdersResponse struct {
	Imported int             `json:"imported"`
	Orders   []OrderResponse `json:"orders"`
}

func toOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			Price:     item.Price.InexactFloat64(),
			Quantity:  item.Quantity,
		})
	}

	return OrderResponse{
		ID:        order.ID.String(),
		Number:    order.Number,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		Items:     items,
	}
}

func toOrderResponses(orders []*domain.Order) []OrderResponse {
	responses := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, toOrderResponse(order))
	}
	return responses
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/import", h.Import)
		r.Patch("/{id}/finish", h.Finish)
		r.Delete("/{id}", h.Delete)
	})
}

// List returns orders by status bucket: active (default) or finished.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	includeHidden := parseBoolParam(r.URL.Query().Get("includeHidden"))

	var (
		orders []*domain.Order
		err    error
	)
	if status == "finished" {
		orders, err = h.orderService.ListFinished(r.Context(), includeHidden)
	} else {
		orders, err = h.orderService.ListActive(r.Context(), includeHidden)
	}
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponses(orders))
}

// Create handles order placement
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order create validation failed", zap.Error(err))

		if len(req.Items) == 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "items are required")
			return
		}
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := toCreateItems(req.Items)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orderService.Create(r.Context(), items)
	if err != nil {
		if errors.Is(err, repository.ErrNoItems) {
			middleware.RespondWithError(w, http.StatusBadRequest, "items are required")
			return
		}
		h.logger.Error("Failed to create order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	h.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.Int("number", order.Number),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toOrderResponse(order))
}

// Finish marks an order as finished. Repeated calls are no-op successes.
func (h *OrderHandler) Finish(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.Finish(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("Failed to finish order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to finish order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// Delete soft-deletes (hides) an order.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.orderService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("Failed to delete order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Import handles bulk order import
func (h *OrderHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportOrdersRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order import validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Orders) == 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "orders array is required")
		return
	}

	batch := make([]repository.ImportOrder, 0, len(req.Orders))
	for _, data := range req.Orders {
		order, err := toImportOrder(data)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		batch = append(batch, order)
	}

	imported, err := h.orderService.BulkImport(r.Context(), batch)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyImport) {
			middleware.RespondWithError(w, http.StatusBadRequest, "orders array is required")
			return
		}
		h.logger.Error("Failed to import orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to import orders")
		return
	}

	h.logger.Info("Orders imported", zap.Int("count", len(imported)))
	middleware.RespondWithJSON(w, http.StatusCreated, ImportOrdersResponse{
		Imported: len(imported),
		Orders:   toOrderResponses(imported),
	})
}

func toCreateItems(requests []OrderItemRequest) ([]repository.CreateOrderItem, error) {
	items := make([]repository.CreateOrderItem, 0, len(requests))
	for _, req := range requests {
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			return nil, errors.New("invalid product ID: " + req.ProductID)
		}
		items = append(items, repository.CreateOrderItem{
			ProductID: productID,
			Name:      strings.TrimSpace(req.Name),
			Price:     decimal.NewFromFloat(req.Price),
			Quantity:  req.Quantity,
		})
	}
	return items, nil
}

func toImportOrder(data ImportOrderData) (repository.ImportOrder, error) {
	var order repository.ImportOrder

	id, err := uuid.Parse(data.ID)
	if err != nil {
		return order, errors.New("invalid order ID: " + data.ID)
	}

	status := domain.OrderStatus(data.Status)
	if !status.Valid() {
		return order, errors.New("invalid order status: " + data.Status)
	}

	createdAt, err := parseTimestamp(data.CreatedAt)
	if err != nil {
		return order, errors.New("invalid createdAt timestamp: " + data.CreatedAt)
	}

	items, err := toCreateItems(data.Items)
	if err != nil {
		return order, err
	}

	order = repository.ImportOrder{
		ID:        id,
		Number:    data.Number,
		Status:    status,
		CreatedAt: createdAt,
		Items:     items,
	}
	return order, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp")
}

func parseBoolParam(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true":
		return true
	}
	return false
}
