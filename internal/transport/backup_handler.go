package transport

import (
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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BackupProductData is one product row inside a backup file. Unlike the live
// product endpoints, backups carry no embedded image data.
type BackupProductData struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Category  string    `json:"category"`
	Amount    *string   `json:"amount,omitempty"`
	Available bool      `json:"available"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BackupOrderData is one order row inside a backup file. Unlike the live
// order endpoints it carries hidden and updatedAt, so restoring a backup
// keeps soft-deleted orders hidden instead of resurrecting them.
type BackupOrderData struct {
	ID        string             `json:"id"`
	Number    int                `json:"number"`
	Status    string             `json:"status"`
	Hidden    bool               `json:"hidden"`
	CreatedAt string             `json:"createdAt"`
	UpdatedAt string             `json:"updatedAt,omitempty"`
	Items     []OrderItemRequest `json:"items"`
}

// BackupFile is the on-disk backup format, both exported and accepted back.
type BackupFile struct {
	Version   string              `json:"version"`
	Timestamp time.Time           `json:"timestamp"`
	Orders    []BackupOrderData   `json:"orders"`
	Products  []BackupProductData `json:"products"`
}

// ImportBackupRequest represents the backup restore payload. Version and
// timestamp are accepted but not required, so hand-built files restore too.
type ImportBackupRequest struct {
	Version  string              `json:"version"`
	Orders   []BackupOrderData   `json:"orders"`
	Products []BackupProductData `json:"products"`
}

// ImportBackupResponse reports what a restore touched.
type ImportBackupResponse struct {
	Success  bool `json:"success"`
	Imported struct {
		Orders   int `json:"orders"`
		Products int `json:"products"`
	} `json:"imported"`
}

// BackupInfoResponse describes the current database for the settings screen.
type BackupInfoResponse struct {
	Database struct {
		Orders     int `json:"orders"`
		Products   int `json:"products"`
		OrderItems int `json:"orderItems"`
	} `json:"database"`
	LastBackup *time.Time `json:"lastBackup"`
}

func toBackupOrder(order *domain.Order) BackupOrderData {
	items := make([]OrderItemRequest, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemRequest{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			Price:     item.Price.InexactFloat64(),
			Quantity:  item.Quantity,
		})
	}

	return BackupOrderData{
		ID:        order.ID.String(),
		Number:    order.Number,
		Status:    string(order.Status),
		Hidden:    order.Hidden,
		CreatedAt: order.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: order.UpdatedAt.Format(time.RFC3339Nano),
		Items:     items,
	}
}

// toBackupImportOrder maps one backup order onto the repository input,
// preserving the soft-delete flag and the update timestamp the plain bulk
// import path does not carry.
func toBackupImportOrder(data BackupOrderData) (repository.ImportOrder, error) {
	order, err := toImportOrder(ImportOrderData{
		ID:        data.ID,
		Number:    data.Number,
		Status:    data.Status,
		CreatedAt: data.CreatedAt,
		Items:     data.Items,
	})
	if err != nil {
		return order, err
	}

	order.Hidden = data.Hidden
	if data.UpdatedAt != "" {
		updatedAt, err := parseTimestamp(data.UpdatedAt)
		if err != nil {
			return order, errors.New("invalid updatedAt timestamp: " + data.UpdatedAt)
		}
		order.UpdatedAt = updatedAt
	}
	return order, nil
}

func toBackupProduct(product *domain.Product) BackupProductData {
	return BackupProductData{
		ID:        product.ID.String(),
		Name:      product.Name,
		Price:     product.Price.InexactFloat64(),
		Category:  product.Category,
		Amount:    product.Amount,
		Available: product.Available,
		Hidden:    product.Hidden,
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
	}
}

// BackupHandler handles HTTP requests for backup operations
type BackupHandler struct {
	backupService service.BackupService
	logger        *zap.Logger
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(backupService service.BackupService, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{
		backupService: backupService,
		logger:        logger,
	}
}

// RegisterRoutes registers all backup routes
func (h *BackupHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/backup", func(r chi.Router) {
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Get("/info", h.Info)
	})
}

// Export streams the full store as a downloadable JSON file.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.backupService.Export(r.Context())
	if err != nil {
		h.logger.Error("Failed to export backup", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to export backup")
		return
	}

	file := BackupFile{
		Version:   snapshot.Version,
		Timestamp: snapshot.Timestamp,
		Orders:    make([]BackupOrderData, 0, len(snapshot.Orders)),
		Products:  make([]BackupProductData, 0, len(snapshot.Products)),
	}
	for _, order := range snapshot.Orders {
		file.Orders = append(file.Orders, toBackupOrder(order))
	}
	for _, product := range snapshot.Products {
		file.Products = append(file.Products, toBackupProduct(product))
	}

	filename := fmt.Sprintf("nighttangerine-pos-backup-%s.json", snapshot.Timestamp.Format("2006-01-02-150405"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	h.logger.Info("Backup exported",
		zap.Int("orders", len(file.Orders)),
		zap.Int("products", len(file.Products)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, file)
}

// Import restores a previously exported backup file.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportBackupRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Backup import decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Orders) == 0 && len(req.Products) == 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "backup contains no orders or products")
		return
	}

	products := make([]repository.ImportProduct, 0, len(req.Products))
	for _, data := range req.Products {
		product, err := toImportProduct(data)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		products = append(products, product)
	}

	orders := make([]repository.ImportOrder, 0, len(req.Orders))
	for _, data := range req.Orders {
		order, err := toBackupImportOrder(data)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		orders = append(orders, order)
	}

	importedOrders, importedProducts, err := h.backupService.Import(r.Context(), products, orders)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidBackup) {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid backup file")
			return
		}
		h.logger.Error("Failed to import backup", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to import backup")
		return
	}

	h.logger.Info("Backup imported",
		zap.Int("orders", importedOrders),
		zap.Int("products", importedProducts),
	)

	var resp ImportBackupResponse
	resp.Success = true
	resp.Imported.Orders = importedOrders
	resp.Imported.Products = importedProducts
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Info returns row counts for the settings screen.
func (h *BackupHandler) Info(w http.ResponseWriter, r *http.Request) {
	counts, err := h.backupService.Info(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch backup info", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch backup info")
		return
	}

	var resp BackupInfoResponse
	resp.Database.Orders = counts.Orders
	resp.Database.Products = counts.Products
	resp.Database.OrderItems = counts.OrderItems
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

func toImportProduct(data BackupProductData) (repository.ImportProduct, error) {
	var product repository.ImportProduct

	id, err := uuid.Parse(data.ID)
	if err != nil {
		return product, errors.New("invalid product ID: " + data.ID)
	}
	if data.Name == "" {
		return product, errors.New("product name is required")
	}
	price := decimal.NewFromFloat(data.Price)
	if !price.IsPositive() {
		return product, errors.New("product price must be greater than 0")
	}

	category := data.Category
	if category == "" {
		category = "imported"
	}

	product = repository.ImportProduct{
		ID:        id,
		Name:      data.Name,
		Price:     price,
		Category:  category,
		Amount:    data.Amount,
		Available: data.Available,
		Hidden:    data.Hidden,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
	return product, nil
}
