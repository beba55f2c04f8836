package service

import (
	"context"
	"time"

	"nighttangerine-pos/internal/domain"
	"nighttangerine-pos/internal/repository"
)

// BackupSnapshot is a complete copy of the store at one point in time.
type BackupSnapshot struct {
	Version   string
	Timestamp time.Time
	Orders    []*domain.Order
	Products  []*domain.Product
}

// BackupCounts reports the table sizes shown by the backup info endpoint.
type BackupCounts struct {
	Orders     int
	Products   int
	OrderItems int
}

// BackupService defines the interface for backup business logic
type BackupService interface {
	Export(ctx context.Context) (*BackupSnapshot, error)
	Import(ctx context.Context, products []repository.ImportProduct, orders []repository.ImportOrder) (importedOrders, importedProducts int, err error)
	Info(ctx context.Context) (*BackupCounts, error)
}

type backupService struct {
	backupRepo repository.BackupRepository
	notifier   OrderNotifier
}

// NewBackupService creates a new instance of BackupService
func NewBackupService(backupRepo repository.BackupRepository, notifier OrderNotifier) BackupService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &backupService{backupRepo: backupRepo, notifier: notifier}
}

// Export assembles a full snapshot for download.
func (s *backupService) Export(ctx context.Context) (*BackupSnapshot, error) {
	orders, products, err := s.backupRepo.Export(ctx)
	if err != nil {
		return nil, err
	}

	return &BackupSnapshot{
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Orders:    orders,
		Products:  products,
	}, nil
}

// Import restores a snapshot and pushes a fresh realtime view, since the
// restored orders may change what displays should show.
func (s *backupService) Import(ctx context.Context, products []repository.ImportProduct, orders []repository.ImportOrder) (int, int, error) {
	importedOrders, importedProducts, err := s.backupRepo.Import(ctx, products, orders)
	if err != nil {
		return 0, 0, err
	}

	s.notifier.OrdersChanged()
	return importedOrders, importedProducts, nil
}

// Info returns current row counts.
func (s *backupService) Info(ctx context.Context) (*BackupCounts, error) {
	orders, products, orderItems, err := s.backupRepo.Counts(ctx)
	if err != nil {
		return nil, err
	}

	return &BackupCounts{Orders: orders, Products: products, OrderItems: orderItems}, nil
}
