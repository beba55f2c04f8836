package service

import (
	"context"
	"fmt"

	"nighttangerine-pos/internal/domain"
	"nighttangerine-pos/internal/repository"

	"github.com/google/uuid"
)

// OrderNotifier is poked after every mutation that changes which orders are
// in flight, so connected displays can be pushed a fresh snapshot. Delivery
// is best-effort and never affects the outcome of the mutation.
type OrderNotifier interface {
	OrdersChanged()
}

// NopNotifier is an OrderNotifier that does nothing.
type NopNotifier struct{}

func (NopNotifier) OrdersChanged() {}

// OrderService defines the interface for order business logic
type OrderService interface {
	Create(ctx context.Context, items []repository.CreateOrderItem) (*domain.Order, error)
	ListActive(ctx context.Context, includeHidden bool) ([]*domain.Order, error)
	ListFinished(ctx context.Context, includeHidden bool) ([]*domain.Order, error)
	Finish(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkImport(ctx context.Context, orders []repository.ImportOrder) ([]*domain.Order, error)
	Snapshot(ctx context.Context) (preparing, finished []*domain.Order, err error)
}

type orderService struct {
	orderRepo     repository.OrderRepository
	notifier      OrderNotifier
	finishedLimit int
}

// NewOrderService creates a new instance of OrderService. finishedLimit caps
// the finished-orders listing and snapshot page size.
func NewOrderService(orderRepo repository.OrderRepository, notifier OrderNotifier, finishedLimit int) OrderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &orderService{
		orderRepo:     orderRepo,
		notifier:      notifier,
		finishedLimit: finishedLimit,
	}
}

// Create places a new order and pushes an updated snapshot to displays.
func (s *orderService) Create(ctx context.Context, items []repository.CreateOrderItem) (*domain.Order, error) {
	order, err := s.orderRepo.Create(ctx, items)
	if err != nil {
		return nil, err
	}

	s.notifier.OrdersChanged()
	return order, nil
}

func (s *orderService) ListActive(ctx context.Context, includeHidden bool) ([]*domain.Order, error) {
	return s.orderRepo.FindActive(ctx, includeHidden)
}

func (s *orderService) ListFinished(ctx context.Context, includeHidden bool) ([]*domain.Order, error) {
	return s.orderRepo.FindFinished(ctx, includeHidden, s.finishedLimit)
}

// Finish marks an order finished. Finishing twice is a no-op success.
func (s *orderService) Finish(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.MarkFinished(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifier.OrdersChanged()
	return order, nil
}

// Delete hides an order from default listings without removing it.
func (s *orderService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.notifier.OrdersChanged()
	return nil
}

// BulkImport reconciles an externally sourced batch against the store.
func (s *orderService) BulkImport(ctx context.Context, orders []repository.ImportOrder) ([]*domain.Order, error) {
	imported, err := s.orderRepo.BulkImport(ctx, orders)
	if err != nil {
		return nil, err
	}

	s.notifier.OrdersChanged()
	return imported, nil
}

// Snapshot recomputes the realtime view: orders currently preparing and the
// recently finished list, hidden orders excluded.
func (s *orderService) Snapshot(ctx context.Context) ([]*domain.Order, []*domain.Order, error) {
	active, err := s.orderRepo.FindActive(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	preparing := make([]*domain.Order, 0, len(active))
	for _, order := range active {
		if order.Status == domain.StatusPreparing {
			preparing = append(preparing, order)
		}
	}

	finished, err := s.orderRepo.FindFinished(ctx, false, s.finishedLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	return preparing, finished, nil
}
