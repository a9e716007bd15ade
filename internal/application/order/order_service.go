package order

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderflow/backend/internal/domain/audit"
	"github.com/orderflow/backend/internal/domain/order"
	"github.com/orderflow/backend/internal/domain/shared"
)

// OrderService handles order registration and read operations. Status
// mutations go through ActionService, JobService and WebhookService.
type OrderService struct {
	orderRepo order.Repository
	auditRepo audit.Repository
	logger    *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(orderRepo order.Repository, auditRepo audit.Repository, logger *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Create registers a new order in PENDING
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	o, err := order.New(req.Platform, req.PlatformOrderRef, req.Qty, req.UnitPrice, req.Currency)
	if err != nil {
		return nil, err
	}

	for k, v := range req.Meta {
		o.SetMeta(k, v)
	}

	if err := s.orderRepo.Create(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("order_id", o.ID.String()),
		zap.String("platform", o.Platform),
		zap.String("platform_order_ref", o.PlatformOrderRef),
	)

	response := ToOrderResponse(o)
	return &response, nil
}

// GetByID retrieves an order by ID
func (s *OrderService) GetByID(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	response := ToOrderResponse(o)
	return &response, nil
}

// List retrieves orders with filtering and pagination
func (s *OrderService) List(ctx context.Context, filter OrderListFilter) (*shared.Paginated[OrderResponse], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	if filter.Platform != "" {
		domainFilter.Filters["platform"] = filter.Platform
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}
	if filter.Search != "" {
		domainFilter.Filters["search"] = filter.Search
	}

	orders, err := s.orderRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.orderRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	result := shared.NewPaginated(ToOrderResponses(orders), total, filter.Page, filter.PageSize)
	return &result, nil
}

// GetAuditTrail returns the full audit trail for an order, oldest first
func (s *OrderService) GetAuditTrail(ctx context.Context, orderID uuid.UUID) ([]AuditEntryResponse, error) {
	if _, err := s.orderRepo.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	entries, err := s.auditRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return ToAuditEntryResponses(entries), nil
}
