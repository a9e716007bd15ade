package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderflow/backend/internal/domain/order"
)

// ErrSupplierUnavailable indicates the supplier rejected or dropped the
// request and the attempt may be retried
var ErrSupplierUnavailable = errors.New("fulfillment: supplier service unavailable")

// SimulatedSupplierClient stands in for a real supplier API. It injects
// configurable latency and a configurable failure rate so the retry path
// can be exercised without a live upstream.
type SimulatedSupplierClient struct {
	failureRate float64
	latency     time.Duration
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSupplierClient creates a supplier client with the given
// failure rate (0 to 1) and per-call latency
func NewSimulatedSupplierClient(failureRate float64, latency time.Duration, logger *zap.Logger) *SimulatedSupplierClient {
	return &SimulatedSupplierClient{
		failureRate: failureRate,
		latency:     latency,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// PlaceOrder submits a purchase to the supplier and returns the supplier
// side order reference
func (c *SimulatedSupplierClient) PlaceOrder(ctx context.Context, o *order.Order) (string, error) {
	if err := simulateLatency(ctx, c.latency); err != nil {
		return "", err
	}

	if c.roll() {
		c.logger.Warn("Supplier call failed",
			zap.String("order_id", o.ID.String()),
			zap.String("platform", o.Platform),
		)
		return "", ErrSupplierUnavailable
	}

	supplierOrderID := fmt.Sprintf("SUP-%s", shortRef())
	c.logger.Info("Supplier order placed",
		zap.String("order_id", o.ID.String()),
		zap.String("supplier_order_id", supplierOrderID),
	)
	return supplierOrderID, nil
}

func (c *SimulatedSupplierClient) roll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < c.failureRate
}

// simulateLatency blocks for the configured delay, honoring cancellation
func simulateLatency(ctx context.Context, latency time.Duration) error {
	if latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shortRef() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

var _ order.SupplierClient = (*SimulatedSupplierClient)(nil)
