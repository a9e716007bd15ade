package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orderflow/backend/internal/domain/order"
)

// ErrForwarderUnavailable indicates the forwarder rejected or dropped
// the request and the attempt may be retried
var ErrForwarderUnavailable = errors.New("fulfillment: forwarder service unavailable")

// SimulatedForwarderClient stands in for a real freight forwarder API,
// with the same latency and failure injection as the supplier client.
type SimulatedForwarderClient struct {
	failureRate float64
	latency     time.Duration
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedForwarderClient creates a forwarder client with the given
// failure rate (0 to 1) and per-call latency
func NewSimulatedForwarderClient(failureRate float64, latency time.Duration, logger *zap.Logger) *SimulatedForwarderClient {
	return &SimulatedForwarderClient{
		failureRate: failureRate,
		latency:     latency,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Dispatch hands the order to the forwarder and returns the tracking number
func (c *SimulatedForwarderClient) Dispatch(ctx context.Context, o *order.Order, forwarderID string) (string, error) {
	if err := simulateLatency(ctx, c.latency); err != nil {
		return "", err
	}

	if c.roll() {
		c.logger.Warn("Forwarder call failed",
			zap.String("order_id", o.ID.String()),
			zap.String("forwarder_id", forwarderID),
		)
		return "", ErrForwarderUnavailable
	}

	trackingNumber := fmt.Sprintf("TRK-%s", shortRef())
	c.logger.Info("Order dispatched to forwarder",
		zap.String("order_id", o.ID.String()),
		zap.String("forwarder_id", forwarderID),
		zap.String("tracking_number", trackingNumber),
	)
	return trackingNumber, nil
}

func (c *SimulatedForwarderClient) roll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < c.failureRate
}

var _ order.ForwarderClient = (*SimulatedForwarderClient)(nil)
