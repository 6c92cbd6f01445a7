package processor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"order-lifecycle-svc/models"
)

// PaymentGateway models the external payment provider the processor calls
// while an order sits in PROCESSING. Tests supply deterministic fakes.
type PaymentGateway interface {
	Charge(ctx context.Context, order *models.Order) (bool, error)
}

// SimulatedGateway blocks for a fixed latency and then succeeds with a
// configured probability, standing in for a real payment round trip.
type SimulatedGateway struct {
	latency     time.Duration
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedGateway(latency time.Duration, successRate float64) *SimulatedGateway {
	return &SimulatedGateway{
		latency:     latency,
		successRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Charge waits out the simulated latency, aborting if the context is
// cancelled, then draws the payment outcome.
func (g *SimulatedGateway) Charge(ctx context.Context, order *models.Order) (bool, error) {
	timer := time.NewTimer(g.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
	}

	g.mu.Lock()
	success := g.rng.Float64() < g.successRate
	g.mu.Unlock()

	return success, nil
}
