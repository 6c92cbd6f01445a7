package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"order-lifecycle-svc/models"
)

func TestSimulatedGateway_SuccessRateIsRespected(t *testing.T) {
	gateway := NewSimulatedGateway(0, 0.5)
	order := &models.Order{ID: 1}

	const n = 200
	successes := 0
	for i := 0; i < n; i++ {
		ok, err := gateway.Charge(context.Background(), order)
		if err != nil {
			t.Fatalf("Charge returned error: %v", err)
		}
		if ok {
			successes++
		}
	}

	// Binomial 99% band for n=200, p=0.5 is roughly 100 +/- 19.
	if successes < 70 || successes > 130 {
		t.Errorf("Success count %d out of 200 is not consistent with p=0.5", successes)
	}
}

func TestSimulatedGateway_Extremes(t *testing.T) {
	order := &models.Order{ID: 1}

	always := NewSimulatedGateway(0, 1.0)
	for i := 0; i < 20; i++ {
		ok, err := always.Charge(context.Background(), order)
		if err != nil {
			t.Fatalf("Charge returned error: %v", err)
		}
		if !ok {
			t.Fatal("Expected success with rate 1.0")
		}
	}

	never := NewSimulatedGateway(0, 0.0)
	for i := 0; i < 20; i++ {
		ok, err := never.Charge(context.Background(), order)
		if err != nil {
			t.Fatalf("Charge returned error: %v", err)
		}
		if ok {
			t.Fatal("Expected failure with rate 0.0")
		}
	}
}

func TestSimulatedGateway_CancellationAbortsWait(t *testing.T) {
	gateway := NewSimulatedGateway(5*time.Second, 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	ok, err := gateway.Charge(ctx, &models.Order{ID: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if ok {
		t.Error("Expected no success on cancellation")
	}
	if time.Since(start) > time.Second {
		t.Error("Cancellation did not abort the latency wait")
	}
}
