package gateway

import (
	"context"
	"errors"
	"net"
	"time"

	"eventhub/internal/status"
	"eventhub/monitoring"
	"eventhub/utils"
)

// Guarded bounds every call to the wrapped gateway with a timeout and a circuit breaker
// and turns transport failures into external-service errors. Calls are never retried.
type Guarded struct {
	next    Gateway
	timeout time.Duration
	breaker *utils.CircuitBreaker
	monitor *monitoring.Monitor
}

func NewGuarded(next Gateway, timeout time.Duration, monitor *monitoring.Monitor) *Guarded {
	return &Guarded{
		next:    next,
		timeout: timeout,
		breaker: utils.NewCircuitBreaker(string(next.Provider())),
		monitor: monitor,
	}
}

func (g *Guarded) Provider() Provider {
	return g.next.Provider()
}

func (g *Guarded) CreateInvoice(ctx context.Context, req *InvoiceRequest) (*Invoice, error) {
	res, err := g.call(ctx, "create_invoice", func(ctx context.Context) (any, error) {
		return g.next.CreateInvoice(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Invoice), nil
}

func (g *Guarded) Refund(ctx context.Context, req *RefundRequest) (*Refund, error) {
	res, err := g.call(ctx, "refund", func(ctx context.Context) (any, error) {
		return g.next.Refund(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Refund), nil
}

func (g *Guarded) call(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	res, err := g.breaker.Execute(ctx, func() (any, error) {
		return fn(ctx)
	})
	g.monitor.ObserveGateway(op, err, time.Since(start))

	if err != nil {
		return nil, classify(op, err)
	}
	return res, nil
}

func classify(op string, err error) error {
	var se *status.Error
	if errors.As(err, &se) {
		return err
	}

	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return status.External(status.CodeGatewayTimeout, "payment gateway timed out", err)
	case errors.Is(err, utils.ErrCircuitOpen), errors.Is(err, utils.ErrTooManyRequests):
		return status.External(status.CodeGatewayUnavailable, "payment gateway temporarily unavailable", err)
	default:
		return status.External(status.CodeGatewayUnavailable, "payment gateway "+op+" failed", err)
	}
}
