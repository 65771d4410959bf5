package library

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// loanMetrics counts loan workflow outcomes.
type loanMetrics struct {
	created  metric.Int64Counter
	returned metric.Int64Counter
	rejected metric.Int64Counter
}

func newLoanMetrics(meter metric.Meter) *loanMetrics {
	return &loanMetrics{
		created:  counter(meter, "library.loans.created", "Loans opened"),
		returned: counter(meter, "library.loans.returned", "Loans closed by a return"),
		rejected: counter(meter, "library.loans.rejected", "Loan or return requests refused"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (m *loanMetrics) loanCreated(ctx context.Context) {
	m.created.Add(ctx, 1)
}

func (m *loanMetrics) loanReturned(ctx context.Context, late bool) {
	m.returned.Add(ctx, 1, metric.WithAttributes(attribute.Bool("late", late)))
}

func (m *loanMetrics) loanRejected(ctx context.Context, op string, err error) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("reason", err.Error()),
	))
}
