package services

import (
	"context"
	"fmt"
	"log/slog"

	"khata/internal/amqp"
	"khata/internal/log"
	"khata/internal/metrics"
	"khata/internal/records"
)

// ChangeConsumer delivers record change events. *amqp.Client satisfies it.
type ChangeConsumer interface {
	ConsumeRecordChanges(ctx context.Context, handler func(context.Context, *amqp.RecordChanged) error) error
}

// Reconciler re-derives an owner's balances after every change event and
// reports entities whose balance disagrees with their period totals.
type Reconciler struct {
	reports *ReportService
}

func NewReconciler(reports *ReportService) *Reconciler {
	return &Reconciler{reports: reports}
}

// Run consumes events until ctx is done or the consumer fails.
func (r *Reconciler) Run(ctx context.Context, consumer ChangeConsumer) error {
	slog.InfoContext(ctx, "Reconciler started", log.FieldComponent, log.ComponentReconciler)
	err := consumer.ConsumeRecordChanges(ctx, r.Handle)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume record changes: %w", err)
	}
	slog.InfoContext(ctx, "Reconciler stopped", log.FieldComponent, log.ComponentReconciler)
	return nil
}

// Handle processes one change event. Mismatches are logged, not returned,
// so the message is acknowledged; store failures are returned for requeue.
func (r *Reconciler) Handle(ctx context.Context, msg *amqp.RecordChanged) error {
	slog.DebugContext(ctx, "Processing record change",
		log.NewFields().
			WithComponent(log.ComponentReconciler).
			WithOperation(log.OpReconcile).
			WithRecord(msg.OwnerID, msg.Kind, msg.RecordID).
			ToSlice()...)

	if msg.Kind == string(records.KindCounterparty) && msg.Op != amqp.OpDeleted {
		return nil
	}

	bad, err := r.reports.CrossCheck(ctx, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("cross-check owner %s: %w", msg.OwnerID, err)
	}
	for _, res := range bad {
		metrics.CrossCheckMismatches.Inc()
		slog.ErrorContext(ctx, "Balance does not match period totals",
			log.FieldComponent, log.ComponentReconciler,
			log.FieldOwnerID, msg.OwnerID,
			log.FieldEntityID, res.EntityID,
			"balance", res.Balance.String(),
			"period_net", res.PeriodNet.String())
	}
	return nil
}
