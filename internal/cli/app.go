package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"khata/internal/amqp"
	"khata/internal/backend"
	"khata/internal/log"
	"khata/internal/services"
)

const amqpConnectTimeout = 30 * time.Second

// app holds the long-lived collaborators of a command.
type app struct {
	store   *backend.Result
	events  *amqp.Client
	ledger  *services.LedgerService
	reports *services.ReportService
}

// newApp opens the configured store and, when requested and configured,
// the AMQP client.
func newApp(ctx context.Context, withEvents bool) (*app, error) {
	bcfg, err := backend.FromAppConfig(env.cfg)
	if err != nil {
		return nil, err
	}
	store, err := backend.NewFactory(env.logger.Logger).Create(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: store}

	var pub services.ChangePublisher
	if withEvents && env.cfg.EventsEnabled() {
		dialCtx, cancel := context.WithTimeout(ctx, amqpConnectTimeout)
		defer cancel()
		a.events, err = amqp.NewClient(dialCtx, env.cfg.AMQPURL, env.cfg.AMQPExchange, env.cfg.AMQPQueue)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect change events: %w", err)
		}
		pub = a.events
	}

	a.ledger = services.NewLedgerService(store.Store, pub)
	a.reports = services.NewReportService(store.Store, env.policy)
	return a, nil
}

// ready reports whether the store and broker are reachable.
func (a *app) ready(ctx context.Context) error {
	var errs []error
	if a.store.Ping != nil {
		if err := a.store.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if a.events != nil {
		if err := a.events.Ping(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			env.logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}
	if a.store.Cleanup != nil {
		if err := a.store.Cleanup(); err != nil {
			env.logger.Warn("Failed to close store", log.FieldError, err)
		}
	}
}
