package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"khata/internal/amqp"
	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/metrics"
	"khata/internal/records"
)

var (
	ErrCounterpartyNotFound = errors.New("counterparty not found")
	ErrCounterpartyKind     = errors.New("counterparty has the wrong kind for this transaction")
	ErrZeroAmount           = errors.New("amount must be greater than zero")
)

// ChangePublisher announces written records. *amqp.Client satisfies it.
type ChangePublisher interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChanged) error
}

// LedgerService validates and persists ledger writes, then publishes a change
// event. Publishing is best effort: a stored record is never rolled back.
type LedgerService struct {
	store  records.Store
	events ChangePublisher
	now    func() time.Time
	newID  func() string
}

func NewLedgerService(store records.Store, events ChangePublisher) *LedgerService {
	return &LedgerService{
		store:  store,
		events: events,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CounterpartyInput creates a supplier or a person.
type CounterpartyInput struct {
	Name string                `json:"name"`
	Kind core.CounterpartyKind `json:"kind"`
}

// SupplierInput records one supplier ledger event.
type SupplierInput struct {
	CounterpartyID string            `json:"counterparty_id"`
	Kind           core.SupplierKind `json:"kind"`
	Amount         decimal.Decimal   `json:"amount"`
	Description    string            `json:"description"`
	DueDate        *core.Date        `json:"due_date,omitempty"`
}

// LoanInput records money given to or taken from a person.
type LoanInput struct {
	PersonID    string          `json:"person_id"`
	Kind        core.LoanKind   `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// SpendInput records a personal spend. A zero Date means today.
type SpendInput struct {
	Title    string          `json:"title"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Date     core.Date       `json:"date"`
}

func (s *LedgerService) CreateCounterparty(ctx context.Context, ownerID string, in CounterpartyInput) (core.Counterparty, error) {
	c := core.Counterparty{
		ID:      s.newID(),
		OwnerID: ownerID,
		Name:    strings.TrimSpace(in.Name),
		Kind:    in.Kind,
	}
	if err := c.Validate(); err != nil {
		return core.Counterparty{}, fmt.Errorf("validate counterparty: %w", err)
	}
	if err := s.store.SaveCounterparty(ctx, c); err != nil {
		return core.Counterparty{}, fmt.Errorf("save counterparty: %w", err)
	}
	s.written(ctx, records.KindCounterparty, ownerID, c.ID, c.ID, amqp.OpCreated)
	return c, nil
}

func (s *LedgerService) RecordSupplierTransaction(ctx context.Context, ownerID string, in SupplierInput) (core.SupplierTransaction, error) {
	t := core.SupplierTransaction{
		ID:             s.newID(),
		OwnerID:        ownerID,
		CounterpartyID: in.CounterpartyID,
		Kind:           in.Kind,
		Amount:         in.Amount,
		Description:    strings.TrimSpace(in.Description),
		CreatedAt:      s.now().UTC(),
		DueDate:        in.DueDate,
	}
	if err := checkAmount(t.Amount); err != nil {
		return core.SupplierTransaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.SupplierTransaction{}, fmt.Errorf("validate supplier transaction: %w", err)
	}
	if err := s.requireCounterparty(ctx, ownerID, t.CounterpartyID, core.Supplier); err != nil {
		return core.SupplierTransaction{}, err
	}
	if err := s.store.InsertSupplierTransaction(ctx, t); err != nil {
		return core.SupplierTransaction{}, fmt.Errorf("insert supplier transaction: %w", err)
	}
	s.written(ctx, records.KindSupplier, ownerID, t.ID, t.CounterpartyID, amqp.OpCreated)
	return t, nil
}

func (s *LedgerService) RecordLoanTransaction(ctx context.Context, ownerID string, in LoanInput) (core.LoanTransaction, error) {
	t := core.LoanTransaction{
		ID:          s.newID(),
		OwnerID:     ownerID,
		PersonID:    in.PersonID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now().UTC(),
	}
	if err := checkAmount(t.Amount); err != nil {
		return core.LoanTransaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.LoanTransaction{}, fmt.Errorf("validate loan transaction: %w", err)
	}
	if err := s.requireCounterparty(ctx, ownerID, t.PersonID, core.Person); err != nil {
		return core.LoanTransaction{}, err
	}
	if err := s.store.InsertLoanTransaction(ctx, t); err != nil {
		return core.LoanTransaction{}, fmt.Errorf("insert loan transaction: %w", err)
	}
	s.written(ctx, records.KindLoan, ownerID, t.ID, t.PersonID, amqp.OpCreated)
	return t, nil
}

// RecordSpend stores a spend and remembers its category as the owner's last
// used one.
func (s *LedgerService) RecordSpend(ctx context.Context, ownerID string, in SpendInput) (core.Spend, error) {
	now := s.now().UTC()
	sp := core.Spend{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Title:     strings.TrimSpace(in.Title),
		Category:  core.NormalizeCategory(in.Category),
		Amount:    in.Amount,
		Date:      in.Date,
		CreatedAt: now,
	}
	if sp.Date.IsZero() {
		sp.Date = core.DateOf(now)
	}
	if err := checkAmount(sp.Amount); err != nil {
		return core.Spend{}, err
	}
	if err := sp.Validate(); err != nil {
		return core.Spend{}, fmt.Errorf("validate spend: %w", err)
	}
	if err := s.store.InsertSpend(ctx, sp); err != nil {
		return core.Spend{}, fmt.Errorf("insert spend: %w", err)
	}
	if err := s.store.SetPreference(ctx, ownerID, records.PrefLastCategory, sp.Category); err != nil {
		slog.WarnContext(ctx, "Failed to remember last category",
			log.FieldComponent, log.ComponentLedger,
			log.FieldOwnerID, ownerID,
			log.FieldError, err)
	}
	s.written(ctx, records.KindSpend, ownerID, sp.ID, sp.Category, amqp.OpCreated)
	return sp, nil
}

// LastCategory returns the category of the owner's most recent spend, or
// core.DefaultCategory.
func (s *LedgerService) LastCategory(ctx context.Context, ownerID string) (string, error) {
	c, err := s.store.GetPreference(ctx, ownerID, records.PrefLastCategory)
	if err != nil {
		return "", fmt.Errorf("get last category: %w", err)
	}
	return core.NormalizeCategory(c), nil
}

// Update applies a partial edit. Amount edits must stay positive.
func (s *LedgerService) Update(ctx context.Context, kind records.Kind, ownerID, id string, e records.Edit) error {
	if !kind.Valid() {
		return fmt.Errorf("update %s: %w", kind, core.ErrUnknownKind)
	}
	if e.Empty() {
		return nil
	}
	if e.Amount != nil {
		if err := checkAmount(*e.Amount); err != nil {
			return err
		}
	}
	if err := s.store.Update(ctx, kind, ownerID, id, e); err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	s.written(ctx, kind, ownerID, id, "", amqp.OpUpdated)
	return nil
}

func (s *LedgerService) Delete(ctx context.Context, kind records.Kind, ownerID, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("delete %s: %w", kind, core.ErrUnknownKind)
	}
	if err := s.store.Delete(ctx, kind, ownerID, id); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	s.written(ctx, kind, ownerID, id, "", amqp.OpDeleted)
	return nil
}

func (s *LedgerService) requireCounterparty(ctx context.Context, ownerID, id string, kind core.CounterpartyKind) error {
	list, err := s.store.ListCounterparties(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list counterparties: %w", err)
	}
	for _, c := range list {
		if c.ID != id {
			continue
		}
		if c.Kind != kind {
			return fmt.Errorf("%s is a %s: %w", id, c.Kind, ErrCounterpartyKind)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", id, ErrCounterpartyNotFound)
}

func checkAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return core.ErrNegativeAmount
	}
	if d.IsZero() {
		return ErrZeroAmount
	}
	return nil
}

func (s *LedgerService) written(ctx context.Context, kind records.Kind, ownerID, id, entityID string, op amqp.Op) {
	metrics.RecordsWritten.WithLabelValues(string(kind), string(op)).Inc()
	slog.InfoContext(ctx, "Record written",
		log.NewFields().
			WithComponent(log.ComponentLedger).
			WithRecord(ownerID, string(kind), id).
			WithOperation(string(op)).
			ToSlice()...)

	if s.events == nil {
		return
	}
	msg := amqp.NewRecordChanged(ownerID, string(kind), id, entityID, op)
	if err := s.events.PublishRecordChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record change",
			log.FieldComponent, log.ComponentLedger,
			log.FieldRecordID, id,
			log.FieldError, err)
	}
}
