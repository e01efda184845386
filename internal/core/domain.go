package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	NewPurchase SupplierKind = "NEW_PURCHASE"
	PayDue      SupplierKind = "PAY_DUE"
	SettleBill  SupplierKind = "SETTLE_BILL"

	Gives LoanKind = "GIVES"
	Takes LoanKind = "TAKES"

	Supplier CounterpartyKind = "supplier"
	Person   CounterpartyKind = "person"
)

// DefaultCategory is used when a spend arrives without a category, including
// when the free-text parser is unavailable.
const DefaultCategory = "General"

// KnownCategories is the enumerated set offered for manual selection.
// Aggregation never assumes a spend category belongs to it.
var KnownCategories = []string{
	"Food",
	"Transport",
	"Shopping",
	"Bills",
	"Health",
	"Entertainment",
	"Education",
	"Rent",
	DefaultCategory,
}

type (
	SupplierKind     string
	LoanKind         string
	CounterpartyKind string

	Date struct {
		time.Time
	}

	// Counterparty is a supplier or a person the owner transacts with.
	Counterparty struct {
		ID      string           `json:"id"`
		OwnerID string           `json:"owner_id"`
		Name    string           `json:"name"`
		Kind    CounterpartyKind `json:"kind"`
	}

	// SupplierTransaction is one event on the supplier ledger.
	SupplierTransaction struct {
		ID             string          `json:"id"`
		OwnerID        string          `json:"owner_id"`
		CounterpartyID string          `json:"counterparty_id"`
		Kind           SupplierKind    `json:"kind"`
		Amount         decimal.Decimal `json:"amount"`
		Description    string          `json:"description,omitempty"`
		CreatedAt      time.Time       `json:"created_at"`
		DueDate        *Date           `json:"due_date,omitempty"`
		Settled        bool            `json:"settled"`
	}

	// LoanTransaction is one event on the person ledger.
	LoanTransaction struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"owner_id"`
		PersonID    string          `json:"person_id"`
		Kind        LoanKind        `json:"kind"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// Spend is a personal expenditure. Category is its only grouping key.
	Spend struct {
		ID        string          `json:"id"`
		OwnerID   string          `json:"owner_id"`
		Title     string          `json:"title"`
		Category  string          `json:"category"`
		Amount    decimal.Decimal `json:"amount"`
		Date      Date            `json:"date"`
		CreatedAt time.Time       `json:"created_at"`
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNegativeAmount      = errors.New("negative amount")
	ErrUnknownKind         = errors.New("unknown record kind")
	ErrEmptyOwner          = errors.New("empty owner id")
	ErrEmptyCounterparty   = errors.New("empty counterparty id")
	ErrEmptyName           = errors.New("empty name")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrCounterpartyKindBad = errors.New("counterparty kind must be supplier or person")
)

// DateLayout is the ISO calendar date layout used on the wire and in storage.
const DateLayout = "2006-01-02"

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// At returns midnight of the date in loc.
func (d Date) At(loc *time.Location) time.Time {
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(), 0, 0, 0, 0, loc)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Known reports whether the kind is one this version understands.
func (k SupplierKind) Known() bool {
	switch k {
	case NewPurchase, PayDue, SettleBill:
		return true
	}
	return false
}

// Known reports whether the kind is one this version understands.
func (k LoanKind) Known() bool {
	return k == Gives || k == Takes
}

func (k CounterpartyKind) Valid() bool {
	return k == Supplier || k == Person
}

// NormalizeCategory trims the label and substitutes DefaultCategory for blanks.
// Any other label is kept as-is.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultCategory
	}
	return c
}

// IsKnownCategory reports membership in KnownCategories (case-insensitive).
func IsKnownCategory(c string) bool {
	for _, k := range KnownCategories {
		if strings.EqualFold(k, c) {
			return true
		}
	}
	return false
}

func (c Counterparty) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Kind.Valid() {
		return ErrCounterpartyKindBad
	}
	return nil
}

func (t SupplierTransaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(t.CounterpartyID) == "" {
		return ErrEmptyCounterparty
	}
	if !t.Kind.Known() {
		return ErrUnknownKind
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if t.DueDate != nil {
		if err := t.DueDate.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t LoanTransaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(t.PersonID) == "" {
		return ErrEmptyCounterparty
	}
	if !t.Kind.Known() {
		return ErrUnknownKind
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (s Spend) Validate() error {
	if strings.TrimSpace(s.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := s.Date.Validate(); err != nil {
		return err
	}
	if s.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if len(s.Title) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}
