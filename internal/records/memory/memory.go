package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"khata/internal/core"
	"khata/internal/records"
)

var _ records.Store = (*Store)(nil)

// Store keeps records in process memory. It is the default backend and the
// double used by service tests.
type Store struct {
	mu             sync.Mutex
	cats           []string
	counterparties []core.Counterparty
	supplier       []core.SupplierTransaction
	loans          []core.LoanTransaction
	spends         []core.Spend
	prefs          map[string]string
}

func New(cats []string) *Store {
	return &Store{cats: dedupe(cats), prefs: map[string]string{}}
}

// NewFromFiles seeds the category list from base/seed_categories.txt and
// falls back to core.KnownCategories when the file is missing or empty.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = core.KnownCategories
	}
	return New(cats)
}

func (s *Store) Close() error { return nil }

func (s *Store) Snapshot(_ context.Context, ownerID string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := core.Snapshot{OwnerID: ownerID}
	for _, c := range s.counterparties {
		if c.OwnerID == ownerID {
			snap.Counterparties = append(snap.Counterparties, c)
		}
	}
	for _, t := range s.supplier {
		if t.OwnerID == ownerID {
			snap.Supplier = append(snap.Supplier, cloneSupplier(t))
		}
	}
	for _, t := range s.loans {
		if t.OwnerID == ownerID {
			snap.Loans = append(snap.Loans, t)
		}
	}
	for _, sp := range s.spends {
		if sp.OwnerID == ownerID {
			snap.Spends = append(snap.Spends, sp)
		}
	}
	return snap, nil
}

func (s *Store) ListCounterparties(_ context.Context, ownerID string) ([]core.Counterparty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Counterparty
	for _, c := range s.counterparties {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListSupplierTransactions(_ context.Context, ownerID string, f records.Filter) ([]core.SupplierTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.SupplierTransaction
	for _, t := range s.supplier {
		if t.OwnerID == ownerID && f.Match(t.CounterpartyID, t.CreatedAt) {
			out = append(out, cloneSupplier(t))
		}
	}
	return out, nil
}

func (s *Store) ListLoanTransactions(_ context.Context, ownerID string, f records.Filter) ([]core.LoanTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LoanTransaction
	for _, t := range s.loans {
		if t.OwnerID == ownerID && f.Match(t.PersonID, t.CreatedAt) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListSpends(_ context.Context, ownerID string, f records.Filter) ([]core.Spend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Spend
	for _, sp := range s.spends {
		if sp.OwnerID == ownerID && f.MatchDate(sp.EntityID(), sp.Date) {
			out = append(out, sp)
		}
	}
	return out, nil
}

// Categories returns the seeded categories followed by labels in use.
func (s *Store) Categories(_ context.Context, ownerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var used []string
	for _, sp := range s.spends {
		if sp.OwnerID == ownerID {
			used = append(used, core.NormalizeCategory(sp.Category))
		}
	}
	return records.MergeCategories(s.cats, used), nil
}

// SaveCounterparty inserts c or replaces the counterparty with the same ID.
func (s *Store) SaveCounterparty(_ context.Context, c core.Counterparty) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.counterparties {
		if s.counterparties[i].ID == c.ID && s.counterparties[i].OwnerID == c.OwnerID {
			s.counterparties[i] = c
			return nil
		}
	}
	s.counterparties = append(s.counterparties, c)
	return nil
}

func (s *Store) InsertSupplierTransaction(_ context.Context, t core.SupplierTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supplier = append(s.supplier, cloneSupplier(t))
	return nil
}

func (s *Store) InsertLoanTransaction(_ context.Context, t core.LoanTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans = append(s.loans, t)
	return nil
}

func (s *Store) InsertSpend(_ context.Context, sp core.Spend) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spends = append(s.spends, sp)
	return nil
}

// Update applies e to one record. The edited record must still validate.
func (s *Store) Update(_ context.Context, kind records.Kind, ownerID, id string, e records.Edit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case records.KindCounterparty:
		for i, c := range s.counterparties {
			if c.OwnerID == ownerID && c.ID == id {
				if e.Name != nil {
					c.Name = *e.Name
				}
				if err := c.Validate(); err != nil {
					return err
				}
				s.counterparties[i] = c
				return nil
			}
		}
	case records.KindSupplier:
		for i, t := range s.supplier {
			if t.OwnerID == ownerID && t.ID == id {
				records.ApplySupplier(&t, e)
				if err := t.Validate(); err != nil {
					return err
				}
				s.supplier[i] = t
				return nil
			}
		}
	case records.KindLoan:
		for i, t := range s.loans {
			if t.OwnerID == ownerID && t.ID == id {
				records.ApplyLoan(&t, e)
				if err := t.Validate(); err != nil {
					return err
				}
				s.loans[i] = t
				return nil
			}
		}
	case records.KindSpend:
		for i, sp := range s.spends {
			if sp.OwnerID == ownerID && sp.ID == id {
				records.ApplySpend(&sp, e)
				if err := sp.Validate(); err != nil {
					return err
				}
				s.spends[i] = sp
				return nil
			}
		}
	default:
		return fmt.Errorf("unsupported record kind: %s", kind)
	}
	return records.ErrNotFound
}

func (s *Store) Delete(_ context.Context, kind records.Kind, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found bool
	switch kind {
	case records.KindCounterparty:
		s.counterparties, found = remove(s.counterparties, func(c core.Counterparty) bool { return c.OwnerID == ownerID && c.ID == id })
	case records.KindSupplier:
		s.supplier, found = remove(s.supplier, func(t core.SupplierTransaction) bool { return t.OwnerID == ownerID && t.ID == id })
	case records.KindLoan:
		s.loans, found = remove(s.loans, func(t core.LoanTransaction) bool { return t.OwnerID == ownerID && t.ID == id })
	case records.KindSpend:
		s.spends, found = remove(s.spends, func(sp core.Spend) bool { return sp.OwnerID == ownerID && sp.ID == id })
	default:
		return fmt.Errorf("unsupported record kind: %s", kind)
	}
	if !found {
		return records.ErrNotFound
	}
	return nil
}

func (s *Store) GetPreference(_ context.Context, ownerID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs[ownerID+"/"+key], nil
}

func (s *Store) SetPreference(_ context.Context, ownerID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[ownerID+"/"+key] = value
	return nil
}

func remove[T any](in []T, match func(T) bool) ([]T, bool) {
	for i, v := range in {
		if match(v) {
			return append(in[:i:i], in[i+1:]...), true
		}
	}
	return in, false
}

func cloneSupplier(t core.SupplierTransaction) core.SupplierTransaction {
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
