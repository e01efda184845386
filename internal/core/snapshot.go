package core

import "fmt"

// Snapshot is every record an owner has, read at a single point in time.
type Snapshot struct {
	OwnerID        string
	Counterparties []Counterparty
	Supplier       []SupplierTransaction
	Loans          []LoanTransaction
	Spends         []Spend
}

// Rejected describes a record dropped from aggregation.
type Rejected struct {
	Type string
	ID   string
	Err  error
}

func (r Rejected) Error() string {
	return fmt.Sprintf("%s %s: %v", r.Type, r.ID, r.Err)
}

// Names maps counterparty IDs to display names.
func (s Snapshot) Names() map[string]string {
	names := make(map[string]string, len(s.Counterparties))
	for _, c := range s.Counterparties {
		names[c.ID] = c.Name
	}
	return names
}

// Partition splits the snapshot into records the aggregators can use and
// records they would skip. The returned snapshot shares no slices with s.
func (s Snapshot) Partition() (Snapshot, []Rejected) {
	clean := Snapshot{
		OwnerID:        s.OwnerID,
		Counterparties: append([]Counterparty(nil), s.Counterparties...),
	}
	var rejected []Rejected

	for _, t := range s.Supplier {
		if err := t.Validate(); err != nil {
			rejected = append(rejected, Rejected{Type: "supplier_transaction", ID: t.ID, Err: err})
			continue
		}
		clean.Supplier = append(clean.Supplier, t)
	}
	for _, t := range s.Loans {
		if err := t.Validate(); err != nil {
			rejected = append(rejected, Rejected{Type: "loan_transaction", ID: t.ID, Err: err})
			continue
		}
		clean.Loans = append(clean.Loans, t)
	}
	for _, sp := range s.Spends {
		if err := sp.Validate(); err != nil {
			rejected = append(rejected, Rejected{Type: "spend", ID: sp.ID, Err: err})
			continue
		}
		clean.Spends = append(clean.Spends, sp)
	}
	return clean, rejected
}
