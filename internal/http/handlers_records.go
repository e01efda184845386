package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/records"
	"khata/internal/services"
)

// Amounts travel as decimal strings.
type (
	supplierRequest struct {
		CounterpartyID string            `json:"counterparty_id"`
		Kind           core.SupplierKind `json:"kind"`
		Amount         string            `json:"amount"`
		Description    string            `json:"description"`
		DueDate        *core.Date        `json:"due_date"`
	}

	loanRequest struct {
		PersonID    string        `json:"person_id"`
		Kind        core.LoanKind `json:"kind"`
		Amount      string        `json:"amount"`
		Description string        `json:"description"`
	}

	spendRequest struct {
		Title    string    `json:"title"`
		Category string    `json:"category"`
		Amount   string    `json:"amount"`
		Date     core.Date `json:"date"`
	}

	editRequest struct {
		Name        *string `json:"name"`
		Amount      *string `json:"amount"`
		Description *string `json:"description"`
		Category    *string `json:"category"`
		Settled     *bool   `json:"settled"`
	}

	parseRequest struct {
		Text string `json:"text"`
	}

	preferenceBody struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
)

func (s *Server) handleListCounterparties(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Records.ListCounterparties(r.Context(), owner(r))
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	if kind := core.CounterpartyKind(strings.TrimSpace(r.URL.Query().Get("kind"))); kind != "" {
		filtered := list[:0:0]
		for _, c := range list {
			if c.Kind == kind {
				filtered = append(filtered, c)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"counterparties": nonNil(list)})
}

func (s *Server) handleCreateCounterparty(w http.ResponseWriter, r *http.Request) {
	var in services.CounterpartyInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	c, err := s.deps.Ledger.CreateCounterparty(r.Context(), owner(r), in)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListSupplierTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r, s.deps.Reports.Location())
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	list, err := s.deps.Records.ListSupplierTransactions(r.Context(), owner(r), f)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": nonNil(list)})
}

func (s *Server) handleCreateSupplierTransaction(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	amount, err := parseAmountField("amount", req.Amount)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	t, err := s.deps.Ledger.RecordSupplierTransaction(r.Context(), owner(r), services.SupplierInput{
		CounterpartyID: strings.TrimSpace(req.CounterpartyID),
		Kind:           req.Kind,
		Amount:         amount,
		Description:    req.Description,
		DueDate:        req.DueDate,
	})
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListLoanTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r, s.deps.Reports.Location())
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	list, err := s.deps.Records.ListLoanTransactions(r.Context(), owner(r), f)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": nonNil(list)})
}

func (s *Server) handleCreateLoanTransaction(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	amount, err := parseAmountField("amount", req.Amount)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	t, err := s.deps.Ledger.RecordLoanTransaction(r.Context(), owner(r), services.LoanInput{
		PersonID:    strings.TrimSpace(req.PersonID),
		Kind:        req.Kind,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListSpends(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r, s.deps.Reports.Location())
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	if f.EntityID != "" {
		f.EntityID = core.NormalizeCategory(f.EntityID)
	}
	list, err := s.deps.Records.ListSpends(r.Context(), owner(r), f)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spends": nonNil(list)})
}

// handleCreateSpend records a spend. A blank category falls back to the
// owner's last used one.
func (s *Server) handleCreateSpend(w http.ResponseWriter, r *http.Request) {
	var req spendRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	amount, err := parseAmountField("amount", req.Amount)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	ownerID := owner(r)
	if strings.TrimSpace(req.Category) == "" {
		if req.Category, err = s.deps.Ledger.LastCategory(r.Context(), ownerID); err != nil {
			fail(w, r, log.OpCreate, err)
			return
		}
	}
	sp, err := s.deps.Ledger.RecordSpend(r.Context(), ownerID, services.SpendInput{
		Title:    req.Title,
		Category: req.Category,
		Amount:   amount,
		Date:     req.Date,
	})
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// handleParseSpend suggests a spend from free text. Nothing is stored.
func (s *Server) handleParseSpend(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, log.OpParse, err)
		return
	}
	res, err := s.deps.Parser.Parse(r.Context(), req.Text)
	if err != nil {
		fail(w, r, log.OpParse, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	e := records.Edit{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Settled:     req.Settled,
	}
	if req.Amount != nil {
		amount, err := parseAmountField("amount", *req.Amount)
		if err != nil {
			fail(w, r, log.OpUpdate, err)
			return
		}
		e.Amount = &amount
	}
	if e.Empty() {
		writeError(w, http.StatusBadRequest, "edit changes nothing")
		return
	}
	kind := records.Kind(chi.URLParam(r, "kind"))
	if err := s.deps.Ledger.Update(r.Context(), kind, owner(r), chi.URLParam(r, "id"), e); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind := records.Kind(chi.URLParam(r, "kind"))
	if err := s.deps.Ledger.Delete(r.Context(), kind, owner(r), chi.URLParam(r, "id")); err != nil {
		fail(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Records.Categories(r.Context(), owner(r))
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": nonNil(cats)})
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := s.deps.Prefs.GetPreference(r.Context(), owner(r), key)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, preferenceBody{Key: key, Value: v})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var body preferenceBody
	if err := decodeJSON(r, &body); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	body.Key = chi.URLParam(r, "key")
	if err := s.deps.Prefs.SetPreference(r.Context(), owner(r), body.Key, body.Value); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

