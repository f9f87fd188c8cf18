package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/domain"
	"github.com/tallyhq/tally/internal/settle"
	"github.com/tallyhq/tally/internal/view"
)

// ─── Ingestion ──────────────────────────────────────────────────────────────

// handleIngest accepts a JSON array of candidates and runs one ingestion
// pass. The response report always accounts for every candidate; a report
// with errors still returns 200 because partial success is the contract.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var candidates []domain.Candidate
	if err := json.NewDecoder(r.Body).Decode(&candidates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	report := s.pipeline.Run(r.Context(), candidates)
	writeJSON(w, http.StatusOK, report)
}

// ─── Entries ────────────────────────────────────────────────────────────────

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.store.ListEntries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view.Collapse(rows))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.SoftDelete(r.Context(), id, time.Now().UTC())
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such entry")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleRestoreEntry undoes a soft delete.
func (s *Server) handleRestoreEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Restore(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such entry")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"restored": id})
}

func (s *Server) handleMakeGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryIDs []string `json:"entry_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rep, err := view.MakeGroup(r.Context(), s.store, req.EntryIDs)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// handleGetGroup returns every member of a group, hidden ones included.
// List views collapse groups; this is the on-demand full view.
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	members, err := s.store.ListGroup(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(members) == 0 {
		writeError(w, http.StatusNotFound, "no such group")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// ─── Settlement ─────────────────────────────────────────────────────────────

func (s *Server) handleSettlementSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := settleFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balances, err := s.calculator.Summary(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if balances == nil {
		balances = []domain.CounterpartyBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handleSettlementDetail(w http.ResponseWriter, r *http.Request) {
	participant := chi.URLParam(r, "participant")
	filter, err := settleFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	detail, err := s.calculator.Detail(r.Context(), participant, filter)
	if errors.Is(err, domain.ErrUnknownParty) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ─── Query Parsing ──────────────────────────────────────────────────────────

func listFilterFromQuery(r *http.Request) (domain.ListFilter, error) {
	var f domain.ListFilter
	q := r.URL.Query()

	var err error
	if f.From, err = dateParam(q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = dateParam(q.Get("to")); err != nil {
		return f, err
	}
	f.Account = q.Get("account")
	f.ExcludeAccount = q.Get("exclude_account")
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, errors.New("invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil {
			return f, errors.New("invalid offset")
		}
	}
	return f, nil
}

func settleFilterFromQuery(r *http.Request) (settle.Filter, error) {
	var f settle.Filter
	q := r.URL.Query()

	var err error
	if f.From, err = dateParam(q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = dateParam(q.Get("to")); err != nil {
		return f, err
	}
	if v := q.Get("min"); v != "" {
		min, err := decimal.NewFromString(v)
		if err != nil {
			return f, errors.New("invalid min amount")
		}
		f.MinAmount = &min
	}
	return f, nil
}

func dateParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
