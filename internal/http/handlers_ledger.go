package http

import (
	"net/http"
	"time"

	"kopilka/internal/core"
)

type entryRequest struct {
	Amount      Amount    `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type bulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	s.addEntry(w, r, core.KindExpense)
}

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	s.addEntry(w, r, core.KindIncome)
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request, kind core.EntryKind) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.svc.Ledger.Append(r.Context(), core.LedgerEntry{
		UserID:      userID,
		Kind:        kind,
		Amount:      float64(req.Amount),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleListEntries returns entries newer than ?since (e.g. "7d" or "12h"),
// or every entry when since is absent.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	since, err := queryDuration(r, "since")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.svc.Ledger.Query(r.Context(), userID, since)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entryID, err := int64Param(r, "entryID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := s.svc.Ledger.Delete(r.Context(), userID, entryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		NotFoundError("entry not found").Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.svc.Ledger.BulkDelete(r.Context(), userID, req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkDeleteResponse{Deleted: n})
}

// handleSearch matches ?q against categories and descriptions. ?kind
// narrows the search to expenses or income.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	text := queryText(r, "q")
	if text == "" {
		writeError(w, r, badRequest("missing search text"))
		return
	}

	result, err := s.svc.Ledger.Search(r.Context(), userID, text, core.EntryKind(queryText(r, "kind")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
