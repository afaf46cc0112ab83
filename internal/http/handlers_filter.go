package http

import (
	"net/http"

	"kopilka/internal/core"
)

type filterRequest struct {
	Category string          `json:"category"`
	Mode     core.FilterMode `json:"mode"`
	Kind     core.EntryKind  `json:"kind"`
}

type clearFiltersResponse struct {
	Cleared bool `json:"cleared"`
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rules, err := s.svc.Filter.Rules(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleAddFilter(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req filterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Kind == "" {
		req.Kind = core.KindExpense
	}

	if err := s.svc.Filter.AddRule(r.Context(), userID, sanitizeInput(req.Category), req.Mode, req.Kind); err != nil {
		writeError(w, r, err)
		return
	}

	rules, err := s.svc.Filter.Rules(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rules)
}

// handleRemoveFilter deletes the rule for ?category and ?kind, which
// defaults to expense.
func (s *Server) handleRemoveFilter(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	category := queryText(r, "category")
	if category == "" {
		writeError(w, r, core.ErrEmptyCategory)
		return
	}
	kind := core.EntryKind(queryText(r, "kind"))
	if kind == "" {
		kind = core.KindExpense
	}

	removed, err := s.svc.Filter.RemoveRule(r.Context(), userID, category, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !removed {
		NotFoundError("filter rule not found").Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cleared, err := s.svc.Filter.ClearAll(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearFiltersResponse{Cleared: cleared})
}
