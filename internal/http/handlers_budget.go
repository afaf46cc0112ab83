package http

import (
	"net/http"

	"kopilka/internal/core"
)

type budgetRequest struct {
	Category string            `json:"category"`
	Limit    Amount            `json:"limit"`
	Period   core.BudgetPeriod `json:"period"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	budgets, err := s.svc.Budgets.GetBudgets(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if budgets == nil {
		budgets = []core.BudgetStatus{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleSetBudget creates or replaces the budget for a category.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Period == "" {
		req.Period = core.PeriodMonthly
	}

	category := sanitizeInput(req.Category)
	if err := s.svc.Budgets.SetBudget(r.Context(), userID, category, float64(req.Limit), req.Period); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.Budget{
		UserID:      userID,
		Category:    category,
		LimitAmount: float64(req.Limit),
		Period:      req.Period,
	})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
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

	deleted, err := s.svc.Budgets.DeleteBudget(r.Context(), userID, category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		NotFoundError("budget not found").Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.svc.Budgets.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleBudgetAlert returns the alert for ?category, or 204 when the
// category is under its thresholds or has no budget.
func (s *Server) handleBudgetAlert(w http.ResponseWriter, r *http.Request) {
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

	alert, err := s.svc.Budgets.CheckAlert(r.Context(), userID, category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if alert == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
