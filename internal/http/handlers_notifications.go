package http

import (
	"net/http"

	"kopilka/internal/core"
)

type regularRequest struct {
	Category    string         `json:"category"`
	Amount      Amount         `json:"amount"`
	Frequency   core.Frequency `json:"frequency"`
	Description string         `json:"description"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	settings, err := s.svc.Notifications.Settings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings replaces the settings. Fields missing from the body
// keep their current values.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	settings, err := s.svc.Notifications.Settings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := decodeJSON(w, r, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	settings.UserID = userID

	if err := s.svc.Notifications.UpdateSettings(r.Context(), settings); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.svc.Notifications.DailySummary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.svc.Notifications.WeeklyReport(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListRegular(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.svc.Notifications.RegularExpenses(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []core.RegularExpense{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddRegular(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req regularRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	re, err := s.svc.Notifications.AddRegularExpense(r.Context(), core.RegularExpense{
		UserID:      userID,
		Category:    sanitizeInput(req.Category),
		Amount:      float64(req.Amount),
		Frequency:   req.Frequency,
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, re)
}

func (s *Server) handleRemoveRegular(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := int64Param(r, "regularID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	removed, err := s.svc.Notifications.RemoveRegularExpense(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !removed {
		NotFoundError("regular expense not found").Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
