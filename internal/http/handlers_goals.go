package http

import (
	"net/http"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/services"
)

type createGoalRequest struct {
	Name         string     `json:"name"`
	TargetAmount Amount     `json:"target_amount"`
	Deadline     *time.Time `json:"deadline"`
	Icon         string     `json:"icon"`
	Description  string     `json:"description"`
}

type contributeRequest struct {
	Amount Amount `json:"amount"`
	Note   string `json:"note"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	includeCompleted, err := queryBool(r, "include_completed")
	if err != nil {
		writeError(w, r, err)
		return
	}

	goals, err := s.svc.Goals.Goals(r.Context(), userID, includeCompleted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	goal, err := s.svc.Goals.CreateGoal(r.Context(), core.Goal{
		UserID:       userID,
		Name:         sanitizeInput(req.Name),
		TargetAmount: float64(req.TargetAmount),
		Deadline:     req.Deadline,
		Icon:         sanitizeInput(req.Icon),
		Description:  sanitizeInput(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleGoalSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.svc.Goals.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goalID, err := int64Param(r, "goalID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req contributeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	goal, err := s.svc.Goals.Contribute(r.Context(), userID, goalID, float64(req.Amount), sanitizeInput(req.Note))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goalID, err := int64Param(r, "goalID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", services.DefaultContributionLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	contribs, err := s.svc.Goals.Contributions(r.Context(), userID, goalID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if contribs == nil {
		contribs = []core.GoalContribution{}
	}
	writeJSON(w, http.StatusOK, contribs)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goalID, err := int64Param(r, "goalID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	removed, err := s.svc.Goals.DeleteGoal(r.Context(), userID, goalID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !removed {
		NotFoundError("goal not found").Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
