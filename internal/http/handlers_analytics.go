package http

import (
	"context"
	"net/http"

	"kopilka/internal/core"
)

const defaultStatisticsDays = 30

// handleStatistics aggregates the last ?days days; 0 covers the whole ledger.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, err := queryInt(r, "days", defaultStatisticsDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := s.svc.Statistics.GetStatistics(r.Context(), userID, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// analyticsHandler adapts an analytics call that depends on the user's
// subscription. The subscription is looked up per request so premium
// filtering follows activation immediately.
func analyticsHandler[T any](s *Server, fn func(ctx context.Context, userID int64, sub core.SubscriptionStatus) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		sub, err := s.svc.Subscriptions.Status(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		result, err := fn(r.Context(), userID, sub)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	analyticsHandler(s, s.svc.Analytics.Insights)(w, r)
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	analyticsHandler(s, s.svc.Analytics.Tips)(w, r)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	analyticsHandler(s, s.svc.Analytics.Compare)(w, r)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	analyticsHandler(s, s.svc.Analytics.Forecast)(w, r)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	analyticsHandler(s, s.svc.Analytics.Achievements)(w, r)
}
