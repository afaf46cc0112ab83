package http

import (
	"net/http"

	"kopilka/internal/core"
)

const defaultHistoryLimit = 20

type transferRequest struct {
	Amount Amount `json:"amount"`
	Reason string `json:"reason"`
}

type recalculateRequest struct {
	Reason string `json:"reason"`
}

type recalculateResponse struct {
	Queued  bool             `json:"queued"`
	Balance *balanceResponse `json:"balance,omitempty"`
}

// balanceResponse adds the combined total to the stored balance.
type balanceResponse struct {
	core.Balance
	Total float64 `json:"total"`
}

func newBalanceResponse(b core.Balance) balanceResponse {
	return balanceResponse{Balance: b, Total: b.Total()}
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := s.svc.Balance.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(b))
}

// handleRecalculate answers 202 when the request was queued for the worker
// and 200 with the fresh balance when it ran inline.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req recalculateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "api"
	}

	queued, err := s.svc.Balance.RequestRecalculate(r.Context(), userID, sanitizeInput(req.Reason))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if queued {
		writeJSON(w, http.StatusAccepted, recalculateResponse{Queued: true})
		return
	}

	b, err := s.svc.Balance.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := newBalanceResponse(b)
	writeJSON(w, http.StatusOK, recalculateResponse{Balance: &resp})
}

func (s *Server) handleHiddenDeposit(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, core.ToHidden)
}

func (s *Server) handleHiddenWithdraw(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, core.FromHidden)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request, dir core.Direction) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	move := s.svc.Balance.TransferToHidden
	if dir == core.FromHidden {
		move = s.svc.Balance.TransferFromHidden
	}
	t, err := move(r.Context(), userID, float64(req.Amount), sanitizeInput(req.Reason))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleHiddenHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	history, err := s.svc.Balance.HiddenHistory(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []core.HiddenTransfer{}
	}
	writeJSON(w, http.StatusOK, history)
}
