package handlers

import (
	"net/http"
	"strconv"

	"muhabbet/internal/models"
	"muhabbet/internal/utils"

	"github.com/google/uuid"
)

// InitiateCallRequest starts a call toward one callee
type InitiateCallRequest struct {
	CallID   string `json:"callId"`
	CalleeID string `json:"calleeId"`
	CallType string `json:"callType"`
}

// CallIDRequest identifies an active call
type CallIDRequest struct {
	CallID string `json:"callId"`
}

// EndCallRequest terminates a call with an outcome
type EndCallRequest struct {
	CallID string `json:"callId"`
	Status string `json:"status"`
}

// HandleInitiateCall reserves both parties and rings the callee.
func (s *Server) HandleInitiateCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req InitiateCallRequest
		if !decodeBody(w, r, &req) {
			return
		}
		callID, ok := parseUUIDField(w, req.CallID, "callId")
		if !ok {
			return
		}
		calleeID, ok := parseUUIDField(w, req.CalleeID, "calleeId")
		if !ok {
			return
		}

		callType := models.CallType(req.CallType)
		if callType != models.CallVoice && callType != models.CallVideo {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "callType must be VOICE or VIDEO", nil))
			return
		}

		session, err := s.Calls.InitiateCall(callID, userID, calleeID, callType)
		if err != nil {
			if appErr, isApp := err.(*utils.AppError); isApp {
				respondError(w, appErr)
			} else {
				respondError(w, utils.NewAppError(utils.ErrInvalidInput, "failed to initiate call", err))
			}
			return
		}

		s.Hub.BroadcastToUsers([]uuid.UUID{calleeID}, "call.incoming", session)
		respondJSON(w, http.StatusCreated, session)
	}
}

// HandleAnswerCall moves a ringing call to ANSWERED.
func (s *Server) HandleAnswerCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req CallIDRequest
		if !decodeBody(w, r, &req) {
			return
		}
		callID, ok := parseUUIDField(w, req.CallID, "callId")
		if !ok {
			return
		}

		session := s.Calls.GetCall(callID)
		if session == nil {
			respondError(w, utils.NewAppError(utils.ErrCallNotFound, "call not found: "+callID.String(), nil))
			return
		}
		if session.CalleeID != userID {
			respondError(w, utils.NewForbiddenError("only the callee can answer"))
			return
		}

		answered := s.Calls.AnswerCall(callID)
		if answered == nil {
			respondError(w, utils.NewAppError(utils.ErrCallNotFound, "call is no longer ringing", nil))
			return
		}

		s.Hub.BroadcastToUsers([]uuid.UUID{answered.CallerID}, "call.answered", answered)
		respondJSON(w, http.StatusOK, answered)
	}
}

// HandleEndCall terminates a call and archives it to history.
func (s *Server) HandleEndCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req EndCallRequest
		if !decodeBody(w, r, &req) {
			return
		}
		callID, ok := parseUUIDField(w, req.CallID, "callId")
		if !ok {
			return
		}

		status := models.CallStatus(req.Status)
		if !status.Terminal() {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "status must be ENDED, DECLINED or MISSED", nil))
			return
		}

		other := s.Calls.GetOtherParty(callID, userID)
		if other == nil {
			respondError(w, utils.NewAppError(utils.ErrCallNotFound, "no active call for caller: "+callID.String(), nil))
			return
		}

		ended := s.Calls.EndCall(callID, status)
		if ended == nil {
			// Both sides hanging up at once is fine; the first one won.
			respondJSON(w, http.StatusOK, map[string]bool{"ended": true})
			return
		}

		s.Hub.BroadcastToUsers([]uuid.UUID{*other}, "call.ended", ended)
		respondJSON(w, http.StatusOK, ended)
	}
}

// HandleActiveCall returns the caller's current call, if any.
func (s *Server) HandleActiveCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		session := s.Calls.GetActiveCallForUser(userID)
		if session == nil {
			respondJSON(w, http.StatusOK, map[string]interface{}{"active": false})
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"active": true, "call": session})
	}
}

// HandleCallHistory lists the caller's archived calls, newest first.
func (s *Server) HandleCallHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
				limit = parsed
			}
		}

		records, err := s.MongoDB.GetCallHistoryForUser(r.Context(), userID, limit)
		if err != nil {
			respondError(w, utils.NewAppError(utils.ErrDatabase, "failed to load call history", err))
			return
		}
		respondJSON(w, http.StatusOK, records)
	}
}
