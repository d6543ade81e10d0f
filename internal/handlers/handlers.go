package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"muhabbet/internal/calls"
	"muhabbet/internal/database"
	"muhabbet/internal/engine"
	"muhabbet/internal/middleware"
	"muhabbet/internal/utils"
	"muhabbet/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Metrics        *utils.MetricsCollector
	Calls          *calls.Registry
	Hub            *websocket.Hub
	Auth           *middleware.Auth
	MongoDB        *database.MongoDB
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	context *actor.RootContext,
	eng *engine.Engine,
	metrics *utils.MetricsCollector,
	callRegistry *calls.Registry,
	hub *websocket.Hub,
	auth *middleware.Auth,
	mongodb *database.MongoDB,
) *Server {
	return &Server{
		System:         system,
		Context:        context,
		Engine:         eng,
		Metrics:        metrics,
		Calls:          callRegistry,
		Hub:            hub,
		Auth:           auth,
		MongoDB:        mongodb,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// respondJSON writes the value as a JSON response.
func respondJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

// respondError writes an AppError with its mapped HTTP status.
func respondError(w http.ResponseWriter, appErr *utils.AppError) {
	respondJSON(w, utils.AppErrorToHTTPStatus(appErr.Code), map[string]string{
		"code":  appErr.Code,
		"error": appErr.Error(),
	})
}

// request sends a message to an actor and unwraps AppError replies.
// The boolean reports whether the caller received a usable result.
func (s *Server) request(w http.ResponseWriter, pid *actor.PID, msg interface{}) (interface{}, bool) {
	s.Metrics.IncrementRequests()
	future := s.Context.RequestFuture(pid, msg, s.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		s.Metrics.IncrementErrors()
		respondError(w, utils.NewActorTimeoutError("request"))
		return nil, false
	}
	if appErr, ok := result.(*utils.AppError); ok {
		s.Metrics.IncrementErrors()
		respondError(w, appErr)
		return nil, false
	}
	return result, true
}

// authedUserID pulls the authenticated user from the request context.
func authedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, utils.NewUnauthorizedError("missing authenticated user"))
		return uuid.Nil, false
	}
	return userID, true
}

// parseUUIDParam parses a required UUID query parameter.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err))
		return false
	}
	return true
}
