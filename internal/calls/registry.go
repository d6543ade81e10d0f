package calls

import (
	"context"
	"sync"
	"time"

	"muhabbet/internal/database"
	"muhabbet/internal/logger"
	"muhabbet/internal/models"
	"muhabbet/internal/utils"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
)

const historyWriteTimeout = 5 * time.Second

// Registry tracks live call sessions in memory. A user may be in at most one
// live call at a time; the reverse index enforces this across concurrent
// initiations. Sessions are persisted only once they reach a terminal status,
// so a process restart drops live calls but never recorded history.
type Registry struct {
	activeCalls     cmap.ConcurrentMap[string, *models.CallSession]
	userActiveCalls cmap.ConcurrentMap[string, string] // user ID -> call ID
	history         database.CallHistoryStore
	metrics         *utils.MetricsCollector

	// transitions serializes answer/end state changes. Without it an answer
	// racing an end could re-insert the session after Pop already removed it
	// and freed both users. Never held across the history write.
	transitions sync.Mutex
}

func NewRegistry(history database.CallHistoryStore, metrics *utils.MetricsCollector) *Registry {
	return &Registry{
		activeCalls:     cmap.New[*models.CallSession](),
		userActiveCalls: cmap.New[string](),
		history:         history,
		metrics:         metrics,
	}
}

// InitiateCall creates a live session for the caller/callee pair. The busy
// check and the reverse-index inserts are a single logical step per user:
// each side is reserved with an atomic check-and-insert, and a reservation
// that only half succeeds is rolled back, so two racing initiations can never
// both claim the same user.
func (r *Registry) InitiateCall(callID, callerID, calleeID uuid.UUID, callType models.CallType) (*models.CallSession, error) {
	startTime := time.Now()

	if callerID == calleeID {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "caller and callee must differ", nil)
	}

	callKey := callID.String()
	if !r.userActiveCalls.SetIfAbsent(callerID.String(), callKey) {
		return nil, utils.NewUserBusyError(callerID.String())
	}
	if !r.userActiveCalls.SetIfAbsent(calleeID.String(), callKey) {
		r.releaseUser(callerID, callID)
		return nil, utils.NewUserBusyError(calleeID.String())
	}

	session := &models.CallSession{
		CallID:    callID,
		CallerID:  callerID,
		CalleeID:  calleeID,
		CallType:  callType,
		Status:    models.CallInitiated,
		StartedAt: time.Now(),
	}

	if !r.activeCalls.SetIfAbsent(callKey, session) {
		// The call ID itself is taken. Release both reservations.
		r.releaseUser(callerID, callID)
		r.releaseUser(calleeID, callID)
		return nil, utils.NewAppError(utils.ErrDuplicate, "call already exists: "+callKey, nil)
	}

	r.metrics.AddOperationLatency("initiate_call", time.Since(startTime))
	logger.Infof("CallRegistry: call %s initiated, caller=%s callee=%s type=%s", callKey, callerID, calleeID, callType)
	return session, nil
}

// AnswerCall transitions INITIATED -> ANSWERED. Returns nil for an unknown
// call ID; the caller treats that as the call having already vanished.
func (r *Registry) AnswerCall(callID uuid.UUID) *models.CallSession {
	r.transitions.Lock()
	defer r.transitions.Unlock()

	session, ok := r.activeCalls.Get(callID.String())
	if !ok {
		return nil
	}
	if session.Status != models.CallInitiated {
		return session
	}

	now := time.Now()
	answered := *session
	answered.Status = models.CallAnswered
	answered.AnsweredAt = &now
	r.activeCalls.Set(callID.String(), &answered)

	logger.Infof("CallRegistry: call %s answered", callID)
	return &answered
}

// EndCall removes the session and frees both participants, then records the
// terminal snapshot. Both users become immediately eligible for new calls.
// Returns nil for an unknown call ID.
func (r *Registry) EndCall(callID uuid.UUID, status models.CallStatus) *models.CallSession {
	startTime := time.Now()

	r.transitions.Lock()
	session, ok := r.activeCalls.Pop(callID.String())
	if !ok {
		r.transitions.Unlock()
		return nil
	}
	r.releaseUser(session.CallerID, callID)
	r.releaseUser(session.CalleeID, callID)
	r.transitions.Unlock()

	now := time.Now()
	ended := *session
	ended.Status = status
	ended.EndedAt = &now

	record := &models.CallHistoryRecord{
		CallID:          ended.CallID,
		CallerID:        ended.CallerID,
		CalleeID:        ended.CalleeID,
		CallType:        ended.CallType,
		Status:          ended.Status,
		StartedAt:       ended.StartedAt,
		AnsweredAt:      ended.AnsweredAt,
		EndedAt:         ended.EndedAt,
		DurationSeconds: callDuration(ended.AnsweredAt, ended.EndedAt),
	}

	// History is a fire-and-forget sink. A failed write must never undo or
	// block the teardown that already happened above.
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := r.history.SaveCallRecord(ctx, record); err != nil {
		logger.Errorf("CallRegistry: failed to save history for call %s: %v", callID, err)
	}

	r.metrics.AddOperationLatency("end_call", time.Since(startTime))
	logger.Infof("CallRegistry: call %s ended with status %s", callID, status)
	return &ended
}

// GetCall returns the live session for a call ID, or nil.
func (r *Registry) GetCall(callID uuid.UUID) *models.CallSession {
	session, ok := r.activeCalls.Get(callID.String())
	if !ok {
		return nil
	}
	return session
}

// GetActiveCallForUser returns the live session the user takes part in, or nil.
func (r *Registry) GetActiveCallForUser(userID uuid.UUID) *models.CallSession {
	callKey, ok := r.userActiveCalls.Get(userID.String())
	if !ok {
		return nil
	}
	session, ok := r.activeCalls.Get(callKey)
	if !ok {
		return nil
	}
	return session
}

// GetOtherParty returns the counterpart of userID in the call, or nil when the
// call is unknown or userID is not one of its two participants.
func (r *Registry) GetOtherParty(callID, userID uuid.UUID) *uuid.UUID {
	session, ok := r.activeCalls.Get(callID.String())
	if !ok {
		return nil
	}
	switch userID {
	case session.CallerID:
		other := session.CalleeID
		return &other
	case session.CalleeID:
		other := session.CallerID
		return &other
	default:
		return nil
	}
}

// ActiveCallCount reports how many live sessions exist right now.
func (r *Registry) ActiveCallCount() int {
	return r.activeCalls.Count()
}

// releaseUser removes the user's reverse-index entry only if it still points
// at the given call, so a rollback cannot free a reservation another call made.
func (r *Registry) releaseUser(userID, callID uuid.UUID) {
	r.userActiveCalls.RemoveCb(userID.String(), func(key string, v string, exists bool) bool {
		return exists && v == callID.String()
	})
}

// callDuration is the whole-second distance between answer and end, nil unless
// both are present (an unanswered call has no duration).
func callDuration(answeredAt, endedAt *time.Time) *int64 {
	if answeredAt == nil || endedAt == nil {
		return nil
	}
	seconds := int64(endedAt.Sub(*answeredAt).Seconds())
	return &seconds
}
