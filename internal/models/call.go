package models

import (
	"time"

	"github.com/google/uuid"
)

type CallType string

const (
	CallVoice CallType = "VOICE"
	CallVideo CallType = "VIDEO"
)

type CallStatus string

const (
	CallInitiated CallStatus = "INITIATED"
	CallAnswered  CallStatus = "ANSWERED"
	CallEnded     CallStatus = "ENDED"
	CallDeclined  CallStatus = "DECLINED"
	CallMissed    CallStatus = "MISSED"
)

// Terminal reports whether the status ends a call's lifecycle.
func (s CallStatus) Terminal() bool {
	return s == CallEnded || s == CallDeclined || s == CallMissed
}

// CallSession lives only in memory while the call is active.
// A history record is persisted once the session reaches a terminal status.
type CallSession struct {
	CallID     uuid.UUID  `json:"callId"`
	CallerID   uuid.UUID  `json:"callerId"`
	CalleeID   uuid.UUID  `json:"calleeId"`
	CallType   CallType   `json:"callType"`
	Status     CallStatus `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}

type CallHistoryRecord struct {
	CallID          uuid.UUID  `json:"callId"`
	CallerID        uuid.UUID  `json:"callerId"`
	CalleeID        uuid.UUID  `json:"calleeId"`
	CallType        CallType   `json:"callType"`
	Status          CallStatus `json:"status"`
	StartedAt       time.Time  `json:"startedAt"`
	AnsweredAt      *time.Time `json:"answeredAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
}
