package models

import (
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentText  ContentType = "TEXT"
	ContentImage ContentType = "IMAGE"
	ContentVideo ContentType = "VIDEO"
	ContentAudio ContentType = "AUDIO"
	ContentFile  ContentType = "FILE"
)

// DeliveryStatus advances SENT -> DELIVERED -> READ per recipient and never regresses.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "SENT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusRead      DeliveryStatus = "READ"
)

// Rank maps a status to its position in the SENT < DELIVERED < READ order.
func (s DeliveryStatus) Rank() int {
	switch s {
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return 0
	}
}

type Message struct {
	ID              uuid.UUID   `json:"id"`
	ConversationID  uuid.UUID   `json:"conversationId"`
	SenderID        uuid.UUID   `json:"senderId"`
	ContentType     ContentType `json:"contentType"`
	Content         string      `json:"content"`
	ReplyToID       *uuid.UUID  `json:"replyToId,omitempty"`
	MediaURL        string      `json:"mediaUrl,omitempty"`
	ForwardedFrom   *uuid.UUID  `json:"forwardedFrom,omitempty"`
	ServerTimestamp time.Time   `json:"serverTimestamp"`
	ClientTimestamp time.Time   `json:"clientTimestamp"`
	ExpiresAt       *time.Time  `json:"expiresAt,omitempty"`
	EditedAt        *time.Time  `json:"editedAt,omitempty"`
	IsDeleted       bool        `json:"isDeleted"`
	DeletedAt       *time.Time  `json:"deletedAt,omitempty"`
}

type MessageDeliveryStatus struct {
	MessageID uuid.UUID      `json:"messageId"`
	UserID    uuid.UUID      `json:"userId"`
	Status    DeliveryStatus `json:"status"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// MessagePage is one page of conversation history, newest first.
type MessagePage struct {
	Messages   []*Message `json:"messages"`
	HasMore    bool       `json:"hasMore"`
	NextCursor *time.Time `json:"nextCursor,omitempty"`
}
