package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationType is fixed at creation and never changes afterwards.
type ConversationType string

const (
	ConversationDirect  ConversationType = "DIRECT"
	ConversationGroup   ConversationType = "GROUP"
	ConversationChannel ConversationType = "CHANNEL"
)

// Role orders group permissions as OWNER > ADMIN > MEMBER.
// DIRECT and CHANNEL members always carry RoleMember.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// AtLeastAdmin reports whether the role may manage group membership and info.
func (r Role) AtLeastAdmin() bool {
	return r == RoleAdmin || r == RoleOwner
}

func (r Role) IsOwner() bool {
	return r == RoleOwner
}

type Conversation struct {
	ID                    uuid.UUID        `json:"id"`
	Type                  ConversationType `json:"type"`
	Name                  string           `json:"name,omitempty"`
	Description           string           `json:"description,omitempty"`
	AvatarURL             string           `json:"avatarUrl,omitempty"`
	DisappearAfterSeconds *int64           `json:"disappearAfterSeconds,omitempty"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

type ConversationMember struct {
	ConversationID uuid.UUID  `json:"conversationId"`
	UserID         uuid.UUID  `json:"userId"`
	Role           Role       `json:"role"`
	JoinedAt       time.Time  `json:"joinedAt"`
	Pinned         bool       `json:"pinned"`
	PinnedAt       *time.Time `json:"pinnedAt,omitempty"`
}

// ConversationWithMembers bundles a conversation with its member rows for responses.
type ConversationWithMembers struct {
	Conversation *Conversation        `json:"conversation"`
	Members      []ConversationMember `json:"members"`
}

// ConversationSummary is one entry of a user's conversation list.
type ConversationSummary struct {
	Conversation *Conversation `json:"conversation"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UnreadCount  int64         `json:"unreadCount"`
}

// DirectPairKey canonicalizes the unordered user pair of a direct conversation
// into a "low|high" key, so both orderings look up the same conversation.
func DirectPairKey(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if strings.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return lo + "|" + hi
}
