package actors

import (
	"context"
	"sort"
	"sync"
	"time"

	"muhabbet/internal/models"

	"github.com/google/uuid"
)

// memDB is an in-memory stand-in for the Mongo-backed stores, good enough
// for exercising the actors without a running database.
type memDB struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	conversations map[uuid.UUID]*models.Conversation
	members       map[uuid.UUID][]models.ConversationMember
	directPairs   map[string]uuid.UUID
	messages      map[uuid.UUID]*models.Message
	statuses      map[uuid.UUID]map[uuid.UUID]*models.MessageDeliveryStatus
}

func newMemDB() *memDB {
	return &memDB{
		users:         make(map[uuid.UUID]*models.User),
		conversations: make(map[uuid.UUID]*models.Conversation),
		members:       make(map[uuid.UUID][]models.ConversationMember),
		directPairs:   make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID]*models.Message),
		statuses:      make(map[uuid.UUID]map[uuid.UUID]*models.MessageDeliveryStatus),
	}
}

func (db *memDB) addUser(username string) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	user := &models.User{
		ID:         uuid.New(),
		Username:   username,
		Email:      username + "@test.com",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}
	db.users[user.ID] = user
	return user
}

// ConversationStore

func (db *memDB) GetConversation(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conversations[id], nil
}

func (db *memDB) SaveConversation(_ context.Context, conversation *models.Conversation) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	copied := *conversation
	db.conversations[conversation.ID] = &copied
	return nil
}

func (db *memDB) UpdateConversationInfo(_ context.Context, id uuid.UUID, name, description *string) (*models.Conversation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	conversation, ok := db.conversations[id]
	if !ok {
		return nil, nil
	}
	if name != nil {
		conversation.Name = *name
	}
	if description != nil {
		conversation.Description = *description
	}
	conversation.UpdatedAt = time.Now()
	copied := *conversation
	return &copied, nil
}

func (db *memDB) GetMember(_ context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, member := range db.members[conversationID] {
		if member.UserID == userID {
			copied := member
			return &copied, nil
		}
	}
	return nil, nil
}

func (db *memDB) GetMembers(_ context.Context, conversationID uuid.UUID) ([]models.ConversationMember, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	members := make([]models.ConversationMember, len(db.members[conversationID]))
	copy(members, db.members[conversationID])
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (db *memDB) GetConversationIDsForUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var ids []uuid.UUID
	for conversationID, members := range db.members {
		for _, member := range members {
			if member.UserID == userID {
				ids = append(ids, conversationID)
				break
			}
		}
	}
	return ids, nil
}

func (db *memDB) SaveMember(_ context.Context, member *models.ConversationMember) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	existing := db.members[member.ConversationID]
	for i, candidate := range existing {
		if candidate.UserID == member.UserID {
			existing[i] = *member
			return nil
		}
	}
	db.members[member.ConversationID] = append(existing, *member)
	return nil
}

func (db *memDB) RemoveMember(_ context.Context, conversationID, userID uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	members := db.members[conversationID]
	for i, member := range members {
		if member.UserID == userID {
			db.members[conversationID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (db *memDB) UpdateMemberRole(_ context.Context, conversationID, userID uuid.UUID, role models.Role) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	members := db.members[conversationID]
	for i := range members {
		if members[i].UserID == userID {
			members[i].Role = role
			return nil
		}
	}
	return nil
}

func (db *memDB) GetDirectConversationID(_ context.Context, pairKey string) (*uuid.UUID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if id, ok := db.directPairs[pairKey]; ok {
		copied := id
		return &copied, nil
	}
	return nil, nil
}

func (db *memDB) SaveDirectConversationID(_ context.Context, pairKey string, conversationID uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.directPairs[pairKey] = conversationID
	return nil
}

// MessageStore

func (db *memDB) SaveMessage(_ context.Context, message *models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	copied := *message
	db.messages[message.ID] = &copied
	return nil
}

func (db *memDB) GetMessage(_ context.Context, id uuid.UUID) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if message, ok := db.messages[id]; ok {
		copied := *message
		return &copied, nil
	}
	return nil, nil
}

func (db *memDB) MessageExists(_ context.Context, id uuid.UUID) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.messages[id]
	return ok, nil
}

func (db *memDB) GetMessagesBefore(_ context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var result []*models.Message
	for _, message := range db.messages {
		if message.ConversationID != conversationID {
			continue
		}
		if !before.IsZero() && !message.ServerTimestamp.Before(before) {
			continue
		}
		copied := *message
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ServerTimestamp.After(result[j].ServerTimestamp)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (db *memDB) UpdateMessageContent(_ context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if message, ok := db.messages[id]; ok {
		message.Content = content
		message.EditedAt = &editedAt
	}
	return nil
}

func (db *memDB) SoftDeleteMessage(_ context.Context, id uuid.UUID, deletedAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if message, ok := db.messages[id]; ok {
		message.IsDeleted = true
		message.DeletedAt = &deletedAt
	}
	return nil
}

func (db *memDB) SaveDeliveryStatus(_ context.Context, status *models.MessageDeliveryStatus) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.statuses[status.MessageID] == nil {
		db.statuses[status.MessageID] = make(map[uuid.UUID]*models.MessageDeliveryStatus)
	}
	copied := *status
	db.statuses[status.MessageID][status.UserID] = &copied
	return nil
}

func (db *memDB) GetDeliveryStatus(_ context.Context, messageID, userID uuid.UUID) (*models.MessageDeliveryStatus, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if status, ok := db.statuses[messageID][userID]; ok {
		copied := *status
		return &copied, nil
	}
	return nil, nil
}

func (db *memDB) GetDeliveryStatuses(_ context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]models.MessageDeliveryStatus, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	result := make(map[uuid.UUID][]models.MessageDeliveryStatus)
	for _, messageID := range messageIDs {
		for _, status := range db.statuses[messageID] {
			result[messageID] = append(result[messageID], *status)
		}
	}
	return result, nil
}

func (db *memDB) GetLastMessages(_ context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	result := make(map[uuid.UUID]*models.Message)
	for _, conversationID := range conversationIDs {
		for _, message := range db.messages {
			if message.ConversationID != conversationID {
				continue
			}
			current := result[conversationID]
			if current == nil || message.ServerTimestamp.After(current.ServerTimestamp) {
				copied := *message
				result[conversationID] = &copied
			}
		}
	}
	return result, nil
}

func (db *memDB) GetUnreadCounts(_ context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	result := make(map[uuid.UUID]int64)
	for _, conversationID := range conversationIDs {
		for _, message := range db.messages {
			if message.ConversationID != conversationID || message.SenderID == userID {
				continue
			}
			status := db.statuses[message.ID][userID]
			if status == nil || status.Status != models.StatusRead {
				result[conversationID]++
			}
		}
	}
	return result, nil
}

// UserDirectory

func (db *memDB) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if user, ok := db.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, nil
}

func (db *memDB) GetUsersByIDs(_ context.Context, ids []uuid.UUID) ([]*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var users []*models.User
	for _, id := range ids {
		if user, ok := db.users[id]; ok {
			copied := *user
			users = append(users, &copied)
		}
	}
	return users, nil
}

func (db *memDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, user := range db.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (db *memDB) SaveUser(_ context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	copied := *user
	db.users[user.ID] = &copied
	return nil
}

func (db *memDB) SetConnected(_ context.Context, id uuid.UUID, connected bool, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if user, ok := db.users[id]; ok {
		user.IsConnected = connected
		user.LastActive = at
	}
	return nil
}

func (db *memDB) UpdateLastActive(_ context.Context, id uuid.UUID, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if user, ok := db.users[id]; ok {
		user.LastActive = at
	}
	return nil
}

// recordedEvent is one fan-out captured by the fake broadcaster.
type recordedEvent struct {
	Type       string
	Recipients []uuid.UUID
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) BroadcastMessage(message *models.Message, recipientIDs []uuid.UUID) {
	b.record("message.new", recipientIDs)
}

func (b *fakeBroadcaster) BroadcastToUsers(userIDs []uuid.UUID, eventType string, payload interface{}) {
	b.record(eventType, userIDs)
}

func (b *fakeBroadcaster) BroadcastStatusUpdate(messageID, conversationID, viewerID, senderID uuid.UUID, status models.DeliveryStatus) {
	b.record("message.status", []uuid.UUID{senderID, viewerID})
}

func (b *fakeBroadcaster) record(eventType string, recipients []uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := make([]uuid.UUID, len(recipients))
	copy(copied, recipients)
	b.events = append(b.events, recordedEvent{Type: eventType, Recipients: copied})
}

func (b *fakeBroadcaster) eventsOfType(eventType string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []recordedEvent
	for _, event := range b.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}
