package database

import (
	"context"
	"fmt"
	"time"

	"muhabbet/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationDB represents the MongoDB document structure for conversations
type ConversationDB struct {
	ID                    string    `bson:"_id"`
	Type                  string    `bson:"type"`
	Name                  string    `bson:"name,omitempty"`
	Description           string    `bson:"description,omitempty"`
	AvatarURL             string    `bson:"avatarUrl,omitempty"`
	DisappearAfterSeconds *int64    `bson:"disappearAfterSeconds,omitempty"`
	CreatedAt             time.Time `bson:"createdAt"`
	UpdatedAt             time.Time `bson:"updatedAt"`
}

// MemberDB represents the MongoDB document structure for conversation members
type MemberDB struct {
	ConversationID string     `bson:"conversationId"`
	UserID         string     `bson:"userId"`
	Role           string     `bson:"role"`
	JoinedAt       time.Time  `bson:"joinedAt"`
	Pinned         bool       `bson:"pinned"`
	PinnedAt       *time.Time `bson:"pinnedAt,omitempty"`
}

// DirectPairDB maps a canonical "low|high" user pair key to its direct conversation
type DirectPairDB struct {
	PairKey        string `bson:"_id"`
	ConversationID string `bson:"conversationId"`
}

func conversationFromDB(doc *ConversationDB) (*models.Conversation, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation ID in database: %v", err)
	}
	return &models.Conversation{
		ID:                    id,
		Type:                  models.ConversationType(doc.Type),
		Name:                  doc.Name,
		Description:           doc.Description,
		AvatarURL:             doc.AvatarURL,
		DisappearAfterSeconds: doc.DisappearAfterSeconds,
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             doc.UpdatedAt,
	}, nil
}

func memberFromDB(doc *MemberDB) (*models.ConversationMember, error) {
	conversationID, err := uuid.Parse(doc.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation ID in database: %v", err)
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %v", err)
	}
	return &models.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           models.Role(doc.Role),
		JoinedAt:       doc.JoinedAt,
		Pinned:         doc.Pinned,
		PinnedAt:       doc.PinnedAt,
	}, nil
}

// GetConversation retrieves a conversation by its ID
func (m *MongoDB) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var doc ConversationDB
	err := m.Conversations.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %v", err)
	}
	return conversationFromDB(&doc)
}

// SaveConversation upserts a conversation document
func (m *MongoDB) SaveConversation(ctx context.Context, conversation *models.Conversation) error {
	doc := ConversationDB{
		ID:                    conversation.ID.String(),
		Type:                  string(conversation.Type),
		Name:                  conversation.Name,
		Description:           conversation.Description,
		AvatarURL:             conversation.AvatarURL,
		DisappearAfterSeconds: conversation.DisappearAfterSeconds,
		CreatedAt:             conversation.CreatedAt,
		UpdatedAt:             conversation.UpdatedAt,
	}

	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := m.Conversations.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %v", err)
	}
	return nil
}

// UpdateConversationInfo applies a partial name/description update and returns the result.
// Nil fields preserve the stored values.
func (m *MongoDB) UpdateConversationInfo(ctx context.Context, id uuid.UUID, name, description *string) (*models.Conversation, error) {
	set := bson.M{"updatedAt": time.Now()}
	if name != nil {
		set["name"] = *name
	}
	if description != nil {
		set["description"] = *description
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc ConversationDB
	err := m.Conversations.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update conversation: %v", err)
	}
	return conversationFromDB(&doc)
}

// GetMember retrieves a single membership row
func (m *MongoDB) GetMember(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error) {
	var doc MemberDB
	filter := bson.M{"conversationId": conversationID.String(), "userId": userID.String()}
	err := m.Members.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %v", err)
	}
	return memberFromDB(&doc)
}

// GetMembers retrieves all membership rows of a conversation
func (m *MongoDB) GetMembers(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMember, error) {
	cursor, err := m.Members.Find(ctx, bson.M{"conversationId": conversationID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %v", err)
	}
	defer cursor.Close(ctx)

	var members []models.ConversationMember
	for cursor.Next(ctx) {
		var doc MemberDB
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode member: %v", err)
		}
		member, err := memberFromDB(&doc)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}
	return members, cursor.Err()
}

// GetConversationIDsForUser lists the conversations a user belongs to
func (m *MongoDB) GetConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	cursor, err := m.Members.Find(ctx, bson.M{"userId": userID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %v", err)
	}
	defer cursor.Close(ctx)

	var ids []uuid.UUID
	for cursor.Next(ctx) {
		var doc MemberDB
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode member: %v", err)
		}
		id, err := uuid.Parse(doc.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("invalid conversation ID in database: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, cursor.Err()
}

// SaveMember upserts a membership row
func (m *MongoDB) SaveMember(ctx context.Context, member *models.ConversationMember) error {
	doc := MemberDB{
		ConversationID: member.ConversationID.String(),
		UserID:         member.UserID.String(),
		Role:           string(member.Role),
		JoinedAt:       member.JoinedAt,
		Pinned:         member.Pinned,
		PinnedAt:       member.PinnedAt,
	}

	filter := bson.M{"conversationId": doc.ConversationID, "userId": doc.UserID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := m.Members.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save member: %v", err)
	}
	return nil
}

// RemoveMember deletes a membership row
func (m *MongoDB) RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	filter := bson.M{"conversationId": conversationID.String(), "userId": userID.String()}
	result, err := m.Members.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to remove member: %v", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("member not found for removal")
	}
	return nil
}

// UpdateMemberRole changes the role of one membership row
func (m *MongoDB) UpdateMemberRole(ctx context.Context, conversationID, userID uuid.UUID, role models.Role) error {
	filter := bson.M{"conversationId": conversationID.String(), "userId": userID.String()}
	update := bson.M{"$set": bson.M{"role": string(role)}}

	result, err := m.Members.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update member role: %v", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("member not found for role update")
	}
	return nil
}

// GetDirectConversationID looks up the conversation for a canonical user pair
func (m *MongoDB) GetDirectConversationID(ctx context.Context, pairKey string) (*uuid.UUID, error) {
	var doc DirectPairDB
	err := m.DirectPairs.FindOne(ctx, bson.M{"_id": pairKey}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get direct pair: %v", err)
	}

	id, err := uuid.Parse(doc.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation ID in database: %v", err)
	}
	return &id, nil
}

// SaveDirectConversationID records the canonical pair lookup for future idempotent creates
func (m *MongoDB) SaveDirectConversationID(ctx context.Context, pairKey string, conversationID uuid.UUID) error {
	doc := DirectPairDB{PairKey: pairKey, ConversationID: conversationID.String()}

	filter := bson.M{"_id": pairKey}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := m.DirectPairs.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save direct pair: %v", err)
	}
	return nil
}
