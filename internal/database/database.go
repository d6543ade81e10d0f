// internal/database/database.go
package database

import (
	"context"
	"fmt"
	"time"

	"muhabbet/internal/logger"
	"muhabbet/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationStore is the persistence contract consumed by the ConversationActor.
type ConversationStore interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	SaveConversation(ctx context.Context, conversation *models.Conversation) error
	UpdateConversationInfo(ctx context.Context, id uuid.UUID, name, description *string) (*models.Conversation, error)
	GetMember(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, error)
	GetMembers(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMember, error)
	GetConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	SaveMember(ctx context.Context, member *models.ConversationMember) error
	RemoveMember(ctx context.Context, conversationID, userID uuid.UUID) error
	UpdateMemberRole(ctx context.Context, conversationID, userID uuid.UUID, role models.Role) error
	GetDirectConversationID(ctx context.Context, pairKey string) (*uuid.UUID, error)
	SaveDirectConversationID(ctx context.Context, pairKey string, conversationID uuid.UUID) error
}

// MessageStore is the persistence contract consumed by the MessageActor.
type MessageStore interface {
	SaveMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	MessageExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetMessagesBefore(ctx context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]*models.Message, error)
	UpdateMessageContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	SoftDeleteMessage(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	SaveDeliveryStatus(ctx context.Context, status *models.MessageDeliveryStatus) error
	GetDeliveryStatus(ctx context.Context, messageID, userID uuid.UUID) (*models.MessageDeliveryStatus, error)
	GetDeliveryStatuses(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]models.MessageDeliveryStatus, error)
	GetLastMessages(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]*models.Message, error)
	GetUnreadCounts(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// CallHistoryStore receives terminal call snapshots. Writes are fire-and-forget
// from the call registry's perspective.
type CallHistoryStore interface {
	SaveCallRecord(ctx context.Context, record *models.CallHistoryRecord) error
	GetCallHistoryForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CallHistoryRecord, error)
}

// UserDirectory resolves user identities for participant validation and auth.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	SetConnected(ctx context.Context, id uuid.UUID, connected bool, at time.Time) error
	UpdateLastActive(ctx context.Context, id uuid.UUID, at time.Time) error
}

type MongoDB struct {
	Client        *mongo.Client
	Users         *mongo.Collection
	Conversations *mongo.Collection
	Members       *mongo.Collection
	DirectPairs   *mongo.Collection
	Messages      *mongo.Collection
	Statuses      *mongo.Collection
	CallHistory   *mongo.Collection
}

func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	logger.Info("Successfully connected to MongoDB")

	db := client.Database(dbName)
	m := &MongoDB{
		Client:        client,
		Users:         db.Collection("users"),
		Conversations: db.Collection("conversations"),
		Members:       db.Collection("conversation_members"),
		DirectPairs:   db.Collection("direct_pairs"),
		Messages:      db.Collection("messages"),
		Statuses:      db.Collection("message_statuses"),
		CallHistory:   db.Collection("call_history"),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return m, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	memberIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "conversationId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := m.Members.Indexes().CreateOne(ctx, memberIdx); err != nil {
		return err
	}

	statusIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "messageId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := m.Statuses.Indexes().CreateOne(ctx, statusIdx); err != nil {
		return err
	}

	msgIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "serverTimestamp", Value: -1}},
	}
	if _, err := m.Messages.Indexes().CreateOne(ctx, msgIdx); err != nil {
		return err
	}

	emailIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := m.Users.Indexes().CreateOne(ctx, emailIdx)
	return err
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
