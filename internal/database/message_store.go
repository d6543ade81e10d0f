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

// MessageDB represents the MongoDB document structure for messages
type MessageDB struct {
	ID              string     `bson:"_id"`
	ConversationID  string     `bson:"conversationId"`
	SenderID        string     `bson:"senderId"`
	ContentType     string     `bson:"contentType"`
	Content         string     `bson:"content"`
	ReplyToID       *string    `bson:"replyToId,omitempty"`
	MediaURL        string     `bson:"mediaUrl,omitempty"`
	ForwardedFrom   *string    `bson:"forwardedFrom,omitempty"`
	ServerTimestamp time.Time  `bson:"serverTimestamp"`
	ClientTimestamp time.Time  `bson:"clientTimestamp"`
	ExpiresAt       *time.Time `bson:"expiresAt,omitempty"`
	EditedAt        *time.Time `bson:"editedAt,omitempty"`
	IsDeleted       bool       `bson:"isDeleted"`
	DeletedAt       *time.Time `bson:"deletedAt,omitempty"`
}

// StatusDB represents the MongoDB document structure for delivery statuses
type StatusDB struct {
	MessageID string    `bson:"messageId"`
	UserID    string    `bson:"userId"`
	Status    string    `bson:"status"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func messageToDB(message *models.Message) MessageDB {
	doc := MessageDB{
		ID:              message.ID.String(),
		ConversationID:  message.ConversationID.String(),
		SenderID:        message.SenderID.String(),
		ContentType:     string(message.ContentType),
		Content:         message.Content,
		MediaURL:        message.MediaURL,
		ServerTimestamp: message.ServerTimestamp,
		ClientTimestamp: message.ClientTimestamp,
		ExpiresAt:       message.ExpiresAt,
		EditedAt:        message.EditedAt,
		IsDeleted:       message.IsDeleted,
		DeletedAt:       message.DeletedAt,
	}
	if message.ReplyToID != nil {
		s := message.ReplyToID.String()
		doc.ReplyToID = &s
	}
	if message.ForwardedFrom != nil {
		s := message.ForwardedFrom.String()
		doc.ForwardedFrom = &s
	}
	return doc
}

func messageFromDB(doc *MessageDB) (*models.Message, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid message ID in database: %v", err)
	}
	conversationID, err := uuid.Parse(doc.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation ID in database: %v", err)
	}
	senderID, err := uuid.Parse(doc.SenderID)
	if err != nil {
		return nil, fmt.Errorf("invalid sender ID in database: %v", err)
	}

	message := &models.Message{
		ID:              id,
		ConversationID:  conversationID,
		SenderID:        senderID,
		ContentType:     models.ContentType(doc.ContentType),
		Content:         doc.Content,
		MediaURL:        doc.MediaURL,
		ServerTimestamp: doc.ServerTimestamp,
		ClientTimestamp: doc.ClientTimestamp,
		ExpiresAt:       doc.ExpiresAt,
		EditedAt:        doc.EditedAt,
		IsDeleted:       doc.IsDeleted,
		DeletedAt:       doc.DeletedAt,
	}
	if doc.ReplyToID != nil {
		replyTo, err := uuid.Parse(*doc.ReplyToID)
		if err != nil {
			return nil, fmt.Errorf("invalid replyTo ID in database: %v", err)
		}
		message.ReplyToID = &replyTo
	}
	if doc.ForwardedFrom != nil {
		forwarded, err := uuid.Parse(*doc.ForwardedFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid forwardedFrom ID in database: %v", err)
		}
		message.ForwardedFrom = &forwarded
	}
	return message, nil
}

// SaveMessage inserts a new message document. Duplicate message IDs are rejected
// by the unique _id so replays cannot create a second row.
func (m *MongoDB) SaveMessage(ctx context.Context, message *models.Message) error {
	_, err := m.Messages.InsertOne(ctx, messageToDB(message))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("message with id %s already exists", message.ID)
		}
		return fmt.Errorf("failed to save message: %v", err)
	}
	return nil
}

// GetMessage retrieves a message by its ID
func (m *MongoDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var doc MessageDB
	err := m.Messages.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %v", err)
	}
	return messageFromDB(&doc)
}

// MessageExists reports whether a message with the given ID is stored
func (m *MongoDB) MessageExists(ctx context.Context, id uuid.UUID) (bool, error) {
	count, err := m.Messages.CountDocuments(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return false, fmt.Errorf("failed to check message existence: %v", err)
	}
	return count > 0, nil
}

// GetMessagesBefore fetches up to limit messages older than the cursor,
// newest first by server timestamp. A zero cursor means no upper bound.
func (m *MongoDB) GetMessagesBefore(ctx context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]*models.Message, error) {
	filter := bson.M{"conversationId": conversationID.String()}
	if !before.IsZero() {
		filter["serverTimestamp"] = bson.M{"$lt": before}
	}
	opts := options.Find().
		SetSort(bson.M{"serverTimestamp": -1}).
		SetLimit(int64(limit))

	cursor, err := m.Messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %v", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	for cursor.Next(ctx) {
		var doc MessageDB
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %v", err)
		}
		message, err := messageFromDB(&doc)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, cursor.Err()
}

// UpdateMessageContent persists an edit
func (m *MongoDB) UpdateMessageContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{"content": content, "editedAt": editedAt}}

	result, err := m.Messages.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update message: %v", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("message not found for update")
	}
	return nil
}

// SoftDeleteMessage marks a message deleted. Content stays in storage.
func (m *MongoDB) SoftDeleteMessage(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": deletedAt}}

	result, err := m.Messages.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to delete message: %v", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("message not found for deletion")
	}
	return nil
}

// SaveDeliveryStatus upserts one recipient's delivery row
func (m *MongoDB) SaveDeliveryStatus(ctx context.Context, status *models.MessageDeliveryStatus) error {
	doc := StatusDB{
		MessageID: status.MessageID.String(),
		UserID:    status.UserID.String(),
		Status:    string(status.Status),
		UpdatedAt: status.UpdatedAt,
	}

	filter := bson.M{"messageId": doc.MessageID, "userId": doc.UserID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := m.Statuses.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save delivery status: %v", err)
	}
	return nil
}

// GetDeliveryStatus retrieves one recipient's delivery row
func (m *MongoDB) GetDeliveryStatus(ctx context.Context, messageID, userID uuid.UUID) (*models.MessageDeliveryStatus, error) {
	var doc StatusDB
	filter := bson.M{"messageId": messageID.String(), "userId": userID.String()}
	err := m.Statuses.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get delivery status: %v", err)
	}
	return statusFromDB(&doc)
}

func statusFromDB(doc *StatusDB) (*models.MessageDeliveryStatus, error) {
	messageID, err := uuid.Parse(doc.MessageID)
	if err != nil {
		return nil, fmt.Errorf("invalid message ID in database: %v", err)
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %v", err)
	}
	return &models.MessageDeliveryStatus{
		MessageID: messageID,
		UserID:    userID,
		Status:    models.DeliveryStatus(doc.Status),
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// GetDeliveryStatuses fetches the delivery rows of all given messages in one
// query, keyed by message ID.
func (m *MongoDB) GetDeliveryStatuses(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]models.MessageDeliveryStatus, error) {
	result := make(map[uuid.UUID][]models.MessageDeliveryStatus, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	idStrings := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		idStrings = append(idStrings, id.String())
	}

	cursor, err := m.Statuses.Find(ctx, bson.M{"messageId": bson.M{"$in": idStrings}})
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery statuses: %v", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc StatusDB
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode delivery status: %v", err)
		}
		status, err := statusFromDB(&doc)
		if err != nil {
			return nil, err
		}
		result[status.MessageID] = append(result[status.MessageID], *status)
	}
	return result, cursor.Err()
}

// GetLastMessages returns the newest message of each given conversation
func (m *MongoDB) GetLastMessages(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]*models.Message, error) {
	result := make(map[uuid.UUID]*models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	idStrings := make([]string, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		idStrings = append(idStrings, id.String())
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"conversationId": bson.M{"$in": idStrings}}}},
		{{Key: "$sort", Value: bson.M{"serverTimestamp": -1}}},
		{{Key: "$group", Value: bson.M{"_id": "$conversationId", "doc": bson.M{"$first": "$$ROOT"}}}},
	}

	cursor, err := m.Messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to get last messages: %v", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			Doc MessageDB `bson:"doc"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode last message: %v", err)
		}
		message, err := messageFromDB(&row.Doc)
		if err != nil {
			return nil, err
		}
		result[message.ConversationID] = message
	}
	return result, cursor.Err()
}

// GetUnreadCounts returns, per conversation, how many delivery rows of the user
// have not yet reached READ.
func (m *MongoDB) GetUnreadCounts(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	result := make(map[uuid.UUID]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	idStrings := make([]string, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		idStrings = append(idStrings, id.String())
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"userId": userID.String(),
			"status": bson.M{"$ne": string(models.StatusRead)},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "messages",
			"localField":   "messageId",
			"foreignField": "_id",
			"as":           "message",
		}}},
		{{Key: "$unwind", Value: "$message"}},
		{{Key: "$match", Value: bson.M{"message.conversationId": bson.M{"$in": idStrings}}}},
		{{Key: "$group", Value: bson.M{"_id": "$message.conversationId", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := m.Statuses.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %v", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode unread count: %v", err)
		}
		conversationID, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid conversation ID in database: %v", err)
		}
		result[conversationID] = row.Count
	}
	return result, cursor.Err()
}
