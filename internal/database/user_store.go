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

// UserDB represents the MongoDB document structure for users
type UserDB struct {
	ID             string    `bson:"_id"`
	Username       string    `bson:"username"`
	Email          string    `bson:"email"`
	HashedPassword string    `bson:"hashedPassword"`
	AvatarURL      string    `bson:"avatarUrl,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
	LastActive     time.Time `bson:"lastActive"`
	IsConnected    bool      `bson:"isConnected"`
}

func userFromDB(doc *UserDB) (*models.User, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in database: %v", err)
	}
	return &models.User{
		ID:             id,
		Username:       doc.Username,
		Email:          doc.Email,
		HashedPassword: doc.HashedPassword,
		AvatarURL:      doc.AvatarURL,
		CreatedAt:      doc.CreatedAt,
		LastActive:     doc.LastActive,
		IsConnected:    doc.IsConnected,
	}, nil
}

// GetUser retrieves a user by ID
func (m *MongoDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc UserDB
	err := m.Users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return userFromDB(&doc)
}

// GetUsersByIDs retrieves all listed users in one batched query.
// Missing IDs are simply absent from the result.
func (m *MongoDB) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}

	cursor, err := m.Users.Find(ctx, bson.M{"_id": bson.M{"$in": idStrings}})
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %v", err)
	}
	defer cursor.Close(ctx)

	var users []*models.User
	for cursor.Next(ctx) {
		var doc UserDB
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode user: %v", err)
		}
		user, err := userFromDB(&doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, cursor.Err()
}

// GetUserByEmail retrieves a user by email address
func (m *MongoDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc UserDB
	err := m.Users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %v", err)
	}
	return userFromDB(&doc)
}

// SaveUser upserts a user document
func (m *MongoDB) SaveUser(ctx context.Context, user *models.User) error {
	doc := UserDB{
		ID:             user.ID.String(),
		Username:       user.Username,
		Email:          user.Email,
		HashedPassword: user.HashedPassword,
		AvatarURL:      user.AvatarURL,
		CreatedAt:      user.CreatedAt,
		LastActive:     user.LastActive,
		IsConnected:    user.IsConnected,
	}

	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := m.Users.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user with email %s already exists", user.Email)
		}
		return fmt.Errorf("failed to save user: %v", err)
	}
	return nil
}

// SetConnected flips a user's connection flag and bumps last activity.
func (m *MongoDB) SetConnected(ctx context.Context, id uuid.UUID, connected bool, at time.Time) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{"isConnected": connected, "lastActive": at}}

	result, err := m.Users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update connection state: %v", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user not found for update")
	}
	return nil
}

// UpdateLastActive bumps a user's last activity timestamp
func (m *MongoDB) UpdateLastActive(ctx context.Context, id uuid.UUID, at time.Time) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{"lastActive": at}}

	result, err := m.Users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update last active: %v", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user not found for update")
	}
	return nil
}
