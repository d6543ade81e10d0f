package database

import (
	"context"
	"fmt"
	"time"

	"muhabbet/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CallRecordDB represents the MongoDB document structure for call history
type CallRecordDB struct {
	CallID          string     `bson:"_id"`
	CallerID        string     `bson:"callerId"`
	CalleeID        string     `bson:"calleeId"`
	CallType        string     `bson:"callType"`
	Status          string     `bson:"status"`
	StartedAt       time.Time  `bson:"startedAt"`
	AnsweredAt      *time.Time `bson:"answeredAt,omitempty"`
	EndedAt         *time.Time `bson:"endedAt,omitempty"`
	DurationSeconds *int64     `bson:"durationSeconds,omitempty"`
}

// SaveCallRecord persists the terminal snapshot of a call
func (m *MongoDB) SaveCallRecord(ctx context.Context, record *models.CallHistoryRecord) error {
	doc := CallRecordDB{
		CallID:          record.CallID.String(),
		CallerID:        record.CallerID.String(),
		CalleeID:        record.CalleeID.String(),
		CallType:        string(record.CallType),
		Status:          string(record.Status),
		StartedAt:       record.StartedAt,
		AnsweredAt:      record.AnsweredAt,
		EndedAt:         record.EndedAt,
		DurationSeconds: record.DurationSeconds,
	}

	filter := bson.M{"_id": doc.CallID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := m.CallHistory.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save call record: %v", err)
	}
	return nil
}

// GetCallHistoryForUser lists terminal calls the user took part in, newest first
func (m *MongoDB) GetCallHistoryForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CallHistoryRecord, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"callerId": userID.String()},
		bson.M{"calleeId": userID.String()},
	}}
	opts := options.Find().
		SetSort(bson.M{"startedAt": -1}).
		SetLimit(int64(limit))

	cursor, err := m.CallHistory.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get call history: %v", err)
	}
	defer cursor.Close(ctx)

	var records []*models.CallHistoryRecord
	for cursor.Next(ctx) {
		var doc CallRecordDB
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode call record: %v", err)
		}

		callID, err := uuid.Parse(doc.CallID)
		if err != nil {
			return nil, fmt.Errorf("invalid call ID in database: %v", err)
		}
		callerID, err := uuid.Parse(doc.CallerID)
		if err != nil {
			return nil, fmt.Errorf("invalid caller ID in database: %v", err)
		}
		calleeID, err := uuid.Parse(doc.CalleeID)
		if err != nil {
			return nil, fmt.Errorf("invalid callee ID in database: %v", err)
		}

		records = append(records, &models.CallHistoryRecord{
			CallID:          callID,
			CallerID:        callerID,
			CalleeID:        calleeID,
			CallType:        models.CallType(doc.CallType),
			Status:          models.CallStatus(doc.Status),
			StartedAt:       doc.StartedAt,
			AnsweredAt:      doc.AnsweredAt,
			EndedAt:         doc.EndedAt,
			DurationSeconds: doc.DurationSeconds,
		})
	}
	return records, cursor.Err()
}
