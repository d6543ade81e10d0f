package actors

import (
	stdctx "context"
	"fmt"
	"strings"
	"time"

	"muhabbet/internal/database"
	"muhabbet/internal/logger"
	"muhabbet/internal/models"
	"muhabbet/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

const (
	// MaxMessageLength bounds TEXT message content.
	MaxMessageLength = 4096

	// EditWindow is how long after sending a message may still be edited.
	// The boundary itself is inside the window.
	EditWindow = 15 * time.Minute

	// DefaultPageSize is used when the caller does not ask for a limit.
	DefaultPageSize = 50

	// MaxPageSize caps one history page.
	MaxPageSize = 100
)

// Message types for message operations
type (
	SendMessageMsg struct {
		MessageID       uuid.UUID
		ConversationID  uuid.UUID
		SenderID        uuid.UUID
		ContentType     models.ContentType
		Content         string
		ClientTimestamp time.Time
		ReplyToID       *uuid.UUID
		MediaURL        string
		ForwardedFrom   *uuid.UUID
	}

	GetMessagesMsg struct {
		ConversationID uuid.UUID
		UserID         uuid.UUID
		Cursor         string
		Limit          int
	}

	ResolveStatusesMsg struct {
		MessageIDs       []uuid.UUID
		RequestingUserID uuid.UUID
	}

	UpdateStatusMsg struct {
		MessageID uuid.UUID
		UserID    uuid.UUID
		Status    models.DeliveryStatus
	}

	DeleteMessageMsg struct {
		MessageID   uuid.UUID
		RequesterID uuid.UUID
	}

	EditMessageMsg struct {
		MessageID   uuid.UUID
		RequesterID uuid.UUID
		NewContent  string
	}
)

// MessageActor owns message send, history, edit, delete, and the
// multi-recipient delivery status aggregation.
type MessageActor struct {
	store         database.MessageStore
	conversations database.ConversationStore
	broadcaster   Broadcaster
	metrics       *utils.MetricsCollector
}

func NewMessageActor(
	store database.MessageStore,
	conversations database.ConversationStore,
	broadcaster Broadcaster,
	metrics *utils.MetricsCollector,
) actor.Actor {
	return &MessageActor{
		store:         store,
		conversations: conversations,
		broadcaster:   broadcaster,
		metrics:       metrics,
	}
}

// Receive handles incoming messages
func (a *MessageActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		logger.Info("MessageActor started")

	case *actor.Stopping:
		logger.Info("MessageActor stopping")

	case *SendMessageMsg:
		a.handleSendMessage(context, msg)

	case *GetMessagesMsg:
		a.handleGetMessages(context, msg)

	case *ResolveStatusesMsg:
		a.handleResolveStatuses(context, msg)

	case *UpdateStatusMsg:
		a.handleUpdateStatus(context, msg)

	case *DeleteMessageMsg:
		a.handleDeleteMessage(context, msg)

	case *EditMessageMsg:
		a.handleEditMessage(context, msg)
	}
}

func (a *MessageActor) handleSendMessage(context actor.Context, msg *SendMessageMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	if msg.ContentType == models.ContentText {
		if appErr := validateContent(msg.Content); appErr != nil {
			context.Respond(appErr)
			return
		}
	}

	conversation, err := a.conversations.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load conversation", err))
		return
	}
	if conversation == nil {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}

	sender, err := a.conversations.GetMember(ctx, msg.ConversationID, msg.SenderID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load member", err))
		return
	}
	if sender == nil {
		context.Respond(utils.NewNotMemberError(msg.SenderID.String(), msg.ConversationID.String()))
		return
	}

	// Client-generated ids make retries safe: a replay must never create a
	// second message.
	exists, err := a.store.MessageExists(ctx, msg.MessageID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to check message id", err))
		return
	}
	if exists {
		context.Respond(utils.NewAppError(utils.ErrDuplicateMessage, "message already exists: "+msg.MessageID.String(), nil))
		return
	}

	now := time.Now()
	message := &models.Message{
		ID:              msg.MessageID,
		ConversationID:  msg.ConversationID,
		SenderID:        msg.SenderID,
		ContentType:     msg.ContentType,
		Content:         msg.Content,
		ReplyToID:       msg.ReplyToID,
		MediaURL:        msg.MediaURL,
		ForwardedFrom:   msg.ForwardedFrom,
		ServerTimestamp: now,
		ClientTimestamp: msg.ClientTimestamp,
	}

	// The disappear timer is a snapshot taken at send time. Later changes to
	// the conversation's timer leave this message untouched.
	if conversation.DisappearAfterSeconds != nil && *conversation.DisappearAfterSeconds > 0 {
		expiresAt := now.Add(time.Duration(*conversation.DisappearAfterSeconds) * time.Second)
		message.ExpiresAt = &expiresAt
	}

	if err := a.store.SaveMessage(ctx, message); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save message", err))
		return
	}

	members, err := a.conversations.GetMembers(ctx, msg.ConversationID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load members", err))
		return
	}

	var recipients []uuid.UUID
	for _, member := range members {
		if member.UserID == msg.SenderID {
			continue
		}
		status := &models.MessageDeliveryStatus{
			MessageID: message.ID,
			UserID:    member.UserID,
			Status:    models.StatusSent,
			UpdatedAt: now,
		}
		if err := a.store.SaveDeliveryStatus(ctx, status); err != nil {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save delivery status", err))
			return
		}
		recipients = append(recipients, member.UserID)
	}

	a.broadcaster.BroadcastMessage(message, recipients)

	a.metrics.AddOperationLatency("send_message", time.Since(startTime))
	logger.Infof("MessageActor: message %s sent to conversation %s, recipients=%d", message.ID, message.ConversationID, len(recipients))
	context.Respond(message)
}

func (a *MessageActor) handleGetMessages(context actor.Context, msg *GetMessagesMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	member, err := a.conversations.GetMember(ctx, msg.ConversationID, msg.UserID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load member", err))
		return
	}
	if member == nil {
		context.Respond(utils.NewNotMemberError(msg.UserID.String(), msg.ConversationID.String()))
		return
	}

	limit := msg.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	// An unparsable cursor is treated as absent, not as an error.
	var before time.Time
	if msg.Cursor != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, msg.Cursor); err == nil {
			before = parsed
		}
	}

	// Fetch one extra row to learn whether an older page exists.
	messages, err := a.store.GetMessagesBefore(ctx, msg.ConversationID, before, limit+1)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load messages", err))
		return
	}

	page := &models.MessagePage{}
	if len(messages) > limit {
		messages = messages[:limit]
		page.HasMore = true
		cursor := messages[len(messages)-1].ServerTimestamp
		page.NextCursor = &cursor
	}
	for i, message := range messages {
		messages[i] = scrubDeleted(message)
	}
	page.Messages = messages

	a.metrics.AddOperationLatency("get_messages", time.Since(startTime))
	context.Respond(page)
}

// handleResolveStatuses rolls each message's delivery rows up into one
// conversation-wide status. The requesting user does not change the outcome;
// delivery progress is shared state, not a per-viewer view.
func (a *MessageActor) handleResolveStatuses(context actor.Context, msg *ResolveStatusesMsg) {
	ctx := stdctx.Background()

	statusesByMessage, err := a.store.GetDeliveryStatuses(ctx, msg.MessageIDs)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load delivery statuses", err))
		return
	}

	result := make(map[uuid.UUID]models.DeliveryStatus, len(msg.MessageIDs))
	for _, messageID := range msg.MessageIDs {
		result[messageID] = aggregateStatuses(statusesByMessage[messageID])
	}
	context.Respond(result)
}

func (a *MessageActor) handleUpdateStatus(context actor.Context, msg *UpdateStatusMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	message, err := a.store.GetMessage(ctx, msg.MessageID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load message", err))
		return
	}
	if message == nil {
		context.Respond(utils.NewAppError(utils.ErrMessageNotFound, "message not found: "+msg.MessageID.String(), nil))
		return
	}
	if msg.UserID == message.SenderID {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "the sender has no delivery status of their own message", nil))
		return
	}

	// Only members may carry a delivery row; the save below is an upsert,
	// so an outsider would otherwise mint one for themselves.
	member, err := a.conversations.GetMember(ctx, message.ConversationID, msg.UserID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load member", err))
		return
	}
	if member == nil {
		context.Respond(utils.NewNotMemberError(msg.UserID.String(), message.ConversationID.String()))
		return
	}

	existing, err := a.store.GetDeliveryStatus(ctx, msg.MessageID, msg.UserID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load delivery status", err))
		return
	}

	// A recipient's status only moves forward. Replays and out-of-order
	// updates land here as no-ops.
	if existing != nil && msg.Status.Rank() <= existing.Status.Rank() {
		context.Respond(existing)
		return
	}

	updated := &models.MessageDeliveryStatus{
		MessageID: msg.MessageID,
		UserID:    msg.UserID,
		Status:    msg.Status,
		UpdatedAt: time.Now(),
	}
	if err := a.store.SaveDeliveryStatus(ctx, updated); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save delivery status", err))
		return
	}

	a.broadcaster.BroadcastStatusUpdate(msg.MessageID, message.ConversationID, msg.UserID, message.SenderID, msg.Status)

	a.metrics.AddOperationLatency("update_status", time.Since(startTime))
	context.Respond(updated)
}

func (a *MessageActor) handleDeleteMessage(context actor.Context, msg *DeleteMessageMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	message, err := a.store.GetMessage(ctx, msg.MessageID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load message", err))
		return
	}
	if message == nil {
		context.Respond(utils.NewAppError(utils.ErrMessageNotFound, "message not found: "+msg.MessageID.String(), nil))
		return
	}
	if message.SenderID != msg.RequesterID {
		context.Respond(utils.NewForbiddenError("only the sender can delete a message"))
		return
	}
	if message.IsDeleted {
		context.Respond(utils.NewAppError(utils.ErrAlreadyDeleted, "message is already deleted", nil))
		return
	}

	if err := a.store.SoftDeleteMessage(ctx, msg.MessageID, time.Now()); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to delete message", err))
		return
	}

	members, err := a.conversations.GetMembers(ctx, message.ConversationID)
	if err != nil {
		logger.Warnf("MessageActor: skipping delete broadcast for message %s: %v", message.ID, err)
	} else {
		a.broadcaster.BroadcastToUsers(memberIDs(members), "message.deleted", map[string]interface{}{
			"conversationId": message.ConversationID,
			"messageId":      message.ID,
		})
	}

	a.metrics.AddOperationLatency("delete_message", time.Since(startTime))
	logger.Infof("MessageActor: message %s deleted", message.ID)
	context.Respond(true)
}

func (a *MessageActor) handleEditMessage(context actor.Context, msg *EditMessageMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	message, err := a.store.GetMessage(ctx, msg.MessageID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load message", err))
		return
	}
	if message == nil {
		context.Respond(utils.NewAppError(utils.ErrMessageNotFound, "message not found: "+msg.MessageID.String(), nil))
		return
	}
	if message.SenderID != msg.RequesterID {
		context.Respond(utils.NewForbiddenError("only the sender can edit a message"))
		return
	}
	if message.IsDeleted {
		context.Respond(utils.NewAppError(utils.ErrAlreadyDeleted, "cannot edit a deleted message", nil))
		return
	}

	// Edits exactly at the window boundary are still allowed.
	if time.Since(message.ServerTimestamp) > EditWindow {
		context.Respond(utils.NewAppError(utils.ErrEditWindowExpired,
			fmt.Sprintf("messages can only be edited within %s of sending", EditWindow), nil))
		return
	}

	if appErr := validateContent(msg.NewContent); appErr != nil {
		context.Respond(appErr)
		return
	}

	now := time.Now()
	if err := a.store.UpdateMessageContent(ctx, msg.MessageID, msg.NewContent, now); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to update message", err))
		return
	}

	edited := *message
	edited.Content = msg.NewContent
	edited.EditedAt = &now

	members, err := a.conversations.GetMembers(ctx, message.ConversationID)
	if err != nil {
		logger.Warnf("MessageActor: skipping edit broadcast for message %s: %v", message.ID, err)
	} else {
		a.broadcaster.BroadcastToUsers(memberIDs(members), "message.edited", &edited)
	}

	a.metrics.AddOperationLatency("edit_message", time.Since(startTime))
	logger.Infof("MessageActor: message %s edited", message.ID)
	context.Respond(&edited)
}

// aggregateStatuses rolls recipient rows up: no recipients means SENT, all
// READ means READ, any recipient at DELIVERED or further means DELIVERED.
func aggregateStatuses(statuses []models.MessageDeliveryStatus) models.DeliveryStatus {
	if len(statuses) == 0 {
		return models.StatusSent
	}

	allRead := true
	anyDelivered := false
	for _, status := range statuses {
		if status.Status != models.StatusRead {
			allRead = false
		}
		if status.Status.Rank() >= models.StatusDelivered.Rank() {
			anyDelivered = true
		}
	}

	if allRead {
		return models.StatusRead
	}
	if anyDelivered {
		return models.StatusDelivered
	}
	return models.StatusSent
}

func validateContent(content string) *utils.AppError {
	if strings.TrimSpace(content) == "" {
		return utils.NewAppError(utils.ErrEmptyContent, "message content cannot be blank", nil)
	}
	if len([]rune(content)) > MaxMessageLength {
		return utils.NewAppError(utils.ErrContentTooLong,
			fmt.Sprintf("message content is limited to %d characters", MaxMessageLength), nil)
	}
	return nil
}
