package actors

import (
	"context"
	"strings"
	"testing"
	"time"

	"muhabbet/internal/models"
	"muhabbet/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageFixture struct {
	system      *actor.ActorSystem
	pid         *actor.PID
	db          *memDB
	broadcaster *fakeBroadcaster
	group       uuid.UUID
	alice       *models.User
	bob         *models.User
	carol       *models.User
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	db := newMemDB()
	broadcaster := &fakeBroadcaster{}
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMessageActor(db, db, broadcaster, utils.NewMetricsCollector())
	})
	pid := system.Root.Spawn(props)

	fixture := &messageFixture{
		system:      system,
		pid:         pid,
		db:          db,
		broadcaster: broadcaster,
		alice:       db.addUser("alice"),
		bob:         db.addUser("bob"),
		carol:       db.addUser("carol"),
	}

	conversation := &models.Conversation{
		ID:        uuid.New(),
		Type:      models.ConversationGroup,
		Name:      "test group",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.SaveConversation(context.Background(), conversation))
	fixture.group = conversation.ID

	now := time.Now()
	for i, user := range []*models.User{fixture.alice, fixture.bob, fixture.carol} {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleOwner
		}
		require.NoError(t, db.SaveMember(context.Background(), &models.ConversationMember{
			ConversationID: conversation.ID,
			UserID:         user.ID,
			Role:           role,
			JoinedAt:       now,
		}))
	}
	return fixture
}

func (f *messageFixture) send(t *testing.T, sender uuid.UUID, content string) *models.Message {
	t.Helper()
	result := ask(t, f.system, f.pid, &SendMessageMsg{
		MessageID:      uuid.New(),
		ConversationID: f.group,
		SenderID:       sender,
		ContentType:    models.ContentText,
		Content:        content,
	})
	message, ok := result.(*models.Message)
	require.True(t, ok, "unexpected result: %#v", result)
	return message
}

func TestSendMessageCreatesSentStatuses(t *testing.T) {
	f := newMessageFixture(t)

	message := f.send(t, f.alice.ID, "hello there")
	assert.False(t, message.ServerTimestamp.IsZero())

	statuses, err := f.db.GetDeliveryStatuses(context.Background(), []uuid.UUID{message.ID})
	require.NoError(t, err)
	rows := statuses[message.ID]
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, models.StatusSent, row.Status)
		assert.NotEqual(t, f.alice.ID, row.UserID)
	}

	// The sender does not get their own message pushed back.
	events := f.broadcaster.eventsOfType("message.new")
	require.Len(t, events, 1)
	assert.ElementsMatch(t, []uuid.UUID{f.bob.ID, f.carol.ID}, events[0].Recipients)
}

func TestSendMessageValidation(t *testing.T) {
	f := newMessageFixture(t)

	result := ask(t, f.system, f.pid, &SendMessageMsg{
		MessageID:      uuid.New(),
		ConversationID: f.group,
		SenderID:       f.alice.ID,
		ContentType:    models.ContentText,
		Content:        "   \n\t ",
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrEmptyContent, appErr.Code)

	result = ask(t, f.system, f.pid, &SendMessageMsg{
		MessageID:      uuid.New(),
		ConversationID: f.group,
		SenderID:       f.alice.ID,
		ContentType:    models.ContentText,
		Content:        strings.Repeat("x", MaxMessageLength+1),
	})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrContentTooLong, appErr.Code)

	outsider := f.db.addUser("mallory")
	result = ask(t, f.system, f.pid, &SendMessageMsg{
		MessageID:      uuid.New(),
		ConversationID: f.group,
		SenderID:       outsider.ID,
		ContentType:    models.ContentText,
		Content:        "let me in",
	})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrNotMember, appErr.Code)
}

func TestSendMessageIsIdempotentPerID(t *testing.T) {
	f := newMessageFixture(t)

	messageID := uuid.New()
	first := ask(t, f.system, f.pid, &SendMessageMsg{
		MessageID:      messageID,
		ConversationID: f.group,
		SenderID:       f.alice.ID,
		ContentType:    models.ContentText,
		Content:        "only once",
	})
	_, ok := first.(*models.Message)
	require.True(t, ok)

	second := ask(t, f.system, f.pid, &SendMessageMsg{
		MessageID:      messageID,
		ConversationID: f.group,
		SenderID:       f.alice.ID,
		ContentType:    models.ContentText,
		Content:        "only once",
	})
	appErr, ok := second.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", second)
	assert.Equal(t, utils.ErrDuplicateMessage, appErr.Code)
}

func TestAggregateStatusRules(t *testing.T) {
	f := newMessageFixture(t)
	message := f.send(t, f.alice.ID, "status check")

	resolve := func() models.DeliveryStatus {
		result := ask(t, f.system, f.pid, &ResolveStatusesMsg{
			MessageIDs:       []uuid.UUID{message.ID},
			RequestingUserID: f.alice.ID,
		})
		byMessage, ok := result.(map[uuid.UUID]models.DeliveryStatus)
		require.True(t, ok, "unexpected result: %#v", result)
		return byMessage[message.ID]
	}

	// Both recipients still at SENT.
	assert.Equal(t, models.StatusSent, resolve())

	// One recipient delivered lifts the aggregate to DELIVERED.
	ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: f.bob.ID, Status: models.StatusDelivered})
	assert.Equal(t, models.StatusDelivered, resolve())

	// One READ is not enough for the aggregate to be READ.
	ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: f.bob.ID, Status: models.StatusRead})
	assert.Equal(t, models.StatusDelivered, resolve())

	// Every recipient READ makes the aggregate READ.
	ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: f.carol.ID, Status: models.StatusRead})
	assert.Equal(t, models.StatusRead, resolve())
}

func TestAggregateStatusEmptyRecipientsIsSent(t *testing.T) {
	// A sender alone in the conversation has no recipient rows at all.
	db := newMemDB()
	broadcaster := &fakeBroadcaster{}
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMessageActor(db, db, broadcaster, utils.NewMetricsCollector())
	})
	pid := system.Root.Spawn(props)

	alice := db.addUser("alice")
	conversation := &models.Conversation{ID: uuid.New(), Type: models.ConversationGroup, Name: "solo", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, db.SaveConversation(context.Background(), conversation))
	require.NoError(t, db.SaveMember(context.Background(), &models.ConversationMember{
		ConversationID: conversation.ID, UserID: alice.ID, Role: models.RoleOwner, JoinedAt: time.Now(),
	}))

	sent := ask(t, system, pid, &SendMessageMsg{
		MessageID: uuid.New(), ConversationID: conversation.ID, SenderID: alice.ID,
		ContentType: models.ContentText, Content: "talking to myself",
	})
	message, ok := sent.(*models.Message)
	require.True(t, ok)

	result := ask(t, system, pid, &ResolveStatusesMsg{MessageIDs: []uuid.UUID{message.ID}, RequestingUserID: alice.ID})
	byMessage := result.(map[uuid.UUID]models.DeliveryStatus)
	assert.Equal(t, models.StatusSent, byMessage[message.ID])
}

func TestStatusNeverRegresses(t *testing.T) {
	f := newMessageFixture(t)
	message := f.send(t, f.alice.ID, "no going back")

	ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: f.bob.ID, Status: models.StatusRead})

	// A late DELIVERED lands as a no-op, not an error.
	result := ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: f.bob.ID, Status: models.StatusDelivered})
	status, ok := result.(*models.MessageDeliveryStatus)
	require.True(t, ok, "unexpected result: %#v", result)
	assert.Equal(t, models.StatusRead, status.Status)
}

func TestSenderHasNoOwnStatus(t *testing.T) {
	f := newMessageFixture(t)
	message := f.send(t, f.alice.ID, "mine")

	result := ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: f.alice.ID, Status: models.StatusRead})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestNonMemberCannotRecordStatus(t *testing.T) {
	f := newMessageFixture(t)
	message := f.send(t, f.alice.ID, "members only")
	mallory := f.db.addUser("mallory")

	// An upsert from outside the conversation must not mint a new row.
	result := ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: mallory.ID, Status: models.StatusDelivered})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrNotMember, appErr.Code)

	ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: f.bob.ID, Status: models.StatusRead})
	ask(t, f.system, f.pid, &UpdateStatusMsg{MessageID: message.ID, UserID: f.carol.ID, Status: models.StatusRead})

	// With every real recipient at READ the aggregate is READ; a stray
	// outsider row would have dragged it back to DELIVERED.
	resolved := ask(t, f.system, f.pid, &ResolveStatusesMsg{MessageIDs: []uuid.UUID{message.ID}, RequestingUserID: f.alice.ID})
	byMessage := resolved.(map[uuid.UUID]models.DeliveryStatus)
	assert.Equal(t, models.StatusRead, byMessage[message.ID])

	statuses, err := f.db.GetDeliveryStatuses(context.Background(), []uuid.UUID{message.ID})
	require.NoError(t, err)
	assert.Len(t, statuses[message.ID], 2)
}

func TestEditMessageWindow(t *testing.T) {
	f := newMessageFixture(t)
	message := f.send(t, f.alice.ID, "tpyo")

	result := ask(t, f.system, f.pid, &EditMessageMsg{
		MessageID:   message.ID,
		RequesterID: f.alice.ID,
		NewContent:  "typo",
	})
	edited, ok := result.(*models.Message)
	require.True(t, ok, "unexpected result: %#v", result)
	assert.Equal(t, "typo", edited.Content)
	assert.NotNil(t, edited.EditedAt)

	// Only the sender can edit.
	result = ask(t, f.system, f.pid, &EditMessageMsg{
		MessageID:   message.ID,
		RequesterID: f.bob.ID,
		NewContent:  "hijacked",
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)

	// An edit right at the end of the window still goes through.
	f.db.mu.Lock()
	f.db.messages[message.ID].ServerTimestamp = time.Now().Add(-EditWindow + time.Second)
	f.db.mu.Unlock()

	result = ask(t, f.system, f.pid, &EditMessageMsg{
		MessageID:   message.ID,
		RequesterID: f.alice.ID,
		NewContent:  "just in time",
	})
	edited, ok = result.(*models.Message)
	require.True(t, ok, "unexpected result: %#v", result)
	assert.Equal(t, "just in time", edited.Content)

	// Push the message outside the window and try again.
	f.db.mu.Lock()
	stale := time.Now().Add(-EditWindow - time.Minute)
	f.db.messages[message.ID].ServerTimestamp = stale
	f.db.mu.Unlock()

	result = ask(t, f.system, f.pid, &EditMessageMsg{
		MessageID:   message.ID,
		RequesterID: f.alice.ID,
		NewContent:  "too late",
	})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrEditWindowExpired, appErr.Code)
}

func TestDeleteMessageIsOneWay(t *testing.T) {
	f := newMessageFixture(t)
	message := f.send(t, f.alice.ID, "disappearing act")

	// Only the sender may delete.
	result := ask(t, f.system, f.pid, &DeleteMessageMsg{MessageID: message.ID, RequesterID: f.bob.ID})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)

	result = ask(t, f.system, f.pid, &DeleteMessageMsg{MessageID: message.ID, RequesterID: f.alice.ID})
	require.Equal(t, true, result)

	// Deleting again is a conflict.
	result = ask(t, f.system, f.pid, &DeleteMessageMsg{MessageID: message.ID, RequesterID: f.alice.ID})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrAlreadyDeleted, appErr.Code)

	// Editing a deleted message is refused too.
	result = ask(t, f.system, f.pid, &EditMessageMsg{MessageID: message.ID, RequesterID: f.alice.ID, NewContent: "resurrect"})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrAlreadyDeleted, appErr.Code)

	// History surfaces the tombstone with empty content.
	page := ask(t, f.system, f.pid, &GetMessagesMsg{ConversationID: f.group, UserID: f.bob.ID})
	messagePage, ok := page.(*models.MessagePage)
	require.True(t, ok)
	require.Len(t, messagePage.Messages, 1)
	assert.True(t, messagePage.Messages[0].IsDeleted)
	assert.Empty(t, messagePage.Messages[0].Content)
}

func TestGetMessagesPagination(t *testing.T) {
	f := newMessageFixture(t)

	// Backdate sends so server timestamps are strictly increasing.
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		message := f.send(t, f.alice.ID, "message")
		f.db.mu.Lock()
		f.db.messages[message.ID].ServerTimestamp = base.Add(time.Duration(i) * time.Minute)
		f.db.mu.Unlock()
	}

	first := ask(t, f.system, f.pid, &GetMessagesMsg{ConversationID: f.group, UserID: f.bob.ID, Limit: 2})
	page, ok := first.(*models.MessagePage)
	require.True(t, ok, "unexpected result: %#v", first)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.True(t, page.Messages[0].ServerTimestamp.After(page.Messages[1].ServerTimestamp))

	second := ask(t, f.system, f.pid, &GetMessagesMsg{
		ConversationID: f.group,
		UserID:         f.bob.ID,
		Cursor:         page.NextCursor.Format(time.RFC3339Nano),
		Limit:          2,
	})
	nextPage, ok := second.(*models.MessagePage)
	require.True(t, ok)
	require.Len(t, nextPage.Messages, 2)
	assert.True(t, nextPage.Messages[0].ServerTimestamp.Before(*page.NextCursor))

	// A garbage cursor behaves like no cursor at all.
	garbage := ask(t, f.system, f.pid, &GetMessagesMsg{
		ConversationID: f.group,
		UserID:         f.bob.ID,
		Cursor:         "not-a-timestamp",
		Limit:          10,
	})
	garbagePage, ok := garbage.(*models.MessagePage)
	require.True(t, ok)
	assert.Len(t, garbagePage.Messages, 5)
	assert.False(t, garbagePage.HasMore)
}

func TestGetMessagesRequiresMembership(t *testing.T) {
	f := newMessageFixture(t)
	outsider := f.db.addUser("mallory")

	result := ask(t, f.system, f.pid, &GetMessagesMsg{ConversationID: f.group, UserID: outsider.ID})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrNotMember, appErr.Code)
}

func TestDisappearTimerSnapshotAtSend(t *testing.T) {
	f := newMessageFixture(t)

	ttl := int64(3600)
	f.db.mu.Lock()
	f.db.conversations[f.group].DisappearAfterSeconds = &ttl
	f.db.mu.Unlock()

	message := f.send(t, f.alice.ID, "self destructing")
	require.NotNil(t, message.ExpiresAt)
	assert.WithinDuration(t, message.ServerTimestamp.Add(time.Hour), *message.ExpiresAt, time.Second)

	// Clearing the timer later leaves the old message's deadline alone.
	f.db.mu.Lock()
	f.db.conversations[f.group].DisappearAfterSeconds = nil
	f.db.mu.Unlock()

	plain := f.send(t, f.alice.ID, "permanent")
	assert.Nil(t, plain.ExpiresAt)
	stored, err := f.db.GetMessage(context.Background(), message.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.ExpiresAt)
}
