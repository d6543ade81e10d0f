package actors

import (
	"context"
	"testing"
	"time"

	"muhabbet/internal/models"
	"muhabbet/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func spawnConversationActor(t *testing.T) (*actor.ActorSystem, *actor.PID, *memDB, *fakeBroadcaster) {
	t.Helper()
	db := newMemDB()
	broadcaster := &fakeBroadcaster{}
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewConversationActor(db, db, db, broadcaster, utils.NewMetricsCollector())
	})
	pid := system.Root.Spawn(props)
	return system, pid, db, broadcaster
}

func ask(t *testing.T, system *actor.ActorSystem, pid *actor.PID, msg interface{}) interface{} {
	t.Helper()
	future := system.Root.RequestFuture(pid, msg, testTimeout)
	result, err := future.Result()
	require.NoError(t, err)
	return result
}

func TestCreateDirectConversationIsIdempotent(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")

	first := ask(t, system, pid, &CreateConversationMsg{
		Type:           models.ConversationDirect,
		CreatorID:      alice.ID,
		ParticipantIDs: []uuid.UUID{bob.ID},
	})
	created, ok := first.(*models.ConversationWithMembers)
	require.True(t, ok, "unexpected result: %#v", first)
	assert.Equal(t, models.ConversationDirect, created.Conversation.Type)
	assert.Len(t, created.Members, 2)
	for _, member := range created.Members {
		assert.Equal(t, models.RoleMember, member.Role)
	}

	// Creating again from the other side must return the same conversation.
	second := ask(t, system, pid, &CreateConversationMsg{
		Type:           models.ConversationDirect,
		CreatorID:      bob.ID,
		ParticipantIDs: []uuid.UUID{alice.ID},
	})
	again, ok := second.(*models.ConversationWithMembers)
	require.True(t, ok, "unexpected result: %#v", second)
	assert.Equal(t, created.Conversation.ID, again.Conversation.ID)
}

func TestCreateDirectConversationWithSelfFails(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")

	result := ask(t, system, pid, &CreateConversationMsg{
		Type:           models.ConversationDirect,
		CreatorID:      alice.ID,
		ParticipantIDs: []uuid.UUID{alice.ID},
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestCreateConversationUnknownParticipantFails(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")

	result := ask(t, system, pid, &CreateConversationMsg{
		Type:           models.ConversationGroup,
		CreatorID:      alice.ID,
		ParticipantIDs: []uuid.UUID{uuid.New()},
		Name:           "ghosts",
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrUserNotFound, appErr.Code)
}

func TestCreateGroupAssignsOwner(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")

	result := ask(t, system, pid, &CreateConversationMsg{
		Type:           models.ConversationGroup,
		CreatorID:      alice.ID,
		ParticipantIDs: []uuid.UUID{bob.ID},
		Name:           "weekend plans",
	})
	created, ok := result.(*models.ConversationWithMembers)
	require.True(t, ok, "unexpected result: %#v", result)

	roles := make(map[uuid.UUID]models.Role)
	for _, member := range created.Members {
		roles[member.UserID] = member.Role
	}
	assert.Equal(t, models.RoleOwner, roles[alice.ID])
	assert.Equal(t, models.RoleMember, roles[bob.ID])
}

func TestGroupNameValidation(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")

	result := ask(t, system, pid, &CreateConversationMsg{
		Type:      models.ConversationGroup,
		CreatorID: alice.ID,
		Name:      "   ",
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)

	long := make([]rune, MaxGroupNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	result = ask(t, system, pid, &CreateConversationMsg{
		Type:      models.ConversationGroup,
		CreatorID: alice.ID,
		Name:      string(long),
	})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func createGroup(t *testing.T, system *actor.ActorSystem, pid *actor.PID, creator uuid.UUID, participants ...uuid.UUID) *models.ConversationWithMembers {
	t.Helper()
	result := ask(t, system, pid, &CreateConversationMsg{
		Type:           models.ConversationGroup,
		CreatorID:      creator,
		ParticipantIDs: participants,
		Name:           "test group",
	})
	created, ok := result.(*models.ConversationWithMembers)
	require.True(t, ok, "unexpected result: %#v", result)
	return created
}

func TestMemberCannotRemoveOthers(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")
	carol := db.addUser("carol")
	group := createGroup(t, system, pid, alice.ID, bob.ID, carol.ID)

	result := ask(t, system, pid, &RemoveMemberMsg{
		ConversationID: group.Conversation.ID,
		RequesterID:    bob.ID,
		TargetUserID:   carol.ID,
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)
}

func TestAdminCannotRemoveAdmin(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")
	carol := db.addUser("carol")
	group := createGroup(t, system, pid, alice.ID, bob.ID, carol.ID)

	for _, promoted := range []uuid.UUID{bob.ID, carol.ID} {
		result := ask(t, system, pid, &UpdateMemberRoleMsg{
			ConversationID: group.Conversation.ID,
			RequesterID:    alice.ID,
			TargetUserID:   promoted,
			NewRole:        models.RoleAdmin,
		})
		require.Equal(t, true, result)
	}

	result := ask(t, system, pid, &RemoveMemberMsg{
		ConversationID: group.Conversation.ID,
		RequesterID:    bob.ID,
		TargetUserID:   carol.ID,
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)
}

func TestOwnerCannotBeRemoved(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")
	group := createGroup(t, system, pid, alice.ID, bob.ID)

	result := ask(t, system, pid, &RemoveMemberMsg{
		ConversationID: group.Conversation.ID,
		RequesterID:    bob.ID,
		TargetUserID:   alice.ID,
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)
}

func TestOnlyOwnerChangesRoles(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")
	carol := db.addUser("carol")
	group := createGroup(t, system, pid, alice.ID, bob.ID, carol.ID)

	promote := ask(t, system, pid, &UpdateMemberRoleMsg{
		ConversationID: group.Conversation.ID,
		RequesterID:    alice.ID,
		TargetUserID:   bob.ID,
		NewRole:        models.RoleAdmin,
	})
	require.Equal(t, true, promote)

	// Even an admin cannot change roles.
	result := ask(t, system, pid, &UpdateMemberRoleMsg{
		ConversationID: group.Conversation.ID,
		RequesterID:    bob.ID,
		TargetUserID:   carol.ID,
		NewRole:        models.RoleAdmin,
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)

	// OWNER is not assignable through role updates.
	result = ask(t, system, pid, &UpdateMemberRoleMsg{
		ConversationID: group.Conversation.ID,
		RequesterID:    alice.ID,
		TargetUserID:   carol.ID,
		NewRole:        models.RoleOwner,
	})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestOwnerLeavingPromotesEarliestAdmin(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")
	carol := db.addUser("carol")
	group := createGroup(t, system, pid, alice.ID, bob.ID, carol.ID)

	// Promote both, bob first by joined order is not guaranteed within one
	// create, so adjust joins explicitly.
	db.mu.Lock()
	members := db.members[group.Conversation.ID]
	base := time.Now().Add(-time.Hour)
	for i := range members {
		switch members[i].UserID {
		case alice.ID:
			members[i].JoinedAt = base
		case bob.ID:
			members[i].JoinedAt = base.Add(time.Minute)
			members[i].Role = models.RoleAdmin
		case carol.ID:
			members[i].JoinedAt = base.Add(2 * time.Minute)
			members[i].Role = models.RoleAdmin
		}
	}
	db.mu.Unlock()

	result := ask(t, system, pid, &LeaveGroupMsg{
		ConversationID: group.Conversation.ID,
		UserID:         alice.ID,
	})
	require.Equal(t, true, result)

	remaining, err := db.GetMembers(context.Background(), group.Conversation.ID)
	require.NoError(t, err)
	roles := make(map[uuid.UUID]models.Role)
	for _, member := range remaining {
		roles[member.UserID] = member.Role
	}
	assert.Equal(t, models.RoleOwner, roles[bob.ID])
	assert.Equal(t, models.RoleAdmin, roles[carol.ID])
	_, hasAlice := roles[alice.ID]
	assert.False(t, hasAlice)
}

func TestOwnerLeavingFallsBackToEarliestMember(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")
	carol := db.addUser("carol")
	group := createGroup(t, system, pid, alice.ID, bob.ID, carol.ID)

	db.mu.Lock()
	members := db.members[group.Conversation.ID]
	base := time.Now().Add(-time.Hour)
	for i := range members {
		switch members[i].UserID {
		case alice.ID:
			members[i].JoinedAt = base
		case bob.ID:
			members[i].JoinedAt = base.Add(time.Minute)
		case carol.ID:
			members[i].JoinedAt = base.Add(2 * time.Minute)
		}
	}
	db.mu.Unlock()

	result := ask(t, system, pid, &LeaveGroupMsg{
		ConversationID: group.Conversation.ID,
		UserID:         alice.ID,
	})
	require.Equal(t, true, result)

	remaining, err := db.GetMembers(context.Background(), group.Conversation.ID)
	require.NoError(t, err)
	roles := make(map[uuid.UUID]models.Role)
	for _, member := range remaining {
		roles[member.UserID] = member.Role
	}
	assert.Equal(t, models.RoleOwner, roles[bob.ID])
}

func TestLastMemberMayLeave(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	group := createGroup(t, system, pid, alice.ID)

	result := ask(t, system, pid, &LeaveGroupMsg{
		ConversationID: group.Conversation.ID,
		UserID:         alice.ID,
	})
	require.Equal(t, true, result)

	remaining, err := db.GetMembers(context.Background(), group.Conversation.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// The empty conversation still exists.
	conversation, err := db.GetConversation(context.Background(), group.Conversation.ID)
	require.NoError(t, err)
	assert.NotNil(t, conversation)
}

func TestAddMembersSkipsExistingMembers(t *testing.T) {
	system, pid, db, broadcaster := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")
	group := createGroup(t, system, pid, alice.ID, bob.ID)

	// Re-adding an existing member alone is a conflict.
	result := ask(t, system, pid, &AddMembersMsg{
		ConversationID: group.Conversation.ID,
		RequesterID:    alice.ID,
		UserIDs:        []uuid.UUID{bob.ID},
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrAlreadyMember, appErr.Code)

	carol := db.addUser("carol")
	result = ask(t, system, pid, &AddMembersMsg{
		ConversationID: group.Conversation.ID,
		RequesterID:    alice.ID,
		UserIDs:        []uuid.UUID{carol.ID, bob.ID},
	})
	added, ok := result.([]models.ConversationMember)
	require.True(t, ok, "unexpected result: %#v", result)
	require.Len(t, added, 1)
	assert.Equal(t, carol.ID, added[0].UserID)

	events := broadcaster.eventsOfType("conversation.members_added")
	require.NotEmpty(t, events)
}

func TestChannelSubscribeAndUnsubscribe(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	bob := db.addUser("bob")

	result := ask(t, system, pid, &CreateConversationMsg{
		Type:      models.ConversationChannel,
		CreatorID: alice.ID,
		Name:      "announcements",
	})
	channel, ok := result.(*models.ConversationWithMembers)
	require.True(t, ok, "unexpected result: %#v", result)

	subscribed := ask(t, system, pid, &SubscribeChannelMsg{
		ConversationID: channel.Conversation.ID,
		UserID:         bob.ID,
	})
	member, ok := subscribed.(*models.ConversationMember)
	require.True(t, ok, "unexpected result: %#v", subscribed)
	assert.Equal(t, models.RoleMember, member.Role)

	// Double subscription is a conflict.
	again := ask(t, system, pid, &SubscribeChannelMsg{
		ConversationID: channel.Conversation.ID,
		UserID:         bob.ID,
	})
	appErr, ok := again.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrAlreadyMember, appErr.Code)

	left := ask(t, system, pid, &UnsubscribeChannelMsg{
		ConversationID: channel.Conversation.ID,
		UserID:         bob.ID,
	})
	assert.Equal(t, true, left)
}

func TestGetConversationRequiresMembership(t *testing.T) {
	system, pid, db, _ := spawnConversationActor(t)
	alice := db.addUser("alice")
	mallory := db.addUser("mallory")
	group := createGroup(t, system, pid, alice.ID)

	result := ask(t, system, pid, &GetConversationMsg{
		ConversationID: group.Conversation.ID,
		UserID:         mallory.ID,
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %#v", result)
	assert.Equal(t, utils.ErrNotMember, appErr.Code)
}
