package actors

import (
	stdctx "context"
	"fmt"
	"sort"
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
	// MaxGroupNameLength bounds group and channel names.
	MaxGroupNameLength = 100

	// MaxGroupMembers is the member ceiling for group conversations.
	MaxGroupMembers = 256
)

// Broadcaster delivers events to online recipients. All calls are
// fire-and-forget; the actors never wait on or fail from delivery.
type Broadcaster interface {
	BroadcastMessage(message *models.Message, recipientIDs []uuid.UUID)
	BroadcastToUsers(userIDs []uuid.UUID, eventType string, payload interface{})
	BroadcastStatusUpdate(messageID, conversationID, viewerID, senderID uuid.UUID, status models.DeliveryStatus)
}

// Message types for conversation and membership operations
type (
	CreateConversationMsg struct {
		Type                  models.ConversationType
		CreatorID             uuid.UUID
		ParticipantIDs        []uuid.UUID
		Name                  string
		DisappearAfterSeconds *int64
	}

	GetConversationMsg struct {
		ConversationID uuid.UUID
		UserID         uuid.UUID
	}

	ListConversationsMsg struct {
		UserID uuid.UUID
	}

	AddMembersMsg struct {
		ConversationID uuid.UUID
		RequesterID    uuid.UUID
		UserIDs        []uuid.UUID
	}

	RemoveMemberMsg struct {
		ConversationID uuid.UUID
		RequesterID    uuid.UUID
		TargetUserID   uuid.UUID
	}

	UpdateGroupInfoMsg struct {
		ConversationID uuid.UUID
		RequesterID    uuid.UUID
		Name           *string
		Description    *string
	}

	UpdateMemberRoleMsg struct {
		ConversationID uuid.UUID
		RequesterID    uuid.UUID
		TargetUserID   uuid.UUID
		NewRole        models.Role
	}

	LeaveGroupMsg struct {
		ConversationID uuid.UUID
		UserID         uuid.UUID
	}

	SubscribeChannelMsg struct {
		ConversationID uuid.UUID
		UserID         uuid.UUID
	}

	UnsubscribeChannelMsg struct {
		ConversationID uuid.UUID
		UserID         uuid.UUID
	}
)

// ConversationActor owns conversation creation and the group membership
// role state machine.
type ConversationActor struct {
	store       database.ConversationStore
	messages    database.MessageStore
	users       database.UserDirectory
	broadcaster Broadcaster
	metrics     *utils.MetricsCollector
}

func NewConversationActor(
	store database.ConversationStore,
	messages database.MessageStore,
	users database.UserDirectory,
	broadcaster Broadcaster,
	metrics *utils.MetricsCollector,
) actor.Actor {
	return &ConversationActor{
		store:       store,
		messages:    messages,
		users:       users,
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

// Receive handles incoming messages
func (a *ConversationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		logger.Info("ConversationActor started")

	case *actor.Stopping:
		logger.Info("ConversationActor stopping")

	case *CreateConversationMsg:
		a.handleCreateConversation(context, msg)

	case *GetConversationMsg:
		a.handleGetConversation(context, msg)

	case *ListConversationsMsg:
		a.handleListConversations(context, msg)

	case *AddMembersMsg:
		a.handleAddMembers(context, msg)

	case *RemoveMemberMsg:
		a.handleRemoveMember(context, msg)

	case *UpdateGroupInfoMsg:
		a.handleUpdateGroupInfo(context, msg)

	case *UpdateMemberRoleMsg:
		a.handleUpdateMemberRole(context, msg)

	case *LeaveGroupMsg:
		a.handleLeaveGroup(context, msg)

	case *SubscribeChannelMsg:
		a.handleSubscribeChannel(context, msg)

	case *UnsubscribeChannelMsg:
		a.handleUnsubscribeChannel(context, msg)
	}
}

func (a *ConversationActor) handleCreateConversation(context actor.Context, msg *CreateConversationMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	participants := distinctParticipants(msg.CreatorID, msg.ParticipantIDs)

	switch msg.Type {
	case models.ConversationDirect:
		if len(msg.ParticipantIDs) != 1 {
			context.Respond(utils.NewAppError(utils.ErrInvalidInput, "a direct conversation needs exactly one other participant", nil))
			return
		}
		if msg.ParticipantIDs[0] == msg.CreatorID {
			context.Respond(utils.NewAppError(utils.ErrInvalidInput, "cannot start a direct conversation with yourself", nil))
			return
		}

	case models.ConversationGroup, models.ConversationChannel:
		if err := validateGroupName(msg.Name); err != nil {
			context.Respond(err)
			return
		}
		if len(participants) > MaxGroupMembers {
			context.Respond(utils.NewAppError(utils.ErrMemberLimitExceeded,
				fmt.Sprintf("conversations are limited to %d members", MaxGroupMembers), nil))
			return
		}

	default:
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "unknown conversation type: "+string(msg.Type), nil))
		return
	}

	// All participants must resolve, all-or-nothing.
	if appErr := a.requireUsersExist(ctx, participants); appErr != nil {
		context.Respond(appErr)
		return
	}

	// Direct conversations are idempotent per unordered user pair.
	var pairKey string
	if msg.Type == models.ConversationDirect {
		pairKey = models.DirectPairKey(msg.CreatorID, msg.ParticipantIDs[0])
		existingID, err := a.store.GetDirectConversationID(ctx, pairKey)
		if err != nil {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to look up direct conversation", err))
			return
		}
		if existingID != nil {
			a.respondWithConversation(context, ctx, *existingID)
			return
		}
	}

	now := time.Now()
	conversation := &models.Conversation{
		ID:                    uuid.New(),
		Type:                  msg.Type,
		Name:                  strings.TrimSpace(msg.Name),
		DisappearAfterSeconds: msg.DisappearAfterSeconds,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := a.store.SaveConversation(ctx, conversation); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save conversation", err))
		return
	}

	members := make([]models.ConversationMember, 0, len(participants))
	for _, userID := range participants {
		role := models.RoleMember
		// Only groups have an owner; direct and channel members stay MEMBER.
		if msg.Type == models.ConversationGroup && userID == msg.CreatorID {
			role = models.RoleOwner
		}
		member := models.ConversationMember{
			ConversationID: conversation.ID,
			UserID:         userID,
			Role:           role,
			JoinedAt:       now,
		}
		if err := a.store.SaveMember(ctx, &member); err != nil {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save member", err))
			return
		}
		members = append(members, member)
	}

	if pairKey != "" {
		if err := a.store.SaveDirectConversationID(ctx, pairKey, conversation.ID); err != nil {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save direct pair", err))
			return
		}
	}

	a.broadcaster.BroadcastToUsers(participants, "conversation.created", conversation)

	a.metrics.AddOperationLatency("create_conversation", time.Since(startTime))
	logger.Infof("ConversationActor: created %s conversation %s with %d members", msg.Type, conversation.ID, len(members))
	context.Respond(&models.ConversationWithMembers{Conversation: conversation, Members: members})
}

func (a *ConversationActor) handleGetConversation(context actor.Context, msg *GetConversationMsg) {
	ctx := stdctx.Background()

	if _, appErr := a.requireMember(ctx, msg.ConversationID, msg.UserID); appErr != nil {
		context.Respond(appErr)
		return
	}

	a.respondWithConversation(context, ctx, msg.ConversationID)
}

func (a *ConversationActor) handleListConversations(context actor.Context, msg *ListConversationsMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	ids, err := a.store.GetConversationIDsForUser(ctx, msg.UserID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to list conversations", err))
		return
	}

	lastMessages, err := a.messages.GetLastMessages(ctx, ids)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load last messages", err))
		return
	}
	unreadCounts, err := a.messages.GetUnreadCounts(ctx, msg.UserID, ids)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load unread counts", err))
		return
	}

	summaries := make([]models.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		conversation, err := a.store.GetConversation(ctx, id)
		if err != nil {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load conversation", err))
			return
		}
		if conversation == nil {
			continue
		}
		summaries = append(summaries, models.ConversationSummary{
			Conversation: conversation,
			LastMessage:  scrubDeleted(lastMessages[id]),
			UnreadCount:  unreadCounts[id],
		})
	}

	// Newest activity first.
	sort.Slice(summaries, func(i, j int) bool {
		return summaryTime(summaries[i]).After(summaryTime(summaries[j]))
	})

	a.metrics.AddOperationLatency("list_conversations", time.Since(startTime))
	context.Respond(summaries)
}

func (a *ConversationActor) handleAddMembers(context actor.Context, msg *AddMembersMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	conversation, members, appErr := a.requireGroup(ctx, msg.ConversationID)
	if appErr != nil {
		context.Respond(appErr)
		return
	}

	requester := findMember(members, msg.RequesterID)
	if requester == nil {
		context.Respond(utils.NewNotMemberError(msg.RequesterID.String(), msg.ConversationID.String()))
		return
	}
	if !requester.Role.AtLeastAdmin() {
		context.Respond(utils.NewForbiddenError("only admins and the owner can add members"))
		return
	}

	// Drop users that already belong to the group.
	var newIDs []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, userID := range msg.UserIDs {
		if seen[userID] || findMember(members, userID) != nil {
			continue
		}
		seen[userID] = true
		newIDs = append(newIDs, userID)
	}
	if len(newIDs) == 0 {
		context.Respond(utils.NewAppError(utils.ErrAlreadyMember, "all listed users are already members", nil))
		return
	}
	if len(members)+len(newIDs) > MaxGroupMembers {
		context.Respond(utils.NewAppError(utils.ErrMemberLimitExceeded,
			fmt.Sprintf("conversations are limited to %d members", MaxGroupMembers), nil))
		return
	}

	if appErr := a.requireUsersExist(ctx, newIDs); appErr != nil {
		context.Respond(appErr)
		return
	}

	now := time.Now()
	added := make([]models.ConversationMember, 0, len(newIDs))
	for _, userID := range newIDs {
		member := models.ConversationMember{
			ConversationID: msg.ConversationID,
			UserID:         userID,
			Role:           models.RoleMember,
			JoinedAt:       now,
		}
		if err := a.store.SaveMember(ctx, &member); err != nil {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save member", err))
			return
		}
		added = append(added, member)
	}

	recipients := memberIDs(members)
	recipients = append(recipients, newIDs...)
	a.broadcaster.BroadcastToUsers(recipients, "conversation.members_added", map[string]interface{}{
		"conversationId": conversation.ID,
		"members":        added,
	})

	a.metrics.AddOperationLatency("add_members", time.Since(startTime))
	logger.Infof("ConversationActor: added %d members to conversation %s", len(added), conversation.ID)
	context.Respond(added)
}

func (a *ConversationActor) handleRemoveMember(context actor.Context, msg *RemoveMemberMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	conversation, members, appErr := a.requireGroup(ctx, msg.ConversationID)
	if appErr != nil {
		context.Respond(appErr)
		return
	}

	target := findMember(members, msg.TargetUserID)
	if target == nil {
		context.Respond(utils.NewNotMemberError(msg.TargetUserID.String(), msg.ConversationID.String()))
		return
	}
	if target.Role.IsOwner() {
		context.Respond(utils.NewForbiddenError("the owner cannot be removed"))
		return
	}

	requester := findMember(members, msg.RequesterID)
	if requester == nil {
		context.Respond(utils.NewNotMemberError(msg.RequesterID.String(), msg.ConversationID.String()))
		return
	}
	switch requester.Role {
	case models.RoleMember:
		context.Respond(utils.NewForbiddenError("members cannot remove other members"))
		return
	case models.RoleAdmin:
		if target.Role == models.RoleAdmin {
			context.Respond(utils.NewForbiddenError("admins cannot remove other admins"))
			return
		}
	}

	if err := a.store.RemoveMember(ctx, msg.ConversationID, msg.TargetUserID); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to remove member", err))
		return
	}

	// The removed user is notified too, so their own client updates.
	recipients := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		if member.UserID != msg.TargetUserID {
			recipients = append(recipients, member.UserID)
		}
	}
	recipients = append(recipients, msg.TargetUserID)
	a.broadcaster.BroadcastToUsers(recipients, "conversation.member_removed", map[string]interface{}{
		"conversationId": conversation.ID,
		"userId":         msg.TargetUserID,
	})

	a.metrics.AddOperationLatency("remove_member", time.Since(startTime))
	logger.Infof("ConversationActor: removed member %s from conversation %s", msg.TargetUserID, conversation.ID)
	context.Respond(true)
}

func (a *ConversationActor) handleUpdateGroupInfo(context actor.Context, msg *UpdateGroupInfoMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	_, members, appErr := a.requireGroup(ctx, msg.ConversationID)
	if appErr != nil {
		context.Respond(appErr)
		return
	}

	requester := findMember(members, msg.RequesterID)
	if requester == nil {
		context.Respond(utils.NewNotMemberError(msg.RequesterID.String(), msg.ConversationID.String()))
		return
	}
	if !requester.Role.AtLeastAdmin() {
		context.Respond(utils.NewForbiddenError("only admins and the owner can update group info"))
		return
	}

	if msg.Name != nil {
		if err := validateGroupName(*msg.Name); err != nil {
			context.Respond(err)
			return
		}
	}

	updated, err := a.store.UpdateConversationInfo(ctx, msg.ConversationID, msg.Name, msg.Description)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to update conversation", err))
		return
	}
	if updated == nil {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}

	a.broadcaster.BroadcastToUsers(memberIDs(members), "conversation.updated", updated)

	a.metrics.AddOperationLatency("update_group_info", time.Since(startTime))
	context.Respond(updated)
}

func (a *ConversationActor) handleUpdateMemberRole(context actor.Context, msg *UpdateMemberRoleMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	conversation, members, appErr := a.requireGroup(ctx, msg.ConversationID)
	if appErr != nil {
		context.Respond(appErr)
		return
	}

	requester := findMember(members, msg.RequesterID)
	if requester == nil {
		context.Respond(utils.NewNotMemberError(msg.RequesterID.String(), msg.ConversationID.String()))
		return
	}
	// Role changes are reserved for the owner; admins cannot promote or demote.
	if !requester.Role.IsOwner() {
		context.Respond(utils.NewForbiddenError("only the owner can change member roles"))
		return
	}

	if msg.NewRole != models.RoleAdmin && msg.NewRole != models.RoleMember {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "role must be ADMIN or MEMBER", nil))
		return
	}

	target := findMember(members, msg.TargetUserID)
	if target == nil {
		context.Respond(utils.NewNotMemberError(msg.TargetUserID.String(), msg.ConversationID.String()))
		return
	}

	if err := a.store.UpdateMemberRole(ctx, msg.ConversationID, msg.TargetUserID, msg.NewRole); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to update member role", err))
		return
	}

	a.broadcaster.BroadcastToUsers(memberIDs(members), "conversation.role_updated", map[string]interface{}{
		"conversationId": conversation.ID,
		"userId":         msg.TargetUserID,
		"role":           msg.NewRole,
	})

	a.metrics.AddOperationLatency("update_member_role", time.Since(startTime))
	context.Respond(true)
}

func (a *ConversationActor) handleLeaveGroup(context actor.Context, msg *LeaveGroupMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	conversation, members, appErr := a.requireGroup(ctx, msg.ConversationID)
	if appErr != nil {
		context.Respond(appErr)
		return
	}

	leaving := findMember(members, msg.UserID)
	if leaving == nil {
		context.Respond(utils.NewNotMemberError(msg.UserID.String(), msg.ConversationID.String()))
		return
	}

	// A leaving owner hands the group to a successor before going. A group
	// with no one left behind simply ends up empty.
	if leaving.Role.IsOwner() {
		if successor := pickSuccessor(members, msg.UserID); successor != nil {
			if err := a.store.UpdateMemberRole(ctx, msg.ConversationID, successor.UserID, models.RoleOwner); err != nil {
				context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to promote successor", err))
				return
			}
			logger.Infof("ConversationActor: ownership of %s passed to %s", conversation.ID, successor.UserID)
		}
	}

	if err := a.store.RemoveMember(ctx, msg.ConversationID, msg.UserID); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to remove member", err))
		return
	}

	var remaining []uuid.UUID
	for _, member := range members {
		if member.UserID != msg.UserID {
			remaining = append(remaining, member.UserID)
		}
	}
	a.broadcaster.BroadcastToUsers(remaining, "conversation.member_left", map[string]interface{}{
		"conversationId": conversation.ID,
		"userId":         msg.UserID,
	})

	a.metrics.AddOperationLatency("leave_group", time.Since(startTime))
	logger.Infof("ConversationActor: user %s left conversation %s", msg.UserID, conversation.ID)
	context.Respond(true)
}

func (a *ConversationActor) handleSubscribeChannel(context actor.Context, msg *SubscribeChannelMsg) {
	ctx := stdctx.Background()

	conversation, err := a.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load conversation", err))
		return
	}
	if conversation == nil {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}
	if conversation.Type != models.ConversationChannel {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "only channels can be subscribed to", nil))
		return
	}

	existing, err := a.store.GetMember(ctx, msg.ConversationID, msg.UserID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load member", err))
		return
	}
	if existing != nil {
		context.Respond(utils.NewAppError(utils.ErrAlreadyMember, "already subscribed to this channel", nil))
		return
	}

	member := models.ConversationMember{
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Role:           models.RoleMember,
		JoinedAt:       time.Now(),
	}
	if err := a.store.SaveMember(ctx, &member); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save member", err))
		return
	}

	logger.Infof("ConversationActor: user %s subscribed to channel %s", msg.UserID, conversation.ID)
	context.Respond(&member)
}

func (a *ConversationActor) handleUnsubscribeChannel(context actor.Context, msg *UnsubscribeChannelMsg) {
	ctx := stdctx.Background()

	conversation, err := a.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load conversation", err))
		return
	}
	if conversation == nil {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}
	if conversation.Type != models.ConversationChannel {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "only channels can be unsubscribed from", nil))
		return
	}

	if _, appErr := a.requireMember(ctx, msg.ConversationID, msg.UserID); appErr != nil {
		context.Respond(appErr)
		return
	}
	if err := a.store.RemoveMember(ctx, msg.ConversationID, msg.UserID); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to remove member", err))
		return
	}

	logger.Infof("ConversationActor: user %s unsubscribed from channel %s", msg.UserID, conversation.ID)
	context.Respond(true)
}

// pickSuccessor chooses the next owner among the remaining members: the
// earliest-joined admin if any, otherwise the earliest-joined member.
func pickSuccessor(members []models.ConversationMember, leavingID uuid.UUID) *models.ConversationMember {
	var bestAdmin, bestMember *models.ConversationMember
	for i := range members {
		member := &members[i]
		if member.UserID == leavingID {
			continue
		}
		switch member.Role {
		case models.RoleAdmin:
			if bestAdmin == nil || member.JoinedAt.Before(bestAdmin.JoinedAt) {
				bestAdmin = member
			}
		case models.RoleMember:
			if bestMember == nil || member.JoinedAt.Before(bestMember.JoinedAt) {
				bestMember = member
			}
		}
	}
	if bestAdmin != nil {
		return bestAdmin
	}
	return bestMember
}

// requireGroup loads a conversation, its members, and checks it is a group.
func (a *ConversationActor) requireGroup(ctx stdctx.Context, conversationID uuid.UUID) (*models.Conversation, []models.ConversationMember, *utils.AppError) {
	conversation, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, utils.NewAppError(utils.ErrDatabase, "failed to load conversation", err)
	}
	if conversation == nil {
		return nil, nil, utils.NewConversationNotFoundError(conversationID.String())
	}
	if conversation.Type != models.ConversationGroup {
		return nil, nil, utils.NewAppError(utils.ErrInvalidInput, "operation is only valid for group conversations", nil)
	}

	members, err := a.store.GetMembers(ctx, conversationID)
	if err != nil {
		return nil, nil, utils.NewAppError(utils.ErrDatabase, "failed to load members", err)
	}
	return conversation, members, nil
}

func (a *ConversationActor) requireMember(ctx stdctx.Context, conversationID, userID uuid.UUID) (*models.ConversationMember, *utils.AppError) {
	member, err := a.store.GetMember(ctx, conversationID, userID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to load member", err)
	}
	if member == nil {
		return nil, utils.NewNotMemberError(userID.String(), conversationID.String())
	}
	return member, nil
}

// requireUsersExist validates all ids against the user directory in one
// batched lookup. Any miss fails the whole operation.
func (a *ConversationActor) requireUsersExist(ctx stdctx.Context, ids []uuid.UUID) *utils.AppError {
	users, err := a.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to look up users", err)
	}
	if len(users) == len(ids) {
		return nil
	}

	found := make(map[uuid.UUID]bool, len(users))
	for _, user := range users {
		found[user.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return utils.NewUserNotFoundError(id.String())
		}
	}
	return nil
}

func (a *ConversationActor) respondWithConversation(context actor.Context, ctx stdctx.Context, conversationID uuid.UUID) {
	conversation, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load conversation", err))
		return
	}
	if conversation == nil {
		context.Respond(utils.NewConversationNotFoundError(conversationID.String()))
		return
	}
	members, err := a.store.GetMembers(ctx, conversationID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load members", err))
		return
	}
	context.Respond(&models.ConversationWithMembers{Conversation: conversation, Members: members})
}

func validateGroupName(name string) *utils.AppError {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return utils.NewAppError(utils.ErrInvalidInput, "group name is required", nil)
	}
	if len([]rune(trimmed)) > MaxGroupNameLength {
		return utils.NewAppError(utils.ErrInvalidInput,
			fmt.Sprintf("group name is limited to %d characters", MaxGroupNameLength), nil)
	}
	return nil
}

// distinctParticipants dedupes the participant list and guarantees the
// creator is included.
func distinctParticipants(creatorID uuid.UUID, participantIDs []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{creatorID: true}
	result := []uuid.UUID{creatorID}
	for _, id := range participantIDs {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}

func findMember(members []models.ConversationMember, userID uuid.UUID) *models.ConversationMember {
	for i := range members {
		if members[i].UserID == userID {
			return &members[i]
		}
	}
	return nil
}

func memberIDs(members []models.ConversationMember) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.UserID)
	}
	return ids
}

func summaryTime(summary models.ConversationSummary) time.Time {
	if summary.LastMessage != nil {
		return summary.LastMessage.ServerTimestamp
	}
	return summary.Conversation.UpdatedAt
}

// scrubDeleted blanks the content of deleted messages before they go to clients.
func scrubDeleted(message *models.Message) *models.Message {
	if message == nil || !message.IsDeleted {
		return message
	}
	scrubbed := *message
	scrubbed.Content = ""
	return &scrubbed
}
