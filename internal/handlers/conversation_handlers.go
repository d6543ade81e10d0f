package handlers

import (
	"net/http"

	"muhabbet/internal/engine/actors"
	"muhabbet/internal/models"
	"muhabbet/internal/utils"

	"github.com/google/uuid"
)

// CreateConversationRequest represents a request to open a conversation
type CreateConversationRequest struct {
	Type                  string   `json:"type"`
	ParticipantIDs        []string `json:"participantIds"`
	Name                  string   `json:"name,omitempty"`
	DisappearAfterSeconds *int64   `json:"disappearAfterSeconds,omitempty"`
}

// MembersRequest lists users to add to a group
type MembersRequest struct {
	ConversationID string   `json:"conversationId"`
	UserIDs        []string `json:"userIds"`
}

// RemoveMemberRequest targets one member of a group
type RemoveMemberRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// UpdateGroupInfoRequest carries optional group metadata changes
type UpdateGroupInfoRequest struct {
	ConversationID string  `json:"conversationId"`
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
}

// UpdateMemberRoleRequest changes a member's role
type UpdateMemberRoleRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Role           string `json:"role"`
}

// ConversationIDRequest identifies a conversation for self-service actions
type ConversationIDRequest struct {
	ConversationID string `json:"conversationId"`
}

func parseUUIDField(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDList(w http.ResponseWriter, raw []string, name string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid entry in "+name, err))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// HandleConversations creates a conversation or lists the caller's
// conversation summaries.
func (s *Server) HandleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodPost:
			var req CreateConversationRequest
			if !decodeBody(w, r, &req) {
				return
			}

			participants, listOK := parseUUIDList(w, req.ParticipantIDs, "participantIds")
			if !listOK {
				return
			}

			result, reqOK := s.request(w, s.Engine.GetConversationActor(), &actors.CreateConversationMsg{
				Type:                  models.ConversationType(req.Type),
				CreatorID:             userID,
				ParticipantIDs:        participants,
				Name:                  req.Name,
				DisappearAfterSeconds: req.DisappearAfterSeconds,
			})
			if !reqOK {
				return
			}
			respondJSON(w, http.StatusCreated, result)

		case http.MethodGet:
			result, reqOK := s.request(w, s.Engine.GetConversationActor(), &actors.ListConversationsMsg{UserID: userID})
			if !reqOK {
				return
			}
			respondJSON(w, http.StatusOK, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleConversationDetail returns one conversation with its member list.
func (s *Server) HandleConversationDetail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}
		conversationID, ok := parseUUIDParam(w, r, "conversationId")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetConversationActor(), &actors.GetConversationMsg{
			ConversationID: conversationID,
			UserID:         userID,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleAddMembers adds users to a group conversation.
func (s *Server) HandleAddMembers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req MembersRequest
		if !decodeBody(w, r, &req) {
			return
		}
		conversationID, ok := parseUUIDField(w, req.ConversationID, "conversationId")
		if !ok {
			return
		}
		userIDs, ok := parseUUIDList(w, req.UserIDs, "userIds")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetConversationActor(), &actors.AddMembersMsg{
			ConversationID: conversationID,
			RequesterID:    userID,
			UserIDs:        userIDs,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleRemoveMember removes one member from a group conversation.
func (s *Server) HandleRemoveMember() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req RemoveMemberRequest
		if !decodeBody(w, r, &req) {
			return
		}
		conversationID, ok := parseUUIDField(w, req.ConversationID, "conversationId")
		if !ok {
			return
		}
		targetID, ok := parseUUIDField(w, req.UserID, "userId")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetConversationActor(), &actors.RemoveMemberMsg{
			ConversationID: conversationID,
			RequesterID:    userID,
			TargetUserID:   targetID,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleUpdateGroupInfo renames a group or changes its description.
func (s *Server) HandleUpdateGroupInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req UpdateGroupInfoRequest
		if !decodeBody(w, r, &req) {
			return
		}
		conversationID, ok := parseUUIDField(w, req.ConversationID, "conversationId")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetConversationActor(), &actors.UpdateGroupInfoMsg{
			ConversationID: conversationID,
			RequesterID:    userID,
			Name:           req.Name,
			Description:    req.Description,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleUpdateMemberRole promotes or demotes a group member.
func (s *Server) HandleUpdateMemberRole() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req UpdateMemberRoleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		conversationID, ok := parseUUIDField(w, req.ConversationID, "conversationId")
		if !ok {
			return
		}
		targetID, ok := parseUUIDField(w, req.UserID, "userId")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetConversationActor(), &actors.UpdateMemberRoleMsg{
			ConversationID: conversationID,
			RequesterID:    userID,
			TargetUserID:   targetID,
			NewRole:        models.Role(req.Role),
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleLeaveGroup removes the caller from a group, promoting a successor
// when the owner leaves.
func (s *Server) HandleLeaveGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req ConversationIDRequest
		if !decodeBody(w, r, &req) {
			return
		}
		conversationID, ok := parseUUIDField(w, req.ConversationID, "conversationId")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetConversationActor(), &actors.LeaveGroupMsg{
			ConversationID: conversationID,
			UserID:         userID,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleChannelSubscription subscribes to or unsubscribes from a channel.
func (s *Server) HandleChannelSubscription() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req ConversationIDRequest
		if !decodeBody(w, r, &req) {
			return
		}
		conversationID, ok := parseUUIDField(w, req.ConversationID, "conversationId")
		if !ok {
			return
		}

		var msg interface{}
		switch r.Method {
		case http.MethodPost:
			msg = &actors.SubscribeChannelMsg{ConversationID: conversationID, UserID: userID}
		case http.MethodDelete:
			msg = &actors.UnsubscribeChannelMsg{ConversationID: conversationID, UserID: userID}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result, reqOK := s.request(w, s.Engine.GetConversationActor(), msg)
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}
