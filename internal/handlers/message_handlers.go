package handlers

import (
	"net/http"
	"strconv"
	"time"

	"muhabbet/internal/engine/actors"
	"muhabbet/internal/models"
	"muhabbet/internal/utils"

	"github.com/google/uuid"
)

// SendMessageRequest represents a request to send a message
type SendMessageRequest struct {
	MessageID       string  `json:"messageId"`
	ConversationID  string  `json:"conversationId"`
	ContentType     string  `json:"contentType"`
	Content         string  `json:"content"`
	ClientTimestamp string  `json:"clientTimestamp,omitempty"`
	ReplyToID       *string `json:"replyToId,omitempty"`
	MediaURL        string  `json:"mediaUrl,omitempty"`
	ForwardedFrom   *string `json:"forwardedFrom,omitempty"`
}

// UpdateStatusRequest marks a message delivered or read for the caller
type UpdateStatusRequest struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// EditMessageRequest replaces a message's content
type EditMessageRequest struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// MessageIDRequest identifies one message
type MessageIDRequest struct {
	MessageID string `json:"messageId"`
}

// StatusQueryRequest asks for aggregated statuses of a batch of messages
type StatusQueryRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// HandleSendMessage persists a message and fans it out to members.
func (s *Server) HandleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req SendMessageRequest
		if !decodeBody(w, r, &req) {
			return
		}

		messageID, ok := parseUUIDField(w, req.MessageID, "messageId")
		if !ok {
			return
		}
		conversationID, ok := parseUUIDField(w, req.ConversationID, "conversationId")
		if !ok {
			return
		}

		contentType := models.ContentType(req.ContentType)
		if contentType == "" {
			contentType = models.ContentText
		}

		var clientTimestamp time.Time
		if req.ClientTimestamp != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, req.ClientTimestamp); err == nil {
				clientTimestamp = parsed
			}
		}

		var replyToID *uuid.UUID
		if req.ReplyToID != nil {
			parsed, parseOK := parseUUIDField(w, *req.ReplyToID, "replyToId")
			if !parseOK {
				return
			}
			replyToID = &parsed
		}

		var forwardedFrom *uuid.UUID
		if req.ForwardedFrom != nil {
			parsed, parseOK := parseUUIDField(w, *req.ForwardedFrom, "forwardedFrom")
			if !parseOK {
				return
			}
			forwardedFrom = &parsed
		}

		result, reqOK := s.request(w, s.Engine.GetMessageActor(), &actors.SendMessageMsg{
			MessageID:       messageID,
			ConversationID:  conversationID,
			SenderID:        userID,
			ContentType:     contentType,
			Content:         req.Content,
			ClientTimestamp: clientTimestamp,
			ReplyToID:       replyToID,
			MediaURL:        req.MediaURL,
			ForwardedFrom:   forwardedFrom,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusCreated, result)
	}
}

// HandleGetMessages pages through a conversation's history, newest first.
func (s *Server) HandleGetMessages() http.HandlerFunc {
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

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				limit = parsed
			}
		}

		result, reqOK := s.request(w, s.Engine.GetMessageActor(), &actors.GetMessagesMsg{
			ConversationID: conversationID,
			UserID:         userID,
			Cursor:         r.URL.Query().Get("cursor"),
			Limit:          limit,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleMessageStatuses resolves the aggregated delivery status of a batch
// of messages.
func (s *Server) HandleMessageStatuses() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req StatusQueryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		messageIDs, ok := parseUUIDList(w, req.MessageIDs, "messageIds")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetMessageActor(), &actors.ResolveStatusesMsg{
			MessageIDs:       messageIDs,
			RequestingUserID: userID,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleUpdateStatus records the caller's delivered or read receipt.
func (s *Server) HandleUpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if !decodeBody(w, r, &req) {
			return
		}
		messageID, ok := parseUUIDField(w, req.MessageID, "messageId")
		if !ok {
			return
		}

		status := models.DeliveryStatus(req.Status)
		if status != models.StatusDelivered && status != models.StatusRead {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "status must be DELIVERED or READ", nil))
			return
		}

		result, reqOK := s.request(w, s.Engine.GetMessageActor(), &actors.UpdateStatusMsg{
			MessageID: messageID,
			UserID:    userID,
			Status:    status,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleEditMessage rewrites a message's content inside the edit window.
func (s *Server) HandleEditMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req EditMessageRequest
		if !decodeBody(w, r, &req) {
			return
		}
		messageID, ok := parseUUIDField(w, req.MessageID, "messageId")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetMessageActor(), &actors.EditMessageMsg{
			MessageID:   messageID,
			RequesterID: userID,
			NewContent:  req.Content,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleDeleteMessage soft deletes the caller's own message.
func (s *Server) HandleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		var req MessageIDRequest
		if !decodeBody(w, r, &req) {
			return
		}
		messageID, ok := parseUUIDField(w, req.MessageID, "messageId")
		if !ok {
			return
		}

		result, reqOK := s.request(w, s.Engine.GetMessageActor(), &actors.DeleteMessageMsg{
			MessageID:   messageID,
			RequesterID: userID,
		})
		if !reqOK {
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": result})
	}
}
