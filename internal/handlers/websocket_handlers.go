package handlers

import (
	"net/http"

	"muhabbet/internal/engine/actors"
	"muhabbet/internal/logger"
	"muhabbet/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens in the CORS layer for the REST routes;
		// browsers cannot set arbitrary Origin headers on ws:// either.
		return true
	},
}

// HandleWebSocket authenticates and upgrades a client connection, then hands
// it to the hub.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Browsers cannot set headers on WebSocket requests, so the token
		// rides in the query string.
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		claims, err := s.Auth.ValidateToken(tokenString)
		if err != nil {
			logger.Warnf("WebSocket connection rejected: invalid token: %v", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		userID := claims.UserID
		if userID == uuid.Nil {
			http.Error(w, "Invalid user ID in token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("WebSocket upgrade failed for user %s: %v", userID, err)
			return
		}

		client := &websocket.Client{
			Hub:    s.Hub,
			UserID: userID,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}
		client.Hub.Register <- client

		// Record the connection on the user's profile. Fire-and-forget.
		s.Context.Send(s.Engine.GetUserActor(), &actors.ConnectUserMsg{UserID: userID})

		go client.WritePump()
		go func() {
			client.ReadPump()
			s.Context.Send(s.Engine.GetUserActor(), &actors.DisconnectUserMsg{UserID: userID})
		}()
	}
}
