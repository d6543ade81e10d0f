package handlers

import (
	"net/http"

	"muhabbet/internal/api"
	"muhabbet/internal/engine/actors"
	"muhabbet/internal/models"
	"muhabbet/internal/utils"
)

// RegisterUserRequest represents a request to create a new account
type RegisterUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// LoginRequest represents a credential check request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest carries optional profile changes
type UpdateProfileRequest struct {
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// HandleUserRegistration creates a new account.
func (s *Server) HandleUserRegistration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req RegisterUserRequest
		if !decodeBody(w, r, &req) {
			return
		}

		result, ok := s.request(w, s.Engine.GetUserActor(), &actors.RegisterUserMsg{
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
			AvatarURL: req.AvatarURL,
		})
		if !ok {
			return
		}

		user := result.(*models.User)
		respondJSON(w, http.StatusCreated, user)
	}
}

// HandleUserLogin checks credentials and issues a token.
func (s *Server) HandleUserLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}

		result, ok := s.request(w, s.Engine.GetUserActor(), &actors.LoginMsg{
			Email:    req.Email,
			Password: req.Password,
		})
		if !ok {
			return
		}
		user := result.(*models.User)

		token, err := s.Auth.GenerateToken(user.ID)
		if err != nil {
			respondError(w, utils.NewAppError(utils.ErrUnauthorized, "failed to issue token", err))
			return
		}

		respondJSON(w, http.StatusOK, api.LoginResponse{
			Success: true,
			Token:   token,
			UserID:  user.ID.String(),
		})
	}
}

// HandleUserProfile returns or updates the authenticated user's profile.
func (s *Server) HandleUserProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authedUserID(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			// A userId query parameter lets users look each other up.
			target := userID
			if raw := r.URL.Query().Get("userId"); raw != "" {
				parsed, parseOK := parseUUIDParam(w, r, "userId")
				if !parseOK {
					return
				}
				target = parsed
			}

			result, reqOK := s.request(w, s.Engine.GetUserActor(), &actors.GetUserProfileMsg{UserID: target})
			if !reqOK {
				return
			}
			respondJSON(w, http.StatusOK, result)

		case http.MethodPut:
			var req UpdateProfileRequest
			if !decodeBody(w, r, &req) {
				return
			}

			result, reqOK := s.request(w, s.Engine.GetUserActor(), &actors.UpdateProfileMsg{
				UserID:       userID,
				NewUsername:  req.Username,
				NewAvatarURL: req.AvatarURL,
			})
			if !reqOK {
				return
			}
			respondJSON(w, http.StatusOK, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
