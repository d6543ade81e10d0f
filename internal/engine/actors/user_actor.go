package actors

import (
	stdctx "context"
	"strings"
	"time"

	"muhabbet/internal/database"
	"muhabbet/internal/logger"
	"muhabbet/internal/models"
	"muhabbet/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Message types for user operations
type (
	RegisterUserMsg struct {
		Username  string
		Email     string
		Password  string
		AvatarURL string
	}

	LoginMsg struct {
		Email    string
		Password string
	}

	GetUserProfileMsg struct {
		UserID uuid.UUID
	}

	UpdateProfileMsg struct {
		UserID       uuid.UUID
		NewUsername  *string
		NewAvatarURL *string
	}

	ConnectUserMsg struct {
		UserID uuid.UUID
	}

	DisconnectUserMsg struct {
		UserID uuid.UUID
	}
)

// UserActor owns account registration, credential checks, and profile state.
// Token issuance stays in the HTTP layer; this actor only vouches for the
// credentials.
type UserActor struct {
	users   database.UserDirectory
	metrics *utils.MetricsCollector
}

func NewUserActor(users database.UserDirectory, metrics *utils.MetricsCollector) actor.Actor {
	return &UserActor{
		users:   users,
		metrics: metrics,
	}
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		logger.Info("UserActor started")

	case *RegisterUserMsg:
		a.handleRegister(context, msg)

	case *LoginMsg:
		a.handleLogin(context, msg)

	case *GetUserProfileMsg:
		a.handleGetProfile(context, msg)

	case *UpdateProfileMsg:
		a.handleUpdateProfile(context, msg)

	case *ConnectUserMsg:
		a.setConnected(context, msg.UserID, true)

	case *DisconnectUserMsg:
		a.setConnected(context, msg.UserID, false)
	}
}

func (a *UserActor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	username := strings.TrimSpace(msg.Username)
	email := strings.TrimSpace(strings.ToLower(msg.Email))
	if username == "" || email == "" || msg.Password == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "username, email and password are required", nil))
		return
	}

	existing, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to check email", err))
		return
	}
	if existing != nil {
		context.Respond(utils.NewAppError(utils.ErrUserAlreadyExists, "email already registered: "+email, nil))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(msg.Password), bcrypt.DefaultCost)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "failed to hash password", err))
		return
	}

	now := time.Now()
	user := &models.User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		HashedPassword: string(hashed),
		AvatarURL:      msg.AvatarURL,
		CreatedAt:      now,
		LastActive:     now,
	}
	if err := a.users.SaveUser(ctx, user); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save user", err))
		return
	}

	a.metrics.AddOperationLatency("register_user", time.Since(startTime))
	logger.Infof("UserActor: registered user %s (%s)", user.ID, user.Email)
	context.Respond(user)
}

func (a *UserActor) handleLogin(context actor.Context, msg *LoginMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	user, err := a.users.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(msg.Email)))
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load user", err))
		return
	}
	if user == nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "invalid email or password", nil))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(msg.Password)); err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "invalid email or password", nil))
		return
	}

	if err := a.users.UpdateLastActive(ctx, user.ID, time.Now()); err != nil {
		logger.Warnf("UserActor: failed to update last active for %s: %v", user.ID, err)
	}

	a.metrics.AddOperationLatency("login", time.Since(startTime))
	context.Respond(user)
}

func (a *UserActor) handleGetProfile(context actor.Context, msg *GetUserProfileMsg) {
	ctx := stdctx.Background()

	user, err := a.users.GetUser(ctx, msg.UserID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load user", err))
		return
	}
	if user == nil {
		context.Respond(utils.NewUserNotFoundError(msg.UserID.String()))
		return
	}
	context.Respond(user)
}

func (a *UserActor) handleUpdateProfile(context actor.Context, msg *UpdateProfileMsg) {
	startTime := time.Now()
	ctx := stdctx.Background()

	user, err := a.users.GetUser(ctx, msg.UserID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to load user", err))
		return
	}
	if user == nil {
		context.Respond(utils.NewUserNotFoundError(msg.UserID.String()))
		return
	}

	if msg.NewUsername != nil {
		username := strings.TrimSpace(*msg.NewUsername)
		if username == "" {
			context.Respond(utils.NewAppError(utils.ErrInvalidInput, "username cannot be blank", nil))
			return
		}
		user.Username = username
	}
	if msg.NewAvatarURL != nil {
		user.AvatarURL = *msg.NewAvatarURL
	}

	if err := a.users.SaveUser(ctx, user); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "failed to save user", err))
		return
	}

	a.metrics.AddOperationLatency("update_profile", time.Since(startTime))
	context.Respond(user)
}

func (a *UserActor) setConnected(context actor.Context, userID uuid.UUID, connected bool) {
	ctx := stdctx.Background()

	if err := a.users.SetConnected(ctx, userID, connected, time.Now()); err != nil {
		logger.Warnf("UserActor: failed to update connection state for %s: %v", userID, err)
	}
	context.Respond(true)
}
