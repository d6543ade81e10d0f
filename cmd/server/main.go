package main

import (
	stdctx "context"
	"fmt"
	"net/http"
	"time"

	"muhabbet/internal/calls"
	"muhabbet/internal/config"
	"muhabbet/internal/database"
	"muhabbet/internal/engine"
	"muhabbet/internal/handlers"
	"muhabbet/internal/logger"
	"muhabbet/internal/middleware"
	"muhabbet/internal/presence"
	"muhabbet/internal/utils"
	"muhabbet/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	metrics := utils.NewMetricsCollector()

	mongodb, err := database.NewMongoDB(cfg.Database.URI, cfg.Database.Name)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 5*time.Second)
		defer cancel()
		if err := mongodb.Close(ctx); err != nil {
			logger.Errorf("Failed to disconnect from MongoDB: %v", err)
		}
	}()

	// Presence is optional. Without Redis the hub still delivers events,
	// it just cannot answer cross-instance online checks.
	var presenceStore *presence.Store
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := stdctx.WithTimeout(stdctx.Background(), 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warnf("Redis unreachable, presence disabled: %v", err)
		} else {
			presenceStore = presence.NewStore(redisClient, "muhabbet")
		}
		cancel()
	}

	hub := websocket.NewHub(presenceStore)
	go hub.Run()

	callRegistry := calls.NewRegistry(mongodb, metrics)

	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, mongodb, hub, metrics)

	auth := middleware.NewAuth(*cfg.Auth)
	server := handlers.NewServer(system, system.Root, eng, metrics, callRegistry, hub, auth, mongodb)

	corsConfig := middleware.DefaultCORSConfig(cfg.AllowedOrigins)

	mux := http.NewServeMux()
	route := func(path string, handler http.HandlerFunc) {
		mux.HandleFunc(path, middleware.ApplyCORS(auth.Middleware(handler, path), corsConfig))
	}

	route("/health", server.HandleHealth())

	route("/users/register", server.HandleUserRegistration())
	route("/users/login", server.HandleUserLogin())
	route("/users/profile", server.HandleUserProfile())

	route("/conversations", server.HandleConversations())
	route("/conversations/detail", server.HandleConversationDetail())
	route("/conversations/members/add", server.HandleAddMembers())
	route("/conversations/members/remove", server.HandleRemoveMember())
	route("/conversations/info", server.HandleUpdateGroupInfo())
	route("/conversations/members/role", server.HandleUpdateMemberRole())
	route("/conversations/leave", server.HandleLeaveGroup())
	route("/conversations/subscription", server.HandleChannelSubscription())

	route("/messages", server.HandleSendMessage())
	route("/messages/history", server.HandleGetMessages())
	route("/messages/statuses", server.HandleMessageStatuses())
	route("/messages/status", server.HandleUpdateStatus())
	route("/messages/edit", server.HandleEditMessage())
	route("/messages/delete", server.HandleDeleteMessage())

	route("/calls/initiate", server.HandleInitiateCall())
	route("/calls/answer", server.HandleAnswerCall())
	route("/calls/end", server.HandleEndCall())
	route("/calls/active", server.HandleActiveCall())
	route("/calls/history", server.HandleCallHistory())

	// WebSocket authenticates via query token, not the Authorization header.
	mux.HandleFunc("/ws", server.HandleWebSocket())

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.Fatalf("Server failed to start: %v", err)
	}
}
