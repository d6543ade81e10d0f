package engine

import (
	"muhabbet/internal/database"
	"muhabbet/internal/engine/actors"
	"muhabbet/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine coordinates communication between actors
type Engine struct {
	userActor         *actor.PID
	conversationActor *actor.PID
	messageActor      *actor.PID
}

func NewEngine(
	system *actor.ActorSystem,
	db *database.MongoDB,
	broadcaster actors.Broadcaster,
	metrics *utils.MetricsCollector,
) *Engine {
	context := system.Root

	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserActor(db, metrics)
	})
	userPID := context.Spawn(userProps)

	conversationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewConversationActor(db, db, db, broadcaster, metrics)
	})
	conversationPID := context.Spawn(conversationProps)

	messageProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewMessageActor(db, db, broadcaster, metrics)
	})
	messagePID := context.Spawn(messageProps)

	return &Engine{
		userActor:         userPID,
		conversationActor: conversationPID,
		messageActor:      messagePID,
	}
}

// GetUserActor returns the PID of the user actor
func (e *Engine) GetUserActor() *actor.PID {
	return e.userActor
}

// GetConversationActor returns the PID of the conversation actor
func (e *Engine) GetConversationActor() *actor.PID {
	return e.conversationActor
}

// GetMessageActor returns the PID of the message actor
func (e *Engine) GetMessageActor() *actor.PID {
	return e.messageActor
}
