package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var samplePhrases = []string{
	"hey, are you around?",
	"did you see the branch I pushed?",
	"lunch at noon?",
	"that fix worked, thanks",
	"can someone review my PR?",
	"running late, start without me",
	"the deploy looks green",
	"call me when you get a chance",
}

func (s *ChatSimulator) SimulateActivities(ctx context.Context) error {
	log.Printf("Starting activities simulation...")

	// Receipts and calls only make sense once some messages exist.
	messagesAvailable := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateMessages(ctx, messagesAvailable)
	}()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.stats.mu.RLock()
				enough := s.stats.TotalMessages >= 10
				s.stats.mu.RUnlock()
				if enough {
					close(messagesAvailable)
					return
				}
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-messagesAvailable:
			log.Printf("Starting read receipts after messages available...")
			s.simulateReceipts(ctx)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-messagesAvailable:
			log.Printf("Starting calls after messages available...")
			s.simulateCalls(ctx)
		}
	}()

	wg.Wait()
	return nil
}

func (s *ChatSimulator) simulateMessages(ctx context.Context, _ chan struct{}) {
	log.Printf("Starting message simulation...")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			users := s.users
			s.mu.RUnlock()

			for _, user := range users {
				if !user.IsConnected || len(user.Conversations) == 0 {
					continue
				}
				if rand.Float64() >= s.config.MessageFrequency/3600.0 {
					continue
				}

				conversationID := user.Conversations[rand.Intn(len(user.Conversations))]
				messageID := uuid.New()
				data := map[string]interface{}{
					"messageId":       messageID.String(),
					"conversationId":  conversationID.String(),
					"contentType":     "TEXT",
					"content":         samplePhrases[rand.Intn(len(samplePhrases))],
					"clientTimestamp": time.Now().Format(time.RFC3339Nano),
				}

				if _, err := s.makeRequest("POST", "/messages", data, user.Token); err != nil {
					log.Printf("Debug: message send failed for %s: %v", user.Username, err)
					continue
				}

				s.mu.Lock()
				user.SentMessages = append(user.SentMessages, messageID)
				user.LastActive = time.Now()
				s.mu.Unlock()

				s.stats.mu.Lock()
				s.stats.TotalMessages++
				s.stats.mu.Unlock()
			}
		}
	}
}

// simulateReceipts has connected users page through recent history and mark
// other people's messages delivered or read.
func (s *ChatSimulator) simulateReceipts(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			users := s.users
			s.mu.RUnlock()

			for _, user := range users {
				if !user.IsConnected || len(user.Conversations) == 0 {
					continue
				}
				if rand.Float64() >= s.config.ReceiptRate {
					continue
				}

				conversationID := user.Conversations[rand.Intn(len(user.Conversations))]
				path := fmt.Sprintf("/messages/history?conversationId=%s&limit=10", conversationID)
				resp, err := s.makeRequest("GET", path, nil, user.Token)
				if err != nil {
					continue
				}

				var page struct {
					Messages []struct {
						ID       string `json:"id"`
						SenderID string `json:"senderId"`
					} `json:"messages"`
				}
				if err := json.Unmarshal(resp, &page); err != nil {
					continue
				}

				for _, message := range page.Messages {
					if message.SenderID == user.ID.String() {
						continue
					}
					status := "DELIVERED"
					if rand.Float64() < 0.7 {
						status = "READ"
					}
					data := map[string]interface{}{
						"messageId": message.ID,
						"status":    status,
					}
					if _, err := s.makeRequest("POST", "/messages/status", data, user.Token); err != nil {
						continue
					}
					s.stats.mu.Lock()
					s.stats.TotalReceipts++
					s.stats.mu.Unlock()
				}
			}
		}
	}
}

// simulateCalls rings random pairs and ends the call shortly after, with a
// mix of answered, declined, and missed outcomes.
func (s *ChatSimulator) simulateCalls(ctx context.Context) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			if len(s.users) < 2 {
				s.mu.RUnlock()
				continue
			}
			caller := s.users[rand.Intn(len(s.users))]
			callee := s.users[rand.Intn(len(s.users))]
			s.mu.RUnlock()

			if caller.ID == callee.ID || !caller.IsConnected {
				continue
			}
			if rand.Float64() >= s.config.CallFrequency/1200.0 {
				continue
			}

			callID := uuid.New()
			callType := "VOICE"
			if rand.Float64() < 0.3 {
				callType = "VIDEO"
			}
			data := map[string]interface{}{
				"callId":   callID.String(),
				"calleeId": callee.ID.String(),
				"callType": callType,
			}
			if _, err := s.makeRequest("POST", "/calls/initiate", data, caller.Token); err != nil {
				// Busy parties are expected under load.
				continue
			}

			go s.finishCall(caller, callee, callID)

			s.stats.mu.Lock()
			s.stats.TotalCalls++
			s.stats.mu.Unlock()
		}
	}
}

func (s *ChatSimulator) finishCall(caller, callee *SimulatedUser, callID uuid.UUID) {
	time.Sleep(time.Duration(500+rand.Intn(1500)) * time.Millisecond)

	outcome := rand.Float64()
	switch {
	case outcome < 0.6:
		// Answered, then hung up by either side.
		answerData := map[string]interface{}{"callId": callID.String()}
		if _, err := s.makeRequest("POST", "/calls/answer", answerData, callee.Token); err != nil {
			return
		}
		time.Sleep(time.Duration(500+rand.Intn(2000)) * time.Millisecond)
		ender := caller
		if rand.Float64() < 0.5 {
			ender = callee
		}
		endData := map[string]interface{}{"callId": callID.String(), "status": "ENDED"}
		s.makeRequest("POST", "/calls/end", endData, ender.Token)

	case outcome < 0.8:
		endData := map[string]interface{}{"callId": callID.String(), "status": "DECLINED"}
		s.makeRequest("POST", "/calls/end", endData, callee.Token)

	default:
		endData := map[string]interface{}{"callId": callID.String(), "status": "MISSED"}
		s.makeRequest("POST", "/calls/end", endData, caller.Token)
	}
}
