package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SimConfig struct {
	NumUsers         int
	NumGroups        int
	SimulationTime   time.Duration
	MessageFrequency float64 // messages per user per hour
	ReceiptRate      float64 // probability a recipient reads a message
	CallFrequency    float64 // calls per user per hour
	DisconnectRate   float64
	ReconnectRate    float64
	ZipfS            float64
	ServerURL        string
}

type SimulationStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	TotalMessages    int
	TotalReceipts    int
	TotalCalls       int
	ActiveUsers      int
	RequestLatencies []time.Duration
}

type Metrics struct {
	TotalUsers    int
	ActiveUsers   int
	TotalMessages int
	TotalReceipts int
	TotalCalls    int
	ErrorCount    int64
}

// SimulatedUser tracks one account's credentials and conversation state.
type SimulatedUser struct {
	ID            uuid.UUID
	Username      string
	Email         string
	Token         string
	IsConnected   bool
	LastActive    time.Time
	Conversations []uuid.UUID
	SentMessages  []uuid.UUID
}

type ChatSimulator struct {
	config SimConfig
	stats  *SimulationStats
	users  []*SimulatedUser
	groups []uuid.UUID
	client *http.Client
	mu     sync.RWMutex
}

func NewChatSimulator(config SimConfig) *ChatSimulator {
	return &ChatSimulator{
		config: config,
		stats: &SimulationStats{
			StartTime:        time.Now(),
			RequestLatencies: make([]time.Duration, 0),
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *ChatSimulator) Run(ctx context.Context) error {
	log.Printf("Starting chat simulation...")

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.SimulateActivities(ctx); err != nil {
			log.Printf("Activities simulation error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()

	wg.Wait()
	return nil
}

func (s *ChatSimulator) initialize(ctx context.Context) error {
	log.Printf("Phase 1: Registering %d users...", s.config.NumUsers)
	if err := s.createInitialUsers(ctx); err != nil {
		return fmt.Errorf("failed to create users: %v", err)
	}

	log.Printf("Phase 2: Creating %d group conversations...", s.config.NumGroups)
	if err := s.createGroups(ctx); err != nil {
		return fmt.Errorf("failed to create groups: %v", err)
	}

	log.Printf("Phase 3: Populating groups with members...")
	if err := s.simulateGroupJoins(ctx); err != nil {
		return fmt.Errorf("failed to populate groups: %v", err)
	}

	log.Printf("Initialization completed successfully")
	return nil
}

func (s *ChatSimulator) createInitialUsers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make([]*SimulatedUser, 0, s.config.NumUsers)

	// Shared rate limiter keeps registration from hammering the server.
	rateLimiter := time.NewTicker(100 * time.Millisecond)
	defer rateLimiter.Stop()

	for i := 0; i < s.config.NumUsers; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rateLimiter.C:
		}

		user := &SimulatedUser{
			Username:    fmt.Sprintf("user_%d", i),
			Email:       fmt.Sprintf("user_%d@test.com", i),
			IsConnected: true,
		}

		if err := s.registerAndLogin(user); err != nil {
			log.Printf("Failed to set up user %s: %v", user.Username, err)
			continue
		}
		s.users = append(s.users, user)
	}

	log.Printf("Successfully created %d users", len(s.users))
	return nil
}

func (s *ChatSimulator) registerAndLogin(user *SimulatedUser) error {
	registerData := map[string]interface{}{
		"username": user.Username,
		"email":    user.Email,
		"password": "testpass123",
	}
	if _, err := s.makeRequest("POST", "/users/register", registerData, ""); err != nil {
		// The account may already exist from an earlier run; logging in
		// below settles it either way.
		log.Printf("Debug: registration for %s: %v", user.Username, err)
	}

	loginData := map[string]interface{}{
		"email":    user.Email,
		"password": "testpass123",
	}
	resp, err := s.makeRequest("POST", "/users/login", loginData, "")
	if err != nil {
		return fmt.Errorf("login failed: %v", err)
	}

	var result struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to parse login response: %v", err)
	}
	userID, err := uuid.Parse(result.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id in login response: %v", err)
	}

	user.ID = userID
	user.Token = result.Token
	return nil
}

func (s *ChatSimulator) createGroups(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = make([]uuid.UUID, 0, s.config.NumGroups)

	if len(s.users) == 0 {
		return fmt.Errorf("no users available to own groups")
	}

	for i := 0; i < s.config.NumGroups; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		owner := s.users[rand.Intn(len(s.users))]
		data := map[string]interface{}{
			"type":           "GROUP",
			"name":           fmt.Sprintf("group_%d", i),
			"participantIds": []string{},
		}
		resp, err := s.makeRequest("POST", "/conversations", data, owner.Token)
		if err != nil {
			log.Printf("Failed to create group %d: %v", i, err)
			continue
		}

		var result struct {
			Conversation struct {
				ID string `json:"id"`
			} `json:"conversation"`
			ID string `json:"id"`
		}
		if err := json.Unmarshal(resp, &result); err != nil {
			log.Printf("Failed to parse group response: %v", err)
			continue
		}
		rawID := result.Conversation.ID
		if rawID == "" {
			rawID = result.ID
		}
		groupID, err := uuid.Parse(rawID)
		if err != nil {
			log.Printf("Invalid group id in response: %v", err)
			continue
		}

		s.groups = append(s.groups, groupID)
		owner.Conversations = append(owner.Conversations, groupID)
	}

	log.Printf("Successfully created %d groups", len(s.groups))
	return nil
}

// simulateGroupJoins spreads users across groups with a Zipf distribution so
// a few groups get most of the traffic, which mirrors real communities.
func (s *ChatSimulator) simulateGroupJoins(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.groups) == 0 {
		return nil
	}

	zipf := rand.NewZipf(
		rand.New(rand.NewSource(time.Now().UnixNano())),
		s.config.ZipfS, 1.0, uint64(len(s.groups)-1),
	)

	for _, user := range s.users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		joins := 1 + rand.Intn(3)
		for j := 0; j < joins; j++ {
			groupID := s.groups[zipf.Uint64()]
			if containsID(user.Conversations, groupID) {
				continue
			}

			// Members are added by whoever owns the conversation in this
			// simulation; self-serve joins only exist for channels.
			owner := s.findMemberOf(groupID)
			if owner == nil {
				continue
			}
			data := map[string]interface{}{
				"conversationId": groupID.String(),
				"userIds":        []string{user.ID.String()},
			}
			if _, err := s.makeRequest("POST", "/conversations/members/add", data, owner.Token); err != nil {
				log.Printf("Debug: failed to add %s to group %s: %v", user.Username, groupID, err)
				continue
			}
			user.Conversations = append(user.Conversations, groupID)
		}
	}
	return nil
}

func (s *ChatSimulator) findMemberOf(groupID uuid.UUID) *SimulatedUser {
	for _, user := range s.users {
		if containsID(user.Conversations, groupID) {
			return user
		}
	}
	return nil
}

func (s *ChatSimulator) simulateConnectivity(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			active := 0
			for _, user := range s.users {
				if user.IsConnected {
					if rand.Float64() < s.config.DisconnectRate {
						user.IsConnected = false
					}
				} else if rand.Float64() < s.config.ReconnectRate {
					user.IsConnected = true
					user.LastActive = time.Now()
				}
				if user.IsConnected {
					active++
				}
			}
			s.mu.Unlock()

			s.stats.mu.Lock()
			s.stats.ActiveUsers = active
			s.stats.mu.Unlock()
		}
	}
}

func (s *ChatSimulator) makeRequest(method, path string, body interface{}, token string) ([]byte, error) {
	start := time.Now()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.config.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	s.recordRequest(time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func (s *ChatSimulator) recordRequest(latency time.Duration, success bool) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	s.stats.TotalRequests++
	if success {
		s.stats.SuccessRequests++
	} else {
		s.stats.FailedRequests++
	}
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, latency)
}

func (s *ChatSimulator) GetMetrics() Metrics {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Metrics{
		TotalUsers:    len(s.users),
		ActiveUsers:   s.stats.ActiveUsers,
		TotalMessages: s.stats.TotalMessages,
		TotalReceipts: s.stats.TotalReceipts,
		TotalCalls:    s.stats.TotalCalls,
		ErrorCount:    s.stats.FailedRequests,
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
