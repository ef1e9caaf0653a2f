package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL is how long an idle dialogue keeps its place before the
// conversation resets to the menu.
const SessionTTL = 30 * time.Minute

// Session is the dialogue position for one chat participant. Data
// carries the partial answers collected so far (selected doctor,
// registration fields, certificate dates).
type Session struct {
	State string            `json:"state"`
	Data  map[string]string `json:"data,omitempty"`
}

func newSession() *Session {
	return &Session{State: StateMenu, Data: map[string]string{}}
}

// SessionStore keeps dialogue state in Redis, keyed by the external
// chat handle, so any server instance can pick up the conversation.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore() (*SessionStore, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis unavailable: %w", err)
	}
	return &SessionStore{client: client}, nil
}

// NewSessionStoreWithClient wires an existing client, used by tests.
func NewSessionStoreWithClient(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(externalID string) string {
	return "chat:session:" + externalID
}

// Get returns the stored session, or a fresh menu session when none
// exists or the stored one has expired.
func (s *SessionStore) Get(ctx context.Context, externalID string) (*Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(externalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return newSession(), nil
	}
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		// Corrupt payload, start over
		return newSession(), nil
	}
	if session.Data == nil {
		session.Data = map[string]string{}
	}
	return &session, nil
}

func (s *SessionStore) Save(ctx context.Context, externalID string, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(externalID), payload, SessionTTL).Err()
}

func (s *SessionStore) Clear(ctx context.Context, externalID string) error {
	return s.client.Del(ctx, sessionKey(externalID)).Err()
}
