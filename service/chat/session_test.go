package chat

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSessionStoreWithClient(client)
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := &Session{
		State: StateBookDate,
		Data:  map[string]string{"doctor_id": "7"},
	}
	require.NoError(t, store.Save(ctx, "tg-1001", session))

	loaded, err := store.Get(ctx, "tg-1001")
	require.NoError(t, err)
	require.Equal(t, StateBookDate, loaded.State)
	require.Equal(t, "7", loaded.Data["doctor_id"])
}

func TestSessionMissingStartsAtMenu(t *testing.T) {
	store := newTestStore(t)

	session, err := store.Get(context.Background(), "tg-unknown")
	require.NoError(t, err)
	require.Equal(t, StateMenu, session.State)
	require.NotNil(t, session.Data)
}

func TestSessionExpires(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewSessionStoreWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tg-1001", &Session{State: StateSymptoms, Data: map[string]string{}}))

	server.FastForward(SessionTTL + 1)

	session, err := store.Get(ctx, "tg-1001")
	require.NoError(t, err)
	require.Equal(t, StateMenu, session.State)
}

func TestSessionClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tg-1001", &Session{State: StateCertEnd, Data: map[string]string{}}))
	require.NoError(t, store.Clear(ctx, "tg-1001"))

	session, err := store.Get(ctx, "tg-1001")
	require.NoError(t, err)
	require.Equal(t, StateMenu, session.State)
}
