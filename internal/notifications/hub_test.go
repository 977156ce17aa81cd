package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	assert.False(t, hub.IsOnline(1))

	client, err := hub.Register(1, nil)
	require.NoError(t, err)
	assert.True(t, hub.IsOnline(1))
	assert.False(t, hub.IsOnline(2))

	hub.UnregisterClient(client)
	assert.False(t, hub.IsOnline(1))

	// Unregistering twice is harmless.
	hub.UnregisterClient(client)
	assert.False(t, hub.IsOnline(1))
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(1, nil)
		require.NoError(t, err)
	}

	_, err := hub.Register(1, nil)
	assert.Error(t, err)

	// Other users are unaffected by one user's limit.
	_, err = hub.Register(2, nil)
	assert.NoError(t, err)
}

func TestHub_BroadcastTargetsOnlyUser(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	alice, err := hub.Register(1, nil)
	require.NoError(t, err)
	bob, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.Broadcast(1, `{"type":"post_created"}`)

	select {
	case msg := <-alice.Send:
		assert.JSONEq(t, `{"type":"post_created"}`, string(msg))
	default:
		t.Fatal("expected a message for user 1")
	}

	select {
	case msg := <-bob.Send:
		t.Fatalf("user 2 should not receive user 1's message, got %s", msg)
	default:
	}
}

func TestHub_BroadcastAllReachesEveryClient(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	alice, err := hub.Register(1, nil)
	require.NoError(t, err)
	bob, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.BroadcastAll(`{"type":"post_created"}`)

	for _, client := range []*Client{alice, bob} {
		select {
		case msg := <-client.Send:
			assert.JSONEq(t, `{"type":"post_created"}`, string(msg))
		default:
			t.Fatalf("expected a message for user %d", client.UserID)
		}
	}
}

func TestClient_TrySendDropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	client, err := hub.Register(1, nil)
	require.NoError(t, err)

	// Fill the outbound buffer completely.
	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("filler")
	}

	// The overflowing message is dropped rather than blocking the hub.
	client.TrySend([]byte("overflow"))
	assert.Len(t, client.Send, cap(client.Send))
}

func TestClient_TrySendDroppedMessageNeverDelivered(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	client, err := hub.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("filler")
	}
	client.TrySend([]byte("overflow"))

	// Everything buffered is still the original fill; the overflow is gone.
	for len(client.Send) > 0 {
		assert.Equal(t, "filler", string(<-client.Send))
	}
}

func TestClient_TrySendSurvivesClosedChannel(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	client, err := hub.Register(1, nil)
	require.NoError(t, err)

	close(client.Send)
	// Must not panic; the drop is counted instead.
	client.TrySend([]byte("late message"))
}
