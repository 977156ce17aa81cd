package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserChannel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "feed:user:1", UserChannel(1))
	assert.Equal(t, "feed:user:42", UserChannel(42))
}

func TestNotifier_NilClientIsNoop(t *testing.T) {
	t.Parallel()

	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "payload"))
	assert.NoError(t, n.PublishBroadcast(context.Background(), "payload"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), nil))
}

func TestNotifier_PublishUser(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	sub := rdb.Subscribe(ctx, UserChannel(7))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewNotifier(rdb)
	require.NoError(t, n.PublishUser(ctx, 7, `{"type":"post_created"}`))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feed:user:7", msg.Channel)
	assert.JSONEq(t, `{"type":"post_created"}`, msg.Payload)
}

func TestHub_StartWiringRoutesMessages(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	hub := NewHub()
	alice, err := hub.Register(1, nil)
	require.NoError(t, err)
	bob, err := hub.Register(2, nil)
	require.NoError(t, err)

	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	// Wait for the pattern subscription to land before publishing. User 3010
	// has no registered connections, so the probe never reaches a client.
	require.Eventually(t, func() bool {
		return rdb.Publish(ctx, UserChannel(3010), "probe").Val() > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, n.PublishUser(ctx, 1, `{"type":"comment_created"}`))

	select {
	case msg := <-alice.Send:
		assert.JSONEq(t, `{"type":"comment_created"}`, string(msg))
	case <-ctx.Done():
		t.Fatal("timed out waiting for user 1's message")
	}
	assert.Empty(t, bob.Send)

	require.NoError(t, n.PublishBroadcast(ctx, `{"type":"announcement"}`))
	for _, client := range []*Client{alice, bob} {
		select {
		case msg := <-client.Send:
			assert.JSONEq(t, `{"type":"announcement"}`, string(msg))
		case <-ctx.Done():
			t.Fatalf("timed out waiting for user %d's broadcast", client.UserID)
		}
	}
}
