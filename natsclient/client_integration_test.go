package natsclient

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_PublishSubscribe(t *testing.T) {
	tc := getSharedTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan []byte, 1)
	err := tc.Client.Subscribe(ctx, "test.pubsub.registered", func(_ context.Context, _ string, data []byte) ([]byte, error) {
		received <- data
		return nil, nil
	})
	require.NoError(t, err)

	publisher, err := tc.NewClient(ctx)
	require.NoError(t, err)
	defer publisher.Close(ctx)

	require.NoError(t, publisher.Publish(ctx, "test.pubsub.registered", []byte(`{"service_id":"a"}`)))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"service_id":"a"}`, string(data))
	case <-ctx.Done():
		t.Fatal("message not received")
	}
}

func TestIntegration_RequestReply(t *testing.T) {
	tc := getSharedTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var calls atomic.Int32
	err := tc.Client.QueueSubscribe(ctx, "test.reqrep.echo", "registry", func(_ context.Context, _ string, data []byte) ([]byte, error) {
		calls.Add(1)
		return append([]byte("echo:"), data...), nil
	})
	require.NoError(t, err)

	requester, err := tc.NewClient(ctx)
	require.NoError(t, err)
	defer requester.Close(ctx)

	reply, err := requester.Request(ctx, "test.reqrep.echo", []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "echo:ping", string(reply))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIntegration_CloseDrains(t *testing.T) {
	tc := getSharedTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := tc.NewClient(ctx)
	require.NoError(t, err)
	assert.True(t, client.IsHealthy())

	require.NoError(t, client.Close(ctx))
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.ErrorIs(t, client.Publish(ctx, "test.closed", nil), ErrNotConnected)
}
