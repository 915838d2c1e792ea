package mq

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/pstest"
	"github.com/shopfront/apiserver/config"
	"github.com/shopfront/apiserver/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestPubSub(t *testing.T) (*PubSubClient, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := NewPubSubClient(context.Background(), config.PubSubConfig{ProjectID: "shopfront-test"}, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

// subscribe starts a consumer on channel once its subscription exists, so no
// message published afterwards is lost.
func subscribe(t *testing.T, client *PubSubClient, channel string, handler Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	topic, err := client.topic(ctx, channel)
	require.NoError(t, err)
	_, err = client.ensureSubscription(ctx, channel+client.subscriptionSuffix, topic)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Subscribe(ctx, channel, handler)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestPubSubClient_OrderCreatedRoundTrip(t *testing.T) {
	client, _ := newTestPubSub(t)
	ctx := context.Background()

	events := make(chan types.OrderCreatedEvent, 1)
	subscribe(t, client, "orders.created", func(_ context.Context, msg Message) error {
		event, err := DecodeOrderCreated(msg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDiscard, err)
		}
		events <- event
		return nil
	})

	publisher := NewOrderPublisher(New(client), "orders.created")
	require.NoError(t, publisher.PublishOrderCreated(ctx, types.Order{
		ID:          42,
		UserID:      7,
		ProductName: "Widget",
		TotalPrice:  decimal.RequireFromString("19.98"),
		CreatedAt:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}))

	select {
	case event := <-events:
		assert.Equal(t, 42, event.OrderID)
		assert.Equal(t, 7, event.UserID)
		assert.Equal(t, "Widget", event.ProductName)
		assert.True(t, decimal.RequireFromString("19.98").Equal(event.TotalPrice))
	case <-time.After(10 * time.Second):
		t.Fatal("order event was not delivered")
	}
}

func TestPubSubClient_DiscardedMessageIsAcked(t *testing.T) {
	client, srv := newTestPubSub(t)

	subscribe(t, client, "orders.created", func(_ context.Context, msg Message) error {
		_, err := DecodeOrderCreated(msg)
		return fmt.Errorf("%w: %v", ErrDiscard, err)
	})

	id, err := client.Publish(context.Background(), "orders.created", []byte("not json"), map[string]string{attrEvent: eventOrderCreated})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		msg := srv.Message(id)
		return msg != nil && msg.Acks > 0
	}, 10*time.Second, 50*time.Millisecond)
}

func TestPubSubClient_ReusesTopic(t *testing.T) {
	client, _ := newTestPubSub(t)
	ctx := context.Background()

	first, err := client.topic(ctx, "orders.created")
	require.NoError(t, err)
	second, err := client.topic(ctx, "orders.created")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestPubSubClient_Validation(t *testing.T) {
	_, err := NewPubSubClient(context.Background(), config.PubSubConfig{})
	assert.ErrorContains(t, err, "project id is required")

	client, _ := newTestPubSub(t)
	assert.Equal(t, defaultSubscriptionSuffix, client.subscriptionSuffix)

	_, err = client.Publish(context.Background(), " ", nil, nil)
	assert.ErrorContains(t, err, "channel is required")
	assert.ErrorContains(t, client.Subscribe(context.Background(), "", nil), "channel is required")
}
