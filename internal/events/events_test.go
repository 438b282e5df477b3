package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	userID, orderID := uuid.New(), uuid.New()

	require.NoError(t, r.Publish(ctx, New(OrderCreated, userID, orderID)))
	require.NoError(t, r.Publish(ctx, New(PaymentSucceeded, userID, orderID)))
	require.NoError(t, r.Publish(ctx, New(PaymentSucceeded, userID, orderID)))

	assert.Equal(t, 1, r.Count(OrderCreated))
	assert.Equal(t, 2, r.Count(PaymentSucceeded))
	assert.Equal(t, 0, r.Count(PaymentFailed))
	assert.Len(t, r.Events(), 3)
}

func TestEventJSON(t *testing.T) {
	ev := New(PaymentFailed, uuid.New(), uuid.New())
	ev.Amount = decimal.RequireFromString("59.99")
	ev.Reason = "amount mismatch"

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "payment.failed", got["type"])
	assert.Equal(t, "59.99", got["amount"])
	assert.Equal(t, "amount mismatch", got["reason"])
	assert.NotContains(t, got, "paymentId")
}

func TestNATSPublisher_Subject(t *testing.T) {
	p := &NATSPublisher{prefix: "shop"}
	assert.Equal(t, "shop.order.created", p.Subject(OrderCreated))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
