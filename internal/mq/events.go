package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopfront/apiserver/types"
)

const (
	attrEvent         = "event"
	eventOrderCreated = "order.created"
)

// OrderPublisher announces committed orders on a channel.
type OrderPublisher struct {
	mq      *MQ
	channel string
}

func NewOrderPublisher(m *MQ, channel string) *OrderPublisher {
	return &OrderPublisher{mq: m, channel: channel}
}

// PublishOrderCreated sends an order.created event for order.
func (p *OrderPublisher) PublishOrderCreated(ctx context.Context, order types.Order) error {
	data, err := json.Marshal(types.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		ProductName: order.ProductName,
		TotalPrice:  order.TotalPrice,
		CreatedAt:   order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("mq.OrderPublisher.PublishOrderCreated: %w", err)
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{attrEvent: eventOrderCreated})
	return err
}

// DecodeOrderCreated parses an order.created message. Messages carrying a
// different event attribute are rejected.
func DecodeOrderCreated(msg Message) (types.OrderCreatedEvent, error) {
	if event := msg.Attributes[attrEvent]; event != "" && event != eventOrderCreated {
		return types.OrderCreatedEvent{}, fmt.Errorf("unexpected event %q", event)
	}
	var event types.OrderCreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.OrderCreatedEvent{}, fmt.Errorf("decode order event: %w", err)
	}
	return event, nil
}
