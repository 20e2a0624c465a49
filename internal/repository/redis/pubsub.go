package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// OrdersPubSub announces paid orders after the issuance transaction
// commits. It is a notification channel only; correctness never depends on
// a subscriber seeing the message (the reconciliation job covers gaps).
type OrdersPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewOrdersPubSub(rdb *redis.Client) *OrdersPubSub {
	return &OrdersPubSub{
		rdb:     rdb,
		channel: ChannelOrdersPaid(),
	}
}

type orderPaidMsg struct {
	Type          string `json:"type"`
	OrderID       int64  `json:"order_id"`
	UserID        int64  `json:"user_id"`
	TicketsIssued int    `json:"tickets_issued"`
	TsUnix        int64  `json:"ts_unix"`
}

func (p *OrdersPubSub) PublishOrderPaid(ctx context.Context, orderID, userID int64, ticketsIssued int) error {
	msg := orderPaidMsg{
		Type:          "order_paid",
		OrderID:       orderID,
		UserID:        userID,
		TicketsIssued: ticketsIssued,
		TsUnix:        time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *OrdersPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, orderID, userID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev orderPaidMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.OrderID != 0 {
				handler(ctx, ev.OrderID, ev.UserID)
			}
		}
	}
}
