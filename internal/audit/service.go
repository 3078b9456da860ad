package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-order-desk/internal/kafka"
	"github.com/ariefcatur/go-order-desk/internal/orders"
	"github.com/ariefcatur/go-order-desk/internal/postgres"
	"github.com/ariefcatur/go-order-desk/internal/redisx"
)

// Service appends one audit row per line-item event. Dedup runs twice:
// fast-path in Redis by event id, and ON CONFLICT on the primary key in
// case the Redis entry expired before a redelivery.
type Service struct {
	DB          postgres.DB
	Redis       *redis.Client
	ServiceName string
}

// HandleItemEvent is wired as the consumer handler for the order.items topic.
func (s *Service) HandleItemEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	switch env.EventType {
	case orders.EventLineItemAdded, orders.EventLineItemUpdated, orders.EventLineItemRemoved:
	default:
		return nil // ignore
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "audit", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.LineItemEventPayload](env.Payload)
	if err != nil {
		return err
	}

	_, err = s.DB.Exec(ctx, `
		INSERT INTO audit_log(event_id, event_type, order_id, line_item_id, product_id,
		                      quantity, subtotal, order_total, producer, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.EventType, p.OrderID, p.LineItemID, p.ProductID,
		p.Quantity, p.Subtotal, p.OrderTotal, env.Producer, env.OccurredAt)
	if err != nil {
		return err
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
