package redisx

import "time"

const (
	// Session hash: sess:{session_id} -> {user_id, name, role}
	KeySession = "sess:%s"

	// Cached order snapshot (with items): order_view:{order_id} -> JSON
	KeyOrderView = "order_view:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderView = 5 * time.Minute
	TTLDedup     = 48 * time.Hour
)
