package orders

// Single topic for all line-item lifecycle events.
const TopicOrderItems = "order.items"

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
