package whatsapp

import "sync"

// DeliveryLog remembers recently handled message IDs so that webhook
// redeliveries do not record the same purchase or sale twice.
type DeliveryLog struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	limit int
}

// NewDeliveryLog keeps at most limit message IDs.
func NewDeliveryLog(limit int) *DeliveryLog {
	if limit <= 0 {
		limit = 1024
	}
	return &DeliveryLog{
		seen:  make(map[string]struct{}, limit),
		limit: limit,
	}
}

// FirstDelivery records id and reports whether it was new. Empty IDs are
// always treated as new.
func (l *DeliveryLog) FirstDelivery(id string) bool {
	if id == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[id]; ok {
		return false
	}
	l.seen[id] = struct{}{}
	l.order = append(l.order, id)
	if len(l.order) > l.limit {
		delete(l.seen, l.order[0])
		l.order = l.order[1:]
	}
	return true
}
