// Package broadcast fans order events out to subscribed client connections.
//
// Topics come in two families: one per table for guest devices, and one per
// staff role for waiter, kitchen, cashier, and admin displays. Membership is
// purely in-memory and resets on restart; delivery is best-effort and
// at-most-once per connected client. A client that needs current state after
// reconnecting re-fetches it through the query endpoints.
package broadcast

// Topic is a named broadcast channel.
type Topic string

// TableTopic returns the topic a guest device at the given table subscribes to.
func TableTopic(tableID string) Topic {
	return Topic("table:" + tableID)
}

// RoleTopic returns the topic all staff of the given role subscribe to.
func RoleTopic(role string) Topic {
	return Topic("role:" + role)
}

// Staff roles with a broadcast topic.
const (
	RoleWaiter  = "waiter"
	RoleKitchen = "kitchen"
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)

// ValidRole reports whether name is a known staff role.
func ValidRole(name string) bool {
	switch name {
	case RoleWaiter, RoleKitchen, RoleCashier, RoleAdmin:
		return true
	}
	return false
}

// Conn is a single client connection able to receive encoded event frames.
// Send must not block: a connection that cannot accept the frame returns an
// error and the router drops it from all topics.
type Conn interface {
	Send(frame []byte) error
	Close() error
}
