package events

// Topic constants for domain events emitted by the store.
const (
	TopicOrderCreated   = "order.created"
	TopicSessionStarted = "session.started"
)

// DefaultTopics returns every topic the store emits.
func DefaultTopics() []string {
	return []string{TopicOrderCreated, TopicSessionStarted}
}
