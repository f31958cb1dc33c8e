// Package events carries occurrence lifecycle events over RabbitMQ.  The
// publisher is fire-and-forget from the request path; the consumer keeps the
// users' answer counters up to date.
package events

import "time"

// Kind is the routing name of an event, also sent as the AMQP message type.
type Kind string

const (
	OccurrenceCreated   Kind = "occurrence.created"
	InteractionReported Kind = "interaction.reported"
	OccurrenceClosed    Kind = "occurrence.closed"
	OccurrenceExpired   Kind = "occurrence.expired"
	CommentCreated      Kind = "comment.created"
)

// DefaultQueue is the durable queue every event is published to.
const DefaultQueue = "occurrence.events"

// Event is the JSON payload of every message.  UserID is the acting user:
// the owner for created, the reporter for interactions, the author for
// comments.
type Event struct {
	Kind         Kind      `json:"kind"`
	OccurrenceID uint64    `json:"occurrence_id"`
	UserID       uint64    `json:"user_id,omitempty"`
	Interaction  string    `json:"interaction,omitempty"`
	CommentID    uint64    `json:"comment_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
