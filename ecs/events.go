package ecs

import "github.com/milk9111/hoops/sim"

// Event is a generic ECS event payload.
type Event struct {
	Type string
	Data any
}

const (
	EventCollision = "collision"
	EventScore     = "score"
	EventNotice    = "notice"
)

// CollisionEvent mirrors one intersection event drained from the
// simulation. Entity ids are empty when a handle is not indexed.
type CollisionEvent struct {
	A            sim.ColliderHandle
	B            sim.ColliderHandle
	EntityA      string
	EntityB      string
	Intersecting bool
}

// ScoreEvent is emitted by a scoring sensor when a ball drops through it.
type ScoreEvent struct {
	Entity string
	Points int
}

// NoticeEvent carries a short message for the player.
type NoticeEvent struct {
	Entity  string
	Message string
}

const (
	NoticeBucket  = "Bucket!"
	NoticeNoScore = "No score"
)

// EventQueue is a simple FIFO queue.
type EventQueue struct {
	items []Event
}

// Push adds an event.
func (q *EventQueue) Push(evt Event) {
	if q == nil {
		return
	}
	q.items = append(q.items, evt)
}

// Len reports how many events are queued.
func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Drain returns all events and clears the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil || len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}
