package ecs

import (
	"errors"
	"fmt"

	"github.com/milk9111/hoops/sim"
)

var (
	ErrDuplicateEntity = errors.New("ecs: duplicate entity id")
	ErrTrackingCycle   = errors.New("ecs: tracking would form a cycle")
	ErrNotTracked      = errors.New("ecs: entity not tracked")
	ErrMissingSensor   = errors.New("ecs: scoring sensor collider not found")
	ErrNoWorld         = errors.New("ecs: nil physics world")
)

// InvariantError reports broken bookkeeping between the collider index and
// the entity table. It is raised with panic, never returned.
type InvariantError struct {
	Op       string
	Collider sim.ColliderHandle
	EntityID string
}

func (e *InvariantError) Error() string {
	if e.EntityID == "" {
		return fmt.Sprintf("ecs: %s: collider %v is not indexed", e.Op, e.Collider)
	}
	return fmt.Sprintf("ecs: %s: collider %v indexed to missing entity %q", e.Op, e.Collider, e.EntityID)
}
