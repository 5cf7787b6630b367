package ecs

import (
	"fmt"
	"log"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/sim"
)

// StepMode selects how Tick turns frame time into simulation steps.
type StepMode uint8

const (
	// StepVariable steps once per tick with the frame delta.
	StepVariable StepMode = iota
	// StepFixed accumulates frame time and steps in FixedStep increments.
	StepFixed
)

const (
	DefaultRayMaxDistance = 40.0
	DefaultFixedStep      = 1.0 / 60.0
	DefaultMaxSteps       = 5
)

// Config configures a PhysicsWorld.
type Config struct {
	Sim       sim.Config
	StepMode  StepMode
	FixedStep float64
	MaxSteps  int
	RayMax    float64
	Debug     bool
}

func DefaultConfig() Config {
	return Config{
		Sim:       sim.DefaultConfig(),
		StepMode:  StepVariable,
		FixedStep: DefaultFixedStep,
		MaxSteps:  DefaultMaxSteps,
		RayMax:    DefaultRayMaxDistance,
	}
}

// LiveHandles are the simulation objects created for one entity.
type LiveHandles struct {
	Body      sim.BodyHandle
	Colliders []sim.ColliderHandle
}

type record struct {
	entity *Entity
	LiveHandles
}

// PhysicsWorld owns the simulation, the entity table and the collider
// index, and fans intersection events out to entities.
type PhysicsWorld struct {
	cfg   Config
	world *sim.World

	entities      map[string]*record
	colliderIndex map[sim.ColliderHandle]string

	accumulator      float64
	collidersVisible bool
	events           EventQueue
}

// NewPhysicsWorld creates an empty physics world.
func NewPhysicsWorld(cfg Config) *PhysicsWorld {
	if cfg.FixedStep <= 0 {
		cfg.FixedStep = DefaultFixedStep
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.RayMax <= 0 {
		cfg.RayMax = DefaultRayMaxDistance
	}
	return &PhysicsWorld{
		cfg:           cfg,
		world:         sim.NewWorld(cfg.Sim),
		entities:      make(map[string]*record),
		colliderIndex: make(map[sim.ColliderHandle]string),
	}
}

func (pw *PhysicsWorld) Config() Config { return pw.cfg }

// Sim returns the underlying simulation.
func (pw *PhysicsWorld) Sim() *sim.World {
	if pw == nil {
		return nil
	}
	return pw.world
}

// Events returns the world event queue.
func (pw *PhysicsWorld) Events() *EventQueue {
	if pw == nil {
		return nil
	}
	return &pw.events
}

// Track creates the body and colliders of e and indexes them. A second
// entity with the same id is rejected and the first stays intact.
func (pw *PhysicsWorld) Track(e *Entity) (LiveHandles, error) {
	if pw == nil {
		return LiveHandles{}, ErrNoWorld
	}
	if e == nil {
		return LiveHandles{}, fmt.Errorf("ecs: track nil entity")
	}
	if _, exists := pw.entities[e.id]; exists {
		return LiveHandles{}, fmt.Errorf("%w: %q", ErrDuplicateEntity, e.id)
	}
	if err := e.bodyDesc.Validate(); err != nil {
		return LiveHandles{}, fmt.Errorf("ecs: entity %q body: %w", e.id, err)
	}
	for i, d := range e.colliderDescs {
		if err := d.Validate(); err != nil {
			return LiveHandles{}, fmt.Errorf("ecs: entity %q collider %d: %w", e.id, i, err)
		}
	}

	live := LiveHandles{Body: pw.world.CreateRigidBody(e.bodyDesc)}
	for i, d := range e.colliderDescs {
		ch, err := pw.world.CreateCollider(d, live.Body)
		if err != nil {
			_ = pw.world.RemoveRigidBody(live.Body)
			return LiveHandles{}, fmt.Errorf("ecs: entity %q collider %d: %w", e.id, i, err)
		}
		live.Colliders = append(live.Colliders, ch)
	}

	for _, ch := range live.Colliders {
		pw.colliderIndex[ch] = e.id
	}
	pw.entities[e.id] = &record{entity: e, LiveHandles: live}
	if pw.cfg.Debug {
		log.Printf("PhysicsWorld: tracked entity %q body=%v colliders=%d", e.id, live.Body, len(live.Colliders))
	}
	return live, nil
}

// Untrack removes the entity's body and colliders and prunes the index.
// Sensors it was overlapping receive their end events on the next tick.
func (pw *PhysicsWorld) Untrack(id string) error {
	if pw == nil {
		return ErrNoWorld
	}
	rec, ok := pw.entities[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotTracked, id)
	}
	if err := pw.world.RemoveRigidBody(rec.Body); err != nil {
		return fmt.Errorf("ecs: untrack %q: %w", id, err)
	}
	for _, ch := range rec.Colliders {
		delete(pw.colliderIndex, ch)
	}
	delete(pw.entities, id)
	rec.entity.removed = true
	if pw.cfg.Debug {
		log.Printf("PhysicsWorld: untracked entity %q", id)
	}
	return nil
}

// Entity looks up a tracked entity by id.
func (pw *PhysicsWorld) Entity(id string) (*Entity, bool) {
	if pw == nil {
		return nil, false
	}
	rec, ok := pw.entities[id]
	if !ok {
		return nil, false
	}
	return rec.entity, true
}

// Entities returns every tracked entity ordered by id.
func (pw *PhysicsWorld) Entities() []*Entity {
	if pw == nil {
		return nil
	}
	ids := make([]string, 0, len(pw.entities))
	for id := range pw.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*Entity, len(ids))
	for i, id := range ids {
		out[i] = pw.entities[id].entity
	}
	return out
}

// RayOption adjusts a ray cast.
type RayOption func(*rayOptions)

type rayOptions struct {
	maxDistance float64
	solid       bool
	groups      uint32
}

func WithMaxDistance(d float64) RayOption { return func(o *rayOptions) { o.maxDistance = d } }
func WithSolid(solid bool) RayOption      { return func(o *rayOptions) { o.solid = solid } }
func WithGroups(groups uint32) RayOption  { return func(o *rayOptions) { o.groups = groups } }

// CastRay returns the entity owning the first collider along the ray. A
// miss returns false; a hit on a collider the index cannot resolve panics
// with *InvariantError.
func (pw *PhysicsWorld) CastRay(origin, dir mgl64.Vec3, opts ...RayOption) (*Entity, bool) {
	if pw == nil {
		return nil, false
	}
	o := rayOptions{maxDistance: pw.cfg.RayMax, solid: true, groups: sim.DefaultGroups}
	for _, opt := range opts {
		opt(&o)
	}
	hit, ok := pw.world.CastRay(sim.Ray{Origin: origin, Dir: dir}, o.maxDistance, o.solid, o.groups)
	if !ok {
		return nil, false
	}
	return pw.resolve("cast ray", hit.Collider), true
}

func (pw *PhysicsWorld) resolve(op string, h sim.ColliderHandle) *Entity {
	id, ok := pw.colliderIndex[h]
	if !ok {
		panic(&InvariantError{Op: op, Collider: h})
	}
	rec, ok := pw.entities[id]
	if !ok {
		panic(&InvariantError{Op: op, Collider: h, EntityID: id})
	}
	return rec.entity
}

// Tick advances the simulation and dispatches intersection events. It
// returns the number of simulation steps taken.
func (pw *PhysicsWorld) Tick(dt float64) int {
	if pw == nil || dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return 0
	}
	if pw.cfg.StepMode != StepFixed {
		pw.world.SetTimestep(dt)
		pw.world.Step()
		pw.dispatch()
		return 1
	}

	pw.accumulator += dt
	steps := 0
	pw.world.SetTimestep(pw.cfg.FixedStep)
	for pw.accumulator >= pw.cfg.FixedStep && steps < pw.cfg.MaxSteps {
		pw.world.Step()
		pw.dispatch()
		pw.accumulator -= pw.cfg.FixedStep
		steps++
	}
	if pw.accumulator >= pw.cfg.FixedStep {
		if pw.cfg.Debug {
			log.Printf("PhysicsWorld: dropping %.3fs of backlog", pw.accumulator)
		}
		pw.accumulator = math.Mod(pw.accumulator, pw.cfg.FixedStep)
	}
	return steps
}

// Accumulated returns the unstepped time carried to the next fixed tick.
func (pw *PhysicsWorld) Accumulated() float64 { return pw.accumulator }

func (pw *PhysicsWorld) dispatch() {
	pw.world.DrainIntersectionEvents(func(a, b sim.ColliderHandle, intersecting bool) {
		idA, okA := pw.colliderIndex[a]
		idB, okB := pw.colliderIndex[b]
		pw.events.Push(Event{Type: EventCollision, Data: CollisionEvent{
			A: a, B: b, EntityA: idA, EntityB: idB, Intersecting: intersecting,
		}})
		if okA {
			pw.resolve("dispatch", a).handleCollision(a, b, intersecting)
		}
		if okB {
			pw.resolve("dispatch", b).handleCollision(a, b, intersecting)
		}
	})
}

// ToggleColliders flips collider visibility on every tracked entity.
func (pw *PhysicsWorld) ToggleColliders() {
	if pw == nil {
		return
	}
	pw.collidersVisible = !pw.collidersVisible
	for _, e := range pw.Entities() {
		e.ShowCollider(pw.collidersVisible)
	}
}

func (pw *PhysicsWorld) CollidersVisible() bool {
	if pw == nil {
		return false
	}
	return pw.collidersVisible
}

// IndexConsistent checks that every indexed collider belongs to a tracked
// entity that lists it.
func (pw *PhysicsWorld) IndexConsistent() error {
	for h, id := range pw.colliderIndex {
		rec, ok := pw.entities[id]
		if !ok {
			return &InvariantError{Op: "index check", Collider: h, EntityID: id}
		}
		if !slices.Contains(rec.Colliders, h) {
			return fmt.Errorf("ecs: collider %v indexed to %q but not owned by it", h, id)
		}
	}
	return nil
}

// IndexSize returns the number of indexed colliders.
func (pw *PhysicsWorld) IndexSize() int { return len(pw.colliderIndex) }
