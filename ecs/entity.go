package ecs

import (
	"errors"
	"fmt"
	"log"
	"weak"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/sim"
)

const debugLineLimit = 8

// EntityConfig describes an entity before registration.
type EntityConfig struct {
	ID        string
	Node      SceneNode
	Body      sim.RigidBodyDesc
	Colliders []sim.ColliderDesc
	Behavior  Behavior
	Wireframe WireframeFunc
}

// Entity binds a scene node to a live rigid body.
type Entity struct {
	id    string
	world *PhysicsWorld
	node  SceneNode

	bodyDesc      sim.RigidBodyDesc
	colliderDescs []sim.ColliderDesc
	body          sim.BodyHandle
	colliders     []sim.ColliderHandle
	removed       bool

	wireframes     []SceneNode
	collidersShown bool
	debugging      bool
	debugLines     []string

	tracked  weak.Pointer[Entity]
	behavior Behavior
}

// NewEntity builds the debug geometry and registers the entity with world.
// Registration happens exactly once.
func NewEntity(world *PhysicsWorld, cfg EntityConfig) (*Entity, error) {
	if world == nil {
		return nil, ErrNoWorld
	}
	if cfg.ID == "" {
		return nil, errors.New("ecs: entity id is empty")
	}
	if len(cfg.Colliders) == 0 {
		return nil, fmt.Errorf("ecs: entity %q has no colliders", cfg.ID)
	}

	e := &Entity{
		id:            cfg.ID,
		world:         world,
		node:          cfg.Node,
		bodyDesc:      cfg.Body,
		colliderDescs: append([]sim.ColliderDesc(nil), cfg.Colliders...),
		behavior:      cfg.Behavior,
	}
	if cfg.Wireframe != nil {
		for i, d := range cfg.Colliders {
			w, err := cfg.Wireframe(d)
			if err != nil {
				return nil, fmt.Errorf("ecs: entity %q collider %d wireframe: %w", cfg.ID, i, err)
			}
			e.wireframes = append(e.wireframes, w)
		}
	}

	live, err := world.Track(e)
	if err != nil {
		return nil, err
	}
	e.body = live.Body
	e.colliders = live.Colliders

	if e.behavior.Kind == BehaviorScoringSensor && e.behavior.Scoring != nil {
		if err := e.behavior.Scoring.resolve(e); err != nil {
			_ = world.Untrack(e.id)
			return nil, err
		}
	}
	if world.CollidersVisible() {
		e.ShowCollider(true)
	}
	e.syncNode()
	return e, nil
}

func (e *Entity) ID() string                        { return e.id }
func (e *Entity) Body() sim.BodyHandle              { return e.body }
func (e *Entity) BodyDesc() sim.RigidBodyDesc       { return e.bodyDesc }
func (e *Entity) Node() SceneNode                   { return e.node }
func (e *Entity) Behavior() Behavior                { return e.behavior }
func (e *Entity) ColliderDescs() []sim.ColliderDesc { return append([]sim.ColliderDesc(nil), e.colliderDescs...) }

// Colliders returns the live collider handles parallel to the descriptors.
func (e *Entity) Colliders() []sim.ColliderHandle {
	return append([]sim.ColliderHandle(nil), e.colliders...)
}

// Removed reports whether the entity was untracked from its world.
func (e *Entity) Removed() bool { return e.removed }

func (e *Entity) liveBody() (*sim.RigidBody, bool) {
	if e == nil || e.removed || e.world == nil {
		return nil, false
	}
	return e.world.world.Body(e.body)
}

// Position returns the live body translation.
func (e *Entity) Position() mgl64.Vec3 {
	b, ok := e.liveBody()
	if !ok {
		return mgl64.Vec3{}
	}
	return b.Translation()
}

func (e *Entity) Rotation() mgl64.Quat {
	b, ok := e.liveBody()
	if !ok {
		return mgl64.QuatIdent()
	}
	return b.Rotation()
}

func (e *Entity) Linvel() mgl64.Vec3 {
	b, ok := e.liveBody()
	if !ok {
		return mgl64.Vec3{}
	}
	return b.Linvel()
}

// Track makes the entity follow target every tick. nil stops following.
func (e *Entity) Track(target *Entity) error {
	if target == nil {
		e.tracked = weak.Pointer[Entity]{}
		return nil
	}
	for cur := target; cur != nil; cur = cur.tracked.Value() {
		if cur == e {
			return fmt.Errorf("%w: %q -> %q", ErrTrackingCycle, e.id, target.id)
		}
	}
	e.tracked = weak.Make(target)
	return nil
}

// Tracking returns the followed entity, if it is still alive.
func (e *Entity) Tracking() *Entity {
	return e.tracked.Value()
}

// Toss releases the entity at from with the given velocity.
func (e *Entity) Toss(from, velocity mgl64.Vec3) {
	_ = e.Track(nil)
	b, ok := e.liveBody()
	if !ok {
		return
	}
	b.SetTranslation(from, false)
	b.SetLinvel(velocity, true)
}

// Tick applies tracking, copies the body pose onto the node and runs the
// behavior.
func (e *Entity) Tick(dt float64) {
	if e == nil || e.removed {
		return
	}
	if target := e.tracked.Value(); target != nil {
		if target.removed {
			e.tracked = weak.Pointer[Entity]{}
		} else if b, ok := e.liveBody(); ok {
			b.Sleep()
			b.SetTranslation(target.Position(), false)
		}
	}

	e.syncNode()

	switch e.behavior.Kind {
	case BehaviorAnimatedCreature:
		if e.behavior.Creature != nil {
			e.behavior.Creature.tick(e, dt)
		}
	case BehaviorHand:
		if e.behavior.Hand != nil {
			e.behavior.Hand.tick(e, dt)
		}
	}
}

func (e *Entity) syncNode() {
	if e.node == nil {
		return
	}
	b, ok := e.liveBody()
	if !ok {
		return
	}
	e.node.SetPosition(b.Translation())
	e.node.SetRotation(b.Rotation())
}

// handleCollision is called by the world for every event touching one of
// the entity's colliders.
func (e *Entity) handleCollision(a, b sim.ColliderHandle, intersecting bool) {
	if e.behavior.Kind == BehaviorScoringSensor && e.behavior.Scoring != nil {
		e.behavior.Scoring.handle(e, a, b, intersecting)
	}
}

// ShowCollider attaches or detaches the collider wireframes.
func (e *Entity) ShowCollider(show bool) {
	if e.collidersShown == show {
		return
	}
	e.collidersShown = show
	if e.node == nil {
		return
	}
	for _, w := range e.wireframes {
		if show {
			e.node.Add(w)
		} else {
			e.node.Remove(w)
		}
	}
}

func (e *Entity) CollidersShown() bool { return e.collidersShown }

// ToggleDebug flips the debug overlay, which includes the colliders.
func (e *Entity) ToggleDebug() {
	e.debugging = !e.debugging
	e.ShowCollider(e.debugging)
	if e.world != nil && e.world.cfg.Debug {
		log.Printf("Entity: %q debugging=%v position=%v", e.id, e.debugging, e.Position())
	}
}

func (e *Entity) Debugging() bool { return e.debugging }

// Debug appends a line to the entity's debug panel.
func (e *Entity) Debug(msg string) {
	e.debugLines = append(e.debugLines, msg)
	if n := len(e.debugLines); n > debugLineLimit {
		e.debugLines = append(e.debugLines[:0], e.debugLines[n-debugLineLimit:]...)
	}
}

func (e *Entity) DebugLines() []string {
	return append([]string(nil), e.debugLines...)
}

// SceneObjects returns what the stage attaches to its scene.
func (e *Entity) SceneObjects() []SceneNode {
	if e.node == nil {
		return nil
	}
	return []SceneNode{e.node}
}

// Wireframes returns the debug geometry built at construction.
func (e *Entity) Wireframes() []SceneNode {
	return append([]SceneNode(nil), e.wireframes...)
}
