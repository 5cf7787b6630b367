package sim

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// Config tunes the simulation.
type Config struct {
	Gravity              mgl64.Vec3
	Timestep             float64
	SolverIterations     int
	MaxCCDSubsteps       int
	SleepLinear          float64
	SleepAngular         float64
	SleepDelay           float64
	RestitutionThreshold float64
	PenetrationSlop      float64
}

// DefaultConfig matches Earth gravity at 60 steps per second.
func DefaultConfig() Config {
	return Config{
		Gravity:              mgl64.Vec3{0, -9.81, 0},
		Timestep:             1.0 / 60.0,
		SolverIterations:     8,
		MaxCCDSubsteps:       8,
		SleepLinear:          0.05,
		SleepAngular:         0.05,
		SleepDelay:           2,
		RestitutionThreshold: 0.5,
		PenetrationSlop:      0.002,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timestep <= 0 {
		c.Timestep = def.Timestep
	}
	if c.SolverIterations <= 0 {
		c.SolverIterations = def.SolverIterations
	}
	if c.MaxCCDSubsteps <= 0 {
		c.MaxCCDSubsteps = def.MaxCCDSubsteps
	}
	if c.PenetrationSlop <= 0 {
		c.PenetrationSlop = def.PenetrationSlop
	}
	return c
}

// IntersectionEvent reports a sensor pair starting or stopping to overlap.
type IntersectionEvent struct {
	A            ColliderHandle
	B            ColliderHandle
	Intersecting bool
}

type pairKey struct {
	a ColliderHandle
	b ColliderHandle
}

func makePairKey(a, b ColliderHandle) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

func comparePairKeys(x, y pairKey) int {
	switch {
	case x.a < y.a:
		return -1
	case x.a > y.a:
		return 1
	case x.b < y.b:
		return -1
	case x.b > y.b:
		return 1
	}
	return 0
}

// World owns every body and collider of one simulation.
type World struct {
	cfg       Config
	dt        float64
	bodies    arena[*RigidBody]
	colliders arena[*Collider]
	broad     *broadPhase

	sensorPairs map[pairKey]struct{}
	events      []IntersectionEvent
	contacts    []contactConstraint
	steps       uint64
}

// NewWorld creates an empty world.
func NewWorld(cfg Config) *World {
	cfg = cfg.withDefaults()
	return &World{
		cfg:         cfg,
		dt:          cfg.Timestep,
		broad:       newBroadPhase(),
		sensorPairs: make(map[pairKey]struct{}),
	}
}

func (w *World) Config() Config { return w.cfg }

func (w *World) Gravity() mgl64.Vec3 { return w.cfg.Gravity }

func (w *World) SetGravity(g mgl64.Vec3) { w.cfg.Gravity = g }

// SetTimestep sets the length of the next Step calls.
func (w *World) SetTimestep(dt float64) { w.dt = dt }

func (w *World) Timestep() float64 { return w.dt }

// Steps counts completed Step calls.
func (w *World) Steps() uint64 { return w.steps }

func (w *World) BodyCount() int     { return w.bodies.len() }
func (w *World) ColliderCount() int { return w.colliders.len() }

// CreateRigidBody adds a body. A zero Kind means dynamic.
func (w *World) CreateRigidBody(desc RigidBodyDesc) BodyHandle {
	if desc.Kind == 0 {
		desc.Kind = BodyDynamic
	}
	b := newRigidBody(w, desc)
	b.handle = BodyHandle(w.bodies.insert(b))
	return b.handle
}

// CreateRigidBodyChecked validates the descriptor before creating the body.
func (w *World) CreateRigidBodyChecked(desc RigidBodyDesc) (BodyHandle, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	return w.CreateRigidBody(desc), nil
}

// CreateCollider attaches a collider to parent.
func (w *World) CreateCollider(desc ColliderDesc, parent BodyHandle) (ColliderHandle, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	body, ok := w.bodies.get(uint64(parent))
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrNoParentBody, parent)
	}
	desc.Rotation = normQuat(desc.Rotation)
	c := &Collider{
		parent: parent,
		body:   body,
		desc:   desc,
		local:  Pose{Translation: desc.Translation, Rotation: desc.Rotation},
	}
	c.handle = ColliderHandle(w.colliders.insert(c))
	body.colliders = append(body.colliders, c.handle)
	body.resetMass()
	w.broad.insert(c.handle, c.AABB(), desc.Shape.BoundingRadius())
	return c.handle, nil
}

// RemoveCollider detaches and deletes one collider.
func (w *World) RemoveCollider(h ColliderHandle) error {
	c, ok := w.colliders.get(uint64(h))
	if !ok {
		return fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	w.dropSensorPairs(h)
	w.broad.remove(h)
	w.colliders.remove(uint64(h))
	c.body.colliders = slices.DeleteFunc(c.body.colliders, func(x ColliderHandle) bool { return x == h })
	c.body.resetMass()
	return nil
}

// RemoveRigidBody deletes a body and all of its colliders. Sensor pairs
// that were overlapping report a final non-intersecting event.
func (w *World) RemoveRigidBody(h BodyHandle) error {
	b, ok := w.bodies.get(uint64(h))
	if !ok {
		return fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	for _, ch := range b.colliders {
		w.dropSensorPairs(ch)
		w.broad.remove(ch)
		w.colliders.remove(uint64(ch))
	}
	b.colliders = nil
	w.bodies.remove(uint64(h))
	b.world = nil
	return nil
}

func (w *World) dropSensorPairs(h ColliderHandle) {
	var gone []pairKey
	for k := range w.sensorPairs {
		if k.a == h || k.b == h {
			gone = append(gone, k)
		}
	}
	slices.SortFunc(gone, comparePairKeys)
	for _, k := range gone {
		delete(w.sensorPairs, k)
		w.events = append(w.events, IntersectionEvent{A: k.a, B: k.b, Intersecting: false})
	}
}

func (w *World) Body(h BodyHandle) (*RigidBody, bool) {
	return w.bodies.get(uint64(h))
}

func (w *World) Collider(h ColliderHandle) (*Collider, bool) {
	return w.colliders.get(uint64(h))
}

// EachCollider visits live colliders in slot order.
func (w *World) EachCollider(fn func(*Collider)) {
	w.colliders.each(func(_ uint64, c *Collider) { fn(c) })
}

// EachBody visits live bodies in slot order.
func (w *World) EachBody(fn func(*RigidBody)) {
	w.bodies.each(func(_ uint64, b *RigidBody) { fn(b) })
}

// DrainIntersectionEvents hands queued events to fn in emission order and
// clears the queue.
func (w *World) DrainIntersectionEvents(fn func(a, b ColliderHandle, intersecting bool)) {
	events := w.events
	w.events = nil
	if fn == nil {
		return
	}
	for _, e := range events {
		fn(e.A, e.B, e.Intersecting)
	}
}

// PendingEvents reports how many events wait to be drained.
func (w *World) PendingEvents() int { return len(w.events) }

// IntersectingPairs lists the sensor pairs currently overlapping.
func (w *World) IntersectingPairs() [][2]ColliderHandle {
	keys := make([]pairKey, 0, len(w.sensorPairs))
	for k := range w.sensorPairs {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, comparePairKeys)
	out := make([][2]ColliderHandle, len(keys))
	for i, k := range keys {
		out[i] = [2]ColliderHandle{k.a, k.b}
	}
	return out
}

// Step advances the simulation by the current timestep.
func (w *World) Step() {
	dt := w.dt
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}

	w.bodies.each(func(_ uint64, b *RigidBody) {
		if b.kind != BodyKinematicPositionBased {
			return
		}
		b.linvel, b.angvel = mgl64.Vec3{}, mgl64.Vec3{}
		if b.target == nil {
			return
		}
		b.linvel = b.target.Translation.Sub(b.pose.Translation).Mul(1 / dt)
		b.angvel = angularVelocity(b.pose.Rotation, b.target.Rotation, dt)
	})

	n := w.substeps(dt)
	h := dt / float64(n)
	for i := 0; i < n; i++ {
		w.substep(h)
	}

	w.bodies.each(func(_ uint64, b *RigidBody) {
		b.force = mgl64.Vec3{}
		if b.target != nil {
			b.pose = *b.target
			b.target = nil
		}
	})
	w.steps++
}

func angularVelocity(from, to mgl64.Quat, dt float64) mgl64.Vec3 {
	dq := to.Mul(from.Conjugate())
	if dq.W < 0 {
		dq = dq.Scale(-1)
	}
	s := math.Sqrt(math.Max(0, 1-dq.W*dq.W))
	if s < 1e-9 {
		return mgl64.Vec3{}
	}
	angle := 2 * math.Acos(clamp(dq.W, -1, 1))
	return dq.V.Mul(angle / (s * dt))
}

// substeps splits the step when a CCD body would outrun its own thickness.
func (w *World) substeps(dt float64) int {
	n := 1
	w.bodies.each(func(_ uint64, b *RigidBody) {
		if !b.ccd || !b.active() {
			return
		}
		extent := b.minExtent()
		if math.IsInf(extent, 1) || extent <= 0 {
			return
		}
		travel := b.linvel.Add(w.cfg.Gravity.Mul(b.gravityScale * dt)).Len() * dt
		need := int(math.Ceil(travel / (0.5 * extent)))
		if need > n {
			n = need
		}
	})
	if n > w.cfg.MaxCCDSubsteps {
		n = w.cfg.MaxCCDSubsteps
	}
	return n
}

func (w *World) substep(h float64) {
	w.detect()

	w.bodies.each(func(_ uint64, b *RigidBody) {
		if !b.active() {
			return
		}
		acc := w.cfg.Gravity.Mul(b.gravityScale).Add(b.force.Mul(b.invMass))
		b.linvel = b.linvel.Add(acc.Mul(h))
		b.linvel = b.linvel.Mul(1 / (1 + h*b.linearDamping))
		b.angvel = b.angvel.Mul(1 / (1 + h*b.angularDamping))
	})

	w.prepareContacts()
	for i := 0; i < w.cfg.SolverIterations; i++ {
		w.solveContacts()
	}

	w.bodies.each(func(_ uint64, b *RigidBody) {
		if b.active() || b.kind == BodyKinematicPositionBased {
			b.integrate(h)
		}
	})

	w.correctPositions(h)
	w.updateSleep(h)
}

// detect runs the broad and narrow phase, fills the contact list and
// diffs the sensor pairs.
func (w *World) detect() {
	w.colliders.each(func(_ uint64, c *Collider) {
		w.broad.update(c.handle, c.AABB())
	})

	w.contacts = w.contacts[:0]
	seen := make(map[pairKey]struct{})
	current := make(map[pairKey]struct{})

	w.colliders.each(func(_ uint64, a *Collider) {
		if a.body.kind == BodyStatic {
			return
		}
		w.broad.query(a.AABB(), func(bh ColliderHandle) {
			if bh == a.handle {
				return
			}
			key := makePairKey(a.handle, bh)
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}

			b, ok := w.colliders.get(uint64(bh))
			if !ok || b.body == a.body {
				return
			}
			if !groupsInteract(a.desc.Groups, b.desc.Groups) {
				return
			}
			ct, hit := collide(a.desc.Shape, a.Pose(), b.desc.Shape, b.Pose())
			if !hit {
				return
			}
			if a.desc.Sensor || b.desc.Sensor {
				current[key] = struct{}{}
				return
			}
			w.addContact(a, b, ct)
		})
	})

	w.diffSensorPairs(current)
}

func (w *World) diffSensorPairs(current map[pairKey]struct{}) {
	var began, ended []pairKey
	for k := range current {
		if _, ok := w.sensorPairs[k]; !ok {
			began = append(began, k)
		}
	}
	for k := range w.sensorPairs {
		if _, ok := current[k]; !ok {
			ended = append(ended, k)
		}
	}
	slices.SortFunc(began, comparePairKeys)
	slices.SortFunc(ended, comparePairKeys)
	for _, k := range ended {
		delete(w.sensorPairs, k)
		w.events = append(w.events, IntersectionEvent{A: k.a, B: k.b, Intersecting: false})
	}
	for _, k := range began {
		w.sensorPairs[k] = struct{}{}
		w.events = append(w.events, IntersectionEvent{A: k.a, B: k.b, Intersecting: true})
	}
}

func (w *World) updateSleep(h float64) {
	if w.cfg.SleepDelay <= 0 {
		return
	}
	w.bodies.each(func(_ uint64, b *RigidBody) {
		if !b.active() {
			return
		}
		if b.linvel.Len() < w.cfg.SleepLinear && b.angvel.Len() < w.cfg.SleepAngular {
			b.sleepTimer += h
			if b.sleepTimer >= w.cfg.SleepDelay {
				b.Sleep()
			}
			return
		}
		b.sleepTimer = 0
	})
}
