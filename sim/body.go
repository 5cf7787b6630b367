package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RigidBody is a simulated body. Translation is the body origin; velocities
// refer to the centre of mass.
type RigidBody struct {
	world  *World
	handle BodyHandle
	kind   BodyKind

	pose   Pose
	linvel mgl64.Vec3
	angvel mgl64.Vec3
	force  mgl64.Vec3

	linearDamping  float64
	angularDamping float64
	gravityScale   float64
	ccd            bool

	sleeping   bool
	sleepTimer float64

	mass            float64
	invMass         float64
	localCOM        mgl64.Vec3
	invInertiaLocal mgl64.Mat3

	colliders []ColliderHandle
	target    *Pose
}

func newRigidBody(w *World, desc RigidBodyDesc) *RigidBody {
	b := &RigidBody{
		world:        w,
		kind:         desc.Kind,
		pose:         Pose{Translation: desc.Translation, Rotation: normQuat(desc.Rotation)},
		gravityScale: desc.GravityScale,
	}
	if desc.Kind == BodyDynamic {
		b.linearDamping = desc.LinearDamping
		b.angularDamping = desc.AngularDamping
		b.ccd = desc.CCD
	}
	b.resetMass()
	return b
}

func (b *RigidBody) Handle() BodyHandle { return b.handle }
func (b *RigidBody) Kind() BodyKind     { return b.kind }
func (b *RigidBody) Mass() float64      { return b.mass }
func (b *RigidBody) CCD() bool          { return b.ccd }

func (b *RigidBody) IsDynamic() bool   { return b.kind == BodyDynamic }
func (b *RigidBody) IsKinematic() bool { return b.kind == BodyKinematicPositionBased }
func (b *RigidBody) IsStatic() bool    { return b.kind == BodyStatic }

// Colliders returns the handles attached to the body in creation order.
func (b *RigidBody) Colliders() []ColliderHandle {
	return append([]ColliderHandle(nil), b.colliders...)
}

func (b *RigidBody) Translation() mgl64.Vec3 { return b.pose.Translation }
func (b *RigidBody) Rotation() mgl64.Quat    { return b.pose.Rotation }
func (b *RigidBody) Pose() Pose              { return b.pose }
func (b *RigidBody) Linvel() mgl64.Vec3      { return b.linvel }
func (b *RigidBody) Angvel() mgl64.Vec3      { return b.angvel }

// SetTranslation teleports the body. Velocities are kept.
func (b *RigidBody) SetTranslation(v mgl64.Vec3, wake bool) {
	b.pose.Translation = v
	if b.kind == BodyKinematicPositionBased {
		b.target = nil
	}
	if wake {
		b.WakeUp()
	}
}

func (b *RigidBody) SetRotation(q mgl64.Quat, wake bool) {
	b.pose.Rotation = normQuat(q)
	if b.kind == BodyKinematicPositionBased {
		b.target = nil
	}
	if wake {
		b.WakeUp()
	}
}

func (b *RigidBody) SetLinvel(v mgl64.Vec3, wake bool) {
	if b.kind == BodyStatic {
		return
	}
	b.linvel = v
	if wake {
		b.WakeUp()
	}
}

func (b *RigidBody) SetAngvel(v mgl64.Vec3, wake bool) {
	if b.kind == BodyStatic {
		return
	}
	b.angvel = v
	if wake {
		b.WakeUp()
	}
}

// ApplyImpulse changes the linear momentum of a dynamic body.
func (b *RigidBody) ApplyImpulse(j mgl64.Vec3, wake bool) {
	if b.kind != BodyDynamic {
		return
	}
	b.linvel = b.linvel.Add(j.Mul(b.invMass))
	if wake {
		b.WakeUp()
	}
}

// AddForce accumulates a force applied during the next step.
func (b *RigidBody) AddForce(f mgl64.Vec3, wake bool) {
	if b.kind != BodyDynamic {
		return
	}
	b.force = b.force.Add(f)
	if wake {
		b.WakeUp()
	}
}

// SetNextKinematicTranslation sets where a kinematic body ends the next
// step. The body gets the velocity needed to get there.
func (b *RigidBody) SetNextKinematicTranslation(v mgl64.Vec3) {
	if b.kind != BodyKinematicPositionBased {
		return
	}
	if b.target == nil {
		b.target = &Pose{Rotation: b.pose.Rotation}
	}
	b.target.Translation = v
}

func (b *RigidBody) SetNextKinematicRotation(q mgl64.Quat) {
	if b.kind != BodyKinematicPositionBased {
		return
	}
	if b.target == nil {
		b.target = &Pose{Translation: b.pose.Translation}
	}
	b.target.Rotation = normQuat(q)
}

// Sleep stops a dynamic body: it keeps its pose, loses its velocity and is
// neither integrated nor pushed until woken.
func (b *RigidBody) Sleep() {
	if b.kind != BodyDynamic {
		return
	}
	b.sleeping = true
	b.linvel = mgl64.Vec3{}
	b.angvel = mgl64.Vec3{}
	b.force = mgl64.Vec3{}
}

func (b *RigidBody) WakeUp() {
	b.sleeping = false
	b.sleepTimer = 0
}

func (b *RigidBody) IsSleeping() bool { return b.sleeping }

func (b *RigidBody) worldCOM() mgl64.Vec3 {
	return b.pose.Apply(b.localCOM)
}

// active reports whether the solver may move the body.
func (b *RigidBody) active() bool {
	return b.kind == BodyDynamic && !b.sleeping
}

// moving reports whether the body can disturb a sleeping neighbour.
func (b *RigidBody) moving() bool {
	switch b.kind {
	case BodyDynamic:
		return !b.sleeping
	case BodyKinematicPositionBased:
		return b.linvel.LenSqr() > 0 || b.angvel.LenSqr() > 0
	}
	return false
}

func (b *RigidBody) effectiveInvMass() float64 {
	if !b.active() {
		return 0
	}
	return b.invMass
}

func (b *RigidBody) invInertiaWorld() mgl64.Mat3 {
	if !b.active() {
		return mgl64.Mat3{}
	}
	r := b.pose.Rotation.Mat4().Mat3()
	return r.Mul3(b.invInertiaLocal).Mul3(r.Transpose())
}

func (b *RigidBody) velocityAt(p mgl64.Vec3) mgl64.Vec3 {
	return b.linvel.Add(b.angvel.Cross(p.Sub(b.worldCOM())))
}

func (b *RigidBody) applyImpulseAt(j, r mgl64.Vec3, invI mgl64.Mat3) {
	if !b.active() {
		return
	}
	b.linvel = b.linvel.Add(j.Mul(b.invMass))
	b.angvel = b.angvel.Add(invI.Mul3x1(r.Cross(j)))
}

// integrate advances the pose about the centre of mass.
func (b *RigidBody) integrate(h float64) {
	com := b.worldCOM().Add(b.linvel.Mul(h))
	rot := b.pose.Rotation
	if b.angvel.LenSqr() > 0 {
		spin := mgl64.Quat{W: 0, V: b.angvel}.Mul(rot).Scale(0.5 * h)
		rot = rot.Add(spin).Normalize()
	}
	b.pose.Rotation = rot
	b.pose.Translation = com.Sub(rot.Rotate(b.localCOM))
}

// resetMass recomputes mass, centre of mass and inertia from the attached
// solid colliders. Dynamic bodies without solid volume get unit mass.
func (b *RigidBody) resetMass() {
	b.mass, b.invMass = 0, 0
	b.localCOM = mgl64.Vec3{}
	b.invInertiaLocal = mgl64.Mat3{}
	if b.kind != BodyDynamic {
		return
	}

	type part struct {
		mass    float64
		center  mgl64.Vec3
		inertia mgl64.Mat3
	}
	var parts []part
	total := 0.0
	var weighted mgl64.Vec3
	if b.world != nil {
		for _, h := range b.colliders {
			c, ok := b.world.colliders.get(uint64(h))
			if !ok {
				continue
			}
			m, diag := shapeMass(c.desc.Shape, c.desc.EffectiveDensity())
			if m <= 0 {
				continue
			}
			rot := c.local.Rotation.Mat4().Mat3()
			inertia := rot.Mul3(mgl64.Diag3(diag)).Mul3(rot.Transpose())
			parts = append(parts, part{mass: m, center: c.local.Translation, inertia: inertia})
			total += m
			weighted = weighted.Add(c.local.Translation.Mul(m))
		}
	}

	if total <= 0 {
		b.mass, b.invMass = 1, 1
		b.invInertiaLocal = mgl64.Ident3()
		return
	}

	com := weighted.Mul(1 / total)
	var inertia mgl64.Mat3
	for _, p := range parts {
		d := p.center.Sub(com)
		shift := mgl64.Ident3().Mul(d.LenSqr()).Sub(outer(d, d)).Mul(p.mass)
		inertia = inertia.Add(p.inertia).Add(shift)
	}
	b.mass = total
	b.invMass = 1 / total
	b.localCOM = com
	if inertia.Det() > epsilon {
		b.invInertiaLocal = inertia.Inv()
	} else {
		b.invInertiaLocal = mgl64.Ident3()
	}
}

// shapeMass returns the mass and principal inertia of a shape.
func shapeMass(s Shape, density float64) (float64, mgl64.Vec3) {
	if density <= 0 {
		return 0, mgl64.Vec3{}
	}
	switch s.Kind {
	case ShapeBall:
		r := s.Radius
		m := density * 4.0 / 3.0 * math.Pi * r * r * r
		i := 0.4 * m * r * r
		return m, mgl64.Vec3{i, i, i}
	case ShapeCuboid:
		h := s.HalfExtents
		m := density * 8 * h.X() * h.Y() * h.Z()
		return m, mgl64.Vec3{
			m / 3 * (h.Y()*h.Y() + h.Z()*h.Z()),
			m / 3 * (h.X()*h.X() + h.Z()*h.Z()),
			m / 3 * (h.X()*h.X() + h.Y()*h.Y()),
		}
	case ShapeCapsule:
		r, hh := s.Radius, s.HalfHeight
		cyl := density * math.Pi * r * r * 2 * hh
		caps := density * 4.0 / 3.0 * math.Pi * r * r * r
		iy := cyl*r*r/2 + caps*0.4*r*r
		ix := cyl*(3*r*r+4*hh*hh)/12 + caps*(0.4*r*r+hh*hh+0.375*hh*r)
		return cyl + caps, mgl64.Vec3{ix, iy, ix}
	}
	return 0, mgl64.Vec3{}
}

func outer(a, b mgl64.Vec3) mgl64.Mat3 {
	var m mgl64.Mat3
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m.Set(row, col, a[row]*b[col])
		}
	}
	return m
}

// minExtent is the smallest half-thickness among the body's solid
// colliders. CCD substepping keeps per-substep travel below half of it.
func (b *RigidBody) minExtent() float64 {
	best := math.Inf(1)
	if b.world == nil {
		return best
	}
	for _, h := range b.colliders {
		c, ok := b.world.colliders.get(uint64(h))
		if !ok || c.desc.Sensor {
			continue
		}
		s := c.desc.Shape
		switch s.Kind {
		case ShapeBall, ShapeCapsule:
			best = math.Min(best, s.Radius)
		case ShapeCuboid:
			best = math.Min(best, math.Min(s.HalfExtents.X(), math.Min(s.HalfExtents.Y(), s.HalfExtents.Z())))
		}
	}
	return best
}
