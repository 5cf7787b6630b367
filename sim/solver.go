package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// contactConstraint is one solid contact resolved with sequential impulses.
type contactConstraint struct {
	a, b        *RigidBody
	normal      mgl64.Vec3
	tangents    [2]mgl64.Vec3
	point       mgl64.Vec3
	depth       float64
	restitution float64
	friction    float64

	ra, rb     mgl64.Vec3
	invIA      mgl64.Mat3
	invIB      mgl64.Mat3
	normalMass float64
	tangMass   [2]float64
	bias       float64

	normalImpulse float64
	tangImpulse   [2]float64
}

func (w *World) addContact(a, b *Collider, ct contact) {
	ba, bb := a.body, b.body
	// A moving body touching a sleeping one wakes it.
	if bb.sleeping && ba.moving() {
		bb.WakeUp()
	}
	if ba.sleeping && bb.moving() {
		ba.WakeUp()
	}
	if !ba.active() && !bb.active() {
		return
	}
	w.contacts = append(w.contacts, contactConstraint{
		a:           ba,
		b:           bb,
		normal:      ct.Normal,
		point:       ct.Point,
		depth:       ct.Depth,
		restitution: combine(a.desc.Restitution, a.desc.RestitutionCombine, b.desc.Restitution, b.desc.RestitutionCombine),
		friction:    combine(a.desc.Friction, a.desc.FrictionCombine, b.desc.Friction, b.desc.FrictionCombine),
	})
}

func (w *World) prepareContacts() {
	for i := range w.contacts {
		c := &w.contacts[i]
		c.tangents[0], c.tangents[1] = tangentBasis(c.normal)
		c.ra = c.point.Sub(c.a.worldCOM())
		c.rb = c.point.Sub(c.b.worldCOM())
		c.invIA = c.a.invInertiaWorld()
		c.invIB = c.b.invInertiaWorld()
		c.normalMass = inverseOrZero(c.effectiveMass(c.normal))
		for k := 0; k < 2; k++ {
			c.tangMass[k] = inverseOrZero(c.effectiveMass(c.tangents[k]))
		}

		// Restitution bias from the approach speed before any impulse.
		vn := c.relativeVelocity().Dot(c.normal)
		c.bias = 0
		if vn < -w.cfg.RestitutionThreshold {
			c.bias = -c.restitution * vn
		}
		c.normalImpulse = 0
		c.tangImpulse = [2]float64{}
	}
}

func (c *contactConstraint) effectiveMass(dir mgl64.Vec3) float64 {
	k := c.a.effectiveInvMass() + c.b.effectiveInvMass()
	ca := c.ra.Cross(dir)
	cb := c.rb.Cross(dir)
	k += ca.Dot(c.invIA.Mul3x1(ca))
	k += cb.Dot(c.invIB.Mul3x1(cb))
	return k
}

// relativeVelocity is the velocity of B's contact point seen from A.
func (c *contactConstraint) relativeVelocity() mgl64.Vec3 {
	return c.b.velocityAt(c.point).Sub(c.a.velocityAt(c.point))
}

func (c *contactConstraint) apply(j mgl64.Vec3) {
	c.a.applyImpulseAt(j.Mul(-1), c.ra, c.invIA)
	c.b.applyImpulseAt(j, c.rb, c.invIB)
}

func (w *World) solveContacts() {
	for i := range w.contacts {
		c := &w.contacts[i]
		if c.normalMass == 0 {
			continue
		}

		vn := c.relativeVelocity().Dot(c.normal)
		lambda := c.normalMass * (c.bias - vn)
		prev := c.normalImpulse
		c.normalImpulse = math.Max(prev+lambda, 0)
		c.apply(c.normal.Mul(c.normalImpulse - prev))

		limit := c.friction * c.normalImpulse
		for k := 0; k < 2; k++ {
			if c.tangMass[k] == 0 {
				continue
			}
			vt := c.relativeVelocity().Dot(c.tangents[k])
			lambda := -c.tangMass[k] * vt
			prev := c.tangImpulse[k]
			c.tangImpulse[k] = clamp(prev+lambda, -limit, limit)
			c.apply(c.tangents[k].Mul(c.tangImpulse[k] - prev))
		}
	}
}

// correctPositions pushes overlapping bodies apart by most of the depth
// left after integration.
func (w *World) correctPositions(h float64) {
	const fraction = 0.8
	for i := range w.contacts {
		c := &w.contacts[i]
		ia, ib := c.a.effectiveInvMass(), c.b.effectiveInvMass()
		if ia+ib == 0 {
			continue
		}
		// The solver already moved the bodies; estimate the residual depth
		// from the relative normal travel during this substep.
		travel := c.relativeVelocity().Dot(c.normal) * h
		residual := c.depth - travel - w.cfg.PenetrationSlop
		if residual <= 0 {
			continue
		}
		shift := c.normal.Mul(fraction * residual / (ia + ib))
		if ia > 0 {
			c.a.pose.Translation = c.a.pose.Translation.Sub(shift.Mul(ia))
		}
		if ib > 0 {
			c.b.pose.Translation = c.b.pose.Translation.Add(shift.Mul(ib))
		}
	}
}

func tangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	t1 := anyPerpendicular(n)
	t2 := n.Cross(t1).Normalize()
	return t1, t2
}

func inverseOrZero(k float64) float64 {
	if k <= epsilon {
		return 0
	}
	return 1 / k
}
