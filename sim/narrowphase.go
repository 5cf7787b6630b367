package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// contact is a single-point manifold. Normal points from the first shape
// towards the second; Depth is positive when the shapes overlap.
type contact struct {
	Normal mgl64.Vec3
	Depth  float64
	Point  mgl64.Vec3
}

func (c contact) flipped() contact {
	c.Normal = c.Normal.Mul(-1)
	return c
}

// collide tests two placed shapes. ok is false when they are apart.
func collide(sa Shape, pa Pose, sb Shape, pb Pose) (contact, bool) {
	aBox := sa.Kind == ShapeCuboid
	bBox := sb.Kind == ShapeCuboid
	switch {
	case !aBox && !bBox:
		return sweptSwept(sa, pa, sb, pb)
	case !aBox && bBox:
		return sweptBox(sa, pa, sb, pb)
	case aBox && !bBox:
		c, ok := sweptBox(sb, pb, sa, pa)
		return c.flipped(), ok
	default:
		return boxBox(sa, pa, sb, pb)
	}
}

// sweptSwept handles balls and capsules, both being spheres swept along a
// segment.
func sweptSwept(sa Shape, pa Pose, sb Shape, pb Pose) (contact, bool) {
	a0, a1 := capsuleSegment(sa, pa)
	b0, b1 := capsuleSegment(sb, pb)
	ca, cb := closestPointsSegments(a0, a1, b0, b1)
	return sphereSphere(ca, sa.Radius, cb, sb.Radius)
}

func sphereSphere(ca mgl64.Vec3, ra float64, cb mgl64.Vec3, rb float64) (contact, bool) {
	d := cb.Sub(ca)
	dist := d.Len()
	if dist > ra+rb {
		return contact{}, false
	}
	n := mgl64.Vec3{0, 1, 0}
	if dist > epsilon {
		n = d.Mul(1 / dist)
	}
	depth := ra + rb - dist
	return contact{Normal: n, Depth: depth, Point: ca.Add(n.Mul(ra - depth/2))}, true
}

// sweptBox finds the point on the capsule axis closest to the box with a
// ternary search (the box distance field is convex along a line), then
// treats that point as a sphere.
func sweptBox(sa Shape, pa Pose, box Shape, pb Pose) (contact, bool) {
	a0, a1 := capsuleSegment(sa, pa)
	center := a0
	if a0.Sub(a1).LenSqr() > epsilon {
		dist := func(t float64) float64 {
			p := a0.Add(a1.Sub(a0).Mul(t))
			return signedDistance(box, pb.ApplyInverse(p))
		}
		lo, hi := 0.0, 1.0
		for i := 0; i < 48; i++ {
			m1 := lo + (hi-lo)/3
			m2 := hi - (hi-lo)/3
			if dist(m1) <= dist(m2) {
				hi = m2
			} else {
				lo = m1
			}
		}
		center = a0.Add(a1.Sub(a0).Mul((lo + hi) / 2))
	}
	return sphereBox(center, sa.Radius, box, pb)
}

func sphereBox(center mgl64.Vec3, radius float64, box Shape, pb Pose) (contact, bool) {
	h := box.HalfExtents
	q := pb.ApplyInverse(center)
	clamped := mgl64.Vec3{clamp(q.X(), -h.X(), h.X()), clamp(q.Y(), -h.Y(), h.Y()), clamp(q.Z(), -h.Z(), h.Z())}
	d := q.Sub(clamped)
	if d.LenSqr() > epsilon*epsilon {
		dist := d.Len()
		if dist > radius {
			return contact{}, false
		}
		outward := pb.Rotation.Rotate(d.Mul(1 / dist))
		depth := radius - dist
		surface := pb.Apply(clamped)
		return contact{Normal: outward.Mul(-1), Depth: depth, Point: surface.Add(outward.Mul(depth / 2))}, true
	}

	// Centre inside the box: push out through the nearest face.
	axis := 0
	best := math.Inf(1)
	for i := 0; i < 3; i++ {
		if gap := h[i] - math.Abs(q[i]); gap < best {
			best = gap
			axis = i
		}
	}
	var local mgl64.Vec3
	local[axis] = 1
	if q[axis] < 0 {
		local[axis] = -1
	}
	outward := pb.Rotation.Rotate(local)
	face := q
	face[axis] = h[axis] * local[axis]
	depth := radius + best
	return contact{Normal: outward.Mul(-1), Depth: depth, Point: pb.Apply(face)}, true
}

// boxBox runs the separating axis test over the 15 candidate axes and
// builds a contact from the vertices found inside the other box.
func boxBox(sa Shape, pa Pose, sb Shape, pb Pose) (contact, bool) {
	axesA := boxAxes(pa.Rotation)
	axesB := boxAxes(pb.Rotation)
	delta := pb.Translation.Sub(pa.Translation)

	candidates := make([]mgl64.Vec3, 0, 15)
	candidates = append(candidates, axesA[:]...)
	candidates = append(candidates, axesB[:]...)
	for _, a := range axesA {
		for _, b := range axesB {
			c := a.Cross(b)
			if c.LenSqr() > 1e-10 {
				candidates = append(candidates, c.Normalize())
			}
		}
	}

	bestDepth := math.Inf(1)
	var bestAxis mgl64.Vec3
	for _, axis := range candidates {
		ra := projectRadius(sa.HalfExtents, axesA, axis)
		rb := projectRadius(sb.HalfExtents, axesB, axis)
		dist := delta.Dot(axis)
		overlap := ra + rb - math.Abs(dist)
		if overlap < 0 {
			return contact{}, false
		}
		if overlap < bestDepth {
			bestDepth = overlap
			bestAxis = axis
			if dist < 0 {
				bestAxis = axis.Mul(-1)
			}
		}
	}

	var sum mgl64.Vec3
	n := 0
	for _, v := range boxVertices(sb, pb) {
		if signedDistance(sa, pa.ApplyInverse(v)) <= 1e-6 {
			sum = sum.Add(v)
			n++
		}
	}
	for _, v := range boxVertices(sa, pa) {
		if signedDistance(sb, pb.ApplyInverse(v)) <= 1e-6 {
			sum = sum.Add(v)
			n++
		}
	}
	var point mgl64.Vec3
	if n > 0 {
		point = sum.Mul(1 / float64(n))
	} else {
		// Edge-edge: take B's deepest support point.
		point = boxSupport(sb, pb, bestAxis.Mul(-1)).Add(bestAxis.Mul(bestDepth / 2))
	}
	return contact{Normal: bestAxis, Depth: bestDepth, Point: point}, true
}

func boxAxes(q mgl64.Quat) [3]mgl64.Vec3 {
	return [3]mgl64.Vec3{
		q.Rotate(mgl64.Vec3{1, 0, 0}),
		q.Rotate(mgl64.Vec3{0, 1, 0}),
		q.Rotate(mgl64.Vec3{0, 0, 1}),
	}
}

func projectRadius(h mgl64.Vec3, axes [3]mgl64.Vec3, axis mgl64.Vec3) float64 {
	return h.X()*math.Abs(axes[0].Dot(axis)) + h.Y()*math.Abs(axes[1].Dot(axis)) + h.Z()*math.Abs(axes[2].Dot(axis))
}

func boxVertices(s Shape, p Pose) [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	h := s.HalfExtents
	for i := 0; i < 8; i++ {
		local := mgl64.Vec3{h.X(), h.Y(), h.Z()}
		if i&1 != 0 {
			local[0] = -local[0]
		}
		if i&2 != 0 {
			local[1] = -local[1]
		}
		if i&4 != 0 {
			local[2] = -local[2]
		}
		out[i] = p.Apply(local)
	}
	return out
}

func boxSupport(s Shape, p Pose, dir mgl64.Vec3) mgl64.Vec3 {
	local := p.Rotation.Conjugate().Rotate(dir)
	h := s.HalfExtents
	v := mgl64.Vec3{math.Copysign(h.X(), local.X()), math.Copysign(h.Y(), local.Y()), math.Copysign(h.Z(), local.Z())}
	return p.Apply(v)
}
