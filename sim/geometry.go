package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-9

// Pose is a rigid transform.
type Pose struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
}

// Apply maps a local point into the pose's parent space.
func (p Pose) Apply(v mgl64.Vec3) mgl64.Vec3 {
	return p.Rotation.Rotate(v).Add(p.Translation)
}

// ApplyInverse maps a parent-space point into local space.
func (p Pose) ApplyInverse(v mgl64.Vec3) mgl64.Vec3 {
	return p.Rotation.Conjugate().Rotate(v.Sub(p.Translation))
}

// Compose returns the pose of child expressed in p's parent space.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Translation: p.Apply(child.Translation),
		Rotation:    p.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func (b AABB) Intersects(o AABB) bool {
	return b.Min.X() <= o.Max.X() && b.Max.X() >= o.Min.X() &&
		b.Min.Y() <= o.Max.Y() && b.Max.Y() >= o.Min.Y() &&
		b.Min.Z() <= o.Max.Z() && b.Max.Z() >= o.Min.Z()
}

func (b AABB) Contains(p mgl64.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Extents() mgl64.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Grow pads the box on every side.
func (b AABB) Grow(pad float64) AABB {
	d := mgl64.Vec3{pad, pad, pad}
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// shapeAABB bounds a shape placed at pose.
func shapeAABB(s Shape, pose Pose) AABB {
	switch s.Kind {
	case ShapeBall:
		r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
		return AABB{Min: pose.Translation.Sub(r), Max: pose.Translation.Add(r)}
	case ShapeCapsule:
		a, b := capsuleSegment(s, pose)
		r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
		return AABB{Min: vecMin(a, b).Sub(r), Max: vecMax(a, b).Add(r)}
	case ShapeCuboid:
		m := pose.Rotation.Mat4().Mat3()
		var ext mgl64.Vec3
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				ext[i] += math.Abs(m.At(i, j)) * s.HalfExtents[j]
			}
		}
		return AABB{Min: pose.Translation.Sub(ext), Max: pose.Translation.Add(ext)}
	}
	return AABB{Min: pose.Translation, Max: pose.Translation}
}

// capsuleSegment returns the world endpoints of a capsule axis. Balls
// collapse to a point.
func capsuleSegment(s Shape, pose Pose) (mgl64.Vec3, mgl64.Vec3) {
	if s.Kind != ShapeCapsule || s.HalfHeight == 0 {
		return pose.Translation, pose.Translation
	}
	axis := pose.Rotation.Rotate(mgl64.Vec3{0, s.HalfHeight, 0})
	return pose.Translation.Sub(axis), pose.Translation.Add(axis)
}

// signedDistance evaluates the shape's distance field at a local point.
func signedDistance(s Shape, p mgl64.Vec3) float64 {
	switch s.Kind {
	case ShapeBall:
		return p.Len() - s.Radius
	case ShapeCapsule:
		y := clamp(p.Y(), -s.HalfHeight, s.HalfHeight)
		return p.Sub(mgl64.Vec3{0, y, 0}).Len() - s.Radius
	case ShapeCuboid:
		q := mgl64.Vec3{
			math.Abs(p.X()) - s.HalfExtents.X(),
			math.Abs(p.Y()) - s.HalfExtents.Y(),
			math.Abs(p.Z()) - s.HalfExtents.Z(),
		}
		outside := vecMax(q, mgl64.Vec3{}).Len()
		inside := math.Min(math.Max(q.X(), math.Max(q.Y(), q.Z())), 0)
		return outside + inside
	}
	return math.Inf(1)
}

// distanceGradient estimates the outward normal of the distance field.
func distanceGradient(s Shape, p mgl64.Vec3) mgl64.Vec3 {
	const h = 1e-5
	var g mgl64.Vec3
	for i := 0; i < 3; i++ {
		var d mgl64.Vec3
		d[i] = h
		g[i] = signedDistance(s, p.Add(d)) - signedDistance(s, p.Sub(d))
	}
	if g.LenSqr() < epsilon*epsilon {
		return mgl64.Vec3{0, 1, 0}
	}
	return g.Normalize()
}

func closestPointOnSegment(a, b, p mgl64.Vec3) (mgl64.Vec3, float64) {
	ab := b.Sub(a)
	den := ab.LenSqr()
	if den < epsilon {
		return a, 0
	}
	t := clamp(p.Sub(a).Dot(ab)/den, 0, 1)
	return a.Add(ab.Mul(t)), t
}

// closestPointsSegments returns the closest points between segments p1q1
// and p2q2 (Ericson, Real-Time Collision Detection 5.1.9).
func closestPointsSegments(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.LenSqr()
	e := d2.LenSqr()
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a <= epsilon && e <= epsilon:
		return p1, p2
	case a <= epsilon:
		t = clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e <= epsilon {
			s = clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom != 0 {
				s = clamp((b*f-c*e)/denom, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = clamp((b-c)/a, 0, 1)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func vecMin(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func vecMax(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

// anyPerpendicular returns a unit vector orthogonal to n.
func anyPerpendicular(n mgl64.Vec3) mgl64.Vec3 {
	if math.Abs(n.X()) < 0.9 {
		return n.Cross(mgl64.Vec3{1, 0, 0}).Normalize()
	}
	return n.Cross(mgl64.Vec3{0, 1, 0}).Normalize()
}
