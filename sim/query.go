package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray is a half-line. Dir need not be normalised; time of impact is
// measured in multiples of Dir.
type Ray struct {
	Origin mgl64.Vec3
	Dir    mgl64.Vec3
}

func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// RayHit describes the first collider along a ray.
type RayHit struct {
	Collider ColliderHandle
	Toi      float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
}

// CastRay returns the closest collider hit within maxToi. With solid set a
// ray starting inside a shape hits it at toi 0; otherwise it reports the
// exit boundary. Only colliders whose membership intersects groups'
// filter are tested, except colliders with groups 0, which stay
// queryable while interacting with nothing.
func (w *World) CastRay(ray Ray, maxToi float64, solid bool, groups uint32) (RayHit, bool) {
	if ray.Dir.LenSqr() < epsilon*epsilon || maxToi < 0 {
		return RayHit{}, false
	}
	end := ray.At(maxToi)
	bounds := AABB{Min: vecMin(ray.Origin, end), Max: vecMax(ray.Origin, end)}

	best := RayHit{Toi: math.Inf(1)}
	found := false
	w.colliders.each(func(_ uint64, c *Collider) {
		if c.desc.Groups != 0 && membership(c.desc.Groups)&filter(groups) == 0 {
			return
		}
		if !c.AABB().Intersects(bounds) {
			return
		}
		hit, ok := castShape(c.desc.Shape, c.Pose(), ray, maxToi, solid)
		if !ok || hit.Toi >= best.Toi {
			return
		}
		hit.Collider = c.handle
		best = hit
		found = true
	})
	return best, found
}

// castShape intersects a ray with one placed shape.
func castShape(s Shape, pose Pose, ray Ray, maxToi float64, solid bool) (RayHit, bool) {
	local := Ray{Origin: pose.ApplyInverse(ray.Origin), Dir: pose.Rotation.Conjugate().Rotate(ray.Dir)}

	inside := signedDistance(s, local.Origin) <= 0
	if inside && solid {
		return RayHit{Toi: 0, Point: ray.Origin, Normal: mgl64.Vec3{}}, true
	}

	var (
		toi float64
		ok  bool
	)
	switch s.Kind {
	case ShapeBall:
		toi, ok = raySphere(local, mgl64.Vec3{}, s.Radius, inside)
	case ShapeCuboid:
		toi, ok = rayBox(local, s.HalfExtents, inside)
	case ShapeCapsule:
		toi, ok = rayMarch(s, local, maxToi, inside)
	}
	if !ok || toi > maxToi {
		return RayHit{}, false
	}
	p := local.At(toi)
	n := distanceGradient(s, p)
	return RayHit{
		Toi:    toi,
		Point:  pose.Apply(p),
		Normal: pose.Rotation.Rotate(n),
	}, true
}

func raySphere(r Ray, center mgl64.Vec3, radius float64, inside bool) (float64, bool) {
	m := r.Origin.Sub(center)
	a := r.Dir.Dot(r.Dir)
	b := m.Dot(r.Dir)
	c := m.Dot(m) - radius*radius
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if inside {
		return (-b + sq) / a, true
	}
	t := (-b - sq) / a
	if t < 0 {
		return 0, false
	}
	return t, true
}

// rayBox is the slab test, returning the entry time or, from inside, the
// exit time.
func rayBox(r Ray, h mgl64.Vec3, inside bool) (float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	for i := 0; i < 3; i++ {
		o, d := r.Origin[i], r.Dir[i]
		if math.Abs(d) < epsilon {
			if o < -h[i] || o > h[i] {
				return 0, false
			}
			continue
		}
		t1 := (-h[i] - o) / d
		t2 := (h[i] - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	if inside {
		return tmax, tmax >= 0
	}
	if tmin < 0 {
		return 0, false
	}
	return tmin, true
}

// rayMarch sphere-traces the distance field. From inside it marches
// backwards from the far end of the segment to find the exit.
func rayMarch(s Shape, r Ray, maxToi float64, inside bool) (float64, bool) {
	const (
		steps = 128
		tol   = 1e-6
	)
	speed := r.Dir.Len()
	if inside {
		reach := s.BoundingRadius()*2 + r.Origin.Len()
		far := math.Min(maxToi, reach/speed)
		t := far
		if signedDistance(s, r.At(t)) <= 0 {
			return 0, false
		}
		for i := 0; i < steps; i++ {
			d := signedDistance(s, r.At(t))
			if d <= tol {
				return t, true
			}
			t -= d / speed
			if t < 0 {
				return 0, false
			}
		}
		return 0, false
	}
	t := 0.0
	for i := 0; i < steps; i++ {
		d := signedDistance(s, r.At(t))
		if d <= tol {
			return t, true
		}
		t += d / speed
		if t > maxToi {
			return 0, false
		}
	}
	return 0, false
}
