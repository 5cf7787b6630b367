package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/sim"
	"golang.org/x/image/colornames"
)

const debugCircleSegments = 24

var (
	ColliderColor = colornames.Limegreen
	SensorColor   = colornames.Orange
)

// Wireframe builds the debug outline of one collider, placed at the
// descriptor's local pose.
func Wireframe(desc sim.ColliderDesc) (*Node, error) {
	var segs []Segment
	s := desc.Shape
	switch s.Kind {
	case sim.ShapeCuboid:
		segs = boxLines(s.HalfExtents)
	case sim.ShapeBall:
		segs = ballLines(s.Radius)
	case sim.ShapeCapsule:
		segs = capsuleLines(s.HalfHeight, s.Radius)
	default:
		return nil, fmt.Errorf("render: wireframe: %w: %v", sim.ErrUnknownShape, s.Kind)
	}

	name := desc.Name
	if name == "" {
		name = s.Kind.String()
	}
	n := NewNode(name + "-collider")
	n.Color = colorFor(desc)
	n.SetPosition(desc.Translation)
	n.SetRotation(desc.Rotation)
	n.AddLines(segs...)
	return n, nil
}

// WireframeNode adapts Wireframe to ecs.WireframeFunc.
func WireframeNode(desc sim.ColliderDesc) (ecs.SceneNode, error) {
	n, err := Wireframe(desc)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func colorFor(desc sim.ColliderDesc) color.Color {
	if desc.Sensor {
		return SensorColor
	}
	return ColliderColor
}

func boxLines(h mgl64.Vec3) []Segment {
	corner := func(i int) mgl64.Vec3 {
		v := h
		if i&1 != 0 {
			v[0] = -v[0]
		}
		if i&2 != 0 {
			v[1] = -v[1]
		}
		if i&4 != 0 {
			v[2] = -v[2]
		}
		return v
	}
	segs := make([]Segment, 0, 12)
	for i := 0; i < 8; i++ {
		for bit := 1; bit < 8; bit <<= 1 {
			j := i | bit
			if j != i {
				segs = append(segs, Segment{A: corner(i), B: corner(j)})
			}
		}
	}
	return segs
}

// circle returns a ring of radius r around center in the plane spanned by
// u and v.
func circle(center, u, v mgl64.Vec3, r float64, from, to float64) []Segment {
	segs := make([]Segment, 0, debugCircleSegments)
	point := func(t float64) mgl64.Vec3 {
		return center.Add(u.Mul(math.Cos(t) * r)).Add(v.Mul(math.Sin(t) * r))
	}
	step := (to - from) / debugCircleSegments
	prev := point(from)
	for i := 1; i <= debugCircleSegments; i++ {
		next := point(from + step*float64(i))
		segs = append(segs, Segment{A: prev, B: next})
		prev = next
	}
	return segs
}

var (
	axisX = mgl64.Vec3{1, 0, 0}
	axisY = mgl64.Vec3{0, 1, 0}
	axisZ = mgl64.Vec3{0, 0, 1}
)

func ballLines(r float64) []Segment {
	var segs []Segment
	segs = append(segs, circle(mgl64.Vec3{}, axisX, axisY, r, 0, 2*math.Pi)...)
	segs = append(segs, circle(mgl64.Vec3{}, axisY, axisZ, r, 0, 2*math.Pi)...)
	segs = append(segs, circle(mgl64.Vec3{}, axisZ, axisX, r, 0, 2*math.Pi)...)
	return segs
}

// capsuleLines draws the two end rings, four side lines and the two
// hemispherical caps in the XY and ZY planes.
func capsuleLines(halfHeight, r float64) []Segment {
	top := mgl64.Vec3{0, halfHeight, 0}
	bottom := top.Mul(-1)
	var segs []Segment
	segs = append(segs, circle(top, axisX, axisZ, r, 0, 2*math.Pi)...)
	segs = append(segs, circle(bottom, axisX, axisZ, r, 0, 2*math.Pi)...)
	for _, side := range []mgl64.Vec3{axisX, axisX.Mul(-1), axisZ, axisZ.Mul(-1)} {
		off := side.Mul(r)
		segs = append(segs, Segment{A: bottom.Add(off), B: top.Add(off)})
	}
	segs = append(segs, circle(top, axisX, axisY, r, 0, math.Pi)...)
	segs = append(segs, circle(top, axisZ, axisY, r, 0, math.Pi)...)
	segs = append(segs, circle(bottom, axisX, axisY, r, math.Pi, 2*math.Pi)...)
	segs = append(segs, circle(bottom, axisZ, axisY, r, math.Pi, 2*math.Pi)...)
	return segs
}

// Outline returns the solid colliders' wireframes merged into body-local
// space, for use as a node's own geometry.
func Outline(descs []sim.ColliderDesc) ([]Segment, error) {
	var out []Segment
	for _, d := range descs {
		if d.Sensor {
			continue
		}
		n, err := Wireframe(d)
		if err != nil {
			return nil, err
		}
		pose := n.pose()
		for _, s := range n.lines {
			out = append(out, Segment{A: pose.Apply(s.A), B: pose.Apply(s.B)})
		}
	}
	return out, nil
}
