package sim

import (
	"github.com/jakecoffman/cp"
)

// broadPhase keeps one Chipmunk proxy per collider on the XZ footprint
// plane. The proxy is a circle of the collider's bounding radius, so it
// never needs resizing when the body rotates. Candidates from the 2D tree
// are confirmed against the exact 3D AABBs.
type broadPhase struct {
	space   *cp.Space
	proxies map[ColliderHandle]*proxy
}

type proxy struct {
	body  *cp.Body
	shape *cp.Shape
	aabb  AABB
}

func newBroadPhase() *broadPhase {
	space := cp.NewSpace()
	space.SetGravity(cp.Vector{})
	return &broadPhase{
		space:   space,
		proxies: make(map[ColliderHandle]*proxy),
	}
}

func footprint(aabb AABB) cp.Vector {
	c := aabb.Center()
	return cp.Vector{X: c.X(), Y: c.Z()}
}

func (bp *broadPhase) insert(h ColliderHandle, aabb AABB, radius float64) {
	if bp == nil {
		return
	}
	if _, exists := bp.proxies[h]; exists {
		bp.update(h, aabb)
		return
	}
	body := cp.NewKinematicBody()
	body.SetPosition(footprint(aabb))
	bp.space.AddBody(body)
	shape := bp.space.AddShape(cp.NewCircle(body, radius, cp.Vector{}))
	shape.UserData = h
	bp.proxies[h] = &proxy{body: body, shape: shape, aabb: aabb}
}

func (bp *broadPhase) update(h ColliderHandle, aabb AABB) {
	if bp == nil {
		return
	}
	p, ok := bp.proxies[h]
	if !ok {
		return
	}
	p.aabb = aabb
	p.body.SetPosition(footprint(aabb))
	// AddShape refreshes the shape's bounds from the body transform and
	// reinserts its leaf in the tree.
	bp.space.RemoveShape(p.shape)
	bp.space.AddShape(p.shape)
}

func (bp *broadPhase) remove(h ColliderHandle) {
	if bp == nil {
		return
	}
	p, ok := bp.proxies[h]
	if !ok {
		return
	}
	bp.space.RemoveShape(p.shape)
	bp.space.RemoveBody(p.body)
	delete(bp.proxies, h)
}

// query calls fn for every proxy whose 3D AABB overlaps aabb.
func (bp *broadPhase) query(aabb AABB, fn func(ColliderHandle)) {
	if bp == nil || fn == nil {
		return
	}
	bb := cp.BB{L: aabb.Min.X(), B: aabb.Min.Z(), R: aabb.Max.X(), T: aabb.Max.Z()}
	bp.space.BBQuery(bb, cp.SHAPE_FILTER_ALL, func(shape *cp.Shape, data interface{}) {
		h, ok := shape.UserData.(ColliderHandle)
		if !ok {
			return
		}
		p := bp.proxies[h]
		if p == nil || !p.aabb.Intersects(aabb) {
			return
		}
		fn(h)
	}, nil)
}

func (bp *broadPhase) len() int {
	if bp == nil {
		return 0
	}
	return len(bp.proxies)
}
