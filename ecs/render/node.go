package render

import (
	"image/color"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/sim"
)

// Segment is a line in a node's local space.
type Segment struct {
	A, B mgl64.Vec3
}

// Node is a headless scene-graph node: a pose, some line geometry and
// children. It implements ecs.SceneNode.
type Node struct {
	Name    string
	Color   color.Color
	Visible bool

	position mgl64.Vec3
	rotation mgl64.Quat
	lines    []Segment
	children []ecs.SceneNode
}

var _ ecs.SceneNode = (*Node)(nil)

func NewNode(name string) *Node {
	return &Node{Name: name, Visible: true, rotation: mgl64.QuatIdent()}
}

func (n *Node) SetPosition(p mgl64.Vec3) { n.position = p }

func (n *Node) SetRotation(q mgl64.Quat) {
	if q.Len() == 0 {
		q = mgl64.QuatIdent()
	}
	n.rotation = q.Normalize()
}

func (n *Node) Position() mgl64.Vec3 { return n.position }
func (n *Node) Rotation() mgl64.Quat { return n.rotation }

func (n *Node) Add(child ecs.SceneNode) {
	if child == nil || slices.Contains(n.children, child) {
		return
	}
	n.children = append(n.children, child)
}

func (n *Node) Remove(child ecs.SceneNode) {
	n.children = slices.DeleteFunc(n.children, func(c ecs.SceneNode) bool { return c == child })
}

func (n *Node) Children() []ecs.SceneNode {
	return append([]ecs.SceneNode(nil), n.children...)
}

// AddLines appends local geometry.
func (n *Node) AddLines(segs ...Segment) {
	n.lines = append(n.lines, segs...)
}

func (n *Node) Lines() []Segment { return n.lines }

func (n *Node) pose() sim.Pose {
	return sim.Pose{Translation: n.position, Rotation: n.rotation}
}

// WorldLine is a segment resolved to world space with the colour of the
// node that owns it.
type WorldLine struct {
	A, B  mgl64.Vec3
	Color color.Color
}

// Flatten walks the visible subtree and returns its geometry in world
// space.
func (n *Node) Flatten() []WorldLine {
	root := sim.Pose{Rotation: mgl64.QuatIdent()}
	return n.flatten(root, color.White, nil)
}

func (n *Node) flatten(parent sim.Pose, inherited color.Color, out []WorldLine) []WorldLine {
	if n == nil || !n.Visible {
		return out
	}
	pose := parent.Compose(n.pose())
	c := inherited
	if n.Color != nil {
		c = n.Color
	}
	for _, s := range n.lines {
		out = append(out, WorldLine{A: pose.Apply(s.A), B: pose.Apply(s.B), Color: c})
	}
	for _, child := range n.children {
		if cn, ok := child.(*Node); ok {
			out = cn.flatten(pose, c, out)
		}
	}
	return out
}
