package ecs

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/sim"
)

// SceneNode is the render handle an entity drives.
type SceneNode interface {
	SetPosition(p mgl64.Vec3)
	SetRotation(q mgl64.Quat)
	Add(child SceneNode)
	Remove(child SceneNode)
}

// WireframeFunc builds debug geometry for one collider descriptor, already
// placed at the descriptor's local pose.
type WireframeFunc func(desc sim.ColliderDesc) (SceneNode, error)
