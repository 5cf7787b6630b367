package entity

import (
	"fmt"

	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/ecs/render"
	"github.com/milk9111/hoops/prefabs"
	"github.com/milk9111/hoops/sim"
)

// buildConfig turns a prefab into an entity config with a render node
// outlining its solid colliders.
func buildConfig(kind string, spec prefabs.EntitySpec, behavior ecs.Behavior) (ecs.EntityConfig, error) {
	if spec.ID == "" {
		return ecs.EntityConfig{}, fmt.Errorf("%s: prefab has no id", kind)
	}
	body, err := spec.BodyDesc()
	if err != nil {
		return ecs.EntityConfig{}, fmt.Errorf("%s: %w", kind, err)
	}
	colliders, err := spec.ColliderDescs()
	if err != nil {
		return ecs.EntityConfig{}, fmt.Errorf("%s: %w", kind, err)
	}
	return nodeConfig(kind, spec, body, colliders, behavior)
}

func nodeConfig(kind string, spec prefabs.EntitySpec, body sim.RigidBodyDesc, colliders []sim.ColliderDesc, behavior ecs.Behavior) (ecs.EntityConfig, error) {
	node := render.NewNode(spec.ID)
	if spec.Color != nil {
		node.Color = spec.Color.Color
	}
	outline, err := render.Outline(colliders)
	if err != nil {
		return ecs.EntityConfig{}, fmt.Errorf("%s: outline: %w", kind, err)
	}
	node.AddLines(outline...)

	return ecs.EntityConfig{
		ID:        spec.ID,
		Node:      node,
		Body:      body,
		Colliders: colliders,
		Behavior:  behavior,
		Wireframe: render.WireframeNode,
	}, nil
}

// Register creates the entity described by cfg in w.
func Register(w *ecs.PhysicsWorld, cfg ecs.EntityConfig) (*ecs.Entity, error) {
	e, err := ecs.NewEntity(w, cfg)
	if err != nil {
		return nil, fmt.Errorf("entity %q: %w", cfg.ID, err)
	}
	return e, nil
}
