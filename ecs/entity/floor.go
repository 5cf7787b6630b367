package entity

import (
	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/prefabs"
)

func FloorConfig(spec prefabs.FloorSpec) (ecs.EntityConfig, error) {
	return buildConfig("floor", spec.EntitySpec, ecs.Plain())
}

func NewFloor(w *ecs.PhysicsWorld, spec prefabs.FloorSpec) (*ecs.Entity, error) {
	cfg, err := FloorConfig(spec)
	if err != nil {
		return nil, err
	}
	return Register(w, cfg)
}
