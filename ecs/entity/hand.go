package entity

import (
	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/prefabs"
)

func HandConfig(spec prefabs.HandSpec) (ecs.EntityConfig, error) {
	history := spec.History
	if history <= 0 {
		history = ecs.DefaultHandHistory
	}
	return buildConfig("hand", spec.EntitySpec, ecs.HandBehavior(history))
}

// NewHands registers every hand in the spec, stopping at the first failure.
func NewHands(w *ecs.PhysicsWorld, spec prefabs.HandsSpec) ([]*ecs.Entity, error) {
	out := make([]*ecs.Entity, 0, len(spec.Hands))
	for _, h := range spec.Hands {
		cfg, err := HandConfig(h)
		if err != nil {
			return nil, err
		}
		e, err := Register(w, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
