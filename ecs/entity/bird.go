package entity

import (
	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/prefabs"
)

// BirdConfig holds the bird at the height it was placed at.
func BirdConfig(spec prefabs.BirdSpec) (ecs.EntityConfig, error) {
	return buildConfig("bird", spec.EntitySpec, ecs.Creature(ecs.AnimatedCreature{
		Clip:        spec.Clip,
		ClipLength:  spec.ClipLength,
		FlightLevel: spec.Transform.Position.Y,
		Thrust:      spec.Thrust,
	}))
}

func NewBirds(w *ecs.PhysicsWorld, spec prefabs.BirdsSpec) ([]*ecs.Entity, error) {
	out := make([]*ecs.Entity, 0, len(spec.Birds))
	for _, b := range spec.Birds {
		cfg, err := BirdConfig(b)
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
