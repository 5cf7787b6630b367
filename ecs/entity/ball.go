package entity

import (
	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/prefabs"
)

func BallConfig(spec prefabs.BallSpec) (ecs.EntityConfig, error) {
	return buildConfig("ball", spec.EntitySpec, ecs.TrackingBall())
}

// NewBall registers the throwable ball.
func NewBall(w *ecs.PhysicsWorld, spec prefabs.BallSpec) (*ecs.Entity, error) {
	cfg, err := BallConfig(spec)
	if err != nil {
		return nil, err
	}
	return Register(w, cfg)
}
