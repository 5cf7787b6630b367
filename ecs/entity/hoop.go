package entity

import (
	"fmt"

	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/prefabs"
)

func HoopConfig(spec prefabs.HoopSpec) (ecs.EntityConfig, error) {
	return buildConfig("hoop", spec.EntitySpec, ecs.Plain())
}

func NewHoop(w *ecs.PhysicsWorld, spec prefabs.HoopSpec) (*ecs.Entity, error) {
	cfg, err := HoopConfig(spec)
	if err != nil {
		return nil, err
	}
	return Register(w, cfg)
}

// RimConfig builds the scoring rim: its two named sensors plus the ring of
// small balls the ball bounces off.
func RimConfig(spec prefabs.RimSpec) (ecs.EntityConfig, error) {
	if spec.Upper == "" || spec.Lower == "" {
		return ecs.EntityConfig{}, fmt.Errorf("rim: upper and lower sensor names are required")
	}
	body, err := spec.BodyDesc()
	if err != nil {
		return ecs.EntityConfig{}, fmt.Errorf("rim: %w", err)
	}
	colliders, err := spec.ColliderDescs()
	if err != nil {
		return ecs.EntityConfig{}, fmt.Errorf("rim: %w", err)
	}
	points := spec.Points
	if points == 0 {
		points = ecs.DefaultBasketPoints
	}
	return nodeConfig("rim", spec.EntitySpec, body, colliders, ecs.Scoring(spec.Upper, spec.Lower, points))
}

func NewRim(w *ecs.PhysicsWorld, spec prefabs.RimSpec) (*ecs.Entity, error) {
	cfg, err := RimConfig(spec)
	if err != nil {
		return nil, err
	}
	return Register(w, cfg)
}
