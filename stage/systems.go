package stage

import (
	"log"

	"github.com/milk9111/hoops/ecs"
)

// PhysicsSystem steps the world and fans out intersection events.
type PhysicsSystem struct{}

func (PhysicsSystem) Update(s *Stage, dt float64) {
	s.steps += s.world.Tick(dt)
}

// EntitySystem ticks every entity after physics so nodes show the
// post-step pose.
type EntitySystem struct{}

func (EntitySystem) Update(s *Stage, dt float64) {
	for _, e := range s.world.Entities() {
		e.Tick(dt)
	}
}

// EventSystem drains the world queue into the scoreboard and panel.
type EventSystem struct{}

func (EventSystem) Update(s *Stage, _ float64) {
	for _, evt := range s.world.Events().Drain() {
		switch data := evt.Data.(type) {
		case ecs.ScoreEvent:
			awarded, err := s.board.Award(data.Points)
			if err != nil {
				log.Printf("Stage: score script: %v", err)
			}
			s.debug("%s scored %d (total %d)", data.Entity, awarded, s.board.Total())
		case ecs.NoticeEvent:
			if data.Message == ecs.NoticeNoScore {
				s.board.Miss()
			}
			s.pushNotice(data.Message)
		case ecs.CollisionEvent:
			if s.spec.Debug {
				log.Printf("Stage: %s/%s intersecting=%t", data.EntityA, data.EntityB, data.Intersecting)
			}
		}
	}
}
