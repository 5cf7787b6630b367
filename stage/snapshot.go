package stage

// EntitySnapshot is the pose of one entity at the end of a frame.
type EntitySnapshot struct {
	ID       string     `json:"id"`
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
	Sleeping bool       `json:"sleeping"`
	Debug    bool       `json:"debug,omitempty"`
}

// Snapshot is the frame state sent to spectators.
type Snapshot struct {
	Frame    uint64           `json:"frame"`
	Score    int              `json:"score"`
	Streak   int              `json:"streak"`
	Notices  []string         `json:"notices,omitempty"`
	Entities []EntitySnapshot `json:"entities"`
}

func (s *Stage) Snapshot() Snapshot {
	snap := Snapshot{
		Frame:   s.frame,
		Score:   s.board.Total(),
		Streak:  s.board.Streak(),
		Notices: s.Notices(),
	}
	for _, e := range s.world.Entities() {
		p, q := e.Position(), e.Rotation()
		es := EntitySnapshot{
			ID:       e.ID(),
			Position: [3]float64{p.X(), p.Y(), p.Z()},
			Rotation: [4]float64{q.V.X(), q.V.Y(), q.V.Z(), q.W},
			Debug:    e.Debugging(),
		}
		if body, ok := s.world.Sim().Body(e.Body()); ok {
			es.Sleeping = body.IsSleeping()
		}
		snap.Entities = append(snap.Entities, es)
	}
	return snap
}
