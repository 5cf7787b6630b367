package ecs

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/sim"
)

// BehaviorKind selects the per-kind tick and collision logic of an entity.
type BehaviorKind uint8

const (
	BehaviorPlain BehaviorKind = iota
	BehaviorTrackingBall
	BehaviorScoringSensor
	BehaviorAnimatedCreature
	BehaviorHand
)

func (k BehaviorKind) String() string {
	switch k {
	case BehaviorPlain:
		return "plain"
	case BehaviorTrackingBall:
		return "ball"
	case BehaviorScoringSensor:
		return "scoring"
	case BehaviorAnimatedCreature:
		return "creature"
	case BehaviorHand:
		return "hand"
	}
	return fmt.Sprintf("behavior(%d)", uint8(k))
}

// Behavior is a tagged union. Only the field matching Kind is set.
type Behavior struct {
	Kind     BehaviorKind
	Scoring  *ScoringSensor
	Creature *AnimatedCreature
	Hand     *Hand
}

func Plain() Behavior        { return Behavior{Kind: BehaviorPlain} }
func TrackingBall() Behavior { return Behavior{Kind: BehaviorTrackingBall} }

// DefaultBasketPoints is awarded for a basket when a rim names no value.
const DefaultBasketPoints = 2

// Scoring returns a scoring behavior whose sensors are found by collider
// name when the entity is registered.
func Scoring(upper, lower string, points int) Behavior {
	return Behavior{Kind: BehaviorScoringSensor, Scoring: &ScoringSensor{
		UpperName: upper,
		LowerName: lower,
		Points:    points,
	}}
}

func Creature(c AnimatedCreature) Behavior {
	return Behavior{Kind: BehaviorAnimatedCreature, Creature: &c}
}

func HandBehavior(history int) Behavior {
	if history <= 0 {
		history = DefaultHandHistory
	}
	return Behavior{Kind: BehaviorHand, Hand: &Hand{size: history}}
}

// ScoringState is the latch of a scoring sensor.
type ScoringState uint8

const (
	ScoringClear ScoringState = iota
	ScoringToppedIn
)

func (s ScoringState) String() string {
	if s == ScoringToppedIn {
		return "topped-in"
	}
	return "clear"
}

// ScoringSensor detects a ball dropping through a ring: the upper sensor
// latches IntersectingTop, the lower sensor then awards Points.
type ScoringSensor struct {
	UpperName string
	LowerName string
	Upper     sim.ColliderHandle
	Lower     sim.ColliderHandle

	IntersectingTop bool
	Points          int
}

func (s *ScoringSensor) State() ScoringState {
	if s.IntersectingTop {
		return ScoringToppedIn
	}
	return ScoringClear
}

func (s *ScoringSensor) resolve(e *Entity) error {
	s.Upper, s.Lower = 0, 0
	for i, d := range e.colliderDescs {
		switch d.Name {
		case s.UpperName:
			s.Upper = e.colliders[i]
		case s.LowerName:
			s.Lower = e.colliders[i]
		}
	}
	if !s.Upper.Valid() {
		return fmt.Errorf("%w: %q on %q", ErrMissingSensor, s.UpperName, e.id)
	}
	if !s.Lower.Valid() {
		return fmt.Errorf("%w: %q on %q", ErrMissingSensor, s.LowerName, e.id)
	}
	return nil
}

func (s *ScoringSensor) handle(e *Entity, a, b sim.ColliderHandle, intersecting bool) {
	if !intersecting {
		return
	}
	switch {
	case a == s.Upper || b == s.Upper:
		s.IntersectingTop = true
	case a == s.Lower || b == s.Lower:
		if s.IntersectingTop {
			s.IntersectingTop = false
			e.world.events.Push(Event{Type: EventScore, Data: ScoreEvent{Entity: e.id, Points: s.Points}})
			e.world.events.Push(Event{Type: EventNotice, Data: NoticeEvent{Entity: e.id, Message: NoticeBucket}})
			e.Debug(NoticeBucket)
			return
		}
		e.world.events.Push(Event{Type: EventNotice, Data: NoticeEvent{Entity: e.id, Message: NoticeNoScore}})
		e.Debug(NoticeNoScore)
	}
}

// AnimatedCreature plays a looping clip and holds a flight level by
// pushing the body up while it sinks below it.
type AnimatedCreature struct {
	Clip        string
	ClipLength  float64
	ClipTime    float64
	FlightLevel float64
	Thrust      float64
	Deviation   float64
}

func (c *AnimatedCreature) tick(e *Entity, dt float64) {
	if c.ClipLength > 0 {
		c.ClipTime = math.Mod(c.ClipTime+dt, c.ClipLength)
	}
	body, ok := e.liveBody()
	if !ok {
		return
	}
	c.Deviation = c.FlightLevel - body.Translation().Y()
	if c.Deviation > 0 && c.Thrust > 0 {
		body.AddForce(mgl64.Vec3{0, c.Thrust * body.Mass(), 0}, true)
	}
}

// DefaultHandHistory is the number of velocity samples a hand averages.
const DefaultHandHistory = 5

// Hand samples its own velocity every tick so a release can carry the
// recent motion.
type Hand struct {
	size    int
	samples []mgl64.Vec3
	next    int
	last    mgl64.Vec3
	hasLast bool
}

func (h *Hand) tick(e *Entity, dt float64) {
	pos := e.Position()
	if h.hasLast && dt > 0 {
		v := pos.Sub(h.last).Mul(1 / dt)
		if len(h.samples) < h.size {
			h.samples = append(h.samples, v)
		} else {
			h.samples[h.next] = v
			h.next = (h.next + 1) % h.size
		}
	}
	h.last = pos
	h.hasLast = true
}

// AverageVelocity is the mean of the recorded samples.
func (h *Hand) AverageVelocity() mgl64.Vec3 {
	if h == nil || len(h.samples) == 0 {
		return mgl64.Vec3{}
	}
	var sum mgl64.Vec3
	for _, v := range h.samples {
		sum = sum.Add(v)
	}
	return sum.Mul(1 / float64(len(h.samples)))
}

func (h *Hand) Samples() int {
	if h == nil {
		return 0
	}
	return len(h.samples)
}
