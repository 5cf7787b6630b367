package stage

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/common"
	"github.com/milk9111/hoops/ecs"
)

var ErrUnknownHand = errors.New("stage: unknown hand")

// TriggerKind is a controller button transition.
type TriggerKind uint8

const (
	SelectStart TriggerKind = iota + 1
	SelectEnd
	SqueezeStart
	SqueezeEnd
)

func (k TriggerKind) String() string {
	switch k {
	case SelectStart:
		return "selectstart"
	case SelectEnd:
		return "selectend"
	case SqueezeStart:
		return "squeezestart"
	case SqueezeEnd:
		return "squeezeend"
	}
	return fmt.Sprintf("trigger(%d)", uint8(k))
}

// TriggerEvent is a button transition on one hand, with the pointing ray
// of that hand at the time.
type TriggerEvent struct {
	Hand      string
	Kind      TriggerKind
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// Key is a keyboard shortcut.
type Key uint8

const (
	KeyUnknown Key = iota
	KeyRose
	KeyDebugPanel
	KeyColliders
)

// ParseKey maps a key name ("R", "D", "C") to its shortcut.
func ParseKey(name string) Key {
	switch name {
	case "R", "r", "KeyR":
		return KeyRose
	case "D", "d", "KeyD":
		return KeyDebugPanel
	case "C", "c", "KeyC":
		return KeyColliders
	}
	return KeyUnknown
}

// HandleKey toggles the rose, the debug panel or collider visibility.
func (s *Stage) HandleKey(k Key) {
	switch k {
	case KeyRose:
		s.rose = !s.rose
	case KeyDebugPanel:
		s.panel.Toggle()
	case KeyColliders:
		s.world.ToggleColliders()
	}
}

// HandlePointer casts a ray and toggles debug on whatever it hits.
func (s *Stage) HandlePointer(origin, dir mgl64.Vec3) (*ecs.Entity, bool) {
	e, ok := s.world.CastRay(origin, dir)
	if !ok {
		return nil, false
	}
	e.ToggleDebug()
	return e, true
}

// HandleTrigger routes controller buttons. The left hand drives the debug
// surfaces; the right hand grabs, throws and points.
func (s *Stage) HandleTrigger(evt TriggerEvent) {
	switch {
	case evt.Hand == common.LeftHandID && evt.Kind == SqueezeStart:
		s.panel.Toggle()
	case evt.Hand == common.LeftHandID && evt.Kind == SelectStart:
		s.world.ToggleColliders()
	case evt.Hand == common.RightHandID && evt.Kind == SqueezeStart:
		s.grab(evt.Hand)
	case evt.Hand == common.RightHandID && evt.Kind == SqueezeEnd:
		s.release(evt.Hand)
	case evt.Hand == common.RightHandID && evt.Kind == SelectStart:
		s.HandlePointer(evt.Origin, evt.Direction)
	}
}

func (s *Stage) grab(handID string) {
	hand, ok := s.hands[handID]
	if !ok || s.ball == nil {
		return
	}
	if err := s.ball.Track(hand); err != nil {
		log.Printf("Stage: grab: %v", err)
	}
}

func (s *Stage) release(handID string) {
	hand, ok := s.hands[handID]
	if !ok || s.ball == nil || s.ball.Tracking() != hand {
		return
	}
	velocity := hand.Behavior().Hand.AverageVelocity().Mul(s.throwScale)
	s.ball.Toss(hand.Position(), velocity)
	s.debug("Velocity+: x=%.3f,y=%.3f,z=%.3f", velocity.X(), velocity.Y(), velocity.Z())
}

// MoveHand sets the pose a hand reaches on the next physics step.
func (s *Stage) MoveHand(id string, position mgl64.Vec3, rotation mgl64.Quat) error {
	hand, ok := s.hands[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownHand, id)
	}
	body, ok := s.world.Sim().Body(hand.Body())
	if !ok {
		return fmt.Errorf("%w: %q has no body", ErrUnknownHand, id)
	}
	body.SetNextKinematicTranslation(position)
	body.SetNextKinematicRotation(rotation)
	return nil
}
