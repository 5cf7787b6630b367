package ecs

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	name     string
	pos      mgl64.Vec3
	rot      mgl64.Quat
	children []SceneNode
}

func (n *fakeNode) SetPosition(p mgl64.Vec3) { n.pos = p }
func (n *fakeNode) SetRotation(q mgl64.Quat) { n.rot = q }
func (n *fakeNode) Add(c SceneNode)          { n.children = append(n.children, c) }
func (n *fakeNode) Remove(c SceneNode) {
	n.children = slices.DeleteFunc(n.children, func(x SceneNode) bool { return x == c })
}

func fakeWireframe(desc sim.ColliderDesc) (SceneNode, error) {
	if err := desc.Shape.Validate(); err != nil {
		return nil, err
	}
	return &fakeNode{name: desc.Shape.Kind.String()}, nil
}

func newTestWorld() *PhysicsWorld {
	return NewPhysicsWorld(DefaultConfig())
}

func mustEntity(t *testing.T, pw *PhysicsWorld, cfg EntityConfig) *Entity {
	t.Helper()
	if cfg.Node == nil {
		cfg.Node = &fakeNode{name: cfg.ID}
	}
	if cfg.Wireframe == nil {
		cfg.Wireframe = fakeWireframe
	}
	e, err := NewEntity(pw, cfg)
	require.NoError(t, err)
	return e
}

func catchInvariant(fn func()) (ie *InvariantError) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok || !errors.As(err, &ie) {
				panic(r)
			}
		}
	}()
	fn()
	return nil
}

func TestRegistrationRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		body     sim.RigidBodyDesc
		collider sim.ColliderDesc
	}{
		{"static_cuboid", sim.NewStatic(), sim.Cuboid(0.5, 0.5, 0.5)},
		{"dynamic_ball", sim.NewDynamic().WithGravityScale(0), sim.Ball(0.3)},
		{"kinematic_capsule", sim.NewKinematic(), sim.Capsule(0.5, 0.2)},
		{"sensor_ball", sim.NewStatic(), sim.Ball(0.3).AsSensor()},
		{"offset_collider", sim.NewStatic(), sim.Cuboid(0.2, 0.2, 0.2).WithTranslation(0, 0.5, 0)},
		{"no_groups", sim.NewStatic(), sim.Ball(0.3).WithGroups(0)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pw := newTestWorld()
			body := c.body
			body.Translation = mgl64.Vec3{0, -0.5, -5}
			e := mustEntity(t, pw, EntityConfig{ID: c.name, Body: body, Colliders: []sim.ColliderDesc{c.collider}})

			target := pw.Sim()
			col, ok := target.Collider(e.Colliders()[0])
			require.True(t, ok)
			dir := col.Translation().Normalize()

			got, ok := pw.CastRay(mgl64.Vec3{}, dir)
			require.True(t, ok)
			assert.Same(t, e, got)
		})
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	pw := newTestWorld()
	first := mustEntity(t, pw, EntityConfig{
		ID:        "ball",
		Body:      sim.NewStatic().WithTranslation(0, 0, -3),
		Colliders: []sim.ColliderDesc{sim.Ball(0.5)},
	})

	_, err := NewEntity(pw, EntityConfig{
		ID:        "ball",
		Body:      sim.NewStatic().WithTranslation(0, 0, 3),
		Colliders: []sim.ColliderDesc{sim.Ball(0.5), sim.Ball(0.2)},
	})
	require.ErrorIs(t, err, ErrDuplicateEntity)

	got, ok := pw.Entity("ball")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, pw.IndexSize())
	assert.Equal(t, 1, pw.Sim().BodyCount())

	hit, ok := pw.CastRay(mgl64.Vec3{}, mgl64.Vec3{0, 0, -1})
	require.True(t, ok)
	assert.Same(t, first, hit)
	_, ok = pw.CastRay(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
	assert.False(t, ok)
}

func TestTrackingOverride(t *testing.T) {
	pw := newTestWorld()
	hand := mustEntity(t, pw, EntityConfig{
		ID:        "hand",
		Body:      sim.NewKinematic().WithTranslation(1, 2, 3),
		Colliders: []sim.ColliderDesc{sim.Ball(0.05)},
	})
	ball := mustEntity(t, pw, EntityConfig{
		ID:        "ball",
		Body:      sim.NewDynamic().WithTranslation(0, 5, 0),
		Colliders: []sim.ColliderDesc{sim.Ball(0.1)},
		Behavior:  TrackingBall(),
	})
	body, _ := pw.Sim().Body(ball.Body())
	body.SetLinvel(mgl64.Vec3{3, 0, 0}, true)

	require.NoError(t, ball.Track(hand))
	for i := 0; i < 3; i++ {
		pw.Tick(1.0 / 60.0)
		want := hand.Position()
		ball.Tick(1.0 / 60.0)
		assert.InDeltaSlice(t, want[:], sliceOf(ball.Position()), 1e-9)
		assert.InDeltaSlice(t, want[:], sliceOf(ball.Node().(*fakeNode).pos), 1e-9)
	}

	require.NoError(t, ball.Track(nil))
	assert.Nil(t, ball.Tracking())
}

func sliceOf(v mgl64.Vec3) []float64 { return v[:] }

func TestTrackingCycleRejected(t *testing.T) {
	pw := newTestWorld()
	mk := func(id string, x float64) *Entity {
		return mustEntity(t, pw, EntityConfig{
			ID:        id,
			Body:      sim.NewKinematic().WithTranslation(x, 0, 0),
			Colliders: []sim.ColliderDesc{sim.Ball(0.1)},
		})
	}
	a, b, c := mk("a", 0), mk("b", 1), mk("c", 2)

	require.ErrorIs(t, a.Track(a), ErrTrackingCycle)
	require.NoError(t, a.Track(b))
	require.NoError(t, b.Track(c))
	require.ErrorIs(t, c.Track(a), ErrTrackingCycle)
	assert.Nil(t, c.Tracking())

	require.NoError(t, a.Track(nil))
	require.NoError(t, c.Track(a))
}

func newRim(t *testing.T, pw *PhysicsWorld) *Entity {
	t.Helper()
	return mustEntity(t, pw, EntityConfig{
		ID:   "rim",
		Body: sim.NewStatic(),
		Colliders: []sim.ColliderDesc{
			sim.Cuboid(0.3, 0.02, 0.3).WithTranslation(0, -0.1, 0).AsSensor().Named("lower"),
			sim.Cuboid(0.3, 0.02, 0.3).WithTranslation(0, 0.1, 0).AsSensor().Named("upper"),
		},
		Behavior: Scoring("upper", "lower", 2),
	})
}

func scores(q *EventQueue) (points int, notices []string) {
	for _, ev := range q.Drain() {
		switch d := ev.Data.(type) {
		case ScoreEvent:
			points += d.Points
		case NoticeEvent:
			notices = append(notices, d.Message)
		}
	}
	return points, notices
}

func TestScoringStateMachine(t *testing.T) {
	pw := newTestWorld()
	rim := newRim(t, pw)
	s := rim.Behavior().Scoring
	require.NotNil(t, s)
	// Named sensors resolve regardless of collider order.
	assert.Equal(t, rim.Colliders()[1], s.Upper)
	assert.Equal(t, rim.Colliders()[0], s.Lower)

	other := sim.ColliderHandle(999)

	rim.handleCollision(s.Upper, other, true)
	assert.Equal(t, ScoringToppedIn, s.State())
	points, _ := scores(pw.Events())
	assert.Equal(t, 0, points)

	rim.handleCollision(s.Upper, other, false)
	assert.Equal(t, ScoringToppedIn, s.State(), "upper exit is ignored")

	rim.handleCollision(other, s.Lower, true)
	assert.Equal(t, ScoringClear, s.State())
	points, notices := scores(pw.Events())
	assert.Equal(t, 2, points)
	assert.Equal(t, []string{NoticeBucket}, notices)

	rim.handleCollision(s.Lower, other, true)
	points, notices = scores(pw.Events())
	assert.Equal(t, 0, points)
	assert.Equal(t, []string{NoticeNoScore}, notices)
	assert.Equal(t, ScoringClear, s.State())

	rim.handleCollision(other, sim.ColliderHandle(1234), true)
	assert.Equal(t, 0, pw.Events().Len())
	assert.Equal(t, []string{NoticeBucket, NoticeNoScore}, rim.DebugLines())
}

func TestLowerOnlyEntryDoesNotScore(t *testing.T) {
	pw := newTestWorld()
	rim := newRim(t, pw)
	s := rim.Behavior().Scoring

	rim.handleCollision(s.Lower, sim.ColliderHandle(7), true)
	rim.handleCollision(s.Lower, sim.ColliderHandle(7), false)
	points, notices := scores(pw.Events())
	assert.Equal(t, 0, points)
	assert.Equal(t, []string{NoticeNoScore}, notices)
}

func TestBallDroppingThroughRimScores(t *testing.T) {
	pw := newTestWorld()
	newRim(t, pw)
	mustEntity(t, pw, EntityConfig{
		ID:        "ball",
		Body:      sim.NewDynamic().WithTranslation(0, 1, 0),
		Colliders: []sim.ColliderDesc{sim.Ball(0.1)},
		Behavior:  TrackingBall(),
	})

	for i := 0; i < 60; i++ {
		pw.Tick(1.0 / 60.0)
	}
	var points int
	var collisions int
	for _, ev := range pw.Events().Drain() {
		switch d := ev.Data.(type) {
		case ScoreEvent:
			points += d.Points
			assert.Equal(t, "rim", d.Entity)
		case CollisionEvent:
			collisions++
			assert.ElementsMatch(t, []string{"ball", "rim"}, []string{d.EntityA, d.EntityB})
		}
	}
	assert.Equal(t, 2, points)
	assert.Equal(t, 4, collisions, "enter and leave both sensors")
}

func TestMissingSensorName(t *testing.T) {
	pw := newTestWorld()
	_, err := NewEntity(pw, EntityConfig{
		ID:        "rim",
		Body:      sim.NewStatic(),
		Colliders: []sim.ColliderDesc{sim.Ball(0.1).AsSensor().Named("upper")},
		Behavior:  Scoring("upper", "lower", 2),
	})
	require.ErrorIs(t, err, ErrMissingSensor)
	_, ok := pw.Entity("rim")
	assert.False(t, ok)
	assert.Equal(t, 0, pw.IndexSize())
}

func TestToggleCollidersIsIdempotent(t *testing.T) {
	pw := newTestWorld()
	var ents []*Entity
	for i := 0; i < 3; i++ {
		ents = append(ents, mustEntity(t, pw, EntityConfig{
			ID:        fmt.Sprintf("e%d", i),
			Body:      sim.NewStatic().WithTranslation(float64(i)*3, 0, 0),
			Colliders: []sim.ColliderDesc{sim.Cuboid(0.5, 0.5, 0.5), sim.Ball(0.2)},
		}))
	}

	pw.ToggleColliders()
	assert.True(t, pw.CollidersVisible())
	for _, e := range ents {
		assert.True(t, e.CollidersShown())
		assert.Len(t, e.Node().(*fakeNode).children, 2)
	}

	pw.ToggleColliders()
	assert.False(t, pw.CollidersVisible())
	for _, e := range ents {
		assert.False(t, e.CollidersShown())
		assert.Empty(t, e.Node().(*fakeNode).children)
	}
}

func TestToggleDebug(t *testing.T) {
	pw := newTestWorld()
	e := mustEntity(t, pw, EntityConfig{
		ID:        "box",
		Body:      sim.NewStatic(),
		Colliders: []sim.ColliderDesc{sim.Cuboid(0.5, 0.5, 0.5)},
	})
	e.ToggleDebug()
	assert.True(t, e.Debugging())
	assert.True(t, e.CollidersShown())
	e.ToggleDebug()
	assert.False(t, e.Debugging())
	assert.Empty(t, e.Node().(*fakeNode).children)
}

func TestRayMissIsNotAnError(t *testing.T) {
	pw := newTestWorld()
	mustEntity(t, pw, EntityConfig{
		ID:        "box",
		Body:      sim.NewStatic().WithTranslation(0, 0, -5),
		Colliders: []sim.ColliderDesc{sim.Cuboid(0.5, 0.5, 0.5)},
	})

	var (
		got *Entity
		ok  bool
	)
	assert.NotPanics(t, func() {
		got, ok = pw.CastRay(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
	})
	assert.False(t, ok)
	assert.Nil(t, got)

	_, ok = pw.CastRay(mgl64.Vec3{}, mgl64.Vec3{0, 0, -1}, WithMaxDistance(2))
	assert.False(t, ok, "hit beyond max distance")
}

func TestDanglingIndexPanics(t *testing.T) {
	pw := newTestWorld()
	e := mustEntity(t, pw, EntityConfig{
		ID:        "box",
		Body:      sim.NewStatic().WithTranslation(0, 0, -5),
		Colliders: []sim.ColliderDesc{sim.Cuboid(0.5, 0.5, 0.5)},
	})
	delete(pw.entities, e.ID())

	require.Error(t, pw.IndexConsistent())
	ie := catchInvariant(func() { pw.CastRay(mgl64.Vec3{}, mgl64.Vec3{0, 0, -1}) })
	require.NotNil(t, ie)
	assert.Equal(t, "box", ie.EntityID)
	assert.Equal(t, e.Colliders()[0], ie.Collider)
}

func TestIndexConsistencyRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	pw := newTestWorld()
	live := map[string]bool{}

	for step := 0; step < 300; step++ {
		id := fmt.Sprintf("e%d", rng.IntN(40))
		switch {
		case live[id] && rng.IntN(3) == 0:
			require.NoError(t, pw.Untrack(id))
			delete(live, id)
		default:
			n := 1 + rng.IntN(4)
			cols := make([]sim.ColliderDesc, n)
			for i := range cols {
				cols[i] = sim.Ball(0.1 + rng.Float64()).WithTranslation(0, float64(i), 0)
			}
			_, err := NewEntity(pw, EntityConfig{
				ID:        id,
				Body:      sim.NewStatic().WithTranslation(rng.Float64()*50, 0, rng.Float64()*50),
				Colliders: cols,
			})
			if live[id] {
				require.ErrorIs(t, err, ErrDuplicateEntity)
			} else {
				require.NoError(t, err)
				live[id] = true
			}
		}
		require.NoError(t, pw.IndexConsistent(), "step %d", step)
	}
	assert.Len(t, pw.Entities(), len(live))
}

func TestUntrack(t *testing.T) {
	pw := newTestWorld()
	rim := newRim(t, pw)
	ball := mustEntity(t, pw, EntityConfig{
		ID:        "ball",
		Body:      sim.NewDynamic().WithGravityScale(0).WithTranslation(0, 0.1, 0),
		Colliders: []sim.ColliderDesc{sim.Ball(0.1)},
	})
	pw.Tick(1.0 / 60.0)
	assert.Equal(t, ScoringToppedIn, rim.Behavior().Scoring.State())
	pw.Events().Drain()

	require.NoError(t, pw.Untrack("ball"))
	assert.True(t, ball.Removed())
	assert.Equal(t, mgl64.Vec3{}, ball.Position())
	require.ErrorIs(t, pw.Untrack("ball"), ErrNotTracked)
	require.NoError(t, pw.IndexConsistent())

	pw.Tick(1.0 / 60.0)
	evs := pw.Events().Drain()
	require.Len(t, evs, 1)
	ce := evs[0].Data.(CollisionEvent)
	assert.False(t, ce.Intersecting)
	assert.ElementsMatch(t, []string{"", "rim"}, []string{ce.EntityA, ce.EntityB})

	again := mustEntity(t, pw, EntityConfig{
		ID:        "ball",
		Body:      sim.NewStatic().WithTranslation(0, 0, -4),
		Colliders: []sim.ColliderDesc{sim.Ball(0.1)},
	})
	assert.NotEqual(t, ball.Body(), again.Body())
}

func TestUntrackFailureKeepsRecord(t *testing.T) {
	pw := newTestWorld()
	ball := mustEntity(t, pw, EntityConfig{
		ID:        "ball",
		Body:      sim.NewStatic(),
		Colliders: []sim.ColliderDesc{sim.Ball(0.1)},
	})
	require.NoError(t, pw.Sim().RemoveRigidBody(ball.Body()))

	require.ErrorIs(t, pw.Untrack("ball"), sim.ErrStaleHandle)
	assert.False(t, ball.Removed())
	got, ok := pw.Entity("ball")
	require.True(t, ok)
	assert.Same(t, ball, got)
	require.NoError(t, pw.IndexConsistent())
}

func TestFixedStepAccumulator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepMode = StepFixed
	cfg.FixedStep = 0.01
	cfg.MaxSteps = 3
	pw := NewPhysicsWorld(cfg)

	assert.Equal(t, 2, pw.Tick(0.025))
	assert.InDelta(t, 0.005, pw.Accumulated(), 1e-9)
	assert.Equal(t, 1, pw.Tick(0.006))
	assert.Equal(t, 3, pw.Tick(0.5))
	assert.Less(t, pw.Accumulated(), 0.01)
	assert.Equal(t, uint64(6), pw.Sim().Steps())
	assert.Equal(t, 0, pw.Tick(0))
}

func TestVariableStepUsesFrameDelta(t *testing.T) {
	pw := newTestWorld()
	assert.Equal(t, 1, pw.Tick(0.05))
	assert.Equal(t, 0.05, pw.Sim().Timestep())
}

func TestWireframeErrorFailsConstruction(t *testing.T) {
	pw := newTestWorld()
	_, err := NewEntity(pw, EntityConfig{
		ID:        "bad",
		Body:      sim.NewStatic(),
		Colliders: []sim.ColliderDesc{{Shape: sim.Shape{Kind: 99}}},
		Wireframe: fakeWireframe,
	})
	require.ErrorIs(t, err, sim.ErrUnknownShape)
	_, ok := pw.Entity("bad")
	assert.False(t, ok)
	assert.Equal(t, 0, pw.Sim().BodyCount())
}

func TestHandAverageVelocity(t *testing.T) {
	pw := newTestWorld()
	hand := mustEntity(t, pw, EntityConfig{
		ID:        "rcontroller",
		Body:      sim.NewKinematic(),
		Colliders: []sim.ColliderDesc{sim.Ball(0.05)},
		Behavior:  HandBehavior(4),
	})
	body, _ := pw.Sim().Body(hand.Body())
	for i := 1; i <= 8; i++ {
		body.SetNextKinematicTranslation(mgl64.Vec3{0.1 * float64(i), 0, 0})
		pw.Tick(0.1)
		hand.Tick(0.1)
	}
	h := hand.Behavior().Hand
	assert.Equal(t, 4, h.Samples())
	avg := h.AverageVelocity()
	assert.InDeltaSlice(t, []float64{1, 0, 0}, avg[:], 1e-9)
}

func TestCreatureHoversAndAnimates(t *testing.T) {
	pw := newTestWorld()
	bird := mustEntity(t, pw, EntityConfig{
		ID:        "parrot",
		Body:      sim.NewDynamic().WithTranslation(0, 1, 0),
		Colliders: []sim.ColliderDesc{sim.Cuboid(0.1, 0.1, 0.1).WithDensity(2)},
		Behavior: Creature(AnimatedCreature{
			Clip:        "fly",
			ClipLength:  1,
			FlightLevel: 1,
			Thrust:      12,
		}),
	})
	for i := 0; i < 90; i++ {
		pw.Tick(1.0 / 60.0)
		bird.Tick(1.0 / 60.0)
	}
	c := bird.Behavior().Creature
	assert.InDelta(t, 0.5, c.ClipTime, 1e-6)
	assert.InDelta(t, 1, bird.Position().Y(), 0.5, "thrust keeps the bird near its flight level")
}

func TestTossReleasesTracking(t *testing.T) {
	pw := newTestWorld()
	hand := mustEntity(t, pw, EntityConfig{
		ID:        "hand",
		Body:      sim.NewKinematic().WithTranslation(0, 1, 0),
		Colliders: []sim.ColliderDesc{sim.Ball(0.05).WithGroups(0)},
	})
	ball := mustEntity(t, pw, EntityConfig{
		ID:        "ball",
		Body:      sim.NewDynamic(),
		Colliders: []sim.ColliderDesc{sim.Ball(0.1)},
	})
	require.NoError(t, ball.Track(hand))
	pw.Tick(1.0 / 60.0)
	ball.Tick(1.0 / 60.0)

	ball.Toss(hand.Position(), mgl64.Vec3{0, 2, -1})
	assert.Nil(t, ball.Tracking())
	assert.Equal(t, mgl64.Vec3{0, 2, -1}, ball.Linvel())

	pw.Tick(1.0 / 60.0)
	assert.Less(t, ball.Position().Z(), 0.0)
}

func TestDebugLinesAreBounded(t *testing.T) {
	pw := newTestWorld()
	e := mustEntity(t, pw, EntityConfig{
		ID:        "box",
		Body:      sim.NewStatic(),
		Colliders: []sim.ColliderDesc{sim.Cuboid(0.5, 0.5, 0.5)},
	})
	for i := 0; i < 12; i++ {
		e.Debug(fmt.Sprintf("line %d", i))
	}
	lines := e.DebugLines()
	require.Len(t, lines, debugLineLimit)
	assert.Equal(t, "line 4", lines[0])
	assert.Equal(t, "line 11", lines[len(lines)-1])
}
