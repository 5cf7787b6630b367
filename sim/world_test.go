package sim

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	a, b         ColliderHandle
	intersecting bool
}

func drain(w *World) []recordedEvent {
	var out []recordedEvent
	w.DrainIntersectionEvents(func(a, b ColliderHandle, intersecting bool) {
		out = append(out, recordedEvent{a: a, b: b, intersecting: intersecting})
	})
	return out
}

func addBody(t *testing.T, w *World, desc RigidBodyDesc, colliders ...ColliderDesc) (BodyHandle, []ColliderHandle) {
	t.Helper()
	bh := w.CreateRigidBody(desc)
	var chs []ColliderHandle
	for _, c := range colliders {
		ch, err := w.CreateCollider(c, bh)
		require.NoError(t, err)
		chs = append(chs, ch)
	}
	return bh, chs
}

func TestCreateColliderErrors(t *testing.T) {
	w := NewWorld(DefaultConfig())
	bh := w.CreateRigidBody(NewDynamic())

	cases := []struct {
		name   string
		desc   ColliderDesc
		parent BodyHandle
		want   error
	}{
		{"unknown_kind", ColliderDesc{Shape: Shape{Kind: 42}}, bh, ErrUnknownShape},
		{"zero_radius", Ball(0), bh, ErrInvalidShape},
		{"missing_parent", Ball(1), BodyHandle(makeHandle(9, 1)), ErrNoParentBody},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := w.CreateCollider(c.desc, c.parent)
			require.ErrorIs(t, err, c.want)
		})
	}
	assert.Equal(t, 0, w.ColliderCount())
}

func TestRemovedBodyHandleGoesStale(t *testing.T) {
	w := NewWorld(DefaultConfig())
	bh, chs := addBody(t, w, NewDynamic(), Ball(1))

	require.NoError(t, w.RemoveRigidBody(bh))
	_, ok := w.Body(bh)
	assert.False(t, ok)
	_, ok = w.Collider(chs[0])
	assert.False(t, ok)
	require.ErrorIs(t, w.RemoveRigidBody(bh), ErrStaleHandle)

	again := w.CreateRigidBody(NewDynamic())
	assert.NotEqual(t, bh, again, "reused slot must carry a new generation")
	_, ok = w.Body(bh)
	assert.False(t, ok)
	_, ok = w.Body(again)
	assert.True(t, ok)
}

func TestMassFromColliders(t *testing.T) {
	w := NewWorld(DefaultConfig())
	bh, _ := addBody(t, w, NewDynamic(), Ball(1), Ball(1).AsSensor())
	b, _ := w.Body(bh)
	assert.InDelta(t, 4.0/3.0*math.Pi, b.Mass(), 1e-9)

	empty := w.CreateRigidBody(NewDynamic())
	eb, _ := w.Body(empty)
	assert.Equal(t, 1.0, eb.Mass())

	static, _ := addBody(t, w, NewStatic(), Cuboid(1, 1, 1))
	sb, _ := w.Body(static)
	assert.Equal(t, 0.0, sb.Mass())
}

func TestFreeFallAndDamping(t *testing.T) {
	w := NewWorld(DefaultConfig())
	dt := w.Timestep()

	fall, _ := addBody(t, w, NewDynamic().WithTranslation(0, 10, 0), Ball(0.5))
	damped, _ := addBody(t, w,
		NewDynamic().WithTranslation(100, 0, 0).WithGravityScale(0).WithLinearDamping(0.5),
		Ball(0.5))
	db, _ := w.Body(damped)
	db.SetLinvel(mgl64.Vec3{4, 0, 0}, true)

	w.Step()

	fb, _ := w.Body(fall)
	assert.InDelta(t, -9.81*dt, fb.Linvel().Y(), 1e-9)
	assert.InDelta(t, 10-9.81*dt*dt, fb.Translation().Y(), 1e-9)
	assert.InDelta(t, 4/(1+dt*0.5), db.Linvel().X(), 1e-9)
	assert.Equal(t, uint64(1), w.Steps())
}

func TestBallComesToRestOnFloor(t *testing.T) {
	w := NewWorld(DefaultConfig())
	addBody(t, w, NewStatic().WithTranslation(0, -0.5, 0), Cuboid(5, 0.5, 5))
	bh, _ := addBody(t, w, NewDynamic().WithTranslation(0, 2, 0), Ball(0.5))

	for i := 0; i < 180; i++ {
		w.Step()
	}
	b, _ := w.Body(bh)
	assert.InDelta(t, 0.5, b.Translation().Y(), 0.05)
	assert.InDelta(t, 0, b.Linvel().Len(), 0.05)

	for i := 0; i < 180; i++ {
		w.Step()
	}
	assert.True(t, b.IsSleeping(), "resting ball should fall asleep")
	assert.InDelta(t, 0.5, b.Translation().Y(), 0.05)
}

func TestCCDStopsFastBall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SleepDelay = 0
	w := NewWorld(cfg)
	addBody(t, w, NewStatic(), Cuboid(5, 0.05, 5))
	bh, _ := addBody(t, w, NewDynamic().WithTranslation(0, 1, 0).WithCCD(true), Ball(0.1))
	b, _ := w.Body(bh)
	b.SetLinvel(mgl64.Vec3{0, -20, 0}, true)

	assert.Greater(t, w.substeps(w.Timestep()), 1)
	for i := 0; i < 60; i++ {
		w.Step()
	}
	assert.Greater(t, b.Translation().Y(), 0.0)
}

func TestSensorEventsBeginAndEnd(t *testing.T) {
	w := NewWorld(DefaultConfig())
	_, sensor := addBody(t, w, NewStatic(), Cuboid(1, 1, 1).AsSensor())
	_, ball := addBody(t, w, NewDynamic().WithTranslation(0, 3, 0), Ball(0.2))

	var events []recordedEvent
	for i := 0; i < 120; i++ {
		w.Step()
		events = append(events, drain(w)...)
	}

	key := makePairKey(sensor[0], ball[0])
	require.Len(t, events, 2)
	assert.Equal(t, recordedEvent{a: key.a, b: key.b, intersecting: true}, events[0])
	assert.Equal(t, recordedEvent{a: key.a, b: key.b, intersecting: false}, events[1])
	assert.Empty(t, w.IntersectingPairs())
}

func TestSensorEventFiltering(t *testing.T) {
	cases := []struct {
		name  string
		build func(t *testing.T, w *World)
	}{
		{
			name: "groups_do_not_match",
			build: func(t *testing.T, w *World) {
				addBody(t, w, NewStatic(), Cuboid(1, 1, 1).AsSensor().WithGroups(0x0001_0001))
				addBody(t, w, NewDynamic().WithGravityScale(0), Ball(0.5).WithGroups(0x0002_0002))
			},
		},
		{
			name: "same_body",
			build: func(t *testing.T, w *World) {
				addBody(t, w, NewDynamic().WithGravityScale(0), Ball(0.5), Cuboid(1, 1, 1).AsSensor())
			},
		},
		{
			name: "static_static",
			build: func(t *testing.T, w *World) {
				addBody(t, w, NewStatic(), Cuboid(1, 1, 1).AsSensor())
				addBody(t, w, NewStatic(), Ball(0.5))
			},
		},
		{
			name: "zero_groups",
			build: func(t *testing.T, w *World) {
				addBody(t, w, NewStatic(), Cuboid(1, 1, 1).AsSensor())
				addBody(t, w, NewDynamic().WithGravityScale(0), Ball(0.5).WithGroups(0))
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := NewWorld(DefaultConfig())
			c.build(t, w)
			w.Step()
			assert.Empty(t, drain(w))
		})
	}
}

func TestSensorSensorPairsReport(t *testing.T) {
	w := NewWorld(DefaultConfig())
	addBody(t, w, NewStatic(), Cuboid(1, 1, 1).AsSensor())
	addBody(t, w, NewKinematic(), Ball(0.5).AsSensor())
	w.Step()
	events := drain(w)
	require.Len(t, events, 1)
	assert.True(t, events[0].intersecting)
}

func TestMovedCollidersMeet(t *testing.T) {
	w := NewWorld(DefaultConfig())
	left, ls := addBody(t, w, NewKinematic(), Ball(0.5).AsSensor())
	right, rs := addBody(t, w, NewKinematic().WithTranslation(10, 0, 0), Ball(0.5))
	w.Step()
	require.Empty(t, drain(w))

	for _, h := range []BodyHandle{left, right} {
		b, ok := w.Body(h)
		require.True(t, ok)
		b.SetNextKinematicTranslation(mgl64.Vec3{5, 0, 0})
	}
	var events []recordedEvent
	for i := 0; i < 3; i++ {
		w.Step()
		events = append(events, drain(w)...)
	}

	key := makePairKey(ls[0], rs[0])
	require.Len(t, events, 1)
	assert.Equal(t, recordedEvent{a: key.a, b: key.b, intersecting: true}, events[0])
	assert.Equal(t, [][2]ColliderHandle{{key.a, key.b}}, w.IntersectingPairs())
}

func TestRemoveBodyEndsIntersections(t *testing.T) {
	w := NewWorld(DefaultConfig())
	addBody(t, w, NewStatic(), Cuboid(1, 1, 1).AsSensor())
	bh, _ := addBody(t, w, NewDynamic().WithGravityScale(0), Ball(0.5))

	w.Step()
	require.Len(t, drain(w), 1)
	require.Len(t, w.IntersectingPairs(), 1)

	require.NoError(t, w.RemoveRigidBody(bh))
	events := drain(w)
	require.Len(t, events, 1)
	assert.False(t, events[0].intersecting)
	assert.Empty(t, w.IntersectingPairs())
}

func TestKinematicTargetIsReached(t *testing.T) {
	w := NewWorld(DefaultConfig())
	bh, _ := addBody(t, w, NewKinematic(), Capsule(0.1, 0.05))
	b, _ := w.Body(bh)

	b.SetNextKinematicTranslation(mgl64.Vec3{1, 2, 3})
	w.Step()
	got := b.Translation()
	assert.InDeltaSlice(t, []float64{1, 2, 3}, got[:], 1e-9)
	assert.InDelta(t, 1/w.Timestep(), b.Linvel().X(), 1e-6)

	w.Step()
	assert.Equal(t, mgl64.Vec3{}, b.Linvel(), "no target means no motion")
}

func TestKinematicPushesDynamic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gravity = mgl64.Vec3{}
	w := NewWorld(cfg)
	kh, _ := addBody(t, w, NewKinematic().WithTranslation(-1.2, 0, 0), Cuboid(0.5, 0.5, 0.5))
	dh, _ := addBody(t, w, NewDynamic(), Ball(0.5))
	k, _ := w.Body(kh)
	d, _ := w.Body(dh)

	for i := 1; i <= 30; i++ {
		k.SetNextKinematicTranslation(mgl64.Vec3{-1.2 + 0.02*float64(i), 0, 0})
		w.Step()
	}
	assert.Greater(t, d.Translation().X(), 0.0)
}

func TestSleepingBodyIgnoresGravity(t *testing.T) {
	w := NewWorld(DefaultConfig())
	bh, _ := addBody(t, w, NewDynamic().WithTranslation(0, 5, 0), Ball(0.5))
	b, _ := w.Body(bh)
	b.Sleep()
	for i := 0; i < 10; i++ {
		w.Step()
	}
	assert.Equal(t, 5.0, b.Translation().Y())
	b.WakeUp()
	w.Step()
	assert.Less(t, b.Translation().Y(), 5.0)
}

func TestCombineRules(t *testing.T) {
	cases := []struct {
		name   string
		a      float64
		ra     CombineRule
		b      float64
		rb     CombineRule
		expect float64
	}{
		{"average", 0.2, CombineAverage, 0.4, CombineAverage, 0.3},
		{"min_beats_average", 0.2, CombineAverage, 0.4, CombineMin, 0.2},
		{"max_beats_min", 1.5, CombineMin, 0.7, CombineMax, 1.5},
		{"multiply", 0.5, CombineMultiply, 0.5, CombineAverage, 0.25},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.expect, combine(c.a, c.ra, c.b, c.rb), 1e-12)
			assert.InDelta(t, c.expect, combine(c.b, c.rb, c.a, c.ra), 1e-12)
		})
	}
}
