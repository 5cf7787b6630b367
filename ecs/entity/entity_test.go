package entity

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/ecs/render"
	"github.com/milk9111/hoops/prefabs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSpec[T any](t *testing.T, name string) T {
	t.Helper()
	spec, err := prefabs.LoadSpec[T](name)
	require.NoError(t, err)
	return spec
}

type court struct {
	world *ecs.PhysicsWorld
	hoop  *ecs.Entity
	rim   *ecs.Entity
	ball  *ecs.Entity
	floor *ecs.Entity
}

func newCourt(t *testing.T) court {
	t.Helper()
	w := ecs.NewPhysicsWorld(ecs.DefaultConfig())
	var c court
	var err error
	c.world = w
	c.hoop, err = NewHoop(w, loadSpec[prefabs.HoopSpec](t, prefabs.HoopFile))
	require.NoError(t, err)
	c.rim, err = NewRim(w, loadSpec[prefabs.RimSpec](t, prefabs.RimFile))
	require.NoError(t, err)
	c.ball, err = NewBall(w, loadSpec[prefabs.BallSpec](t, prefabs.BallFile))
	require.NoError(t, err)
	c.floor, err = NewFloor(w, loadSpec[prefabs.FloorSpec](t, prefabs.FloorFile))
	require.NoError(t, err)
	require.NoError(t, c.rim.Track(c.hoop))
	return c
}

func (c court) tick(n int) {
	for i := 0; i < n; i++ {
		c.world.Tick(1.0 / 60.0)
		for _, e := range c.world.Entities() {
			e.Tick(1.0 / 60.0)
		}
	}
}

func (c court) sensorCenter(t *testing.T, name string) mgl64.Vec3 {
	t.Helper()
	for i, d := range c.rim.ColliderDescs() {
		if d.Name == name {
			col, ok := c.world.Sim().Collider(c.rim.Colliders()[i])
			require.True(t, ok)
			return col.Translation()
		}
	}
	t.Fatalf("no sensor %q", name)
	return mgl64.Vec3{}
}

func TestLoadCourt(t *testing.T) {
	c := newCourt(t)

	hands, err := NewHands(c.world, loadSpec[prefabs.HandsSpec](t, prefabs.HandsFile))
	require.NoError(t, err)
	require.Len(t, hands, 2)
	assert.Equal(t, ecs.BehaviorHand, hands[0].Behavior().Kind)

	birds, err := NewBirds(c.world, loadSpec[prefabs.BirdsSpec](t, prefabs.BirdsFile))
	require.NoError(t, err)
	require.Len(t, birds, 3)

	assert.Len(t, c.world.Entities(), 9)
	require.NoError(t, c.world.IndexConsistent())

	s := c.rim.Behavior().Scoring
	require.NotNil(t, s)
	assert.True(t, s.Upper.Valid())
	assert.True(t, s.Lower.Valid())
	assert.Equal(t, 2, s.Points)

	node, ok := c.hoop.Node().(*render.Node)
	require.True(t, ok)
	assert.NotEmpty(t, node.Lines())
	assert.Len(t, c.hoop.Wireframes(), 6)
}

func TestDuplicatePrefabRejected(t *testing.T) {
	c := newCourt(t)
	_, err := NewBall(c.world, loadSpec[prefabs.BallSpec](t, prefabs.BallFile))
	require.ErrorIs(t, err, ecs.ErrDuplicateEntity)
	assert.Same(t, c.ball, mustEntity(t, c.world, "basketball"))
}

func TestRimNeedsSensorNames(t *testing.T) {
	spec := loadSpec[prefabs.RimSpec](t, prefabs.RimFile)
	spec.Lower = ""
	_, err := RimConfig(spec)
	require.Error(t, err)

	spec = loadSpec[prefabs.RimSpec](t, prefabs.RimFile)
	spec.Lower = "bottom"
	w := ecs.NewPhysicsWorld(ecs.DefaultConfig())
	_, err = NewRim(w, spec)
	require.ErrorIs(t, err, ecs.ErrMissingSensor)
	assert.Empty(t, w.Entities())
}

func TestBadPrefabFailsConfig(t *testing.T) {
	spec := loadSpec[prefabs.BallSpec](t, prefabs.BallFile)
	spec.Colliders[0].Shape = "torus"
	_, err := BallConfig(spec)
	require.Error(t, err)

	spec = loadSpec[prefabs.BallSpec](t, prefabs.BallFile)
	spec.ID = ""
	_, err = BallConfig(spec)
	require.Error(t, err)
}

func TestBallRestsOnFloor(t *testing.T) {
	c := newCourt(t)
	start := c.ball.Position()
	c.tick(120)
	assert.InDelta(t, start.Y(), c.ball.Position().Y(), 0.01)
}

func TestBallDroppedThroughRimScores(t *testing.T) {
	c := newCourt(t)
	upper := c.sensorCenter(t, "upper")
	lower := c.sensorCenter(t, "lower")
	require.Greater(t, upper.Y(), lower.Y())

	ballOffset := c.ball.ColliderDescs()[0].Translation
	c.ball.Toss(upper.Add(mgl64.Vec3{0, 0.4, 0}).Sub(ballOffset), mgl64.Vec3{})
	c.tick(90)

	var points int
	var notices []string
	for _, evt := range c.world.Events().Drain() {
		switch d := evt.Data.(type) {
		case ecs.ScoreEvent:
			points += d.Points
		case ecs.NoticeEvent:
			notices = append(notices, d.Message)
		}
	}
	assert.Equal(t, 2, points)
	assert.Equal(t, []string{ecs.NoticeBucket}, notices)
	assert.Less(t, c.ball.Position().Y(), lower.Y())
}

func mustEntity(t *testing.T, w *ecs.PhysicsWorld, id string) *ecs.Entity {
	t.Helper()
	e, ok := w.Entity(id)
	require.True(t, ok)
	return e
}
