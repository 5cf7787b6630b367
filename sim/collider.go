package sim

import "github.com/go-gl/mathgl/mgl64"

// Collider is a collision volume attached to one body.
type Collider struct {
	handle ColliderHandle
	parent BodyHandle
	body   *RigidBody
	desc   ColliderDesc
	local  Pose
}

func (c *Collider) Handle() ColliderHandle { return c.handle }
func (c *Collider) Parent() BodyHandle     { return c.parent }
func (c *Collider) Desc() ColliderDesc     { return c.desc }
func (c *Collider) Shape() Shape           { return c.desc.Shape }
func (c *Collider) Name() string           { return c.desc.Name }
func (c *Collider) IsSensor() bool         { return c.desc.Sensor }
func (c *Collider) Groups() uint32         { return c.desc.Groups }

// Pose returns the collider's world pose.
func (c *Collider) Pose() Pose {
	return c.body.pose.Compose(c.local)
}

func (c *Collider) Translation() mgl64.Vec3 { return c.Pose().Translation }
func (c *Collider) Rotation() mgl64.Quat    { return c.Pose().Rotation }

// LocalPose returns the pose relative to the parent body.
func (c *Collider) LocalPose() Pose { return c.local }

// SetTranslationWrtParent moves the collider on its body and refreshes the
// body's mass properties.
func (c *Collider) SetTranslationWrtParent(v mgl64.Vec3) {
	c.local.Translation = v
	c.body.resetMass()
}

func (c *Collider) AABB() AABB {
	return shapeAABB(c.desc.Shape, c.Pose())
}
