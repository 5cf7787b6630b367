package sim

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnknownShape = errors.New("sim: unknown shape kind")
	ErrInvalidShape = errors.New("sim: invalid shape dimensions")
	ErrUnknownBody  = errors.New("sim: unknown body kind")
	ErrNoParentBody = errors.New("sim: parent body not found")

	errNegativeValue = errors.New("must not be negative")
)

const (
	DefaultDensity  = 1.0
	DefaultFriction = 0.5
	DefaultGroups   = uint32(0xFFFFFFFF)
)

var defaultRotation = mgl64.QuatIdent()

// normQuat treats the zero quaternion as identity so struct literals
// without a rotation behave.
func normQuat(q mgl64.Quat) mgl64.Quat {
	if q.W == 0 && q.V.LenSqr() == 0 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

// ShapeKind enumerates the supported collision volumes.
type ShapeKind uint8

const (
	ShapeCuboid ShapeKind = iota + 1
	ShapeBall
	ShapeCapsule
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCuboid:
		return "cuboid"
	case ShapeBall:
		return "ball"
	case ShapeCapsule:
		return "capsule"
	default:
		return fmt.Sprintf("shape(%d)", uint8(k))
	}
}

// Shape is a collision volume in collider-local space. Only the fields of
// Kind are meaningful. Capsules run along the local Y axis.
type Shape struct {
	Kind        ShapeKind
	HalfExtents mgl64.Vec3
	Radius      float64
	HalfHeight  float64
}

// Validate reports whether the shape has a known kind and usable dimensions.
func (s Shape) Validate() error {
	switch s.Kind {
	case ShapeCuboid:
		if s.HalfExtents.X() <= 0 || s.HalfExtents.Y() <= 0 || s.HalfExtents.Z() <= 0 {
			return fmt.Errorf("%w: cuboid half extents %v", ErrInvalidShape, s.HalfExtents)
		}
	case ShapeBall:
		if s.Radius <= 0 {
			return fmt.Errorf("%w: ball radius %v", ErrInvalidShape, s.Radius)
		}
	case ShapeCapsule:
		if s.Radius <= 0 || s.HalfHeight < 0 {
			return fmt.Errorf("%w: capsule radius %v half height %v", ErrInvalidShape, s.Radius, s.HalfHeight)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownShape, s.Kind)
	}
	return nil
}

// BoundingRadius returns the radius of the sphere around the shape origin
// that contains the whole shape.
func (s Shape) BoundingRadius() float64 {
	switch s.Kind {
	case ShapeCuboid:
		return s.HalfExtents.Len()
	case ShapeBall:
		return s.Radius
	case ShapeCapsule:
		return s.HalfHeight + s.Radius
	}
	return 0
}

// CombineRule picks how two collider coefficients merge at a contact.
type CombineRule uint8

const (
	CombineAverage CombineRule = iota
	CombineMin
	CombineMultiply
	CombineMax
)

func (r CombineRule) String() string {
	switch r {
	case CombineAverage:
		return "average"
	case CombineMin:
		return "min"
	case CombineMultiply:
		return "multiply"
	case CombineMax:
		return "max"
	}
	return fmt.Sprintf("combine(%d)", uint8(r))
}

// ParseCombineRule maps a config string to a rule. Empty means average.
func ParseCombineRule(s string) (CombineRule, error) {
	switch s {
	case "", "average":
		return CombineAverage, nil
	case "min":
		return CombineMin, nil
	case "multiply":
		return CombineMultiply, nil
	case "max":
		return CombineMax, nil
	}
	return CombineAverage, fmt.Errorf("sim: unknown combine rule %q", s)
}

// combine merges two coefficients. When the rules differ the higher
// priority one wins (max > multiply > min > average).
func combine(a float64, ra CombineRule, b float64, rb CombineRule) float64 {
	rule := ra
	if rb > rule {
		rule = rb
	}
	switch rule {
	case CombineMin:
		return min(a, b)
	case CombineMultiply:
		return a * b
	case CombineMax:
		return max(a, b)
	default:
		return (a + b) / 2
	}
}

// ColliderDesc describes one collider before it is attached to a body.
type ColliderDesc struct {
	Name               string
	Shape              Shape
	Translation        mgl64.Vec3
	Rotation           mgl64.Quat
	Density            *float64
	Restitution        float64
	RestitutionCombine CombineRule
	Friction           float64
	FrictionCombine    CombineRule
	Sensor             bool
	Groups             uint32
}

func newColliderDesc(shape Shape) ColliderDesc {
	return ColliderDesc{
		Shape:    shape,
		Rotation: defaultRotation,
		Friction: DefaultFriction,
		Groups:   DefaultGroups,
	}
}

// Cuboid describes a box with the given half extents.
func Cuboid(hx, hy, hz float64) ColliderDesc {
	return newColliderDesc(Shape{Kind: ShapeCuboid, HalfExtents: mgl64.Vec3{hx, hy, hz}})
}

// Ball describes a sphere.
func Ball(radius float64) ColliderDesc {
	return newColliderDesc(Shape{Kind: ShapeBall, Radius: radius})
}

// Capsule describes a capsule along local Y.
func Capsule(halfHeight, radius float64) ColliderDesc {
	return newColliderDesc(Shape{Kind: ShapeCapsule, HalfHeight: halfHeight, Radius: radius})
}

func (d ColliderDesc) Named(name string) ColliderDesc {
	d.Name = name
	return d
}

func (d ColliderDesc) WithTranslation(x, y, z float64) ColliderDesc {
	d.Translation = mgl64.Vec3{x, y, z}
	return d
}

func (d ColliderDesc) WithRotation(q mgl64.Quat) ColliderDesc {
	d.Rotation = q.Normalize()
	return d
}

func (d ColliderDesc) WithDensity(density float64) ColliderDesc {
	d.Density = &density
	return d
}

func (d ColliderDesc) WithRestitution(r float64) ColliderDesc {
	d.Restitution = r
	return d
}

func (d ColliderDesc) WithRestitutionCombine(rule CombineRule) ColliderDesc {
	d.RestitutionCombine = rule
	return d
}

func (d ColliderDesc) WithFriction(f float64) ColliderDesc {
	d.Friction = f
	return d
}

func (d ColliderDesc) WithFrictionCombine(rule CombineRule) ColliderDesc {
	d.FrictionCombine = rule
	return d
}

func (d ColliderDesc) AsSensor() ColliderDesc {
	d.Sensor = true
	return d
}

func (d ColliderDesc) WithGroups(groups uint32) ColliderDesc {
	d.Groups = groups
	return d
}

// EffectiveDensity returns the density used for mass computation. Sensors
// have none.
func (d ColliderDesc) EffectiveDensity() float64 {
	if d.Sensor {
		return 0
	}
	if d.Density == nil {
		return DefaultDensity
	}
	return *d.Density
}

// Validate checks the shape and the scalar coefficients.
func (d ColliderDesc) Validate() error {
	if err := d.Shape.Validate(); err != nil {
		return err
	}
	if d.Density != nil && *d.Density < 0 {
		return fmt.Errorf("sim: collider %q density %w", d.Name, errNegativeValue)
	}
	if d.Restitution < 0 {
		return fmt.Errorf("sim: collider %q restitution %w", d.Name, errNegativeValue)
	}
	if d.Friction < 0 {
		return fmt.Errorf("sim: collider %q friction %w", d.Name, errNegativeValue)
	}
	return nil
}

// membership and filter split the interaction groups word.
func membership(groups uint32) uint32 { return groups >> 16 }
func filter(groups uint32) uint32     { return groups & 0xFFFF }

// groupsInteract reports whether two colliders may touch or sense each other.
func groupsInteract(a, b uint32) bool {
	return membership(a)&filter(b) != 0 && membership(b)&filter(a) != 0
}

// BodyKind selects how a body moves.
type BodyKind uint8

const (
	BodyStatic BodyKind = iota + 1
	BodyDynamic
	BodyKinematicPositionBased
)

func (k BodyKind) String() string {
	switch k {
	case BodyStatic:
		return "static"
	case BodyDynamic:
		return "dynamic"
	case BodyKinematicPositionBased:
		return "kinematic"
	}
	return fmt.Sprintf("body(%d)", uint8(k))
}

// ParseBodyKind maps a config string to a kind.
func ParseBodyKind(s string) (BodyKind, error) {
	switch s {
	case "static", "fixed":
		return BodyStatic, nil
	case "dynamic", "":
		return BodyDynamic, nil
	case "kinematic", "kinematic_position":
		return BodyKinematicPositionBased, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBody, s)
}

// RigidBodyDesc describes a body before creation. Damping and CCD only
// apply to dynamic bodies.
type RigidBodyDesc struct {
	Kind           BodyKind
	Translation    mgl64.Vec3
	Rotation       mgl64.Quat
	LinearDamping  float64
	AngularDamping float64
	GravityScale   float64
	CCD            bool
}

func newBodyDesc(kind BodyKind) RigidBodyDesc {
	return RigidBodyDesc{Kind: kind, Rotation: defaultRotation, GravityScale: 1}
}

func NewDynamic() RigidBodyDesc   { return newBodyDesc(BodyDynamic) }
func NewStatic() RigidBodyDesc    { return newBodyDesc(BodyStatic) }
func NewKinematic() RigidBodyDesc { return newBodyDesc(BodyKinematicPositionBased) }

func (d RigidBodyDesc) WithTranslation(x, y, z float64) RigidBodyDesc {
	d.Translation = mgl64.Vec3{x, y, z}
	return d
}

func (d RigidBodyDesc) WithRotation(q mgl64.Quat) RigidBodyDesc {
	d.Rotation = q.Normalize()
	return d
}

func (d RigidBodyDesc) WithLinearDamping(v float64) RigidBodyDesc {
	d.LinearDamping = v
	return d
}

func (d RigidBodyDesc) WithAngularDamping(v float64) RigidBodyDesc {
	d.AngularDamping = v
	return d
}

func (d RigidBodyDesc) WithGravityScale(v float64) RigidBodyDesc {
	d.GravityScale = v
	return d
}

func (d RigidBodyDesc) WithCCD(enabled bool) RigidBodyDesc {
	d.CCD = enabled
	return d
}

// Validate checks the body kind.
func (d RigidBodyDesc) Validate() error {
	switch d.Kind {
	case BodyStatic, BodyDynamic, BodyKinematicPositionBased:
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnknownBody, d.Kind)
}
