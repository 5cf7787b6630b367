package prefabs

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/hoops/sim"
	"gopkg.in/yaml.v3"
)

var ErrUnknownPrefab = errors.New("prefabs: unknown prefab")

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// Vec3Spec is a yaml triple written as {x, y, z}.
type Vec3Spec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v Vec3Spec) Vec() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

// Quat reads the triple as XYZ euler angles in degrees.
func (v Vec3Spec) Quat() mgl64.Quat {
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(v.X), mgl64.DegToRad(v.Y), mgl64.DegToRad(v.Z), mgl64.XYZ,
	)
}

type TransformSpec struct {
	Position Vec3Spec `yaml:"position"`
	Rotation Vec3Spec `yaml:"rotation"`
	Size     float64  `yaml:"size"`
}

// Scale returns Size, treating an unset size as 1.
func (t TransformSpec) Scale() float64 {
	if t.Size == 0 {
		return 1
	}
	return t.Size
}

type BodySpec struct {
	Kind           string   `yaml:"kind"`
	LinearDamping  float64  `yaml:"linear_damping"`
	AngularDamping float64  `yaml:"angular_damping"`
	GravityScale   *float64 `yaml:"gravity_scale"`
	CCD            bool     `yaml:"ccd"`
}

// Desc builds the body descriptor placed at the transform.
func (b BodySpec) Desc(t TransformSpec) (sim.RigidBodyDesc, error) {
	kind, err := sim.ParseBodyKind(b.Kind)
	if err != nil {
		return sim.RigidBodyDesc{}, fmt.Errorf("prefabs: body: %w", err)
	}
	var desc sim.RigidBodyDesc
	switch kind {
	case sim.BodyStatic:
		desc = sim.NewStatic()
	case sim.BodyKinematicPositionBased:
		desc = sim.NewKinematic()
	default:
		desc = sim.NewDynamic()
	}
	p := t.Position
	desc = desc.WithTranslation(p.X, p.Y, p.Z).
		WithRotation(t.Rotation.Quat()).
		WithLinearDamping(b.LinearDamping).
		WithAngularDamping(b.AngularDamping).
		WithCCD(b.CCD)
	if b.GravityScale != nil {
		desc = desc.WithGravityScale(*b.GravityScale)
	}
	return desc, nil
}

// ColliderSpec describes one collider. Lengths are multiplied by the
// owning transform's size.
type ColliderSpec struct {
	Name               string   `yaml:"name"`
	Shape              string   `yaml:"shape"`
	HalfExtents        Vec3Spec `yaml:"half_extents"`
	Radius             float64  `yaml:"radius"`
	HalfHeight         float64  `yaml:"half_height"`
	Translation        Vec3Spec `yaml:"translation"`
	Rotation           Vec3Spec `yaml:"rotation"`
	Density            *float64 `yaml:"density"`
	Restitution        float64  `yaml:"restitution"`
	RestitutionCombine string   `yaml:"restitution_combine"`
	Friction           *float64 `yaml:"friction"`
	FrictionCombine    string   `yaml:"friction_combine"`
	Sensor             bool     `yaml:"sensor"`
	Groups             *uint32  `yaml:"groups"`
}

func (c ColliderSpec) Desc(scale float64) (sim.ColliderDesc, error) {
	var desc sim.ColliderDesc
	switch strings.ToLower(c.Shape) {
	case "cuboid", "box":
		h := c.HalfExtents.Vec().Mul(scale)
		desc = sim.Cuboid(h.X(), h.Y(), h.Z())
	case "ball", "sphere":
		desc = sim.Ball(c.Radius * scale)
	case "capsule":
		desc = sim.Capsule(c.HalfHeight*scale, c.Radius*scale)
	default:
		return sim.ColliderDesc{}, fmt.Errorf("prefabs: collider %q: %w: %q", c.Name, sim.ErrUnknownShape, c.Shape)
	}

	t := c.Translation.Vec().Mul(scale)
	desc = desc.Named(c.Name).
		WithTranslation(t.X(), t.Y(), t.Z()).
		WithRotation(c.Rotation.Quat()).
		WithRestitution(c.Restitution)

	rule, err := sim.ParseCombineRule(c.RestitutionCombine)
	if err != nil {
		return sim.ColliderDesc{}, fmt.Errorf("prefabs: collider %q: %w", c.Name, err)
	}
	desc = desc.WithRestitutionCombine(rule)
	rule, err = sim.ParseCombineRule(c.FrictionCombine)
	if err != nil {
		return sim.ColliderDesc{}, fmt.Errorf("prefabs: collider %q: %w", c.Name, err)
	}
	desc = desc.WithFrictionCombine(rule)

	if c.Density != nil {
		desc = desc.WithDensity(*c.Density)
	}
	if c.Friction != nil {
		desc = desc.WithFriction(*c.Friction)
	}
	if c.Sensor {
		desc = desc.AsSensor()
	}
	if c.Groups != nil {
		desc = desc.WithGroups(*c.Groups)
	}
	if err := desc.Validate(); err != nil {
		return sim.ColliderDesc{}, fmt.Errorf("prefabs: collider %q: %w", c.Name, err)
	}
	return desc, nil
}

// EntitySpec is the common shape of every prefab.
type EntitySpec struct {
	ID        string         `yaml:"id"`
	Transform TransformSpec  `yaml:"transform"`
	Body      BodySpec       `yaml:"body"`
	Colliders []ColliderSpec `yaml:"colliders"`
	Color     *YAMLColor     `yaml:"color"`
}

// ColliderDescs converts every collider at the transform's scale.
func (s EntitySpec) ColliderDescs() ([]sim.ColliderDesc, error) {
	scale := s.Transform.Scale()
	out := make([]sim.ColliderDesc, 0, len(s.Colliders))
	for _, c := range s.Colliders {
		d, err := c.Desc(scale)
		if err != nil {
			return nil, fmt.Errorf("prefabs: %s: %w", s.ID, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s EntitySpec) BodyDesc() (sim.RigidBodyDesc, error) {
	d, err := s.Body.Desc(s.Transform)
	if err != nil {
		return sim.RigidBodyDesc{}, fmt.Errorf("prefabs: %s: %w", s.ID, err)
	}
	return d, nil
}

type BallSpec struct {
	EntitySpec `yaml:",inline"`
}

type HoopSpec struct {
	EntitySpec `yaml:",inline"`
}

type FloorSpec struct {
	EntitySpec `yaml:",inline"`
}

// RingSpec lays out Count small balls on a horizontal circle.
type RingSpec struct {
	Count              int      `yaml:"count"`
	Radius             float64  `yaml:"radius"`
	BallRadius         float64  `yaml:"ball_radius"`
	Center             Vec3Spec `yaml:"center"`
	Restitution        float64  `yaml:"restitution"`
	RestitutionCombine string   `yaml:"restitution_combine"`
}

// Colliders expands the ring into ball collider specs in the prefab's
// unscaled units.
func (r RingSpec) Colliders() []ColliderSpec {
	out := make([]ColliderSpec, 0, r.Count)
	for i := 0; i < r.Count; i++ {
		angle := float64(i) * 2 * math.Pi / float64(r.Count)
		out = append(out, ColliderSpec{
			Name:   fmt.Sprintf("rim-%02d", i),
			Shape:  "ball",
			Radius: r.BallRadius,
			Translation: Vec3Spec{
				X: r.Center.X + math.Sin(angle)*r.Radius,
				Y: r.Center.Y,
				Z: r.Center.Z + math.Cos(angle)*r.Radius,
			},
			Restitution:        r.Restitution,
			RestitutionCombine: r.RestitutionCombine,
		})
	}
	return out
}

type RimSpec struct {
	EntitySpec `yaml:",inline"`
	Ring       RingSpec `yaml:"ring"`
	Upper      string   `yaml:"upper"`
	Lower      string   `yaml:"lower"`
	Points     int      `yaml:"points"`
	Follow     string   `yaml:"follow"`
}

// ColliderDescs returns the named colliders followed by the ring.
func (s RimSpec) ColliderDescs() ([]sim.ColliderDesc, error) {
	full := s.EntitySpec
	full.Colliders = append(append([]ColliderSpec(nil), s.Colliders...), s.Ring.Colliders()...)
	return full.ColliderDescs()
}

type HandSpec struct {
	EntitySpec `yaml:",inline"`
	History    int `yaml:"history"`
}

type HandsSpec struct {
	Hands []HandSpec `yaml:"hands"`
}

type BirdSpec struct {
	EntitySpec `yaml:",inline"`
	Clip       string  `yaml:"clip"`
	ClipLength float64 `yaml:"clip_length"`
	Thrust     float64 `yaml:"thrust"`
}

type BirdsSpec struct {
	Birds []BirdSpec `yaml:"birds"`
}

// WorldSpec holds the simulation and stepping settings.
type WorldSpec struct {
	Gravity              Vec3Spec `yaml:"gravity"`
	StepMode             string   `yaml:"step_mode"`
	FixedStep            float64  `yaml:"fixed_step"`
	MaxSteps             int      `yaml:"max_steps"`
	SolverIterations     int      `yaml:"solver_iterations"`
	MaxCCDSubsteps       int      `yaml:"max_ccd_substeps"`
	SleepLinear          float64  `yaml:"sleep_linear"`
	SleepAngular         float64  `yaml:"sleep_angular"`
	SleepDelay           float64  `yaml:"sleep_delay"`
	RestitutionThreshold float64  `yaml:"restitution_threshold"`
	PenetrationSlop      float64  `yaml:"penetration_slop"`
	RayMaxDistance       float64  `yaml:"ray_max_distance"`
	ThrowScale           float64  `yaml:"throw_scale"`
	ScoreScript          string   `yaml:"score_script"`
	Birds                bool     `yaml:"birds"`
	Debug                bool     `yaml:"debug"`
}

// SimConfig converts the spec, leaving unset fields to the simulation
// defaults.
func (w WorldSpec) SimConfig() sim.Config {
	return sim.Config{
		Gravity:              w.Gravity.Vec(),
		Timestep:             w.FixedStep,
		SolverIterations:     w.SolverIterations,
		MaxCCDSubsteps:       w.MaxCCDSubsteps,
		SleepLinear:          w.SleepLinear,
		SleepAngular:         w.SleepAngular,
		SleepDelay:           w.SleepDelay,
		RestitutionThreshold: w.RestitutionThreshold,
		PenetrationSlop:      w.PenetrationSlop,
	}
}

type YAMLColor struct {
	color.Color
}

func (c *YAMLColor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}

	s := strings.TrimPrefix(value.Value, "#")

	if len(s) != 6 && len(s) != 8 {
		return fmt.Errorf("invalid color format: %s", value.Value)
	}

	parse := func(start int) (uint8, error) {
		v, err := strconv.ParseUint(s[start:start+2], 16, 8)
		return uint8(v), err
	}

	r, err := parse(0)
	if err != nil {
		return err
	}
	g, err := parse(2)
	if err != nil {
		return err
	}
	b, err := parse(4)
	if err != nil {
		return err
	}

	a := uint8(255)
	if len(s) == 8 {
		a, err = parse(6)
		if err != nil {
			return err
		}
	}

	c.Color = color.NRGBA{R: r, G: g, B: b, A: a}
	return nil
}
