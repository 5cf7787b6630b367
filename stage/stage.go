package stage

import (
	"context"
	"fmt"
	"log"

	"github.com/milk9111/hoops/common"
	"github.com/milk9111/hoops/ecs"
	"github.com/milk9111/hoops/ecs/entity"
	"github.com/milk9111/hoops/prefabs"
	"golang.org/x/sync/errgroup"
)

const noticeLimit = 8

// Options adjust Load. Zero values keep what world.yaml says.
type Options struct {
	// World replaces world.yaml when non-nil.
	World    *prefabs.WorldSpec
	StepMode string
	Debug    bool
	Birds    bool
	Build    string
	// Script replaces the configured score script source when non-nil.
	Script []byte
}

// Stage owns the physics world, the loaded entities and the per-frame
// order: physics, then entities, then events.
type Stage struct {
	spec       prefabs.WorldSpec
	world      *ecs.PhysicsWorld
	sched      *Scheduler
	board      *Scoreboard
	panel      *Panel
	throwScale float64

	ball  *ecs.Entity
	hoop  *ecs.Entity
	rim   *ecs.Entity
	hands map[string]*ecs.Entity

	rose    bool
	frame   uint64
	steps   int
	notices []string
}

// Load reads the prefabs concurrently and registers the entities in a
// fixed order. Any failure aborts the load.
func Load(ctx context.Context, opts Options) (*Stage, error) {
	spec, err := worldSpec(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := worldConfig(spec)
	if err != nil {
		return nil, err
	}

	var (
		hoopCfg, rimCfg, ballCfg, floorCfg ecs.EntityConfig
		handCfgs, birdCfgs                 []ecs.EntityConfig
		follow                             string
		script                             = opts.Script
	)
	g, gctx := errgroup.WithContext(ctx)
	load := func(name string, fn func() error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	load(prefabs.HoopFile, func() error {
		s, err := prefabs.LoadSpec[prefabs.HoopSpec](prefabs.HoopFile)
		if err != nil {
			return err
		}
		hoopCfg, err = entity.HoopConfig(s)
		return err
	})
	load(prefabs.RimFile, func() error {
		s, err := prefabs.LoadSpec[prefabs.RimSpec](prefabs.RimFile)
		if err != nil {
			return err
		}
		follow = s.Follow
		rimCfg, err = entity.RimConfig(s)
		return err
	})
	load(prefabs.BallFile, func() error {
		s, err := prefabs.LoadSpec[prefabs.BallSpec](prefabs.BallFile)
		if err != nil {
			return err
		}
		ballCfg, err = entity.BallConfig(s)
		return err
	})
	load(prefabs.FloorFile, func() error {
		s, err := prefabs.LoadSpec[prefabs.FloorSpec](prefabs.FloorFile)
		if err != nil {
			return err
		}
		floorCfg, err = entity.FloorConfig(s)
		return err
	})
	load(prefabs.HandsFile, func() error {
		s, err := prefabs.LoadSpec[prefabs.HandsSpec](prefabs.HandsFile)
		if err != nil {
			return err
		}
		for _, h := range s.Hands {
			c, err := entity.HandConfig(h)
			if err != nil {
				return err
			}
			handCfgs = append(handCfgs, c)
		}
		return nil
	})
	if spec.Birds {
		load(prefabs.BirdsFile, func() error {
			s, err := prefabs.LoadSpec[prefabs.BirdsSpec](prefabs.BirdsFile)
			if err != nil {
				return err
			}
			for _, b := range s.Birds {
				c, err := entity.BirdConfig(b)
				if err != nil {
					return err
				}
				birdCfgs = append(birdCfgs, c)
			}
			return nil
		})
	}
	if script == nil {
		load(spec.ScoreScript, func() error {
			src, err := prefabs.LoadScript(spec.ScoreScript)
			script = src
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stage: load %w", err)
	}

	board, err := NewScoreboard(script)
	if err != nil {
		return nil, err
	}
	s := &Stage{
		spec:       spec,
		world:      ecs.NewPhysicsWorld(cfg),
		board:      board,
		panel:      NewPanel(common.PanelLimit),
		throwScale: spec.ThrowScale,
		hands:      make(map[string]*ecs.Entity),
	}
	if s.throwScale == 0 {
		s.throwScale = common.ThrowScale
	}
	s.sched = NewScheduler(PhysicsSystem{}, EntitySystem{}, EventSystem{})

	ordered := []ecs.EntityConfig{hoopCfg, rimCfg, ballCfg, floorCfg}
	ordered = append(ordered, handCfgs...)
	ordered = append(ordered, birdCfgs...)
	for _, c := range ordered {
		e, err := entity.Register(s.world, c)
		if err != nil {
			return nil, fmt.Errorf("stage: %w", err)
		}
		switch e.Behavior().Kind {
		case ecs.BehaviorTrackingBall:
			s.ball = e
		case ecs.BehaviorScoringSensor:
			s.rim = e
		case ecs.BehaviorHand:
			s.hands[e.ID()] = e
		}
	}
	s.hoop, _ = s.world.Entity(common.HoopID)

	if follow != "" && s.rim != nil {
		target, ok := s.world.Entity(follow)
		if !ok {
			return nil, fmt.Errorf("stage: rim follows unknown entity %q", follow)
		}
		if err := s.rim.Track(target); err != nil {
			return nil, fmt.Errorf("stage: %w", err)
		}
	}

	build := opts.Build
	if build == "" {
		build = common.DefaultBuild
	}
	s.debug("Build %s", build)
	if spec.Debug {
		log.Printf("Stage: loaded %d entities", len(s.world.Entities()))
	}
	return s, nil
}

func worldSpec(opts Options) (prefabs.WorldSpec, error) {
	var spec prefabs.WorldSpec
	if opts.World != nil {
		spec = *opts.World
	} else {
		var err error
		spec, err = prefabs.LoadSpec[prefabs.WorldSpec](prefabs.WorldFile)
		if err != nil {
			return prefabs.WorldSpec{}, fmt.Errorf("stage: %w", err)
		}
	}
	if opts.StepMode != "" {
		spec.StepMode = opts.StepMode
	}
	if opts.Debug {
		spec.Debug = true
	}
	if opts.Birds {
		spec.Birds = true
	}
	if spec.ScoreScript == "" {
		spec.ScoreScript = prefabs.DefaultScoreScript
	}
	return spec, nil
}

func worldConfig(spec prefabs.WorldSpec) (ecs.Config, error) {
	cfg := ecs.DefaultConfig()
	cfg.Sim = spec.SimConfig()
	switch spec.StepMode {
	case "", "variable":
		cfg.StepMode = ecs.StepVariable
	case "fixed":
		cfg.StepMode = ecs.StepFixed
	default:
		return ecs.Config{}, fmt.Errorf("stage: unknown step mode %q", spec.StepMode)
	}
	cfg.FixedStep = spec.FixedStep
	cfg.MaxSteps = spec.MaxSteps
	cfg.RayMax = spec.RayMaxDistance
	cfg.Debug = spec.Debug
	return cfg, nil
}

// Tick runs one frame.
func (s *Stage) Tick(dt float64) {
	s.frame++
	s.sched.Update(s, dt)
}

func (s *Stage) debug(format string, args ...any) {
	s.panel.Debug(format, args...)
	if s.spec.Debug {
		log.Printf("Stage: "+format, args...)
	}
}

func (s *Stage) pushNotice(msg string) {
	s.notices = append(s.notices, msg)
	if over := len(s.notices) - noticeLimit; over > 0 {
		s.notices = append(s.notices[:0], s.notices[over:]...)
	}
}

func (s *Stage) World() *ecs.PhysicsWorld { return s.world }
func (s *Stage) Spec() prefabs.WorldSpec  { return s.spec }
func (s *Stage) Panel() *Panel            { return s.panel }
func (s *Stage) Scoreboard() *Scoreboard  { return s.board }
func (s *Stage) Ball() *ecs.Entity        { return s.ball }
func (s *Stage) Rim() *ecs.Entity         { return s.rim }
func (s *Stage) Hoop() *ecs.Entity        { return s.hoop }
func (s *Stage) RoseVisible() bool        { return s.rose }
func (s *Stage) Frame() uint64            { return s.frame }
func (s *Stage) Steps() int               { return s.steps }
func (s *Stage) Score() int               { return s.board.Total() }

func (s *Stage) Hand(id string) (*ecs.Entity, bool) {
	h, ok := s.hands[id]
	return h, ok
}

// Notices returns the most recent notices, oldest first.
func (s *Stage) Notices() []string {
	return append([]string(nil), s.notices...)
}

// ReloadScript replaces the scoring rule, keeping the score.
func (s *Stage) ReloadScript(src []byte) error {
	return s.board.SetScript(src)
}
