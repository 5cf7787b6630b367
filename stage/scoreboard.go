package stage

import (
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

const awardDispatchScript = `
__result := award(__points, __streak)
`

// Scoreboard keeps the running total. Each basket's value comes from the
// script's award(points, streak) function.
type Scoreboard struct {
	compiled *tengo.Compiled
	total    int
	streak   int
	baskets  int
}

func NewScoreboard(src []byte) (*Scoreboard, error) {
	b := &Scoreboard{}
	if err := b.SetScript(src); err != nil {
		return nil, err
	}
	return b, nil
}

// SetScript swaps the award rule. The total is kept.
func (b *Scoreboard) SetScript(src []byte) error {
	full := append(append([]byte(nil), src...), awardDispatchScript...)
	script := tengo.NewScript(full)
	_ = script.Add("__points", 0)
	_ = script.Add("__streak", 0)
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("stage: compile score script: %w", err)
	}
	b.compiled = compiled
	return nil
}

// Award records a basket worth points. When the script fails the raw
// points are added and the error is returned.
func (b *Scoreboard) Award(points int) (int, error) {
	b.streak++
	b.baskets++
	awarded, err := b.run(points)
	if err != nil {
		awarded = points
	}
	b.total += awarded
	return awarded, err
}

func (b *Scoreboard) run(points int) (int, error) {
	if b.compiled == nil {
		return points, nil
	}
	if err := b.compiled.Set("__points", points); err != nil {
		return 0, err
	}
	if err := b.compiled.Set("__streak", b.streak); err != nil {
		return 0, err
	}
	if err := b.compiled.Run(); err != nil {
		return 0, fmt.Errorf("stage: run score script: %w", err)
	}
	v := b.compiled.Get("__result")
	if v.ValueType() != "int" {
		return 0, fmt.Errorf("stage: award returned %s, want int", v.ValueType())
	}
	return v.Int(), nil
}

// Miss ends the current streak.
func (b *Scoreboard) Miss() { b.streak = 0 }

func (b *Scoreboard) Total() int   { return b.total }
func (b *Scoreboard) Streak() int  { return b.streak }
func (b *Scoreboard) Baskets() int { return b.baskets }
