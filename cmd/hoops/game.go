package main

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"path/filepath"
	"strings"

	"github.com/ebitenui/ebitenui"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/milk9111/hoops/common"
	"github.com/milk9111/hoops/ecs/render"
	"github.com/milk9111/hoops/prefabs"
	"github.com/milk9111/hoops/spectate"
	"github.com/milk9111/hoops/stage"
	"golang.org/x/image/colornames"
)

const roseLength = 0.5

var background = color.RGBA{R: 0x14, G: 0x16, B: 0x1c, A: 0xff}

type Game struct {
	stage *stage.Stage
	opts  stage.Options
	cam   render.SideCamera

	ui     *ebitenui.UI
	paused bool
	quit   bool

	hub     *spectate.Hub
	reloads chan prefabs.Change
}

func NewGame(st *stage.Stage, opts stage.Options) *Game {
	g := &Game{
		stage: st,
		opts:  opts,
		cam: render.SideCamera{
			Center: mgl64.Vec3{0, 1.2, -0.4},
			Scale:  220,
			Width:  common.BaseWidth,
			Height: common.BaseHeight,
			Depth:  10,
		},
		reloads: make(chan prefabs.Change, 4),
	}
	g.ui = NewPauseUI(g)
	return g
}

func (g *Game) Update() error {
	if g.quit {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.paused = !g.paused
	}
	if g.paused {
		g.ui.Update()
		return nil
	}

	g.applyReloads()
	g.handleInput()
	g.stage.Tick(1 / float64(ebiten.TPS()))

	if g.hub != nil {
		if err := g.hub.Publish(g.stage.Snapshot()); err != nil {
			log.Printf("Spectate: %v", err)
		}
	}
	return nil
}

func (g *Game) applyReloads() {
	for {
		select {
		case c := <-g.reloads:
			if c.Script {
				src, err := prefabs.LoadScript(filepath.Base(c.Path))
				if err == nil {
					err = g.stage.ReloadScript(src)
				}
				if err != nil {
					log.Printf("Watch: %s: %v", c.Path, err)
				}
				continue
			}
			g.reset()
		default:
			return
		}
	}
}

// reset rebuilds the stage from the prefabs, keeping the old one when the
// new load fails.
func (g *Game) reset() {
	st, err := stage.Load(context.Background(), g.opts)
	if err != nil {
		log.Printf("Game: reload: %v", err)
		return
	}
	g.stage = st
}

func (g *Game) handleInput() {
	for key, name := range map[ebiten.Key]string{ebiten.KeyR: "R", ebiten.KeyD: "D", ebiten.KeyC: "C"} {
		if inpututil.IsKeyJustPressed(key) {
			g.stage.HandleKey(stage.ParseKey(name))
		}
	}

	cx, cy := ebiten.CursorPosition()
	sx, sy := float64(cx), float64(cy)
	if err := g.stage.MoveHand(common.RightHandID, g.cam.Unproject(sx, sy), mgl64.QuatIdent()); err != nil {
		log.Printf("Game: %v", err)
	}
	origin, dir := g.cam.Ray(sx, sy)

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.stage.HandlePointer(origin, dir)
	}
	right := stage.TriggerEvent{Hand: common.RightHandID, Origin: origin, Direction: dir}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		right.Kind = stage.SqueezeStart
		g.stage.HandleTrigger(right)
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonRight) {
		right.Kind = stage.SqueezeEnd
		g.stage.HandleTrigger(right)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		right.Kind = stage.SelectStart
		g.stage.HandleTrigger(right)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		g.stage.HandleTrigger(stage.TriggerEvent{Hand: common.LeftHandID, Kind: stage.SqueezeStart})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyE) {
		g.stage.HandleTrigger(stage.TriggerEvent{Hand: common.LeftHandID, Kind: stage.SelectStart})
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)

	for _, e := range g.stage.World().Entities() {
		node, ok := e.Node().(*render.Node)
		if !ok {
			continue
		}
		for _, l := range node.Flatten() {
			g.drawLine(screen, l.A, l.B, l.Color)
		}
		if e.Debugging() {
			x, y := g.cam.Project(e.Position())
			ebitenutil.DebugPrintAt(screen, strings.Join(append([]string{e.ID()}, e.DebugLines()...), "\n"), int(x)+8, int(y)+8)
		}
	}

	if g.stage.RoseVisible() {
		var origin mgl64.Vec3
		g.drawLine(screen, origin, mgl64.Vec3{roseLength, 0, 0}, colornames.Red)
		g.drawLine(screen, origin, mgl64.Vec3{0, roseLength, 0}, colornames.Green)
		g.drawLine(screen, origin, mgl64.Vec3{0, 0, roseLength}, colornames.Blue)
	}

	hud := fmt.Sprintf("Score: %d    FPS: %.2f", g.stage.Score(), ebiten.ActualFPS())
	if n := g.stage.Notices(); len(n) > 0 {
		hud += "\n" + n[len(n)-1]
	}
	ebitenutil.DebugPrint(screen, hud)

	if g.stage.Panel().Visible() {
		ebitenutil.DebugPrintAt(screen, strings.Join(g.stage.Panel().Lines(), "\n"), 10, common.BaseHeight/2)
	}

	if g.paused {
		g.ui.Draw(screen)
	}
}

func (g *Game) drawLine(screen *ebiten.Image, a, b mgl64.Vec3, clr color.Color) {
	x1, y1 := g.cam.Project(a)
	x2, y2 := g.cam.Project(b)
	vector.StrokeLine(screen, float32(x1), float32(y1), float32(x2), float32(y2), 1, clr, true)
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return common.BaseWidth, common.BaseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
