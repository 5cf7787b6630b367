package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/milk9111/hoops/common"
	"github.com/milk9111/hoops/prefabs"
	"github.com/milk9111/hoops/spectate"
	"github.com/milk9111/hoops/stage"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug mode")
	fixed := flag.Bool("fixed", false, "step physics at a fixed rate instead of once per frame")
	birds := flag.Bool("birds", false, "load the birds")
	watch := flag.Bool("watch", false, "reload prefabs and scripts from prefabs/ when they change")
	spectateAddr := flag.String("spectate", "", "serve the spectator websocket feed on this address (e.g. :8080)")
	build := flag.String("build", common.DefaultBuild, "build label shown in the debug panel")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := stage.Options{Debug: *debug, Birds: *birds, Build: *build}
	if *fixed {
		opts.StepMode = "fixed"
	}
	st, err := stage.Load(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}

	game := NewGame(st, opts)

	if *spectateAddr != "" {
		hub := spectate.NewHub()
		mux := http.NewServeMux()
		mux.Handle(common.SnapshotRoute, hub)
		go func() {
			if err := http.ListenAndServe(*spectateAddr, mux); err != nil {
				log.Printf("Spectate: %v", err)
			}
		}()
		defer hub.Close()
		game.hub = hub
	}

	if *watch {
		w, err := prefabs.NewWatcher("prefabs", "prefabs/scripts")
		if err != nil {
			log.Printf("Watch: disabled: %v", err)
		} else {
			defer w.Close()
			go w.Run(ctx, func(c prefabs.Change) {
				select {
				case game.reloads <- c:
				default:
				}
			}, func(err error) { log.Printf("Watch: %v", err) })
		}
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(common.BaseWidth, common.BaseHeight)
	ebiten.SetWindowTitle("hoops")

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
