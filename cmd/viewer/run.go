package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-viewer/engine"
	"github.com/Carmen-Shannon/oxy-viewer/engine/camera"
	"github.com/Carmen-Shannon/oxy-viewer/engine/config"
	"github.com/Carmen-Shannon/oxy-viewer/engine/control"
	"github.com/Carmen-Shannon/oxy-viewer/engine/input"
	"github.com/Carmen-Shannon/oxy-viewer/engine/loader"
	"github.com/Carmen-Shannon/oxy-viewer/engine/renderer"
	"github.com/Carmen-Shannon/oxy-viewer/engine/scene"
	"github.com/Carmen-Shannon/oxy-viewer/engine/watch"
	"github.com/Carmen-Shannon/oxy-viewer/engine/window"
)

// run builds every component from cfg, loads model and drives the frame loop until the window closes, the
// headless frame budget is spent, or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, model string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	params := config.NewParameters(cfg.Rendering)
	cam := camera.NewUserCamera(camera.WithAspect(float32(cfg.Window.Width) / float32(cfg.Window.Height)))

	fetcher := newFetcher(cfg)
	pipeline, err := newPipeline(cfg, fetcher, logger)
	if err != nil {
		return err
	}
	models := loadCatalog(ctx, cfg, fetcher, logger)

	var win window.Window
	var r renderer.Renderer
	var recorder *renderer.Recorder
	if cfg.Headless {
		recorder = renderer.NewRecorder()
		r = recorder
	} else {
		win, err = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
			window.WithSizeLimits(cfg.Window.MinWidth, cfg.Window.MinHeight, 0, 0),
		)
		if err != nil {
			pipeline.Close()
			return err
		}
		defer win.Close()

		presentMode := renderer.PresentModeUncapped
		if cfg.Render.VSync {
			presentMode = renderer.PresentModeVSync
		}
		r, err = renderer.NewRenderer(renderer.BackendTypeWGPU, win,
			renderer.WithCamera(cam),
			renderer.WithParameters(params),
			renderer.WithPresentMode(presentMode),
			renderer.WithMSAA(renderer.ParseMSAA(cfg.Render.MSAA)),
			renderer.WithForceSoftwareRenderer(cfg.Render.Software),
			renderer.WithLogger(logger),
		)
		if err != nil {
			pipeline.Close()
			return err
		}
	}

	var hub *control.Hub
	if cfg.Control.Enabled {
		hub = control.NewHub(logger)
	}

	var watcher watch.Watcher
	var sc scene.Scene
	if cfg.Watch.Enabled {
		watcher, err = watch.NewWatcher(
			watch.WithReloader(reloadFunc(func(ctx context.Context) error { return sc.Reload(ctx) })),
			watch.WithDebounce(cfg.Watch.Debounce.Duration),
			watch.WithLogger(logger),
		)
		if err != nil {
			pipeline.Close()
			return err
		}
		defer watcher.Close()
	}

	onStatus := func(st scene.Status) {
		if hub != nil {
			hub.Publish(st)
		}
		if st.Event != scene.EventReady {
			return
		}
		if win != nil {
			win.SetTitle(fmt.Sprintf("%s - %s", cfg.Window.Title, st.Model))
		}
		if watcher != nil {
			if ref, ok := sc.Reference(); ok {
				if err := watcher.Follow(ref); err != nil {
					logger.Warn("[viewer] cannot watch model", "model", st.Model, "error", err)
				}
			}
		}
	}

	sc = scene.NewScene(
		scene.WithPipeline(pipeline),
		scene.WithRenderer(r),
		scene.WithCamera(cam),
		scene.WithParameters(params),
		scene.WithHeadless(cfg.Headless),
		scene.WithCameraIndex(cfg.Render.CameraIndex),
		scene.WithStatusObserver(onStatus),
		scene.WithLogger(logger),
	)
	defer sc.Close()

	if win != nil {
		win.SetController(input.NewController(
			input.WithOrbiter(cam),
			input.WithNavigator(sc),
			input.WithLoadFunc(func(ref loader.Reference) { sc.LoadAsync(ctx, ref) }),
			input.WithActiveCheck(sc.IsRendering),
			input.WithLogger(logger),
		))
	}

	engineOpts := []engine.EngineBuilderOption{
		engine.WithScene(sc),
		engine.WithRenderFrameLimit(float64(cfg.Render.FrameLimit)),
		engine.WithProfiling(cfg.Render.Profiling),
		engine.WithSize(cfg.Window.Width, cfg.Window.Height),
		engine.WithLogger(logger),
	}
	if win != nil {
		engineOpts = append(engineOpts, engine.WithWindow(win))
	} else {
		engineOpts = append(engineOpts, engine.WithFrames(cfg.Render.Frames))
	}
	eng := engine.NewEngine(engineOpts...)

	if hub != nil {
		srv := control.NewServer(
			control.WithScene(sc),
			control.WithHub(hub),
			control.WithModels(models),
			control.WithBasePath(cfg.BasePath),
			control.WithAddress(cfg.Control.Address),
			control.WithFPS(eng.Profiler().FPS),
			control.WithLogger(logger),
		)
		defer srv.Close()
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				logger.Error("[viewer] control server stopped", "error", err)
			}
		}()
	}
	if watcher != nil {
		go watcher.Run(ctx)
	}

	if ref, ok := resolveModel(model, models, cfg.BasePath); ok {
		if cfg.Headless {
			// headless runs draw a fixed number of frames, so the first one should see the model
			if err := sc.Load(ctx, ref); err != nil {
				logger.Error("[viewer] initial load failed", "model", ref.Name(), "error", err)
			}
		} else {
			sc.LoadAsync(ctx, ref)
		}
	} else {
		logger.Info("[viewer] no model given; drop a .gltf or .glb file onto the window")
	}

	go func() {
		select {
		case <-ctx.Done():
			eng.Quit()
		case <-eng.Done():
		}
	}()
	eng.Run()

	if recorder != nil {
		st := sc.Status()
		logger.Info("[viewer] headless run finished",
			"frames", eng.Frames(),
			"drawn", recorder.Frames(),
			"batches", len(recorder.Batches()),
			"state", st.State,
			"model", st.Model)
	}
	return nil
}

// reloadFunc adapts a function to watch.Reloader.
type reloadFunc func(ctx context.Context) error

func (f reloadFunc) Reload(ctx context.Context) error {
	return f(ctx)
}
