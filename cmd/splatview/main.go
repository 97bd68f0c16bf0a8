// Command splatview opens splat files in a window and renders them on the
// CPU, presenting each frame through WebGPU.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine"
	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/loader"
	"github.com/Carmen-Shannon/oxy-splat/engine/renderer"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/target"
	"github.com/Carmen-Shannon/oxy-splat/engine/window"
)

const usage = `splatview - interactive Gaussian splat viewer

USAGE:
  splatview [flags] file.ply [file.ply ...]
  splatview -config scene.yaml

CONTROLS:
  Left drag       Orbit
  Right drag      Pan
  Scroll, -/=     Zoom
  WASD, arrows    Orbit
  Q/E             Pan down/up
  Space           Toggle turntable
  R               Re-frame the scene
  P               Pause or resume rendering
  F               Save the current frame as PNG
  Backspace       Remove the most recently added group
  Esc             Quit
`

type options struct {
	config  string
	width   int
	height  int
	workers int
	shDeg   int
	fps     float64
	nearest bool
	vsync   bool
	verbose bool
	files   []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("splatview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&o.config, "config", "", "YAML scene description")
	fs.IntVar(&o.width, "width", 1280, "window width")
	fs.IntVar(&o.height, "height", 720, "window height")
	fs.IntVar(&o.workers, "workers", 0, "rasterizer workers (0 = one per CPU)")
	fs.IntVar(&o.shDeg, "sh", 3, "highest SH degree to load")
	fs.Float64Var(&o.fps, "fps", 60, "render frame limit (0 = unlimited)")
	fs.BoolVar(&o.nearest, "nearest", false, "nearest-neighbour upscaling")
	fs.BoolVar(&o.vsync, "vsync", true, "wait for vertical blank when presenting")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.files = fs.Args()
	if o.config == "" && len(o.files) == 0 {
		fs.Usage()
		return o, errors.New("no splat files given")
	}
	if o.config != "" && len(o.files) > 0 {
		return o, errors.New("-config and file arguments are mutually exclusive")
	}
	if o.width <= 0 || o.height <= 0 {
		return o, fmt.Errorf("window size %dx%d must be positive", o.width, o.height)
	}
	return o, nil
}

// sceneConfig turns the command line into a scene configuration, either by
// loading the YAML file or by listing the given files as groups.
func sceneConfig(o options) (*config.Config, error) {
	if o.config != "" {
		cfg, err := config.Load(o.config)
		if err != nil {
			return nil, err
		}
		cfg.Render.Workers = common.Coalesce(o.workers, cfg.Render.Workers)
		return cfg, nil
	}

	cfg, err := config.FromFiles(o.files...)
	if err != nil {
		return nil, err
	}
	cfg.Output.Width, cfg.Output.Height = o.width, o.height
	cfg.Render.Workers = common.Coalesce(o.workers, cfg.Render.Workers)
	cfg.Render.MaxSHDegree = &o.shDeg
	return cfg, cfg.Validate()
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "splatview:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := sceneConfig(o)
	if err != nil {
		return err
	}

	sc := scene.NewScene("splatview",
		scene.WithActive(true),
		scene.WithWorkers(cfg.Render.Workers),
		scene.WithBandRows(cfg.Render.BandRows),
	)
	var progress io.Writer
	if f, ok := stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		progress = f
	}
	l := loader.NewLoader(loader.BackendTypePLY,
		loader.WithProgress(progress),
		loader.WithMaxSHDegree(cfg.SHDegree()),
	)
	handles, err := loader.LoadGroups(context.Background(), l, cfg.Groups, sc, cfg.Render.Workers)
	if err != nil {
		return err
	}

	win := window.NewWindow(
		window.WithTitle("oxy-splat"),
		window.WithSize(o.width, o.height),
	)
	presentMode := renderer.PresentModeUncapped
	if o.vsync {
		presentMode = renderer.PresentModeVSync
	}
	filter := renderer.FilterLinear
	if o.nearest {
		filter = renderer.FilterNearest
	}
	r := renderer.NewRenderer(renderer.BackendTypeWGPU, win,
		renderer.WithPresentMode(presentMode),
		renderer.WithFilter(filter),
	)

	w, h := win.Width(), win.Height()
	color := target.NewBuffer(w, h, target.FormatFloat32x4)
	targets := scene.Targets{
		Color: color,
		Depth: target.NewBuffer(w, h, target.FormatFloat32),
		ID:    target.NewBuffer(w, h, target.FormatInt32),
	}

	cam := cfg.NewCamera(float32(w)/float32(h), sc, camera.WithOrbitSpeed(0.02))

	v := &viewer{
		scene:  sc,
		camera: cam,
		groups: handles,
		keys:   newKeyState(),
	}

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithScene(0, sc),
		engine.WithCamera(cam),
		engine.WithTargets(targets),
		engine.WithClearColor(cfg.Background()),
		engine.WithProfiling(true),
		engine.WithProfileInterval(time.Second),
		engine.WithTickRate(60),
		engine.WithRenderFrameLimit(o.fps),
		engine.WithFrameCallback(func(t scene.Targets, _ scene.FrameStats, err error) {
			if err != nil {
				common.Logger().Warn("frame failed", "error", err)
				return
			}
			src := t.Color.(target.Source)
			if err := r.Present(src); err != nil {
				common.Logger().Debug("present skipped", "error", err)
			}
			v.maybeScreenshot(src)
		}),
	)
	v.engine = eng

	// The engine installs its own resize callback; chain the surface resize after it.
	win.SetResizeCallback(func(width, height int) {
		eng.Resize(width, height)
		r.Resize(width, height)
	})
	v.bindInput(win)

	fmt.Fprint(stderr, usage[strings.Index(usage, "CONTROLS:"):])
	eng.Run()
	r.Release()
	return win.Close()
}

// viewer holds the interactive state shared by the input callbacks, which run
// on the window thread, and the tick and frame callbacks, which run on engine goroutines.
type viewer struct {
	engine engine.Engine
	scene  scene.Scene
	camera camera.Camera

	// groups is touched only on the window thread.
	groups []scene.GroupHandle

	keys      *keyState
	turntable atomic.Bool
	shotReq   atomic.Bool
	shots     int
	lastTitle string
}

func (v *viewer) bindInput(win window.Window) {
	ctrl := v.camera.Controller()

	win.SetKeyDownCallback(func(key uint32) {
		v.keys.press(key)
		switch key {
		case common.KeyR:
			v.reframe()
		case common.KeyP:
			if v.engine.Paused() {
				v.engine.Resume()
			} else {
				v.engine.Pause()
			}
		case common.KeyF:
			v.shotReq.Store(true)
		case common.KeySpace:
			v.turntable.Store(!v.turntable.Load())
		case common.KeyBackspace:
			v.removeLastGroup()
		}
	})
	win.SetKeyUpCallback(v.keys.release)

	win.SetDragCallback(func(button window.MouseButton, dx, dy float32) {
		switch button {
		case window.MouseLeft:
			ctrl.Drag(dx, dy)
		default:
			ctrl.PanRight(-dx * 0.1)
			ctrl.PanUp(dy * 0.1)
		}
	})
	win.SetScrollCallback(ctrl.Zoom)

	v.engine.SetTickCallback(func(dt float32) {
		v.tick(dt)
		if p := v.engine.Profiler(); p != nil {
			t := title(v.scene, p.Last().FPS, v.engine.Paused())
			if t != v.lastTitle {
				v.lastTitle = t
				win.SetTitle(t)
			}
		}
	})
}

// tick applies held keys. Called at the engine tick rate.
func (v *viewer) tick(dt float32) {
	ctrl := v.camera.Controller()
	held := v.keys.held
	switch {
	case held(common.KeyA), held(common.KeyLeft):
		ctrl.OrbitLeft()
	case held(common.KeyD), held(common.KeyRight):
		ctrl.OrbitRight()
	}
	switch {
	case held(common.KeyW), held(common.KeyUp):
		ctrl.OrbitUp()
	case held(common.KeyS), held(common.KeyDown):
		ctrl.OrbitDown()
	}
	if held(common.KeyQ) {
		ctrl.PanUp(-1)
	}
	if held(common.KeyE) {
		ctrl.PanUp(1)
	}
	if held(common.KeyEqual) {
		ctrl.Zoom(1)
	}
	if held(common.KeyMinus) {
		ctrl.Zoom(-1)
	}
	if v.turntable.Load() {
		ctrl.SetAzimuth(ctrl.Azimuth() + 0.5*dt)
	}
}

func (v *viewer) reframe() {
	lo, hi, ok := v.scene.Bounds()
	if !ok {
		return
	}
	v.camera.FrameBounds(lo, hi)
}

func (v *viewer) removeLastGroup() {
	if len(v.groups) == 0 {
		return
	}
	h := v.groups[len(v.groups)-1]
	v.groups = v.groups[:len(v.groups)-1]
	v.scene.RemoveGroup(h)
	common.Logger().Info("removed group", "slot", h, "splats", v.scene.SplatCount())
}

// maybeScreenshot saves src when a screenshot was requested. Runs on the
// render goroutine while the frame is stable.
func (v *viewer) maybeScreenshot(src target.Source) {
	if !v.shotReq.CompareAndSwap(true, false) {
		return
	}
	v.shots++
	path := fmt.Sprintf("splatview_%s_%d.png", time.Now().Format("20060102_150405"), v.shots)
	if err := target.Save(path, src); err != nil {
		common.Logger().Warn("screenshot failed", "error", err)
		return
	}
	common.Logger().Info("saved frame", "path", path)
}

func title(sc scene.Scene, fps float64, paused bool) string {
	state := fmt.Sprintf("%.0f fps", fps)
	if paused {
		state = "paused"
	}
	return fmt.Sprintf("oxy-splat - %d splats in %d groups - %s", sc.SplatCount(), len(sc.Groups()), state)
}
