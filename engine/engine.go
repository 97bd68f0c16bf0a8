package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/camera"
	"github.com/Carmen-Shannon/oxy-splat/engine/profiler"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/window"
)

// ErrQuit is returned by RenderOnce after Quit has been called.
var ErrQuit = errors.New("engine has quit")

// FrameCallback receives the result of every rendered frame, on the render
// goroutine, after all active scenes were composited into the targets. It runs
// while the frame lock is held and must not call back into the Engine.
type FrameCallback func(targets scene.Targets, stats scene.FrameStats, err error)

// resizable is implemented by targets that can change size in place, such as target.Buffer.
type resizable interface {
	Resize(width, height int)
}

// engine implements the Engine interface.
// Coordinates the tick, render and quit goroutines.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	// ctx is cancelled on quit so an in-flight frame stops early.
	ctx    context.Context
	cancel context.CancelFunc

	paused   atomic.Bool
	resumeCh chan struct{}

	window window.Window

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   atomic.Pointer[func(deltaTime float32)]
	renderCallback atomic.Pointer[func(deltaTime float32)]
	frameCallback  FrameCallback

	// frameMu serializes frames and guards the fields a frame reads.
	frameMu    sync.Mutex
	scenes     map[int]scene.Scene
	camera     camera.Camera
	targets    scene.Targets
	clearColor [4]float32

	renderFrameLimit atomic.Int64 // minimum frame duration in ns; 0 = uncapped
}

// Engine drives rendering of one or more scenes on a background goroutine.
// The foreground may edit scenes, move the camera, pause or quit at any time.
type Engine interface {
	// Window returns the window the engine presents into, or nil when headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// Profiler returns the profiler that receives every frame's statistics.
	Profiler() *profiler.Profiler

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for input and animation updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each render frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function that receives each frame's targets and statistics.
	SetFrameCallback(callback FrameCallback)

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are composited in ascending key order into the same targets.
	// Each scene is sorted on its own, so depth order holds only within a
	// scene: splats of a higher key land over those of a lower key whatever
	// their depth. Put splats that must interleave in one scene.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// Camera returns the camera applied to every active scene before each frame, or nil.
	Camera() camera.Camera

	// SetCamera replaces the camera. A nil camera leaves scene matrices untouched.
	SetCamera(c camera.Camera)

	// Targets returns the frame outputs.
	Targets() scene.Targets

	// SetTargets replaces the frame outputs. Takes effect from the next frame.
	SetTargets(t scene.Targets)

	// SetClearColor sets the RGBA color the color target is cleared to before each frame.
	SetClearColor(rgba [4]float32)

	// Resize resizes every target that supports it and updates the camera aspect.
	//
	// Parameters:
	//   - width: new width in pixels
	//   - height: new height in pixels
	Resize(width, height int)

	// RenderOnce renders a single frame on the calling goroutine. It is
	// serialized with the background loop and may be used without Start.
	//
	// Parameters:
	//   - ctx: cancels the frame early
	//
	// Returns:
	//   - scene.FrameStats: combined statistics of all active scenes
	//   - error: the first render error, ErrQuit, or the context error
	RenderOnce(ctx context.Context) (scene.FrameStats, error)

	// Pause stops the render loop after the current frame. The tick loop keeps running.
	Pause()

	// Resume restarts a paused render loop.
	Resume()

	// Paused reports whether the render loop is paused.
	Paused() bool

	// Start launches the tick, render and quit goroutines and returns immediately.
	// Calling Start more than once has no effect.
	Start()

	// Run starts the engine and blocks. With a window it runs the window message
	// loop until the window closes and then quits; headless it blocks until Quit.
	Run()

	// Wait blocks until every engine goroutine has exited.
	Wait()

	// Quit signals all engine goroutines to stop and cancels the frame in flight.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		resumeCh:        make(chan struct{}, 1),
		ctx:             ctx,
		cancel:          cancel,
		scenes:          make(map[int]scene.Scene),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.Resize)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	common.Logger().Info("engine started", "scenes", len(e.Scenes()))
	e.handle()
}

func (e *engine) Run() {
	e.Start()
	if e.window == nil {
		e.Wait()
		return
	}
	e.window.ProcessMessages()
	e.Quit()
	e.Wait()
}

func (e *engine) Wait() {
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel and cancels the engine context.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.cancel()
		close(e.quitChannel)
		common.Logger().Info("engine stopped")
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if cb := e.tickCallback.Load(); cb != nil {
				(*cb)(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Each iteration renders every active scene into the targets unless paused.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Warn("render goroutine recovered from panic", "panic", fmt.Sprint(r))
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		if e.paused.Load() {
			select {
			case <-e.quitChannel:
				return
			case <-e.resumeCh:
			}
			lastRender = time.Now()
			continue
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		_, err := e.renderFrame(e.ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, scene.ErrNoColorTarget) {
			common.Logger().Debug("frame failed", "err", err)
		}

		if cb := e.renderCallback.Load(); cb != nil {
			(*cb)(dt)
		}

		if e.profilingEnabled.Load() {
			e.profiler.Tick()
		}

		// Frame rate limiting; an unconfigured color target idles at the same cap.
		limit := time.Duration(e.renderFrameLimit.Load())
		if limit == 0 && errors.Is(err, scene.ErrNoColorTarget) {
			limit = e.engineTickRate
		}
		if limit > 0 {
			elapsed := time.Since(lastRender)
			if remaining := limit - elapsed; remaining > 0 {
				select {
				case <-e.quitChannel:
					return
				case <-time.After(remaining):
				}
			}
		}
	}
}

// renderFrame applies the camera, clears the targets and composites every active
// scene in ascending key order.
func (e *engine) renderFrame(ctx context.Context) (scene.FrameStats, error) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	var total scene.FrameStats
	if e.targets.Color == nil {
		return total, scene.ErrNoColorTarget
	}

	keys := make([]int, 0, len(e.scenes))
	for k, s := range e.scenes {
		if s.Active() {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)

	if e.camera != nil {
		e.camera.Update()
		for _, k := range keys {
			e.camera.Apply(e.scenes[k])
		}
	}

	e.targets.Color.Clear(e.clearColor[:]...)
	if e.targets.Depth != nil {
		e.targets.Depth.Clear(1)
	}
	if e.targets.ID != nil {
		e.targets.ID.Clear(-1)
	}

	start := time.Now()
	var err error
	for _, k := range keys {
		var stats scene.FrameStats
		stats, err = e.scenes[k].Render(ctx, e.targets)
		total.Splats += stats.Splats
		total.Drawn += stats.Drawn
		total.Culled += stats.Culled
		total.Fragments += stats.Fragments
		if err != nil {
			break
		}
	}
	total.Duration = time.Since(start)

	if err == nil {
		e.profiler.Record(total)
	}
	if e.frameCallback != nil {
		e.frameCallback(e.targets, total, err)
	}
	return total, err
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

func (e *engine) RenderOnce(ctx context.Context) (scene.FrameStats, error) {
	select {
	case <-e.quitChannel:
		return scene.FrameStats{}, ErrQuit
	default:
	}

	// Quit cancels the synchronous frame too.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	return e.renderFrame(ctx)
}

func (e *engine) Pause() {
	e.paused.Store(true)
}

func (e *engine) Resume() {
	e.paused.Store(false)
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
}

func (e *engine) Paused() bool {
	return e.paused.Load()
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}

	// Non-blocking send; a pending update is replaced by the newer rate.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
// Safe to call while the engine runs.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	storeCallback(&e.tickCallback, callback)
}

// SetRenderCallback registers the function called each render frame.
// Safe to call while the engine runs.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	storeCallback(&e.renderCallback, callback)
}

func storeCallback(p *atomic.Pointer[func(deltaTime float32)], callback func(deltaTime float32)) {
	if callback == nil {
		p.Store(nil)
		return
	}
	p.Store(&callback)
}

func (e *engine) SetFrameCallback(callback FrameCallback) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.frameCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit.Store(int64(frameDuration(fps)))
}

// frameDuration converts a frame rate cap to a minimum frame duration.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	out := make(map[int]scene.Scene, len(e.scenes))
	for k, s := range e.scenes {
		out[k] = s
	}
	return out
}

func (e *engine) Camera() camera.Camera {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.camera
}

func (e *engine) SetCamera(c camera.Camera) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.camera = c
}

func (e *engine) Targets() scene.Targets {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.targets
}

func (e *engine) SetTargets(t scene.Targets) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.targets = t
}

func (e *engine) SetClearColor(rgba [4]float32) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	e.clearColor = rgba
}

func (e *engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	for _, t := range []any{e.targets.Color, e.targets.Depth, e.targets.ID} {
		if r, ok := t.(resizable); ok {
			r.Resize(width, height)
		}
	}
	if e.camera != nil {
		e.camera.SetAspect(float32(width) / float32(height))
	}
	common.Logger().Debug("targets resized", "width", width, "height", height)
}
