package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/rasterizer"
)

// Profiler tracks frame rate, rasterizer throughput and memory statistics.
// Outputs a summary through the shared logger at a configurable interval.
type Profiler struct {
	mu sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	window Summary
	last   Summary
}

// Summary aggregates the frames recorded during one reporting interval.
type Summary struct {
	Frames    int
	FPS       float64
	Splats    int
	Drawn     int
	Culled    int
	Fragments int
	// RenderTime is the summed rasterizer time of every recorded frame.
	RenderTime time.Duration
}

// MeanFrameMs returns the average rasterizer time per recorded frame in milliseconds.
func (s Summary) MeanFrameMs() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.RenderTime.Microseconds()) / 1000 / float64(s.Frames)
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// SetUpdateInterval changes how often Tick emits a summary. Non-positive
// values reset it to one second.
func (p *Profiler) SetUpdateInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d <= 0 {
		d = time.Second
	}
	p.updateInterval = d
}

// Record adds the statistics of one rendered frame to the current interval.
//
// Parameters:
//   - stats: the rasterizer result for the frame
func (p *Profiler) Record(stats rasterizer.FrameStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.window.Frames++
	p.window.Splats += stats.Splats
	p.window.Drawn += stats.Drawn
	p.window.Culled += stats.Culled
	p.window.Fragments += stats.Fragments
	p.window.RenderTime += stats.Duration
}

// Last returns the summary emitted by the most recent reporting interval.
func (p *Profiler) Last() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, mean render time, splats drawn and culled, heap usage,
// allocation rate and GC pause times.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	summary := p.window
	summary.FPS = fps
	var drawnPerFrame int
	if summary.Frames > 0 {
		drawnPerFrame = summary.Drawn / summary.Frames
	}

	common.Logger().Info("profiler",
		"fps", fps,
		"frame_ms", summary.MeanFrameMs(),
		"drawn", drawnPerFrame,
		"culled", summary.Culled,
		"heap_mb", allocMB,
		"alloc_mb_s", allocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", sysMB,
	)

	p.last = summary
	p.window = Summary{}
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
