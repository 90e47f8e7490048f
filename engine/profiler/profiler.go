package profiler

import (
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"
)

// Stats is one profiling sample.
type Stats struct {
	FPS          float64
	HeapMB       float64
	AllocRateMB  float64
	GCCount      uint32
	LastPauseUs  uint64
	MaxPauseUs   uint64
	SysMB        float64
	FramesInTick int
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Tick is called from the render goroutine; FPS may be read from any goroutine.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	logger         *slog.Logger
	now            func() time.Time

	fps atomic.Uint64 // math.Float64bits of the last measured FPS
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - logger: the logger samples are written to; nil uses slog.Default()
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		logger:         logger,
		now:            time.Now,
	}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - Stats: the sample taken this tick, if any
//   - bool: true if stats were sampled this tick
func (p *Profiler) Tick() (Stats, bool) {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Stats{}, false
	}

	s := Stats{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		FramesInTick: p.frameCount,
	}

	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	s.GCCount = p.memStats.NumGC
	if s.GCCount > 0 {
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if s.GCCount-startIdx > 256 {
			startIdx = s.GCCount - 256
		}
		for i := startIdx; i < s.GCCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Info("[profiler] frame stats",
		"fps", math.Round(s.FPS*100)/100,
		"heap_mb", math.Round(s.HeapMB*100)/100,
		"alloc_rate_mb", math.Round(s.AllocRateMB*100)/100,
		"gc", s.GCCount,
		"gc_last_us", s.LastPauseUs,
		"gc_max_us", s.MaxPauseUs,
		"sys_mb", math.Round(s.SysMB*100)/100)

	p.fps.Store(math.Float64bits(s.FPS))
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s, true
}

// FPS returns the frame rate measured at the last sample, or 0 before the first one.
func (p *Profiler) FPS() float64 {
	return math.Float64frombits(p.fps.Load())
}
