package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-sfx/common"
)

// FileStat is the parse cost of one file.
type FileStat struct {
	Name    string        `json:"name" yaml:"name"`
	Bytes   int           `json:"bytes" yaml:"bytes"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Report summarizes one build.
type Report struct {
	Files   int           `json:"files" yaml:"files"`
	Bytes   int           `json:"bytes" yaml:"bytes"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
	// Throughput is the parsed source volume in MB per second of wall time.
	Throughput float64 `json:"throughput_mb_s" yaml:"throughput_mb_s"`
	// Slowest is the file with the longest parse.
	Slowest FileStat `json:"slowest" yaml:"slowest"`

	HeapMB      float64 `json:"heap_mb" yaml:"heap_mb"`
	AllocatedMB float64 `json:"allocated_mb" yaml:"allocated_mb"`
	GCCount     uint32  `json:"gc_count" yaml:"gc_count"`
	MaxPauseUs  uint64  `json:"max_pause_us" yaml:"max_pause_us"`
}

// BuildProfiler tracks per-file parse timings and the memory cost of a build. Record is safe to
// call from parse workers.
type BuildProfiler struct {
	mu       sync.Mutex
	started  time.Time
	files    []FileStat
	memStats runtime.MemStats

	startGCCount    uint32
	startTotalAlloc uint64
}

// NewBuildProfiler creates a profiler and samples the memory statistics the build is measured
// against.
//
// Returns:
//   - *BuildProfiler: the newly created profiler
func NewBuildProfiler() *BuildProfiler {
	p := &BuildProfiler{started: time.Now()}
	runtime.ReadMemStats(&p.memStats)
	p.startGCCount = p.memStats.NumGC
	p.startTotalAlloc = p.memStats.TotalAlloc
	return p
}

// Record adds the parse cost of one file.
//
// Parameters:
//   - name: the file name
//   - bytes: the size of the file source
//   - elapsed: the time spent parsing it
func (p *BuildProfiler) Record(name string, bytes int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, FileStat{Name: name, Bytes: bytes, Elapsed: elapsed})
}

// Files returns the recorded file statistics in recording order.
func (p *BuildProfiler) Files() []FileStat {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]FileStat, len(p.files))
	copy(out, p.files)
	return out
}

// Finish samples memory statistics, logs a one-line summary at info level and returns it.
//
// Returns:
//   - Report: the build summary
func (p *BuildProfiler) Finish() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := Report{Files: len(p.files), Elapsed: time.Since(p.started)}
	for _, f := range p.files {
		r.Bytes += f.Bytes
		if f.Elapsed > r.Slowest.Elapsed {
			r.Slowest = f
		}
	}
	if secs := r.Elapsed.Seconds(); secs > 0 {
		r.Throughput = float64(r.Bytes) / 1024 / 1024 / secs
	}

	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.AllocatedMB = float64(p.memStats.TotalAlloc-p.startTotalAlloc) / 1024 / 1024

	// PauseNs is a circular buffer of the last 256 pauses.
	gcCount := p.memStats.NumGC
	r.GCCount = gcCount - p.startGCCount
	startIdx := p.startGCCount
	if gcCount-startIdx > 256 {
		startIdx = gcCount - 256
	}
	for i := startIdx; i < gcCount; i++ {
		r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
	}

	common.Logger().Info("sfx: build profile",
		"files", r.Files,
		"bytes", r.Bytes,
		"elapsed", r.Elapsed,
		"throughput_mb_s", r.Throughput,
		"slowest", r.Slowest.Name,
		"heap_mb", r.HeapMB,
		"allocated_mb", r.AllocatedMB,
		"gc", r.GCCount,
		"max_pause_us", r.MaxPauseUs)
	return r
}
