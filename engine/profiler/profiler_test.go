package profiler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProfilerReport(t *testing.T) {
	p := NewBuildProfiler()
	p.Record("a.sfx", 100, 2*time.Millisecond)
	p.Record("b.sfx", 300, 5*time.Millisecond)
	p.Record("c.sfx", 50, time.Millisecond)

	r := p.Finish()
	assert.Equal(t, 3, r.Files)
	assert.Equal(t, 450, r.Bytes)
	assert.Equal(t, "b.sfx", r.Slowest.Name)
	assert.Positive(t, r.Elapsed)
	assert.GreaterOrEqual(t, r.Throughput, 0.0)
}

func TestBuildProfilerConcurrentRecord(t *testing.T) {
	p := NewBuildProfiler()
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Record("f", i, time.Microsecond)
		}()
	}
	wg.Wait()
	require.Len(t, p.Files(), 32)
}
