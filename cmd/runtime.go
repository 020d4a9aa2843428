package cmd

import (
	"context"
	"runtime"
	"time"

	"github.com/devopsext/proflog/counters"
)

const (
	runtimeFirst = iota
	runtimeGoroutines
	runtimeHeapAlloc
	runtimeHeapObjects
	runtimeGCPause
	runtimeUptime
	runtimeLast
)

// runtimeCounters exports the state of this process as the "runtime" set.
type runtimeCounters struct {
	set     *counters.CounterSet
	started time.Time
	numGC   uint32
}

func newRuntimeCounters() *runtimeCounters {

	set := counters.NewBuilder("runtime", runtimeFirst, runtimeLast).
		DeclareInt(runtimeGoroutines, "goroutines").
		DeclareInt(runtimeHeapAlloc, "heap_alloc").
		DeclareInt(runtimeHeapObjects, "heap_objects").
		DeclareAvgFloat(runtimeGCPause, "gc_pause").
		DeclareFloat(runtimeUptime, "uptime").
		Finalize()

	return &runtimeCounters{set: set, started: time.Now()}
}

func (rc *runtimeCounters) update() {

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	rc.set.SetInt(runtimeGoroutines, uint64(runtime.NumGoroutine()))
	rc.set.SetInt(runtimeHeapAlloc, ms.HeapAlloc)
	rc.set.SetInt(runtimeHeapObjects, ms.HeapObjects)

	// PauseNs is a ring of the last 256 cycles
	first := rc.numGC
	if ms.NumGC-first > uint32(len(ms.PauseNs)) {
		first = ms.NumGC - uint32(len(ms.PauseNs))
	}
	for n := first + 1; n <= ms.NumGC; n++ {
		pause := ms.PauseNs[(n+uint32(len(ms.PauseNs))-1)%uint32(len(ms.PauseNs))]
		rc.set.IncFloat(runtimeGCPause, float64(pause)/float64(time.Second))
	}
	rc.numGC = ms.NumGC

	rc.set.SetFloat(runtimeUptime, time.Since(rc.started).Seconds())
}

func (rc *runtimeCounters) run(ctx context.Context, interval time.Duration) {

	rc.update()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rc.update()
		}
	}
}
