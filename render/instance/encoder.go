package instance

import (
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

const (
	// DefaultParallelThreshold is the group length above which encoding is
	// split across the worker pool.
	DefaultParallelThreshold = 64 * 1024
	maxEncodeChunks          = 64
	encodeQueueSize          = 256
)

// Encoder packs groups into instance buffer bytes. Large groups are split into
// chunks encoded on a pool of reusable workers.
type Encoder struct {
	threshold int
	workers   int
	parallel  bool
	pool      worker.DynamicWorkerPool
	taskID    int
}

// NewEncoder returns an encoder using up to workers goroutines for groups longer
// than threshold records. workers <= 1 disables parallel encoding.
func NewEncoder(workers, threshold int) *Encoder {
	if threshold <= 0 {
		threshold = DefaultParallelThreshold
	}
	e := &Encoder{threshold: threshold, workers: workers}
	if workers > 1 {
		e.pool = worker.NewDynamicWorkerPool(workers, encodeQueueSize, 1*time.Second)
		e.parallel = true
	}
	return e
}

// Encode writes g into dst (reusing its capacity) and returns the packed bytes.
func (e *Encoder) Encode(dst []byte, g Group) []byte {
	size := len(g) * RecordSize
	dst = slices.Grow(dst[:0], size)[:size]
	if !e.parallel || len(g) <= e.threshold {
		encodeRange(dst, g)
		return dst
	}

	chunks := min(e.workers*4, maxEncodeChunks)
	per := (len(g) + chunks - 1) / chunks

	// Workers are reused across frames; the WaitGroup is the per-call barrier.
	var wg sync.WaitGroup
	for start := 0; start < len(g); start += per {
		end := min(start+per, len(g))
		part := g[start:end]
		out := dst[start*RecordSize : end*RecordSize]

		wg.Add(1)
		e.taskID++
		e.pool.SubmitTask(worker.Task{
			ID: e.taskID,
			Do: func() (any, error) {
				defer wg.Done()
				encodeRange(out, part)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return dst
}

// Close stops the worker pool. Encoding after Close runs on the caller.
func (e *Encoder) Close() {
	if e.parallel {
		e.pool.Stop()
		e.parallel = false
	}
}
