package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/swarm/render/gpu"
)

// Id refers to a queued render pipeline. Ids are dense and never reused.
type Id int

type entryState uint8

const (
	entryQueued entryState = iota
	entryReady
	entryFailed
)

type cacheEntry struct {
	desc     *gpu.RenderPipelineDescriptor
	pipeline gpu.RenderPipeline
	err      error
	state    entryState
}

// Cache owns every render pipeline of the renderer. Descriptors are queued
// during the queue stage and compiled by Process before the next draw. Entries
// are never evicted.
type Cache struct {
	mu      sync.RWMutex
	entries []cacheEntry
	pending []Id
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Queue(desc *gpu.RenderPipelineDescriptor) Id {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := Id(len(c.entries))
	c.entries = append(c.entries, cacheEntry{desc: desc.Clone(), state: entryQueued})
	c.pending = append(c.pending, id)
	return id
}

// Process compiles all queued descriptors. Failed compilations stay failed;
// their draws are skipped.
func (c *Cache) Process(compiler gpu.PipelineCompiler) error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	descs := make([]*gpu.RenderPipelineDescriptor, len(pending))
	for i, id := range pending {
		descs[i] = c.entries[id].desc
	}
	c.mu.Unlock()

	var errs []error
	for i, id := range pending {
		p, err := compiler.CompileRenderPipeline(descs[i])

		c.mu.Lock()
		e := &c.entries[id]
		if err != nil {
			e.state = entryFailed
			e.err = err
			errs = append(errs, fmt.Errorf("compile %s: %w", descs[i].Label, err))
		} else {
			e.state = entryReady
			e.pipeline = p
		}
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Get returns the compiled pipeline, false while it is queued or failed.
func (c *Cache) Get(id Id) (gpu.RenderPipeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id < 0 || int(id) >= len(c.entries) {
		return nil, false
	}
	e := c.entries[id]
	return e.pipeline, e.state == entryReady
}


func (c *Cache) Err(id Id) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id < 0 || int(id) >= len(c.entries) {
		return nil
	}
	return c.entries[id].err
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// Release frees every compiled pipeline. The cache must not be used afterwards.
func (c *Cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].pipeline != nil {
			c.entries[i].pipeline.Release()
			c.entries[i].pipeline = nil
		}
	}
}
