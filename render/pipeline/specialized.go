package pipeline

import (
	"sync"

	"github.com/gekko3d/swarm/render/mesh"
)

type specializedKey struct {
	key    Key
	layout string
}

// SpecializedMeshPipelines remembers which pipeline was built for each key and
// vertex layout. It is append-only and safe for concurrent use: lookups of
// known variants only take the read lock.
type SpecializedMeshPipelines struct {
	mu     sync.RWMutex
	ids    map[specializedKey]Id
	builds int
}

func NewSpecializedMeshPipelines() *SpecializedMeshPipelines {
	return &SpecializedMeshPipelines{ids: make(map[specializedKey]Id)}
}

// Specialize returns the pipeline id for key and layout, building and queueing
// the variant on first request. Errors are not cached; the caller skips the item.
func (s *SpecializedMeshPipelines) Specialize(cache *Cache, sp MeshSpecializer, key Key, layout mesh.Layout) (Id, error) {
	k := specializedKey{key: key, layout: layout.Key()}

	s.mu.RLock()
	id, ok := s.ids[k]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[k]; ok {
		return id, nil
	}

	desc, err := sp.Specialize(key, layout)
	if err != nil {
		return 0, err
	}
	id = cache.Queue(desc)
	s.ids[k] = id
	s.builds++
	return id, nil
}

// Builds counts how many variants were specialized.
func (s *SpecializedMeshPipelines) Builds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builds
}

func (s *SpecializedMeshPipelines) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
