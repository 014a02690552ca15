// pkg/aviation/registry.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"iter"
)

///////////////////////////////////////////////////////////////////////////
// Registry

// Registry is an arena of directory entities keyed by EntityID. Entities
// are shared by many waypoints across flight plans; the registry keeps a
// count of live handles for each one. Pinned entities (those loaded
// with the navigation database) live as long as the registry does;
// unpinned entities are destroyed when their last handle is released.
type Registry struct {
	entries map[EntityID]*registryEntry
	next    EntityID
}

type registryEntry struct {
	entity Positioned
	refs   int
	pinned bool
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[EntityID]*registryEntry)}
}

// Add registers the entity, assigns it a new EntityID, and returns the id.
func (r *Registry) Add(e Positioned, pinned bool) (EntityID, error) {
	s, ok := e.(interface{ setEntityID(EntityID) })
	if !ok || e.EntityID() != 0 {
		return 0, fmt.Errorf("%s: %w", e.Ident(), ErrUnregisteredEntity)
	}

	r.next++
	s.setEntityID(r.next)
	r.entries[r.next] = &registryEntry{entity: e, pinned: pinned}
	return r.next, nil
}

// Lookup returns the entity with the given id, if it is live.
func (r *Registry) Lookup(id EntityID) (Positioned, bool) {
	if r == nil {
		return nil, false
	}
	if e, ok := r.entries[id]; ok {
		return e.entity, true
	}
	return nil, false
}

func (r *Registry) Live(id EntityID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// RefCount returns the number of live handles to the entity.
func (r *Registry) RefCount(id EntityID) int {
	if r == nil {
		return 0
	}
	if e, ok := r.entries[id]; ok {
		return e.refs
	}
	return 0
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// All returns all live entities in id order.
func (r *Registry) All() iter.Seq[Positioned] {
	return func(yield func(Positioned) bool) {
		if r == nil {
			return
		}
		for id := EntityID(1); id <= r.next; id++ {
			if e, ok := r.entries[id]; ok {
				if !yield(e.entity) {
					return
				}
			}
		}
	}
}

// Acquire returns a new handle to the entity with the given id. It
// returns nil if the entity is not live.
func (r *Registry) Acquire(id EntityID) *Handle {
	if r == nil {
		return nil
	}
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	e.refs++
	return &Handle{registry: r, id: id, entity: e.entity}
}

func (r *Registry) release(id EntityID) {
	e, ok := r.entries[id]
	if !ok || e.refs == 0 {
		return
	}
	e.refs--
	if e.refs == 0 && !e.pinned {
		delete(r.entries, id)
	}
}

// Handle is a counted reference to a registry entity.
type Handle struct {
	registry *Registry
	id       EntityID
	entity   Positioned
	released bool
}

func (h *Handle) ID() EntityID {
	if h == nil {
		return 0
	}
	return h.id
}

// Entity returns the referenced entity, or nil after release.
func (h *Handle) Entity() Positioned {
	if h == nil || h.released {
		return nil
	}
	return h.entity
}

// Release drops the handle's reference. Calling it more than once has no
// further effect.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.registry.release(h.id)
}
