// Package arrow is a data-oriented entity-component-system runtime. Entities
// are lightweight integer handles, components are arbitrarily typed payloads
// stored in per-type byte pools, and systems iterate over the entities whose
// attached component set satisfies their declared requirements.
package arrow

import (
	"github.com/rhughes91/arrow/quiver"
)

// Entity is an integer handle identifying a bundle of attached components.
type Entity = quiver.Entity

// ECS is a self-contained container composing entity, component, and system
// storage behind one API. Containers share nothing but the process-wide type
// registries. All operations assume a single logical thread of control;
// callers running a container from multiple goroutines must synchronize
// externally.
type ECS struct {
	entities   entityStore
	components componentStore
	systems    systemStore
	err        ErrorCode
}

func New() *ECS {
	return &ECS{}
}

// update brings every registry in sync with the current process-wide type
// counts and this container's entity count. Types are discovered at first
// use, which may be later than container construction, so every public
// operation starts here.
func (c *ECS) update() {
	c.entities.update(quiver.ComponentCount())
	n := int(c.entities.total())
	c.components.update(n)
	c.systems.update(n)
}

// CreateEntity returns a new entity handle, reusing a recycled one when
// available. The entity starts active and holds no components.
func (c *ECS) CreateEntity() Entity {
	c.entities.update(quiver.ComponentCount())
	e := c.entities.create()

	n := int(c.entities.total())
	c.components.update(n)
	c.systems.update(n)

	return e
}

// RemoveEntity releases every component attached to e, removes e from every
// system it matched, and recycles the handle for future CreateEntity calls.
func (c *ECS) RemoveEntity(e Entity) {
	c.update()

	if debugChecks && !c.entities.contains(e) {
		c.err = ErrUnknownEntity
		return
	}

	for _, entry := range c.systems.entries {
		c.systems.extract(entry, e)
	}

	c.components.removeEntity(e)
	c.entities.remove(e)
}

// Contains reports whether e was created by this container. Recycled handles
// still count as known.
func (c *ECS) Contains(e Entity) bool {
	return c.entities.contains(e)
}

// EntityCount returns the number of entities ever created, including
// recycled ones.
func (c *ECS) EntityCount() Entity {
	return c.entities.total()
}

// AliveCount returns the number of entities currently alive.
func (c *ECS) AliveCount() Entity {
	return c.entities.alive
}

// ComponentCount returns the number of component types registered so far,
// process wide.
func (c *ECS) ComponentCount() int {
	return quiver.ComponentCount()
}

// Active reports whether e participates in system matching.
func (c *ECS) Active(e Entity) bool {
	c.update()

	if debugChecks && !c.entities.contains(e) {
		c.err = ErrUnknownEntity
		return false
	}

	return c.entities.bitmap(e).Active()
}

// SetActive toggles e's participation in system matching. Deactivating an
// entity removes it from every matched system but leaves its components
// attached and accessible; reactivating re-inserts it wherever its bitmap
// matches.
func (c *ECS) SetActive(e Entity, active bool) {
	c.update()

	if debugChecks && !c.entities.contains(e) {
		c.err = ErrUnknownEntity
		return
	}

	bm := c.entities.bitmap(e)
	if bm.Active() == active {
		return
	}
	bm.SetActive(active)

	if active {
		for _, entry := range c.systems.entries {
			if entry.index[e] == noIndex && c.systems.matches(entry, bm) {
				c.systems.insertEntity(entry, e)
			}
		}
	} else {
		for _, entry := range c.systems.entries {
			c.systems.extract(entry, e)
		}
	}
}

// componentAttached records that e now holds component type id and inserts e
// into every system whose requirement set newly matches.
func (c *ECS) componentAttached(e Entity, id quiver.TypeId) {
	bm := c.entities.bitmap(e)
	bm.Set(int(id), true)

	if !bm.Active() {
		return
	}

	for _, entry := range c.systems.entries {
		if entry.requiresType(id) && entry.index[e] == noIndex && c.systems.matches(entry, bm) {
			c.systems.insertEntity(entry, e)
		}
	}
}

// componentDetached extracts e from every system requiring component type id
// and clears the bitmap bit. Must run before the backing record is released.
func (c *ECS) componentDetached(e Entity, id quiver.TypeId) {
	for _, entry := range c.systems.entries {
		if entry.requiresType(id) {
			c.systems.extract(entry, e)
		}
	}

	c.entities.bitmap(e).Set(int(id), false)
}

// entityStore allocates and recycles entity handles and owns each entity's
// component membership bitmap.
type entityStore struct {
	alive     Entity
	recycled  []Entity
	bitmaps   []quiver.Bitmap
	typeCount int
}

// update grows every bitmap to the current component type count plus the
// reserved active bit.
func (s *entityStore) update(typeCount int) {
	if typeCount == s.typeCount {
		return
	}
	s.typeCount = typeCount

	for i := range s.bitmaps {
		s.bitmaps[i].Grow(typeCount + 1)
	}
}

func (s *entityStore) create() Entity {
	var e Entity
	if n := len(s.recycled); n > 0 {
		e = s.recycled[n-1]
		s.recycled = s.recycled[:n-1]
		s.bitmaps[e].Reset(s.typeCount + 1)
	} else {
		e = s.alive
		s.bitmaps = append(s.bitmaps, quiver.NewBitmap(s.typeCount+1))
	}

	s.alive++
	s.bitmaps[e].SetActive(true)
	return e
}

func (s *entityStore) remove(e Entity) {
	bm := &s.bitmaps[e]
	bm.Reset(bm.Len())

	s.recycled = append(s.recycled, e)
	s.alive--
}

func (s *entityStore) contains(e Entity) bool {
	return e < s.total()
}

func (s *entityStore) total() Entity {
	return s.alive + Entity(len(s.recycled))
}

func (s *entityStore) bitmap(e Entity) *quiver.Bitmap {
	return &s.bitmaps[e]
}
