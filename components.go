package arrow

import (
	"log/slog"

	"github.com/rhughes91/arrow/quiver"
)

// noOffset marks an entity that does not hold a given component type.
const noOffset = -1

// ComponentOf returns the registered component type for T, for use in a
// system's requirement list.
func ComponentOf[T any]() *quiver.ComponentType {
	return quiver.ComponentTypeOf[T]()
}

// Add attaches a component of type T to entity e, initialized to value.
// Adding a type the entity already holds is an error (ErrDuplicateComponent);
// the existing record is left untouched.
func Add[T any](c *ECS, e Entity, value T) {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	if debugChecks {
		if !c.entities.contains(e) {
			c.err = ErrUnknownEntity
			return
		}
		if c.components.offsetOf(ty, e) != noOffset {
			c.err = ErrDuplicateComponent
			return
		}
	}

	c.components.add(ty, e, value)
	c.componentAttached(e, ty.Id)
}

// Get returns a copy of the component of type T attached to e.
func Get[T any](c *ECS, e Entity) T {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	var zero T
	if debugChecks && !c.entities.contains(e) {
		c.err = ErrUnknownEntity
		return zero
	}

	offset := c.components.offsetOf(ty, e)
	if debugChecks && offset == noOffset {
		c.err = ErrMissingComponent
		return zero
	}

	pool := c.components.pool(ty)
	if ty.Trivial {
		return *(*T)(pool.Ptr(offset))
	}
	return pool.Value(offset).(T)
}

// Ref returns an in-place mutable view of the component of type T attached
// to e. Only trivially copyable types support views; custom-regime types must
// use the Get/Set pair. The pointer stays valid until the next operation that
// grows or compacts T's pool. On a failed precondition the returned pointer
// refers to a shared zero value.
func Ref[T any](c *ECS, e Entity) *T {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	pool := c.components.pool(ty)
	if !ty.Trivial {
		slog.Error(
			"Ref requires a trivially copyable component type",
			slog.String("type", ty.Name),
		)
		return (*T)(pool.DefaultPtr())
	}

	if debugChecks {
		if !c.entities.contains(e) {
			c.err = ErrUnknownEntity
			return (*T)(pool.DefaultPtr())
		}
		if c.components.offsetOf(ty, e) == noOffset {
			c.err = ErrMissingComponent
			return (*T)(pool.DefaultPtr())
		}
	}

	return (*T)(pool.Ptr(c.components.offsetOf(ty, e)))
}

// Set overwrites the component of type T attached to e. For custom-regime
// types the record is re-serialized in place; a size change shifts the pool
// and every affected offset is adjusted.
func Set[T any](c *ECS, e Entity, value T) {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	if debugChecks {
		if !c.entities.contains(e) {
			c.err = ErrUnknownEntity
			return
		}
		if c.components.offsetOf(ty, e) == noOffset {
			c.err = ErrMissingComponent
			return
		}
	}

	c.components.set(ty, e, value)
}

// Remove detaches the component of type T from e and returns the removed
// value.
func Remove[T any](c *ECS, e Entity) T {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	var zero T
	if debugChecks {
		if !c.entities.contains(e) {
			c.err = ErrUnknownEntity
			return zero
		}
		if c.components.offsetOf(ty, e) == noOffset {
			c.err = ErrMissingComponent
			return zero
		}
	}

	c.componentDetached(e, ty.Id)
	return c.components.remove(ty, e).(T)
}

// Has reports whether e holds a component of type T, attached or shared.
func Has[T any](c *ECS, e Entity) bool {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	if debugChecks && !c.entities.contains(e) {
		c.err = ErrUnknownEntity
		return false
	}

	return c.components.offsetOf(ty, e) != noOffset
}

// Share gives e access to the same component record of type T that from
// holds. The two handles alias one physical record: for trivial types a
// mutation through either Ref is visible through the other, while
// custom-regime reads still materialize independent copies. If e already
// held a distinct record of T, that record is released first.
//
// Aliasing is by storage offset only. Removing the record through one handle
// leaves the other handle's offset dangling; detach the aliases first.
func Share[T any](c *ECS, e, from Entity) {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	if debugChecks {
		if !c.entities.contains(e) || !c.entities.contains(from) {
			c.err = ErrUnknownEntity
			return
		}
		if c.components.offsetOf(ty, from) == noOffset {
			c.err = ErrMissingComponent
			return
		}
	}

	if e == from {
		return
	}

	had := c.components.offsetOf(ty, e) != noOffset
	c.components.share(ty, e, from)

	if !had {
		c.componentAttached(e, ty.Id)
	}
}

// ActiveComponent reports whether the component of type T attached to e
// currently participates in system matching.
func ActiveComponent[T any](c *ECS, e Entity) bool {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	if debugChecks && !c.entities.contains(e) {
		c.err = ErrUnknownEntity
		return false
	}

	return c.entities.bitmap(e).Test(int(ty.Id))
}

// SetActiveComponent toggles the matching bit for e's component of type T
// without detaching its data. Deactivating pulls e out of every system
// requiring T; reactivating re-inserts it wherever the bitmap then matches.
// A no-op if e does not hold T.
func SetActiveComponent[T any](c *ECS, e Entity, active bool) {
	ty := quiver.ComponentTypeOf[T]()
	c.update()

	if debugChecks && !c.entities.contains(e) {
		c.err = ErrUnknownEntity
		return
	}

	if c.components.offsetOf(ty, e) == noOffset {
		return
	}
	if c.entities.bitmap(e).Test(int(ty.Id)) == active {
		return
	}

	if active {
		c.componentAttached(e, ty.Id)
	} else {
		c.componentDetached(e, ty.Id)
	}
}

// componentStore owns one pool and one entity-to-offset index map per
// registered component type and keeps the maps consistent as pools compact.
type componentStore struct {
	pools []*quiver.Pool
	index [][]int
}

// update lazily back-fills pools and index maps for component types
// registered after this container was constructed, and grows every map to
// the current entity count.
func (s *componentStore) update(entities int) {
	for len(s.pools) < quiver.ComponentCount() {
		ty := quiver.ComponentTypeAt(quiver.TypeId(len(s.pools)))
		s.pools = append(s.pools, quiver.NewPool(ty))
		s.index = append(s.index, nil)
	}

	for id := range s.index {
		for len(s.index[id]) < entities {
			s.index[id] = append(s.index[id], noOffset)
		}
	}
}

func (s *componentStore) pool(ty *quiver.ComponentType) *quiver.Pool {
	return s.pools[ty.Id]
}

func (s *componentStore) offsetOf(ty *quiver.ComponentType, e Entity) int {
	return s.index[ty.Id][e]
}

func (s *componentStore) add(ty *quiver.ComponentType, e Entity, value any) {
	s.index[ty.Id][e] = s.pools[ty.Id].Insert(value)
}

// remove releases e's record of the given type. Every other offset past the
// removed record shifts down by the freed byte count; e's own index becomes
// the sentinel.
func (s *componentStore) remove(ty *quiver.ComponentType, e Entity) any {
	offsets := s.index[ty.Id]
	offset := offsets[e]

	pool := s.pools[ty.Id]
	value := pool.Value(offset)
	freed := pool.Remove(offset)

	offsets[e] = noOffset
	for i, o := range offsets {
		if o > offset {
			offsets[i] = o - freed
		}
	}

	return value
}

// set re-serializes e's record in place and shifts trailing offsets by the
// size delta, if any.
func (s *componentStore) set(ty *quiver.ComponentType, e Entity, value any) {
	offsets := s.index[ty.Id]
	offset := offsets[e]

	delta := s.pools[ty.Id].Update(offset, value)
	if delta == 0 {
		return
	}

	for i, o := range offsets {
		if o > offset {
			offsets[i] = o + delta
		}
	}
}

// share aliases e's index entry to from's record, releasing e's own record
// first when it held one.
func (s *componentStore) share(ty *quiver.ComponentType, e, from Entity) {
	offsets := s.index[ty.Id]
	if offsets[e] != noOffset {
		s.remove(ty, e)
	}

	offsets[e] = offsets[from]
}

// removeEntity releases every record e holds.
func (s *componentStore) removeEntity(e Entity) {
	for id := range s.pools {
		if s.index[id][e] != noOffset {
			s.remove(s.pools[id].Type(), e)
		}
	}
}
