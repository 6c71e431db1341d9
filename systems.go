package arrow

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"unsafe"

	"github.com/rhughes91/arrow/internal/set"
	"github.com/rhughes91/arrow/quiver"
)

// noIndex marks an entity that is not in a system's dense entity list.
const noIndex = -1

// Insertion places entity e into a system's dense entity list and records
// its position in the reverse index map. Implementations must leave the two
// structures mutually consistent: every entity in the list has an index entry
// pointing at its position, and vice versa.
type Insertion func(e Entity, entities *[]Entity, index []int)

func sparseInsertion(e Entity, entities *[]Entity, index []int) {
	index[e] = len(*entities)
	*entities = append(*entities, e)
}

// System is an ordered unit of behavior matched to the entities whose
// components satisfy its requirement set. It carries an opaque static
// instance, materialized through the serialization protocol, and one
// runnable function per registered function kind.
type System struct {
	ty          *quiver.SystemType
	instance    []byte
	initialized bool
	functions   []func(*ECS, *System)
}

// Initialized reports whether the system's static instance has been set.
// Run skips uninitialized systems.
func (s *System) Initialized() bool {
	return s.initialized
}

// SetFunction installs fn in the given function slot, replacing the no-op
// default.
func (s *System) SetFunction(slot int, fn func(*ECS, *System)) {
	s.functions[slot] = fn
}

// Instance returns a copy of the system's static instance as type S.
func Instance[S any](s *System) S {
	ty := quiver.SystemTypeOf[S]()
	return ty.Decode(s.instance, 0).(S)
}

// InstanceRef returns an in-place mutable view of the system's static
// instance. Only trivially copyable payload types support views; anything
// else gets a detached zero value and a diagnostic.
func InstanceRef[S any](s *System) *S {
	ty := quiver.SystemTypeOf[S]()
	if !ty.Trivial {
		slog.Error(
			"InstanceRef requires a trivially copyable system payload",
			slog.String("type", ty.Name),
		)
		return new(S)
	}

	return (*S)(unsafe.Pointer(&s.instance[0]))
}

// SetInstance replaces the system's static instance.
func SetInstance[S any](s *System, value S) {
	ty := quiver.SystemTypeOf[S]()
	s.instance = ty.Encode(s.instance[:0], value)
	s.initialized = true
}

// CreateSystem registers a system keyed by payload type S, holding instance
// as its static data and matching every entity that holds all of the
// required component types. Systems run in ascending priority order; equal
// priorities run in creation order. A system with no requirements matches
// nothing.
//
// Creating a system whose payload type already has one in this container
// refreshes that system's instance and returns it; priority and requirements
// are unchanged.
func CreateSystem[S any](c *ECS, instance S, priority float64, requires ...*quiver.ComponentType) *System {
	ty := quiver.SystemTypeOf[S]()
	c.update()

	if slot := c.systems.pos[ty.Id]; slot != noIndex {
		sys := c.systems.systems[slot]
		SetInstance(sys, instance)
		return sys
	}

	var required []quiver.TypeId
	var seen set.Set[quiver.TypeId]
	for _, req := range requires {
		if seen.Insert(req.Id) {
			required = append(required, req.Id)
		}
	}

	entry := &systemEntry{
		ty:       ty,
		priority: priority,
		requires: required,
		index:    make([]int, 0, c.entities.total()),
		insert:   sparseInsertion,
	}
	for len(entry.index) < int(c.entities.total()) {
		entry.index = append(entry.index, noIndex)
	}

	sys := &System{
		ty:        ty,
		functions: make([]func(*ECS, *System), c.systems.funcs),
	}
	for i := range sys.functions {
		sys.functions[i] = noopFunction
	}
	SetInstance(sys, instance)

	c.systems.insertSorted(sys, entry)

	// fold in the entities that already satisfy the requirements
	for e := Entity(0); e < c.entities.total(); e++ {
		bm := c.entities.bitmap(e)
		if bm.Active() && c.systems.matches(entry, bm) {
			c.systems.insertEntity(entry, e)
		}
	}

	return sys
}

// SetInsertion replaces the insertion policy of the system keyed by S.
func SetInsertion[S any](c *ECS, insert Insertion) {
	c.systems.entryOf(quiver.SystemTypeOf[S]()).insert = insert
}

// Entities returns the dense list of entities currently matched by the
// system keyed by S. The slice is live; it reorders as entities enter and
// leave the system.
func Entities[S any](c *ECS) []Entity {
	return c.systems.entryOf(quiver.SystemTypeOf[S]()).entities
}

// Mapping returns the system's reverse index map: the position of each
// entity in the dense list, or -1 for entities the system does not match.
func Mapping[S any](c *ECS) []int {
	return c.systems.entryOf(quiver.SystemTypeOf[S]()).index
}

// CreateFunction registers a new function kind, extending every existing
// system with a no-op slot, and returns the slot index to use with
// SetFunction and Run.
func (c *ECS) CreateFunction() int {
	return c.systems.createFunction()
}

// Run invokes the function registered at the given slot on every initialized
// system, in ascending priority order.
func (c *ECS) Run(slot int) {
	if debugChecks && (slot < 0 || slot >= c.systems.funcs) {
		c.err = ErrUnknownFunction
		return
	}

	for i := 0; i < len(c.systems.systems); i++ {
		sys := c.systems.systems[i]
		if sys.initialized {
			sys.functions[slot](c, sys)
		}
	}
}

func noopFunction(*ECS, *System) {}

// systemEntry carries the matching state a system rarely touches while
// running: its requirement set, its dense entity list with the reverse index
// map, and its insertion policy.
type systemEntry struct {
	ty       *quiver.SystemType
	priority float64
	requires []quiver.TypeId
	entities []Entity
	index    []int
	insert   Insertion
}

func (en *systemEntry) requiresType(id quiver.TypeId) bool {
	return slices.Contains(en.requires, id)
}

// systemStore keeps systems sorted by priority and routes entities into the
// systems whose requirements their bitmaps satisfy.
type systemStore struct {
	systems []*System
	entries []*systemEntry

	// pos maps a system type id to the slot its system occupies in the
	// sorted slices, or noIndex if this container never created it.
	pos []int

	// funcs counts the function kinds created so far in this container.
	funcs int
}

// update grows the position table to the process-wide system type count and
// every reverse index map to the container's entity count.
func (s *systemStore) update(entities int) {
	for len(s.pos) < quiver.SystemCount() {
		s.pos = append(s.pos, noIndex)
	}

	for _, entry := range s.entries {
		for len(entry.index) < entities {
			entry.index = append(entry.index, noIndex)
		}
	}
}

func (s *systemStore) entryOf(ty *quiver.SystemType) *systemEntry {
	if int(ty.Id) >= len(s.pos) || s.pos[ty.Id] == noIndex {
		panic(fmt.Sprintf("system %s has not been created in this container", ty.Name))
	}

	return s.entries[s.pos[ty.Id]]
}

// matches reports whether the bitmap satisfies the entry's requirement set.
// An empty requirement set matches nothing.
func (s *systemStore) matches(entry *systemEntry, bm *quiver.Bitmap) bool {
	if len(entry.requires) == 0 {
		return false
	}

	for _, id := range entry.requires {
		if !bm.Test(int(id)) {
			return false
		}
	}
	return true
}

func (s *systemStore) insertEntity(entry *systemEntry, e Entity) {
	entry.insert(e, &entry.entities, entry.index)
}

// extract removes e from the entry's dense list by swapping the last entity
// into its slot. A no-op when e is not a member.
func (s *systemStore) extract(entry *systemEntry, e Entity) {
	i := entry.index[e]
	if i == noIndex {
		return
	}

	last := len(entry.entities) - 1
	moved := entry.entities[last]
	entry.entities[i] = moved
	entry.index[moved] = i

	entry.entities = entry.entities[:last]
	entry.index[e] = noIndex
}

// insertSorted places a new system at its position in the priority order and
// shifts every later system one slot down, updating the position table to
// keep type-id addressing valid.
func (s *systemStore) insertSorted(sys *System, entry *systemEntry) {
	slot := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].priority > entry.priority
	})

	s.systems = slices.Insert(s.systems, slot, sys)
	s.entries = slices.Insert(s.entries, slot, entry)

	for id, p := range s.pos {
		if p >= slot {
			s.pos[id] = p + 1
		}
	}
	s.pos[entry.ty.Id] = slot
}

// createFunction registers a new function kind and extends every existing
// system with a no-op slot.
func (s *systemStore) createFunction() int {
	for _, sys := range s.systems {
		sys.functions = append(sys.functions, noopFunction)
	}

	slot := s.funcs
	s.funcs++
	return slot
}
