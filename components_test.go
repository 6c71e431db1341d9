package arrow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddGetSetRemove(t *testing.T) {
	c := New()
	e := c.CreateEntity()

	Add(c, e, position{1, 2, 3})
	require.True(t, Has[position](c, e))
	require.Equal(t, position{1, 2, 3}, Get[position](c, e))

	Set(c, e, position{4, 5, 6})
	require.Equal(t, position{4, 5, 6}, Get[position](c, e))

	Ref[position](c, e).Y = 50
	require.Equal(t, position{4, 50, 6}, Get[position](c, e))

	removed := Remove[position](c, e)
	require.Equal(t, position{4, 50, 6}, removed)
	require.False(t, Has[position](c, e))
	require.Equal(t, ErrNone, c.Error())
}

func TestDuplicateAdd(t *testing.T) {
	c := New()
	e := c.CreateEntity()

	Add(c, e, health{Points: 10})
	Add(c, e, health{Points: 99})
	require.Equal(t, ErrDuplicateComponent, c.Error())

	// the original record is untouched
	require.Equal(t, health{Points: 10}, Get[health](c, e))
}

func TestMissingComponent(t *testing.T) {
	c := New()
	e := c.CreateEntity()

	require.Equal(t, position{}, Get[position](c, e))
	require.Equal(t, ErrMissingComponent, c.Error())

	Set(c, e, position{1, 1, 1})
	require.Equal(t, ErrMissingComponent, c.Error())

	require.Equal(t, position{}, Remove[position](c, e))
	require.Equal(t, ErrMissingComponent, c.Error())
}

func TestStringComponents(t *testing.T) {
	c := New()
	e := c.CreateEntity()

	Add(c, e, "hello")
	require.Equal(t, "hello", Get[string](c, e))

	Set(c, e, "a considerably longer replacement")
	require.Equal(t, "a considerably longer replacement", Get[string](c, e))

	Set(c, e, "hi")
	require.Equal(t, "hi", Get[string](c, e))

	require.Equal(t, "hi", Remove[string](c, e))
	require.False(t, Has[string](c, e))
}

func TestSliceComponents(t *testing.T) {
	c := New()
	e := c.CreateEntity()

	Add(c, e, []int32{3, 1, 4, 1, 5})
	require.Equal(t, []int32{3, 1, 4, 1, 5}, Get[[]int32](c, e))

	Set(c, e, []int32{9})
	require.Equal(t, []int32{9}, Get[[]int32](c, e))
}

// Churning variable-size records must keep every surviving entity's offset
// pointing at its own record.
func TestOffsetConsistencyAfterChurn(t *testing.T) {
	c := New()

	want := map[Entity]string{}
	var entities []Entity
	for i := range 8 {
		e := c.CreateEntity()
		entities = append(entities, e)

		text := fmt.Sprintf("value-%d", i)
		Add(c, e, text)
		want[e] = text
	}

	// give half of them a second component so two pools churn independently
	for i, e := range entities {
		if i%2 == 0 {
			Add(c, e, position{uint32(i), 0, 0})
		}
	}

	Set(c, entities[2], "x")
	want[entities[2]] = "x"

	Set(c, entities[5], "a string that grew far beyond its first size")
	want[entities[5]] = "a string that grew far beyond its first size"

	Remove[string](c, entities[0])
	delete(want, entities[0])

	Remove[string](c, entities[4])
	delete(want, entities[4])

	for e, text := range want {
		require.Equal(t, text, Get[string](c, e), "entity %s", e)
	}
	for i, e := range entities {
		if i%2 == 0 {
			require.Equal(t, position{uint32(i), 0, 0}, Get[position](c, e))
		}
	}
	require.Equal(t, ErrNone, c.Error())
}

type tag struct{}

func TestTagComponents(t *testing.T) {
	c := New()
	a := c.CreateEntity()
	b := c.CreateEntity()

	Add(c, a, tag{})
	Add(c, b, tag{})

	require.True(t, Has[tag](c, a))
	require.Equal(t, tag{}, Get[tag](c, a))
	require.NotNil(t, Ref[tag](c, a))

	require.Equal(t, tag{}, Remove[tag](c, a))
	require.False(t, Has[tag](c, a))

	// the other entity's record survives the compaction
	require.True(t, Has[tag](c, b))
	require.Equal(t, tag{}, Get[tag](c, b))
	require.Equal(t, ErrNone, c.Error())
}

func TestShareTrivial(t *testing.T) {
	c := New()
	a := c.CreateEntity()
	b := c.CreateEntity()

	Add(c, a, velocity{1, 0, 0})
	Share[velocity](c, b, a)
	require.True(t, Has[velocity](c, b))

	// one physical record: a mutation through either handle is seen by both
	Ref[velocity](c, a).X = 7
	require.Equal(t, velocity{7, 0, 0}, Get[velocity](c, b))

	Ref[velocity](c, b).Y = 2
	require.Equal(t, velocity{7, 2, 0}, Get[velocity](c, a))
}

func TestShareReleasesOwnRecord(t *testing.T) {
	c := New()
	a := c.CreateEntity()
	b := c.CreateEntity()

	Add(c, a, health{Points: 100})
	Add(c, b, health{Points: 1})

	Share[health](c, b, a)
	require.Equal(t, health{Points: 100}, Get[health](c, b))

	Ref[health](c, b).Points = 55
	require.Equal(t, health{Points: 55}, Get[health](c, a))
}

func TestShareString(t *testing.T) {
	c := New()
	a := c.CreateEntity()
	b := c.CreateEntity()

	Add(c, a, "shared text")
	Share[string](c, b, a)

	require.Equal(t, "shared text", Get[string](c, b))

	Set(c, a, "rewritten")
	require.Equal(t, "rewritten", Get[string](c, b))
}

func TestShareMissingSource(t *testing.T) {
	c := New()
	a := c.CreateEntity()
	b := c.CreateEntity()

	Share[position](c, b, a)
	require.Equal(t, ErrMissingComponent, c.Error())
	require.False(t, Has[position](c, b))
}

func TestActiveComponentKeepsData(t *testing.T) {
	c := New()
	e := c.CreateEntity()

	Add(c, e, position{8, 8, 8})
	require.True(t, ActiveComponent[position](c, e))

	SetActiveComponent[position](c, e, false)
	require.False(t, ActiveComponent[position](c, e))
	require.True(t, Has[position](c, e))
	require.Equal(t, position{8, 8, 8}, Get[position](c, e))

	SetActiveComponent[position](c, e, true)
	require.True(t, ActiveComponent[position](c, e))

	// a no-op for types the entity does not hold
	SetActiveComponent[velocity](c, e, true)
	require.False(t, ActiveComponent[velocity](c, e))
	require.Equal(t, ErrNone, c.Error())
}

func TestRefRequiresTrivialType(t *testing.T) {
	c := New()
	e := c.CreateEntity()
	Add(c, e, "not viewable in place")

	p := Ref[string](c, e)
	require.NotNil(t, p)
	require.Equal(t, "", *p)

	// the record itself is unharmed
	require.Equal(t, "not viewable in place", Get[string](c, e))
}

func BenchmarkGet1k(b *testing.B) {
	c := New()
	var entities []Entity
	for i := range 1000 {
		e := c.CreateEntity()
		Add(c, e, position{uint32(i), 0, 0})
		entities = append(entities, e)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var dummy uint32
	for b.Loop() {
		for _, e := range entities {
			dummy += Get[position](c, e).X
		}
	}
	_ = dummy
}

func TestRemoveEntityReleasesComponents(t *testing.T) {
	c := New()
	a := c.CreateEntity()
	b := c.CreateEntity()

	Add(c, a, position{1, 1, 1})
	Add(c, a, "gone soon")
	Add(c, b, position{2, 2, 2})
	Add(c, b, "survivor")

	c.RemoveEntity(a)

	require.Equal(t, position{2, 2, 2}, Get[position](c, b))
	require.Equal(t, "survivor", Get[string](c, b))
	require.Equal(t, ErrNone, c.Error())
}
