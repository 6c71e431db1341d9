package arrow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type position struct{ X, Y, Z uint32 }

type velocity struct{ X, Y, Z float32 }

type health struct{ Points int32 }

func TestEntityLifecycle(t *testing.T) {
	c := New()

	e := c.CreateEntity()
	require.True(t, c.Contains(e))
	require.True(t, c.Active(e))
	require.Equal(t, Entity(1), c.EntityCount())
	require.Equal(t, Entity(1), c.AliveCount())

	c.RemoveEntity(e)
	require.Equal(t, Entity(0), c.AliveCount())

	// recycled handles still count as known
	require.Equal(t, Entity(1), c.EntityCount())
	require.True(t, c.Contains(e))
	require.Equal(t, ErrNone, c.Error())
}

func TestEntityRecycling(t *testing.T) {
	c := New()

	var created []Entity
	for range 5 {
		created = append(created, c.CreateEntity())
	}
	for _, e := range created {
		Add(c, e, position{1, 1, 1})
	}

	c.RemoveEntity(created[1])
	c.RemoveEntity(created[3])
	require.Equal(t, Entity(3), c.AliveCount())

	// most recently removed handle comes back first
	a := c.CreateEntity()
	b := c.CreateEntity()
	require.Equal(t, created[3], a)
	require.Equal(t, created[1], b)
	require.Equal(t, Entity(5), c.EntityCount())

	// reissued handles start clean: active, no components carried over
	require.True(t, c.Active(a))
	require.False(t, Has[position](c, a))
	require.False(t, Has[position](c, b))

	// with the recycle pool drained, creation mints a fresh handle
	f := c.CreateEntity()
	require.Equal(t, Entity(5), f)
	require.Equal(t, Entity(6), c.EntityCount())
}

func TestUnknownEntity(t *testing.T) {
	c := New()
	c.CreateEntity()

	c.RemoveEntity(17)
	require.Equal(t, ErrUnknownEntity, c.Error())
	require.Equal(t, ErrNone, c.Error())

	Add(c, 17, position{})
	require.Equal(t, ErrUnknownEntity, c.Error())

	require.Equal(t, position{}, Get[position](c, 17))
	require.Equal(t, ErrUnknownEntity, c.Error())

	c.SetActive(17, false)
	require.Equal(t, ErrUnknownEntity, c.Error())

	require.False(t, c.Active(17))
	require.Equal(t, ErrUnknownEntity, c.Error())
}

func TestSetActiveKeepsComponents(t *testing.T) {
	c := New()
	e := c.CreateEntity()
	Add(c, e, health{Points: 40})

	c.SetActive(e, false)
	require.False(t, c.Active(e))
	require.True(t, Has[health](c, e))
	require.Equal(t, health{Points: 40}, Get[health](c, e))

	// toggling is idempotent
	c.SetActive(e, false)
	c.SetActive(e, true)
	require.True(t, c.Active(e))
	require.Equal(t, ErrNone, c.Error())
}

func TestErrorCodeStrings(t *testing.T) {
	require.Equal(t, "no error", ErrNone.String())
	require.NotEmpty(t, ErrDuplicateComponent.String())
	require.NotEmpty(t, ErrMissingComponent.String())
	require.NotEmpty(t, ErrUnknownFunction.String())
	require.NotEmpty(t, ErrUnknownEntity.String())
}
