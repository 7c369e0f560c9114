package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_FanOutToAllClients(t *testing.T) {
	g := NewGroup()
	var got []string
	g.Add(func(id uint64, msg any) { got = append(got, msg.(string)+"-a") })
	g.Add(func(id uint64, msg any) { got = append(got, msg.(string)+"-b") })

	g.Dispatch("hello")

	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{"hello-a", "hello-b"}, got)
}

func TestDispatch_SelfRemovalDuringDispatchIsDeferred(t *testing.T) {
	g := NewGroup()
	var selfID uint64
	calls := 0
	selfID = g.Add(func(id uint64, msg any) {
		calls++
		g.Remove(selfID) // removing itself mid-dispatch must not panic or skip
	})

	g.Dispatch("x")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, g.Len())

	// A second dispatch after removal settles must not invoke the
	// removed client again.
	g.Dispatch("y")
	assert.Equal(t, 1, calls)
}

func TestDispatch_RemoveOutsideDispatchIsImmediate(t *testing.T) {
	g := NewGroup()
	id := g.Add(func(id uint64, msg any) {})
	require.Equal(t, 1, g.Len())
	g.Remove(id)
	assert.Equal(t, 0, g.Len())
}
