package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

func TestRegisterAndListClients(t *testing.T) {
	r := newRegistry()
	r.registerClient("c1")
	r.registerClient("c2")

	clients := r.listClients()
	require.ElementsMatch(t, []string{"c1", "c2"}, clients)
}

func TestSubscribeOverwritesStaleQueue(t *testing.T) {
	r := newRegistry()
	old := r.subscribe("c1", 4)
	newQ := r.subscribe("c1", 4)

	require.True(t, old.IsShutdown())
	require.False(t, newQ.IsShutdown())
}

func TestFanOutSkipsInitiator(t *testing.T) {
	r := newRegistry()
	qA := r.subscribe("a", 4)
	qB := r.subscribe("b", 4)
	r.addFileInterest("/f", "a")
	r.addFileInterest("/f", "b")

	r.fanOut("/f", "a", wire.Notification{Kind: wire.NotifyUpdate, Path: "/f"})

	_, okA := qA.Pop()
	require.False(t, okA, "initiator should not receive its own fan-out")
	qA.Shutdown()

	n, okB := qB.Pop()
	require.True(t, okB)
	require.Equal(t, "/f", n.Path)
}

func TestFanOutSkipsClientsWithoutInterest(t *testing.T) {
	r := newRegistry()
	q := r.subscribe("a", 4)

	r.fanOut("/f", "someone-else", wire.Notification{Path: "/f"})
	q.Shutdown()

	_, ok := q.Pop()
	require.False(t, ok)
}

func TestRemoveFileInterestPrunesEmptySet(t *testing.T) {
	r := newRegistry()
	r.addFileInterest("/f", "a")
	r.removeFileInterest("/f", "a")

	q := r.subscribe("a", 4)
	r.fanOut("/f", "other", wire.Notification{Path: "/f"})
	q.Shutdown()

	_, ok := q.Pop()
	require.False(t, ok)
}

func TestRekeyFileInterestMovesInterest(t *testing.T) {
	r := newRegistry()
	r.addFileInterest("/old", "a")
	r.rekeyFileInterest("/old", "/new")

	q := r.subscribe("b", 4)
	r.addFileInterest("/new", "b")
	r.fanOut("/new", "nobody", wire.Notification{Kind: wire.NotifyRename, Path: "/old", NewPath: "/new"})
	q.Shutdown()

	n, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, wire.NotifyRename, n.Kind)
}

func TestOpenInterestAddRemove(t *testing.T) {
	r := newRegistry()
	r.addOpenInterest("/f", "a")
	r.addOpenInterest("/f", "b")
	r.removeOpenInterest("/f", "a")

	_, stillTracked := r.openInterest["/f"]
	require.True(t, stillTracked)

	r.removeOpenInterest("/f", "b")
	_, tracked := r.openInterest["/f"]
	require.False(t, tracked)
}

func TestCleanupClientRemovesEverything(t *testing.T) {
	r := newRegistry()
	r.registerClient("a")
	r.subscribe("a", 4)
	r.addFileInterest("/f", "a")
	r.addOpenInterest("/f", "a")

	r.cleanupClient("a")

	require.Empty(t, r.listClients())
	require.Empty(t, r.fileInterest)
	require.Empty(t, r.openInterest)
	require.Empty(t, r.subscribers)
}

func TestCleanupClientLeavesOtherClientsIntact(t *testing.T) {
	r := newRegistry()
	r.addFileInterest("/f", "a")
	r.addFileInterest("/f", "b")

	r.cleanupClient("a")

	set := r.fileInterest["/f"]
	_, hasB := set["b"]
	require.True(t, hasB)
	_, hasA := set["a"]
	require.False(t, hasA)
}
