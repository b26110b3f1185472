package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

func TestNewQueueStartsNotShutdown(t *testing.T) {
	q := NewQueue(4)
	require.False(t, q.IsShutdown())
}

func TestPushThenPop(t *testing.T) {
	q := NewQueue(4)
	q.Push(wire.Notification{Kind: wire.NotifyUpdate, Path: "/a"})

	n, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "/a", n.Path)
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := NewQueue(4)
	done := make(chan wire.Notification, 1)
	go func() {
		n, ok := q.Pop()
		require.True(t, ok)
		done <- n
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(wire.Notification{Kind: wire.NotifyDelete, Path: "/b"})

	select {
	case n := <-done:
		require.Equal(t, "/b", n.Path)
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Push")
	}
}

func TestPushOnShutdownQueueIsNoOp(t *testing.T) {
	q := NewQueue(4)
	q.Shutdown()
	q.Push(wire.Notification{Kind: wire.NotifyUpdate, Path: "/a"})

	_, ok := q.Pop()
	require.False(t, ok)
}

func TestPopDrainsPendingBeforeReportingShutdown(t *testing.T) {
	q := NewQueue(4)
	q.Push(wire.Notification{Kind: wire.NotifyUpdate, Path: "/a"})
	q.Push(wire.Notification{Kind: wire.NotifyUpdate, Path: "/b"})
	q.Shutdown()

	n1, ok1 := q.Pop()
	require.True(t, ok1)
	require.Equal(t, "/a", n1.Path)

	n2, ok2 := q.Pop()
	require.True(t, ok2)
	require.Equal(t, "/b", n2.Path)

	_, ok3 := q.Pop()
	require.False(t, ok3)
}

func TestShutdownWakesBlockedPop(t *testing.T) {
	q := NewQueue(4)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not wake a blocked Pop")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	q := NewQueue(4)
	q.Shutdown()
	q.Shutdown()
	require.True(t, q.IsShutdown())
}

func TestPushEvictsOldestAtCapacity(t *testing.T) {
	q := NewQueue(2)
	q.Push(wire.Notification{Path: "/a"})
	q.Push(wire.Notification{Path: "/b"})
	q.Push(wire.Notification{Path: "/c"})

	n1, _ := q.Pop()
	require.Equal(t, "/b", n1.Path)
	n2, _ := q.Pop()
	require.Equal(t, "/c", n2.Path)
}

func TestUnboundedCapacity(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < 100; i++ {
		q.Push(wire.Notification{Path: "/x"})
	}
	count := 0
	q.Shutdown()
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 100, count)
}
