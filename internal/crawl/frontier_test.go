package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrontierPopsInSeedingOrder(t *testing.T) {
	t.Parallel()

	frontier := NewFrontier()
	require.True(t, frontier.Push("https://example.org/", 0))
	require.True(t, frontier.Push("https://example.org/a", 1))
	require.True(t, frontier.Push("https://example.org/b", 1))
	require.Equal(t, 3, frontier.Len())

	first, ok := frontier.Pop()
	require.True(t, ok)
	require.Equal(t, Target{URL: "https://example.org/", Depth: 0}, first)

	second, ok := frontier.Pop()
	require.True(t, ok)
	require.Equal(t, "https://example.org/a", second.URL)

	third, ok := frontier.Pop()
	require.True(t, ok)
	require.Equal(t, "https://example.org/b", third.URL)

	_, ok = frontier.Pop()
	require.False(t, ok)
}

func TestFrontierPushRejectsPendingAndVisited(t *testing.T) {
	t.Parallel()

	frontier := NewFrontier()
	require.True(t, frontier.Push("https://example.org/a", 1))
	require.False(t, frontier.Push("https://example.org/a", 1), "pending url must not be queued twice")

	target, ok := frontier.Pop()
	require.True(t, ok)
	frontier.MarkVisited(target.URL)

	require.False(t, frontier.Push("https://example.org/a", 1), "visited url must not be re-enqueued")
	require.Zero(t, frontier.Len())
}

func TestFrontierRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	frontier := NewFrontier()
	require.False(t, frontier.Push("", 0))
	require.Zero(t, frontier.Len())
}

func TestFrontierDepthFixedAtFirstPush(t *testing.T) {
	t.Parallel()

	frontier := NewFrontier()
	require.True(t, frontier.Push("https://example.org/deep", 3))

	// Popped but never visited, as happens with an over-depth discard.
	_, ok := frontier.Pop()
	require.True(t, ok)

	// Rediscovered on a shorter path: accepted back into the queue, but
	// the original depth wins.
	require.True(t, frontier.Push("https://example.org/deep", 1))
	target, ok := frontier.Pop()
	require.True(t, ok)
	require.Equal(t, 3, target.Depth)

	depth, ok := frontier.Depth("https://example.org/deep")
	require.True(t, ok)
	require.Equal(t, 3, depth)
}
