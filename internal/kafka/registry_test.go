package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_OneConsumerPerGroup(t *testing.T) {
	ff := newFakeFactory()
	r := newRegistry(ff.newConsumer, nopLogger{})
	ctx := context.Background()

	a, created := r.getOrCreate(ctx, ConsumerConfig{GroupID: "g1"})
	require.True(t, created)
	b, created := r.getOrCreate(ctx, ConsumerConfig{GroupID: "g1"})
	require.False(t, created)
	require.Same(t, a, b)

	_, created = r.getOrCreate(ctx, ConsumerConfig{GroupID: "g2"})
	require.True(t, created)
	require.Equal(t, 2, r.len())
}

// remove не трогает запись, если в ней уже другой консьюмер
func TestRegistry_RemoveOnlySameInstance(t *testing.T) {
	ff := newFakeFactory()
	r := newRegistry(ff.newConsumer, nopLogger{})
	ctx := context.Background()

	gc, _ := r.getOrCreate(ctx, ConsumerConfig{GroupID: "g1"})
	r.remove(&fakeConsumer{groupID: "g1"})
	require.Equal(t, 1, r.len())

	r.remove(gc)
	require.Zero(t, r.len())
}

func TestRegistry_Reset(t *testing.T) {
	ff := newFakeFactory()
	r := newRegistry(ff.newConsumer, nopLogger{})
	ctx := context.Background()

	r.getOrCreate(ctx, ConsumerConfig{GroupID: "g1"})
	r.getOrCreate(ctx, ConsumerConfig{GroupID: "g2"})

	require.Len(t, r.reset(), 2)
	require.Zero(t, r.len())
	require.Empty(t, r.reset())
}
