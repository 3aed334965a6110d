package ctxmeta_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/batchflow/pkg/ctxmeta"
)

type foreignKey string

// Оба строковых ключа ведут себя одинаково: пустое значение не кладётся и не читается.
func TestStringKeys(t *testing.T) {
	cases := []struct {
		name string
		with func(context.Context, string) context.Context
		from func(context.Context) (string, bool)
		key  any
	}{
		{name: "request_id", with: ctxmeta.WithRequestID, from: ctxmeta.RequestIDFromContext, key: ctxmeta.KeyRequestID},
		{name: "topic", with: ctxmeta.WithTopic, from: ctxmeta.TopicFromContext, key: ctxmeta.KeyTopic},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parent := context.Background()

			ctx := tc.with(parent, "v-1")
			got, ok := tc.from(ctx)
			require.True(t, ok)
			require.Equal(t, "v-1", got)

			_, ok = tc.from(parent)
			require.False(t, ok)

			require.Equal(t, parent, tc.with(parent, ""))
			require.Nil(t, tc.with(nil, "v-1"))

			got, ok = tc.from(context.WithValue(parent, tc.key, ""))
			require.False(t, ok)
			require.Empty(t, got)

			// тот же текст ключа, но другой тип
			got, ok = tc.from(context.WithValue(parent, foreignKey(tc.name), "foreign"))
			require.False(t, ok)
			require.Empty(t, got)
		})
	}
}

// Топик пачки и request id запроса живут в одном контексте, как при публикации из HTTP
func TestTopicAndRequestID_Coexist(t *testing.T) {
	ctx := ctxmeta.WithRequestID(context.Background(), "req-7")
	ctx = ctxmeta.WithTopic(ctx, "watch-events")
	ctx = ctxmeta.WithTopic(ctx, "watch-events-retry")

	rid, ok := ctxmeta.RequestIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "req-7", rid)

	topic, ok := ctxmeta.TopicFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "watch-events-retry", topic)
}
