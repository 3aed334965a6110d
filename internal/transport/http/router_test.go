package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/kafka"
	"github.com/Gunvolt24/batchflow/internal/ports/mocks"
	"github.com/Gunvolt24/batchflow/internal/testutil"
	rest "github.com/Gunvolt24/batchflow/internal/transport/http"
	"github.com/Gunvolt24/batchflow/internal/usecase"
)

type noopLogger struct{}

func (noopLogger) Infof(context.Context, string, ...any)  {}
func (noopLogger) Warnf(context.Context, string, ...any)  {}
func (noopLogger) Errorf(context.Context, string, ...any) {}

// fakeMessaging — записывает публикации и отдаёт заранее заданные Stats.
type fakeMessaging struct {
	stats     []kafka.TopicStats
	res       *kafka.ProduceResult
	err       error
	gotTopic  string
	published []kafka.RawMessage
}

func (f *fakeMessaging) Publish(_ context.Context, topic string, msgs []kafka.RawMessage) (*kafka.ProduceResult, error) {
	f.gotTopic = topic
	f.published = append(f.published, msgs...)
	if f.err != nil {
		return nil, f.err
	}
	if f.res == nil {
		return &kafka.ProduceResult{Topic: topic, Sent: len(msgs)}, nil
	}
	return f.res, nil
}

func (f *fakeMessaging) Stats() []kafka.TopicStats { return f.stats }

func newRouter(t *testing.T, reader *mocks.MockWatchHistoryReader, m rest.Messaging, staleAfter time.Duration) http.Handler {
	t.Helper()
	if reader == nil {
		reader = mocks.NewMockWatchHistoryReader(gomock.NewController(t))
	}
	if m == nil {
		m = &fakeMessaging{}
	}
	h := rest.NewHandler(reader, m, noopLogger{}, 0, staleAfter)
	return rest.NewRouter(h, "test")
}

func serve(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUserHistory_DefaultLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockWatchHistoryReader(ctrl)

	want := testutil.MakeWatchEvents(2, "u-1")
	reader.EXPECT().History(gomock.Any(), "u-1", domain.DefaultHistoryLimit).Return(want, nil)

	w := serve(newRouter(t, reader, nil, 0), http.MethodGet, "/users/u-1/history", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got []domain.WatchEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, want[0].EventID, got[0].EventID)
}

func TestUserHistory_LimitClamped(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockWatchHistoryReader(ctrl)

	reader.EXPECT().History(gomock.Any(), "u-2", domain.MaxHistoryLimit).Return(nil, nil)
	reader.EXPECT().History(gomock.Any(), "u-2", 1).Return(nil, nil)
	reader.EXPECT().History(gomock.Any(), "u-2", 7).Return(nil, nil)

	r := newRouter(t, reader, nil, 0)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/u-2/history?limit=100000", nil).Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/u-2/history?limit=-3", nil).Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/u-2/history?limit=7", nil).Code)
}

func TestUserHistory_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockWatchHistoryReader(ctrl)
	r := newRouter(t, reader, nil, 0)

	reader.EXPECT().History(gomock.Any(), "boom", gomock.Any()).Return(nil, errors.New("db error"))
	require.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/users/boom/history", nil).Code)

	reader.EXPECT().History(gomock.Any(), "slow", gomock.Any()).Return(nil, context.DeadlineExceeded)
	require.Equal(t, http.StatusGatewayTimeout, serve(r, http.MethodGet, "/users/slow/history", nil).Code)

	reader.EXPECT().History(gomock.Any(), "x", gomock.Any()).Return(nil, usecase.ErrEmptyUserID)
	require.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/users/x/history", nil).Code)
}

func TestPublish_Accepted(t *testing.T) {
	m := &fakeMessaging{}
	r := newRouter(t, nil, m, 0)

	body := []byte(`[{"key":"u-1","headers":{"source":"api"},"value":{"event_id":"e-1"}},{"partition":2,"value":[1,2]}]`)
	w := serve(r, http.MethodPost, "/topics/watch/messages", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Equal(t, "watch", m.gotTopic)
	require.Len(t, m.published, 2)
	require.Equal(t, "u-1", *m.published[0].Key)
	require.Equal(t, "api", m.published[0].Headers["source"])
	require.Equal(t, w.Header().Get("X-Request-ID"), m.published[0].Headers["X-Request-ID"])
	require.JSONEq(t, `{"event_id":"e-1"}`, string(m.published[0].Value))
	require.Nil(t, m.published[1].Key)
	require.Equal(t, 2, *m.published[1].Partition)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.EqualValues(t, 2, got["sent"])
}

func TestPublish_KeepsClientRequestIDHeader(t *testing.T) {
	m := &fakeMessaging{}
	r := newRouter(t, nil, m, 0)

	body := []byte(`[{"headers":{"X-Request-ID":"upstream-1"},"value":1}]`)
	req := httptest.NewRequest(http.MethodPost, "/topics/watch/messages", bytes.NewReader(body))
	req.Header.Set("X-Request-ID", "http-2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "upstream-1", m.published[0].Headers["X-Request-ID"])
}

func TestPublish_BadBody(t *testing.T) {
	m := &fakeMessaging{}
	r := newRouter(t, nil, m, 0)

	require.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/topics/watch/messages", []byte(`{"value":1}`)).Code)
	require.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/topics/watch/messages", []byte(`[]`)).Code)
	require.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/topics/watch/messages", []byte(`[{"key":"k"}]`)).Code)
	require.Empty(t, m.published)
}

func TestPublish_BrokerErrorReported(t *testing.T) {
	m := &fakeMessaging{res: &kafka.ProduceResult{Topic: "watch", Failed: 1, Err: errors.New("broker down")}}
	r := newRouter(t, nil, m, 0)

	w := serve(r, http.MethodPost, "/topics/watch/messages", []byte(`[{"value":1}]`))
	require.Equal(t, http.StatusBadGateway, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "broker down", got["error"])
	require.EqualValues(t, 1, got["failed"])
}

func TestPublish_DisabledEngine(t *testing.T) {
	engine := kafka.New(kafka.Config{Enabled: false}, noopLogger{})
	r := newRouter(t, nil, engine, 0)

	w := serve(r, http.MethodPost, "/topics/watch/messages", []byte(`[{"value":1}]`))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthz(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name       string
		stats      []kafka.TopicStats
		staleAfter time.Duration
		want       int
	}{
		{name: "no topics", want: http.StatusOK},
		{
			name:  "running",
			stats: []kafka.TopicStats{{Topic: "watch", State: kafka.StateRunning, Pending: 3, LastFlushAt: now}},
			want:  http.StatusOK, staleAfter: time.Minute,
		},
		{
			name:  "failed",
			stats: []kafka.TopicStats{{Topic: "watch", State: kafka.StateFailed, Error: "connect"}},
			want:  http.StatusServiceUnavailable,
		},
		{
			name:  "stale with pending",
			stats: []kafka.TopicStats{{Topic: "watch", State: kafka.StateRunning, Pending: 1, LastFlushAt: now.Add(-time.Hour)}},
			want:  http.StatusServiceUnavailable, staleAfter: time.Minute,
		},
		{
			name:  "never flushed",
			stats: []kafka.TopicStats{{Topic: "watch", State: kafka.StateRunning, Pending: 2, CreatedAt: now.Add(-time.Hour)}},
			want:  http.StatusServiceUnavailable, staleAfter: time.Minute,
		},
		{
			name:  "stale but empty",
			stats: []kafka.TopicStats{{Topic: "watch", State: kafka.StateRunning, LastFlushAt: now.Add(-time.Hour)}},
			want:  http.StatusOK, staleAfter: time.Minute,
		},
		{
			name:  "stopped",
			stats: []kafka.TopicStats{{Topic: "watch", State: kafka.StateStopped, Pending: 1, LastFlushAt: now.Add(-time.Hour)}},
			want:  http.StatusOK, staleAfter: time.Minute,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(t, nil, &fakeMessaging{stats: tc.stats}, tc.staleAfter)
			w := serve(r, http.MethodGet, "/healthz", nil)
			require.Equal(t, tc.want, w.Code, w.Body.String())

			var got map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			require.NotNil(t, got["topics"])
		})
	}
}

func TestNoRoute_404(t *testing.T) {
	w := serve(newRouter(t, nil, nil, 0), http.MethodGet, "/no-such-route", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed_405(t *testing.T) {
	w := serve(newRouter(t, nil, nil, 0), http.MethodGet, "/topics/watch/messages", nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPing_200(t *testing.T) {
	w := serve(newRouter(t, nil, nil, 0), http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pong", w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetrics_200(t *testing.T) {
	w := serve(newRouter(t, nil, nil, 0), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotZero(t, w.Body.Len())
}
