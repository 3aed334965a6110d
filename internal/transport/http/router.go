package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/kafka"
	"github.com/Gunvolt24/batchflow/internal/ports"
	"github.com/Gunvolt24/batchflow/internal/usecase"
	"github.com/Gunvolt24/batchflow/pkg/ctxmeta"
	"github.com/Gunvolt24/batchflow/pkg/httpx"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// maxPublishBody — предел тела запроса публикации.
const maxPublishBody = 4 << 20

// Messaging — часть движка, нужная HTTP-слою.
type Messaging interface {
	Publish(ctx context.Context, topic string, msgs []kafka.RawMessage) (*kafka.ProduceResult, error)
	Stats() []kafka.TopicStats
}

type Handler struct {
	history    ports.WatchHistoryReader
	messaging  Messaging
	log        ports.Logger
	timeout    time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewHandler — timeout ограничивает обращения к хранилищу и брокеру (0 — без ограничения),
// staleAfter — порог «зависшего» топика для /healthz (0 — не проверять).
func NewHandler(history ports.WatchHistoryReader, messaging Messaging, log ports.Logger, timeout, staleAfter time.Duration) *Handler {
	return &Handler{
		history:    history,
		messaging:  messaging,
		log:        log,
		timeout:    timeout,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func NewRouter(h *Handler, otelServiceName string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	if otelServiceName != "" {
		r.Use(otelgin.Middleware(otelServiceName))
	}
	r.Use(httpx.RequestIDMiddleware())
	r.Use(httpx.RequestLogger(h.log))

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.healthz)

	r.POST("/topics/:topic/messages", h.publish)
	r.GET("/users/:id/history", h.userHistory)

	r.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "not found"}) })
	r.NoMethod(func(c *gin.Context) { c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"}) })

	return r
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.timeout)
}

type healthResponse struct {
	Status string             `json:"status"`
	Topics []kafka.TopicStats `json:"topics"`
	Reason string             `json:"reason,omitempty"`
}

func (h *Handler) healthz(c *gin.Context) {
	stats := h.messaging.Stats()
	if stats == nil {
		stats = []kafka.TopicStats{}
	}

	if reason := h.unhealthy(stats); reason != "" {
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "degraded", Topics: stats, Reason: reason})
		return
	}
	c.JSON(http.StatusOK, healthResponse{Status: "ok", Topics: stats})
}

// unhealthy — причина деградации или пустая строка.
func (h *Handler) unhealthy(stats []kafka.TopicStats) string {
	now := h.now()
	for _, s := range stats {
		if s.State == kafka.StateFailed {
			return "topic " + s.Topic + " failed: " + s.Error
		}
		if h.staleAfter <= 0 || s.State != kafka.StateRunning || s.Pending == 0 {
			continue
		}
		// ещё ни одного слива — отсчёт от создания подписки
		last := s.LastFlushAt
		if last.IsZero() {
			last = s.CreatedAt
		}
		if !last.IsZero() && now.Sub(last) > h.staleAfter {
			return "topic " + s.Topic + " has pending messages without flush"
		}
	}
	return ""
}

type publishMessage struct {
	Key       *string           `json:"key"`
	Partition *int              `json:"partition"`
	Headers   map[string]string `json:"headers"`
	Value     json.RawMessage   `json:"value"`
}

type publishResponse struct {
	Topic  string `json:"topic"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) publish(c *gin.Context) {
	topic, ok := httpx.PathParam(c, "topic")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty topic"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPublishBody)
	var in []publishMessage
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: expected JSON array of messages"})
		return
	}
	if len(in) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no messages"})
		return
	}

	rid, _ := ctxmeta.RequestIDFromContext(c.Request.Context())
	msgs := make([]kafka.RawMessage, 0, len(in))
	for i := range in {
		if len(in[i].Value) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message without value"})
			return
		}
		msgs = append(msgs, kafka.RawMessage{
			Key:       in[i].Key,
			Partition: in[i].Partition,
			Headers:   withRequestID(in[i].Headers, rid),
			Value:     in[i].Value,
		})
	}

	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	res, err := h.messaging.Publish(ctx, topic, msgs)
	if err != nil {
		if errors.Is(err, kafka.ErrNoTopic) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Errorf(ctx, "publish failed topic=%s err=%v", topic, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if res == nil {
		// движок выключен
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging disabled"})
		return
	}

	out := publishResponse{Topic: res.Topic, Sent: res.Sent, Failed: res.Failed}
	if res.Err != nil {
		out.Error = res.Err.Error()
		c.JSON(http.StatusBadGateway, out)
		return
	}
	c.JSON(http.StatusAccepted, out)
}

// withRequestID — request id запроса в заголовки сообщения, если клиент не задал свой.
func withRequestID(headers map[string]string, rid string) map[string]string {
	if rid == "" {
		return headers
	}
	if _, ok := headers[httpx.HeaderRequestID]; ok {
		return headers
	}
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out[httpx.HeaderRequestID] = rid
	return out
}

func (h *Handler) userHistory(c *gin.Context) {
	id, ok := httpx.PathParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty user id"})
		return
	}

	limit := httpx.ParseLimit(c, domain.DefaultHistoryLimit, domain.MaxHistoryLimit)

	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	events, err := h.history.History(ctx, id, limit)
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "timeout"})
			return
		}
		h.log.Errorf(ctx, "History failed user_id=%s err=%v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, events)
}
