package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/batchflow/pkg/ctxmeta"
	"github.com/Gunvolt24/batchflow/pkg/httpx"
)

// serveWithID — прогоняет запрос через middleware; возвращает id из заголовка ответа и из контекста.
func serveWithID(t *testing.T, header string, set bool) (respID, ctxID string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(httpx.RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		ctxID, _ = ctxmeta.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if set {
		req.Header.Set(httpx.HeaderRequestID, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header().Get(httpx.HeaderRequestID), ctxID
}

func TestRequestIDMiddleware_ClientID(t *testing.T) {
	cases := []struct {
		name   string
		header string
		set    bool
		keep   bool
	}{
		{name: "missing", set: false},
		{name: "empty", header: "", set: true},
		{name: "plain", header: "upstream-42", set: true, keep: true},
		{name: "punctuation", header: "a.b:c/d_e=f", set: true, keep: true},
		{name: "max length", header: strings.Repeat("x", 128), set: true, keep: true},
		{name: "too long", header: strings.Repeat("x", 129), set: true},
		{name: "space", header: "with space", set: true},
		{name: "tab", header: "tab\tid", set: true},
		{name: "non ascii", header: "идентификатор", set: true},
		{name: "control", header: "id\x01", set: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			respID, ctxID := serveWithID(t, tc.header, tc.set)

			require.Equal(t, respID, ctxID, "context and response header must agree")
			if tc.keep {
				require.Equal(t, tc.header, respID)
				return
			}
			_, err := uuid.Parse(respID)
			require.NoError(t, err, "replacement id must be a UUID, got %q", respID)
		})
	}
}

func TestRequestIDMiddleware_GeneratesDistinctIDs(t *testing.T) {
	first, _ := serveWithID(t, "", false)
	second, _ := serveWithID(t, "", false)
	require.NotEqual(t, first, second)
}
