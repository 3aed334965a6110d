package httpx

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClampInt — ограничение значения v в диапазоне [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseLimit — limit из query: нечисловое значение даёт дефолт, остальное зажимается в [1, maxLimit].
func ParseLimit(c *gin.Context, defaultLimit, maxLimit int) int {
	raw, ok := c.GetQuery("limit")
	if !ok {
		return ClampInt(defaultLimit, 1, maxLimit)
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return ClampInt(defaultLimit, 1, maxLimit)
	}
	return ClampInt(v, 1, maxLimit)
}

// PathParam — параметр пути без пробелов по краям; false, если пустой.
func PathParam(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	return v, v != ""
}
