package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/logisticfund/pkg/metrics"
)

func TestGinMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New("test")

	engine := gin.New()
	engine.Use(GinMetrics(m))
	engine.GET("/api/v1/fund/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/fund/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// path 标签是路由模板，status 是最终响应码
	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/fund/status", "200"))
	assert.Equal(t, float64(1), got)

	// 未匹配路由归并到固定标签
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	got = testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	assert.Equal(t, float64(1), got)
}
