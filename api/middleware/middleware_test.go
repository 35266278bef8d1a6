package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nowatermark-go/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zap.NewNop()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestLogger_RecordsRequestsAndServerErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logsDir := t.TempDir()
	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "info", LogsDir: logsDir})
	require.NoError(t, err)
	defer events.Close()

	router := gin.New()
	router.Use(Logger(zap.New(core), events))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for _, path := range []string{"/ok?x=1", "/fail"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0].ContextMap()
	assert.Equal(t, "/ok", first["path"])
	assert.Equal(t, "x=1", first["query"])
	assert.EqualValues(t, http.StatusOK, first["status"])

	require.NoError(t, events.Sync())
	entries, err := logger.NewLogReader(logsDir).ReadLogs(logger.CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/fail", entries[0].Fields["path"])
}

func TestCORS_Preflight(t *testing.T) {
	router := gin.New()
	router.Use(CORS())
	router.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
