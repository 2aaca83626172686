package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/titles/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", Handler())

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/titles/:id", "200"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/titles/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/titles/:id", "200"))
	assert.Equal(t, before+1, after)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "yamdb_api_requests_total")
}

func TestRecordJobRun(t *testing.T) {
	before := testutil.ToFloat64(JobRunsTotal.WithLabelValues("test-job", "error"))
	RecordJobRun("test-job", time.Millisecond, errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(JobRunsTotal.WithLabelValues("test-job", "error")))
}

func TestRatingCounter(t *testing.T) {
	before := testutil.ToFloat64(RatingUpdatesTotal.WithLabelValues("unrated"))
	require.NoError(t, RatingCounter{}.OnRatingChanged(context.Background(), 1, nil))
	assert.Equal(t, before+1, testutil.ToFloat64(RatingUpdatesTotal.WithLabelValues("unrated")))
}
