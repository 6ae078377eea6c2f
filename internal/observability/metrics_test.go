package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/items/:id", "GET", "418"))
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/items/:id", "GET", "418"))
	assert.Equal(t, 2.0, after-before)

	unmatchedBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("unmatched", "GET", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("unmatched", "GET", "404"))-unmatchedBefore)
}

func TestCounters(t *testing.T) {
	failed := testutil.ToFloat64(snapshotLoadsTotal.WithLabelValues("error"))
	SnapshotLoaded(errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(snapshotLoadsTotal.WithLabelValues("error"))-failed)

	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("github", "hit"))
	CacheLookup("github", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("github", "hit"))-hits)

	fetched := testutil.ToFloat64(feedFetchesTotal.WithLabelValues("7", "success"))
	FeedFetched(7, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(feedFetchesTotal.WithLabelValues("7", "success"))-fetched)
}
