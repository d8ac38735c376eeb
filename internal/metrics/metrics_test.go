package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Published("t")
	m.Delivered("t")
	m.Discarded("t", 1)
	m.Listeners("t", 3)
	m.Uploaded(10)
	m.UploadFailed("too_large")
	m.MailQueued(1)
	m.MailSent(nil)
	m.UpstreamCall("schedule", nil)
	m.ObserveOperation("posts", nil, time.Millisecond)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Published("REPLY_WRITTEN")
	m.Published("REPLY_WRITTEN")
	m.Discarded("REPLY_WRITTEN", 3)
	m.Listeners("REPLY_WRITTEN", 2)
	m.MailSent(errors.New("smtp down"))
	m.ObserveOperation("writeReply", nil, time.Millisecond)

	if got := testutil.ToFloat64(m.busPublished.WithLabelValues("REPLY_WRITTEN")); got != 2 {
		t.Errorf("published = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.busDiscarded.WithLabelValues("REPLY_WRITTEN")); got != 3 {
		t.Errorf("discarded = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.busListeners.WithLabelValues("REPLY_WRITTEN")); got != 2 {
		t.Errorf("listeners = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.mailSent.WithLabelValues("error")); got != 1 {
		t.Errorf("mail errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("writeReply", "success")); got != 1 {
		t.Errorf("operations = %v, want 1", got)
	}
}

func TestMiddleware(t *testing.T) {
	m := New(prometheus.NewRegistry())
	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "200")); got != 3 {
		t.Errorf("health requests = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}
