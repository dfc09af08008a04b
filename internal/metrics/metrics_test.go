package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatch_ReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewDispatch(reg)
	require.NoError(t, err)
	second, err := NewDispatch(reg)
	require.NoError(t, err)

	first.RequestSubmitted("cardiac")
	second.RequestSubmitted("cardiac")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.submitted.WithLabelValues("cardiac")))
}

func TestDispatch_Counters(t *testing.T) {
	d, err := NewDispatch(prometheus.NewRegistry())
	require.NoError(t, err)

	d.ResponseRecorded("accepted")
	d.ResponseRecorded("conflict")
	d.ResponseRecorded("conflict")
	d.GeocodeFallback("timeout")
	d.PushDelivery("delivered", 3)
	d.PushDelivery("failed", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(d.responses.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(d.responses.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.geocodeFails.WithLabelValues("timeout")))
	assert.Equal(t, 3.0, testutil.ToFloat64(d.pushDeliveries.WithLabelValues("delivered")))
	assert.Equal(t, 0.0, testutil.ToFloat64(d.pushDeliveries.WithLabelValues("failed")))
}

func TestDispatch_NilIsNoop(t *testing.T) {
	var d *Dispatch
	assert.NotPanics(t, func() {
		d.RequestSubmitted("fall")
		d.ResponseRecorded("accepted")
		d.GeocodeFallback("no_result")
		d.PushDelivery("delivered", 1)
	})
}

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	d, err := NewDispatch(prometheus.NewRegistry())
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(d.Middleware())
	router.DELETE("/removeRequest/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/removeRequest/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(d.httpRequests.WithLabelValues("DELETE", "/removeRequest/:id", "404")))
}
