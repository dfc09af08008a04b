package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch - метрики диспетчеризации. Нулевой указатель допустим и ничего не пишет.
type Dispatch struct {
	submitted      *prometheus.CounterVec
	responses      *prometheus.CounterVec
	geocodeFails   *prometheus.CounterVec
	pushDeliveries *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewDispatch регистрирует метрики в reg. Если reg == nil, используется регистратор по умолчанию.
// Уже зарегистрированные коллекторы переиспользуются.
func NewDispatch(reg prometheus.Registerer) (*Dispatch, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	d := &Dispatch{}
	var err error
	if d.submitted, err = registerCounter(reg, prometheus.CounterOpts{
		Name: "dispatch_requests_submitted_total",
		Help: "Total number of persisted emergency requests",
	}, []string{"emergency_type"}); err != nil {
		return nil, err
	}
	if d.responses, err = registerCounter(reg, prometheus.CounterOpts{
		Name: "dispatch_responses_total",
		Help: "Responder decisions by outcome",
	}, []string{"outcome"}); err != nil {
		return nil, err
	}
	if d.geocodeFails, err = registerCounter(reg, prometheus.CounterOpts{
		Name: "dispatch_geocode_fallbacks_total",
		Help: "Requests stored with a coordinate fallback address",
	}, []string{"reason"}); err != nil {
		return nil, err
	}
	if d.pushDeliveries, err = registerCounter(reg, prometheus.CounterOpts{
		Name: "dispatch_push_deliveries_total",
		Help: "Push notification outcomes per device",
	}, []string{"result"}); err != nil {
		return nil, err
	}
	if d.httpRequests, err = registerCounter(reg, prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"}); err != nil {
		return nil, err
	}

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
	if err := reg.Register(latency); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		latency = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	d.httpLatency = latency

	return d, nil
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	c := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (d *Dispatch) RequestSubmitted(emergencyType string) {
	if d == nil {
		return
	}
	d.submitted.WithLabelValues(emergencyType).Inc()
}

// ResponseRecorded считает исход ответа врача: accepted, rejected, conflict, not_found
func (d *Dispatch) ResponseRecorded(outcome string) {
	if d == nil {
		return
	}
	d.responses.WithLabelValues(outcome).Inc()
}

func (d *Dispatch) GeocodeFallback(reason string) {
	if d == nil {
		return
	}
	d.geocodeFails.WithLabelValues(reason).Inc()
}

func (d *Dispatch) PushDelivery(result string, n int) {
	if d == nil || n <= 0 {
		return
	}
	d.pushDeliveries.WithLabelValues(result).Add(float64(n))
}

// Middleware записывает количество и длительность HTTP-запросов
func (d *Dispatch) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if d == nil {
			return
		}

		// Шаблон маршрута, чтобы id не раздували кардинальность
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		d.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		d.httpLatency.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
