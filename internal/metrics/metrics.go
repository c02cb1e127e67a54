package metrics

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// API
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests."},
		[]string{"handler", "method", "code"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms..~10s
		},
		[]string{"handler", "method"},
	)
	LoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "login_total", Help: "Login outcomes."},
		[]string{"result"}, // ok | bad_credentials | blocked | throttled
	)

	// Dispatch
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_total", Help: "Newsletter dispatch outcomes."},
		[]string{"result"}, // success | failure
	)
	MailSendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mail_send_total", Help: "Per-recipient mail send outcomes."},
		[]string{"outcome"}, // sent | error
	)
	MailSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mail_send_duration_seconds",
			Help:    "Mail transport latency per recipient.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms..~40s
		},
	)

	// List cache
	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "list_cache_ops_total", Help: "List cache operations."},
		[]string{"op"}, // hit | miss | refill
	)
)

// Register default + our collectors
func MustRegister() {
	prometheus.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		HTTPRequests, HTTPDuration, LoginTotal,
		DispatchTotal, MailSendTotal, MailSendDuration,
		CacheOps,
	)
}

// Export a tiny pgxpool stats exporter
type PGXPoolStats struct {
	pool *pgxpool.Pool

	conns          prometheus.Gauge
	idle           prometheus.Gauge
	acquireCount   prometheus.Counter
	acquireLatency prometheus.Counter
}

func NewPGXPoolStats(pool *pgxpool.Pool) *PGXPoolStats {
	m := &PGXPoolStats{
		pool: pool,
		conns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_conns", Help: "Total connections in pool.",
		}),
		idle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_idle_conns", Help: "Idle connections in pool.",
		}),
		acquireCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_pool_acquires_total", Help: "Total pool acquires.",
		}),
		acquireLatency: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_pool_acquire_seconds_total", Help: "Sum of acquire latencies.",
		}),
	}
	prometheus.MustRegister(m.conns, m.idle, m.acquireCount, m.acquireLatency)

	return m
}

func (m *PGXPoolStats) Start(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	for {
		select {
		case <-stop:
			t.Stop()
			return
		case <-t.C:
			s := m.pool.Stat()
			m.conns.Set(float64(s.TotalConns()))
			m.idle.Set(float64(s.IdleConns()))
			m.acquireCount.Add(float64(s.AcquireCount()))
			m.acquireLatency.Add(s.AcquireDuration().Seconds())
		}
	}
}
