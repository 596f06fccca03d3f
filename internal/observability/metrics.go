package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	predictions    *prometheus.CounterVec
	predictLatency prometheus.Histogram
	cacheLookups   *prometheus.CounterVec
	artifactLoads  *prometheus.CounterVec
	artifactTime   prometheus.Histogram

	batchItems    *prometheus.CounterVec
	batchJobs     *prometheus.CounterVec
	alertsCreated *prometheus.CounterVec
	importRows    *prometheus.CounterVec
	trainRuns     *prometheus.CounterVec
	trainMAPE     prometheus.Gauge

	activityTime *prometheus.HistogramVec
	queueDepth   *prometheus.GaugeVec
	pgStats      *prometheus.GaugeVec
	redisUp      prometheus.Gauge
	redisPing    prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Init returns nil when METRICS_ENABLED is off; every method is nil-safe.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "si_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "si_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_predictions_total",
			Help: "Single predictions by outcome (ok, not_ready, error).",
		}, []string{"outcome"}),
		predictLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "si_prediction_duration_seconds",
			Help:    "Uncached single prediction latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_prediction_cache_lookups_total",
			Help: "Point cache lookups by backend/result.",
		}, []string{"backend", "result"}),
		artifactLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_artifact_loads_total",
			Help: "Model artifact loads by status.",
		}, []string{"status"}),
		artifactTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "si_artifact_load_duration_seconds",
			Help:    "Model artifact load latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_batch_items_total",
			Help: "Batch prediction items by outcome (ok, not_ready, failed).",
		}, []string{"outcome"}),
		batchJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_batch_jobs_total",
			Help: "Finished batch prediction jobs by status.",
		}, []string{"status"}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_alerts_created_total",
			Help: "Inventory alerts created by type/priority.",
		}, []string{"alert_type", "priority"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_import_rows_total",
			Help: "Sales import rows by result (ok, invalid).",
		}, []string{"result"}),
		trainRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "si_training_runs_total",
			Help: "Training runs by algorithm/status.",
		}, []string{"algorithm", "status"}),
		trainMAPE: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "si_training_last_test_mape",
			Help: "Test MAPE (percent) of the most recent training run.",
		}),
		activityTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "si_worker_job_duration_seconds",
			Help:    "Worker job duration in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		}, []string{"job_type", "status"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "si_job_queue_depth",
			Help: "job_run rows by status.",
		}, []string{"status"}),
		pgStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "si_postgres_pool",
			Help: "database/sql pool statistics.",
		}, []string{"stat"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "si_redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "si_redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.predictions, m.predictLatency, m.cacheLookups, m.artifactLoads, m.artifactTime,
		m.batchItems, m.batchJobs, m.alertsCreated, m.importRows, m.trainRuns, m.trainMAPE,
		m.activityTime, m.queueDepth, m.pgStats, m.redisUp, m.redisPing,
	)
	return m
}

// Handler serves the private registry; a nil Metrics answers 503.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry to tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method, route = orUnknown(method), orUnknown(route)
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObservePrediction(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(orUnknown(outcome)).Inc()
	if dur > 0 {
		m.predictLatency.Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveCacheLookup(backend string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(orUnknown(backend), result).Inc()
}

func (m *Metrics) ObserveArtifactLoad(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.artifactLoads.WithLabelValues(orUnknown(status)).Inc()
	m.artifactTime.Observe(dur.Seconds())
}

func (m *Metrics) AddBatchItems(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchItems.WithLabelValues(orUnknown(outcome)).Add(float64(n))
}

func (m *Metrics) IncBatchJob(status string) {
	if m == nil {
		return
	}
	m.batchJobs.WithLabelValues(orUnknown(status)).Inc()
}

func (m *Metrics) IncAlertCreated(alertType, priority string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(orUnknown(alertType), orUnknown(priority)).Inc()
}

func (m *Metrics) AddImportRows(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(orUnknown(result)).Add(float64(n))
}

func (m *Metrics) ObserveTraining(algorithm, status string, testMAPE float64) {
	if m == nil {
		return
	}
	m.trainRuns.WithLabelValues(orUnknown(algorithm), orUnknown(status)).Inc()
	if status == "succeeded" {
		m.trainMAPE.Set(testMAPE)
	}
}

func (m *Metrics) ObserveActivity(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.activityTime.WithLabelValues(orUnknown(jobType), orUnknown(status)).Observe(dur.Seconds())
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.pgStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.pgStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.pgStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.pgStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.pgStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

// StartRedisCollector pings the shared client; it never closes it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{"queued", "running", "succeeded", "failed", "canceled"}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.queueDepth.WithLabelValues(s).Set(0)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&types.JobRun{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: job queue depth query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					m.queueDepth.WithLabelValues(orUnknown(strings.TrimSpace(row.Status))).Set(float64(row.Count))
				}
			}
		}
	}()
}
