package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests      *CounterVec
	apiLatency       *HistogramVec
	apiInflight      *Gauge
	webhooks         *CounterVec
	providerRequests *CounterVec
	providerLatency  *HistogramVec
	pipelineStage    *HistogramVec
	orchestrations   *CounterVec
	tasksActive      *Gauge
	runsByStatus     *GaugeVec
	dbStats          *GaugeVec
	redisUp          *Gauge
	redisPing        *Gauge

	scrapeInterval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init installs the process-wide registry. It returns nil when metrics are
// disabled; every method is nil-safe.
func Init(enabled bool, scrapeInterval time.Duration) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New(scrapeInterval)
	})
	return instance
}

func Current() *Metrics {
	return instance
}

func New(scrapeInterval time.Duration) *Metrics {
	if scrapeInterval <= 0 {
		scrapeInterval = 10 * time.Second
	}
	return &Metrics{
		apiRequests: NewCounterVec("autopilot_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"autopilot_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight:      NewGauge("autopilot_api_inflight_requests", "In-flight API requests."),
		webhooks:         NewCounterVec("autopilot_webhooks_total", "Inbound webhooks by source/result.", []string{"source", "result"}),
		providerRequests: NewCounterVec("autopilot_provider_requests_total", "Upstream provider calls by provider/kind/status.", []string{"provider", "kind", "status"}),
		providerLatency: NewHistogramVec(
			"autopilot_provider_duration_seconds",
			"Upstream provider call latency by provider/kind.",
			[]string{"provider", "kind"},
			[]float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		),
		pipelineStage: NewHistogramVec(
			"autopilot_pipeline_stage_duration_seconds",
			"Completion pipeline stage latency by stage/status.",
			[]string{"stage", "status"},
			[]float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		),
		orchestrations: NewCounterVec("autopilot_orchestrations_total", "Orchestration outcomes.", []string{"outcome"}),
		tasksActive:    NewGauge("autopilot_tasks_active", "Background tasks currently running."),
		runsByStatus:   NewGaugeVec("autopilot_runs", "Runs by status.", []string{"status"}),
		dbStats:        NewGaugeVec("autopilot_db_pool", "Database pool statistics.", []string{"stat"}),
		redisUp:        NewGauge("autopilot_redis_up", "Redis reachability (1/0)."),
		redisPing:      NewGauge("autopilot_redis_ping_seconds", "Redis ping latency in seconds."),
		scrapeInterval: scrapeInterval,
	}
}

func (m *Metrics) collectors() []collector {
	return []collector{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.webhooks,
		m.providerRequests,
		m.providerLatency,
		m.pipelineStage,
		m.orchestrations,
		m.tasksActive,
		m.runsByStatus,
		m.dbStats,
		m.redisUp,
		m.redisPing,
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) IncWebhook(source, result string) {
	if m == nil {
		return
	}
	m.webhooks.Inc(source, result)
}

// ObserveProvider records one upstream call. kind is "llm", "video" or
// "insights".
func (m *Metrics) ObserveProvider(provider, kind string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerRequests.Inc(provider, kind, status)
	m.providerLatency.Observe(dur.Seconds(), provider, kind)
}

func (m *Metrics) ObserveStage(stage string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.pipelineStage.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) IncOrchestration(outcome string) {
	if m == nil {
		return
	}
	m.orchestrations.Inc(strings.ToLower(outcome))
}

func (m *Metrics) OrchestrationCount(outcome string) float64 {
	if m == nil {
		return 0
	}
	return m.orchestrations.Value(strings.ToLower(outcome))
}

func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksActive.Add(1)
}

func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.tasksActive.Add(-1)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	statuses := []types.RunStatus{
		types.RunStatusRunning,
		types.RunStatusCompleted,
		types.RunStatusVideoReady,
		types.RunStatusVideoFailed,
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if sqlDB, err := db.DB(); err == nil {
					stats := sqlDB.Stats()
					m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
					m.dbStats.Set(float64(stats.InUse), "in_use")
					m.dbStats.Set(float64(stats.Idle), "idle")
					m.dbStats.Set(float64(stats.WaitCount), "wait_count")
					m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				} else if log != nil {
					log.Warn("metrics: db stats unavailable", "error", err)
				}

				for _, s := range statuses {
					m.runsByStatus.Set(0, string(s))
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&types.Run{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: run status query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					m.runsByStatus.Set(float64(row.Count), row.Status)
				}
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
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
