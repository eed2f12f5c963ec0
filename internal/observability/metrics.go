package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

type MetricsConfig struct {
	Enabled            bool          `env:"METRICS_ENABLED"`
	ScrapeInterval     time.Duration `env:"METRICS_SCRAPE_INTERVAL" envDefault:"10s"`
	LLMTelemetry       bool          `env:"LLM_TELEMETRY_ENABLED" envDefault:"true"`
	LLMCostInputPer1K  float64       `env:"LLM_COST_INPUT_PER_1K"`
	LLMCostOutputPer1K float64       `env:"LLM_COST_OUTPUT_PER_1K"`
}

type Metrics struct {
	cfg MetricsConfig

	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqError *CounterVec

	stageLatency *HistogramVec
	stageTotal   *CounterVec

	deployPolls *CounterVec
	deployWait  *HistogramVec

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec
	llmCost     *CounterVec

	generations       *CounterVec
	generationSeconds *HistogramVec
	edits             *CounterVec
	editFiles         *CounterVec
	upstreamErrors    *CounterVec
	warnings          *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process metrics, nil when metrics are disabled. All
// methods are nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger, cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics(cfg)
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if cfg.ScrapeInterval <= 0 {
		cfg.ScrapeInterval = 10 * time.Second
	}
	return &Metrics{
		cfg:         cfg,
		apiRequests: NewCounterVec("darx_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"darx_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 120, 300, 600},
		),
		apiInflight: NewGauge("darx_api_inflight_requests", "In-flight API requests."),
		apiReqError: NewCounterVec("darx_api_requests_error_total", "API requests answered with a 5xx status by route.", []string{"route"}),
		stageLatency: NewHistogramVec(
			"darx_pipeline_stage_duration_seconds",
			"Pipeline stage duration in seconds by pipeline/stage/status.",
			[]string{"pipeline", "stage", "status"},
			[]float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		),
		stageTotal:  NewCounterVec("darx_pipeline_stage_total", "Pipeline stage count by pipeline/stage/status.", []string{"pipeline", "stage", "status"}),
		deployPolls: NewCounterVec("darx_deploy_polls_total", "Deployment status reads by observed state.", []string{"state"}),
		deployWait: NewHistogramVec(
			"darx_deploy_wait_seconds",
			"Time from trigger to terminal deployment state by outcome.",
			[]string{"state"},
			[]float64{10, 30, 60, 120, 180, 300, 600},
		),
		llmRequests: NewCounterVec("darx_llm_requests_total", "LLM requests by model/endpoint/status.", []string{"model", "endpoint", "status"}),
		llmLatency: NewHistogramVec(
			"darx_llm_request_duration_seconds",
			"LLM request latency in seconds by model/endpoint/status.",
			[]string{"model", "endpoint", "status"},
			[]float64{1, 5, 10, 30, 60, 120, 180, 300},
		),
		llmTokens:   NewCounterVec("darx_llm_tokens_total", "LLM tokens by model/direction.", []string{"model", "direction"}),
		llmCost:     NewCounterVec("darx_llm_cost_usd_total", "Estimated LLM cost (USD) by model/direction.", []string{"model", "direction"}),
		generations: NewCounterVec("darx_generations_total", "Generation runs by outcome/error_type.", []string{"outcome", "error_type"}),
		generationSeconds: NewHistogramVec(
			"darx_generation_duration_seconds",
			"End-to-end generation time in seconds by outcome.",
			[]string{"outcome"},
			[]float64{30, 60, 120, 180, 300, 450, 600, 900},
		),
		edits:          NewCounterVec("darx_edits_total", "Edit runs by category/outcome.", []string{"category", "outcome"}),
		editFiles:      NewCounterVec("darx_edit_files_total", "Edited files by result.", []string{"result"}),
		upstreamErrors: NewCounterVec("darx_upstream_errors_total", "Tagged upstream failures by upstream/kind.", []string{"upstream", "kind"}),
		warnings:       NewCounterVec("darx_best_effort_warnings_total", "Best-effort step failures downgraded to warnings.", []string{"step"}),
		pgStats:        NewGaugeVec("darx_postgres_pool", "Postgres connection pool stats.", []string{"stat"}),
		redisUp:        NewGauge("darx_redis_up", "Redis reachability (1 = up)."),
		redisPing:      NewGauge("darx_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
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
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqError,
		m.stageLatency, m.stageTotal,
		m.deployPolls, m.deployWait,
		m.llmRequests, m.llmLatency, m.llmTokens, m.llmCost,
		m.generations, m.generationSeconds, m.edits, m.editFiles,
		m.upstreamErrors, m.warnings,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	if strings.HasPrefix(status, "5") {
		m.apiReqError.Inc(route)
	}
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

func (m *Metrics) ObservePipelineStage(pipeline, stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Observe(dur.Seconds(), pipeline, stage, status)
	m.stageTotal.Inc(pipeline, stage, status)
}

func (m *Metrics) ObserveDeployPoll(state string) {
	if m == nil {
		return
	}
	m.deployPolls.Inc(strings.ToLower(state))
}

func (m *Metrics) ObserveDeployWait(state string, dur time.Duration) {
	if m == nil {
		return
	}
	m.deployWait.Observe(dur.Seconds(), strings.ToLower(state))
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil || !m.cfg.LLMTelemetry {
		return
	}
	if status == "" {
		status = "0"
	}
	m.llmRequests.Inc(model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
		if m.cfg.LLMCostInputPer1K > 0 {
			m.llmCost.Add(float64(inputTokens)/1000.0*m.cfg.LLMCostInputPer1K, model, "input")
		}
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
		if m.cfg.LLMCostOutputPer1K > 0 {
			m.llmCost.Add(float64(outputTokens)/1000.0*m.cfg.LLMCostOutputPer1K, model, "output")
		}
	}
}

func (m *Metrics) ObserveGeneration(success bool, errorType string, dur time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	if errorType == "" {
		errorType = "none"
	}
	m.generations.Inc(outcome, errorType)
	m.generationSeconds.Observe(dur.Seconds(), outcome)
}

func (m *Metrics) ObserveEdit(category, outcome string, updated, failed int) {
	if m == nil {
		return
	}
	m.edits.Inc(category, outcome)
	m.editFiles.Add(float64(updated), "updated")
	m.editFiles.Add(float64(failed), "failed")
}

func (m *Metrics) IncUpstreamError(upstream, kind string) {
	if m == nil {
		return
	}
	if upstream == "" {
		upstream = "none"
	}
	m.upstreamErrors.Inc(upstream, kind)
}

func (m *Metrics) IncWarning(step string) {
	if m == nil {
		return
	}
	m.warnings.Inc(step)
}

// GenerationCount reports the generation counter for one outcome/error_type pair.
func (m *Metrics) GenerationCount(outcome, errorType string) float64 {
	if m == nil {
		return 0
	}
	return m.generations.Value(outcome, errorType)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.cfg.ScrapeInterval)
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
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.cfg.ScrapeInterval)
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
