package prometheus

import (
	"strconv"
	"time"
)

// SynastryMetrics holds every metric family the services record.
type SynastryMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Compatibility
	CalculationsTotal   CounterVec
	CalculationDuration HistogramVec
	CompatibilityScore  HistogramVec
	AspectsDetected     HistogramVec
	MinorAspectsDropped CounterVec

	// Activation
	ActivationsTotal  CounterVec
	TriggeredAspects  HistogramVec
	ActivationEnergy  CounterVec
	BatchActivationMs HistogramVec

	// Infrastructure
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessagesProcessedTotal CounterVec
	MessageProcessDuration HistogramVec

	ErrorsTotal CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
	ScoreBuckets               = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	CountBuckets               = []float64{0, 1, 2, 5, 10, 20, 40, 80}
)

// NewSynastryMetrics registers all families on collector.
func NewSynastryMetrics(collector MetricsCollector) *SynastryMetrics {
	return &SynastryMetrics{
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request latency", DefaultHTTPDurationBuckets, "method", "path"),
		HTTPActiveRequests:  collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method"),

		CalculationsTotal:   collector.RegisterCounter("compatibility_calculations_total", "Compatibility calculations by outcome", "source", "status"),
		CalculationDuration: collector.RegisterHistogram("compatibility_calculation_duration_seconds", "Time spent scoring a chart pair", DefaultDurationBuckets, "source"),
		CompatibilityScore:  collector.RegisterHistogram("compatibility_score", "Distribution of final compatibility scores", ScoreBuckets),
		AspectsDetected:     collector.RegisterHistogram("aspects_detected", "Cross aspects detected per pair", CountBuckets, "category"),
		MinorAspectsDropped: collector.RegisterCounter("minor_aspects_dropped_total", "Minor aspects excluded by the scoring cap"),

		ActivationsTotal:  collector.RegisterCounter("activations_total", "Transit activation matches by outcome", "status"),
		TriggeredAspects:  collector.RegisterHistogram("triggered_aspects", "Synastry aspects triggered per activation", CountBuckets),
		ActivationEnergy:  collector.RegisterCounter("activation_energy_total", "Activations by overall energy rating", "energy"),
		BatchActivationMs: collector.RegisterHistogram("batch_activation_duration_seconds", "Time spent on a batch activation request", DefaultHTTPDurationBuckets),

		DBQueryDuration:        collector.RegisterHistogram("db_query_duration_seconds", "Database query latency", DefaultDBDurationBuckets, "operation", "status"),
		CacheHitsTotal:         collector.RegisterCounter("cache_hits_total", "Cache hits", "cache"),
		CacheMissesTotal:       collector.RegisterCounter("cache_misses_total", "Cache misses", "cache"),
		MessagesProcessedTotal: collector.RegisterCounter("messages_processed_total", "Kafka messages handled", "topic", "status"),
		MessageProcessDuration: collector.RegisterHistogram("message_process_duration_seconds", "Kafka handler latency", DefaultDurationBuckets, "topic"),

		ErrorsTotal: collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code"),
	}
}

// NewNoopMetrics returns metrics backed by the no-op collector.
func NewNoopMetrics() *SynastryMetrics {
	return NewSynastryMetrics(NewNoopCollector())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func RecordHTTPRequest(m *SynastryMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackHTTPInFlight raises the in-flight gauge for method and returns the
// function that lowers it again.
func TrackHTTPInFlight(m *SynastryMetrics, method string) func() {
	if m == nil {
		return func() {}
	}
	g := m.HTTPActiveRequests.WithLabelValues(method)
	g.Inc()
	return g.Dec
}

// RecordCalculation records one scored pair.  Score and aspect counts are
// only observed on success.
func RecordCalculation(m *SynastryMetrics, source string, score, major, minor, dropped int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.CalculationsTotal.WithLabelValues(source, statusLabel(err)).Inc()
	m.CalculationDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		return
	}
	m.CompatibilityScore.WithLabelValues().Observe(float64(score))
	m.AspectsDetected.WithLabelValues("major").Observe(float64(major))
	m.AspectsDetected.WithLabelValues("minor").Observe(float64(minor))
	if dropped > 0 {
		m.MinorAspectsDropped.WithLabelValues().Add(float64(dropped))
	}
}

func RecordActivation(m *SynastryMetrics, triggered int, energy string, err error) {
	if m == nil {
		return
	}
	m.ActivationsTotal.WithLabelValues(statusLabel(err)).Inc()
	if err != nil {
		return
	}
	m.TriggeredAspects.WithLabelValues().Observe(float64(triggered))
	m.ActivationEnergy.WithLabelValues(energy).Inc()
}

func RecordDBQuery(m *SynastryMetrics, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation, statusLabel(err)).Observe(duration.Seconds())
}

func RecordCacheAccess(m *SynastryMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordMessage(m *SynastryMetrics, topic string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.MessagesProcessedTotal.WithLabelValues(topic, statusLabel(err)).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func RecordError(m *SynastryMetrics, component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
