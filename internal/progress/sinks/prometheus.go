package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acuervo/catalog-mirror/internal/progress"
)

// PrometheusSink exports import progress metrics via Prometheus. It owns all
// collectors for run lifecycle, per-warehouse product counters, and remote
// request accounting.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runPauses     prometheus.Counter
	runTime       prometheus.Histogram

	productsReviewed *prometheus.CounterVec
	productsCreated  *prometheus.CounterVec
	productsUpdated  *prometheus.CounterVec
	fieldsChanged    *prometheus.CounterVec
	requestsDone     *prometheus.CounterVec
	importErrors     *prometheus.CounterVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirror_runs_started_total",
			Help: "Total import runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_runs_completed_total",
			Help: "Total import runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mirror_runs_running",
			Help: "Current number of running import runs.",
		}),
		runPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirror_run_pauses_total",
			Help: "Rate-limit pauses taken across all runs.",
		}),
		runTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mirror_run_time_seconds",
			Help:    "Wall time per completed import run.",
			Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200, 14400},
		}),
		productsReviewed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_products_reviewed_total",
			Help: "Products reviewed per warehouse.",
		}, []string{"warehouse"}),
		productsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_products_created_total",
			Help: "New product records created per warehouse.",
		}, []string{"warehouse"}),
		productsUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_products_updated_total",
			Help: "Existing product records updated per warehouse.",
		}, []string{"warehouse"}),
		fieldsChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_fields_changed_total",
			Help: "Versioned field changes recorded per warehouse.",
		}, []string{"warehouse"}),
		requestsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_remote_requests_total",
			Help: "Completed remote API requests per warehouse.",
		}, []string{"warehouse"}),
		importErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_import_errors_total",
			Help: "Errors reported through the progress boundary per warehouse.",
		}, []string{"warehouse"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runPauses,
		s.runTime,
		s.productsReviewed,
		s.productsCreated,
		s.productsUpdated,
		s.fieldsChanged,
		s.requestsDone,
		s.importErrors,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	wh := evt.Warehouse
	if wh == "" {
		wh = "unknown"
	}
	switch evt.Kind {
	case progress.KindRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.KindRunDone:
		s.completeRun(evt, "success")
	case progress.KindRunError:
		s.completeRun(evt, "error")
	case progress.KindRunPaused:
		s.runPauses.Inc()
	case progress.KindProductAvailable:
		s.productsReviewed.WithLabelValues(wh).Inc()
	case progress.KindProductCreated:
		s.productsCreated.WithLabelValues(wh).Inc()
	case progress.KindProductUpdated:
		s.productsUpdated.WithLabelValues(wh).Inc()
	case progress.KindProductChanged:
		s.fieldsChanged.WithLabelValues(wh).Inc()
	case progress.KindRequestsSubmitted:
		s.requestsDone.WithLabelValues(wh).Add(float64(evt.Count))
	case progress.KindError:
		s.importErrors.WithLabelValues(wh).Inc()
	}
}

func (s *PrometheusSink) completeRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runTime.Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
