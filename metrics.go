package tpl2pdf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build outcomes recorded in tpl2pdf_builds_total.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeCancel  = "canceled"
)

// Template labels for builds whose template name is not a real template, so
// caller-supplied names cannot create new series.
const (
	templateLabelInvalid = "invalid"
	templateLabelUnknown = "unknown"
)

// Build stages recorded in tpl2pdf_build_stage_duration_seconds.
const (
	stageResolve   = "resolve"
	stageWorkspace = "workspace"
	stageAssets    = "assets"
	stageData      = "data"
	stageRender    = "render"
	stageStamp     = "stamp"
)

// metrics holds the generator's collectors. A nil *metrics records nothing.
type metrics struct {
	builds    *prometheus.CounterVec
	stages    *prometheus.HistogramVec
	poolWait  prometheus.Histogram
	poolInUse prometheus.Gauge
}

// newMetrics creates the collectors and registers them on reg.
// Returns nil, nil when reg is nil.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &metrics{
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpl2pdf_builds_total",
				Help: "Total number of builds by template and outcome.",
			},
			[]string{"template", "outcome"},
		),
		stages: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tpl2pdf_build_stage_duration_seconds",
				Help:    "Duration of each build stage.",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		poolWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "tpl2pdf_pool_wait_seconds",
			Help: "Time spent waiting for a renderer from the pool.",
		}),
		poolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tpl2pdf_pool_in_use",
			Help: "Renderers currently checked out of the pool.",
		}),
	}

	for _, c := range []prometheus.Collector{m.builds, m.stages, m.poolWait, m.poolInUse} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observeBuild(template, outcome string) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(template, outcome).Inc()
}

func (m *metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *metrics) observePoolWait(d time.Duration) {
	if m == nil {
		return
	}
	m.poolWait.Observe(d.Seconds())
}

func (m *metrics) poolAcquired() {
	if m == nil {
		return
	}
	m.poolInUse.Inc()
}

func (m *metrics) poolReleased() {
	if m == nil {
		return
	}
	m.poolInUse.Dec()
}
