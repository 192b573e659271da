package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/solbatt/solbatt/core/metrics"
)

// PromSink records planning runs in Prometheus metrics.
type PromSink struct {
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	warnings   prometheus.Counter
	socPercent prometheus.Gauge
	energyKWh  *prometheus.GaugeVec
}

// NewPromSink registers planner metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_runs_total",
		Help: "Total number of planning runs",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_run_duration_seconds",
		Help:    "Wall time of one planning run",
		Buckets: prometheus.DefBuckets,
	})
	warnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_warnings_total",
		Help: "Total number of plan warnings emitted",
	})
	socPercent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_projected_final_soc_percent",
		Help: "Projected battery SoC at the end of the latest horizon",
	})
	energyKWh := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planner_scheduled_energy_kwh",
		Help: "Energy scheduled in the latest plan, by flow",
	}, []string{"flow"})

	collectors := []prometheus.Collector{runs, duration, warnings, socPercent, energyKWh}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				collectors[i] = are.ExistingCollector
				continue
			}
			return nil, err
		}
	}
	runs = collectors[0].(*prometheus.CounterVec)
	duration = collectors[1].(prometheus.Histogram)
	warnings = collectors[2].(prometheus.Counter)
	socPercent = collectors[3].(prometheus.Gauge)
	energyKWh = collectors[4].(*prometheus.GaugeVec)

	return &PromSink{
		runs:       runs,
		duration:   duration,
		warnings:   warnings,
		socPercent: socPercent,
		energyKWh:  energyKWh,
	}, nil
}

// RecordPlanRun updates the run counters and the latest-plan gauges.
func (s *PromSink) RecordPlanRun(ev coremetrics.PlanRunEvent) error {
	outcome := "success"
	if ev.Err != nil {
		outcome = "error"
	}
	s.runs.WithLabelValues(outcome).Inc()
	s.duration.Observe(ev.Duration.Seconds())
	if ev.Warnings > 0 {
		s.warnings.Add(float64(ev.Warnings))
	}
	if ev.Err != nil {
		return nil
	}
	s.socPercent.Set(ev.FinalSoCPercent)
	s.energyKWh.WithLabelValues("charge").Set(ev.TotalChargeKWh)
	s.energyKWh.WithLabelValues("water_heating").Set(ev.TotalWaterHeatingKWh)
	s.energyKWh.WithLabelValues("export").Set(ev.TotalExportKWh)
	s.energyKWh.WithLabelValues("responsibility").Set(ev.TotalResponsibilityKWh)
	return nil
}
