package metrics

import (
	"time"

	"github.com/solbatt/solbatt/core/model"
)

// PlanRunEvent summarizes one planning run for observability purposes.
type PlanRunEvent struct {
	RunID                  string
	StartedAt              time.Time
	Duration               time.Duration
	Slots                  int
	Windows                int
	StrategicWindows       int
	TotalResponsibilityKWh float64
	TotalChargeKWh         float64
	TotalWaterHeatingKWh   float64
	TotalExportKWh         float64
	FinalSoCPercent        float64
	Warnings               int
	Err                    error
}

// MetricsSink records planning runs for observability purposes.
type MetricsSink interface {
	RecordPlanRun(ev PlanRunEvent) error
}

// ScheduleRecorder is implemented by sinks that persist the full per-slot
// schedule in addition to the run summary.
type ScheduleRecorder interface {
	RecordSchedule(plan *model.Plan) error
}

// Config holds metrics sink settings.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    int    `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// NopSink discards all events.
type NopSink struct{}

// RecordPlanRun implements MetricsSink.
func (NopSink) RecordPlanRun(PlanRunEvent) error { return nil }
