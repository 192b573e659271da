package metrics

import (
	coremetrics "github.com/solbatt/solbatt/core/metrics"
	"github.com/solbatt/solbatt/core/model"
)

// MultiSink fans planning events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanRun forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordPlanRun(ev coremetrics.PlanRunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSchedule forwards the full plan to sinks that support it.
func (m *MultiSink) RecordSchedule(plan *model.Plan) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ScheduleRecorder); ok {
			if err := rec.RecordSchedule(plan); err != nil {
				return err
			}
		}
	}
	return nil
}
