package metrics

import (
	"testing"

	coremetrics "github.com/solbatt/solbatt/core/metrics"
	"github.com/solbatt/solbatt/core/model"
)

type recordSink struct {
	runs      int
	schedules int
}

func (r *recordSink) RecordPlanRun(coremetrics.PlanRunEvent) error {
	r.runs++
	return nil
}

func (r *recordSink) RecordSchedule(*model.Plan) error {
	r.schedules++
	return nil
}

type runOnlySink struct{ runs int }

func (r *runOnlySink) RecordPlanRun(coremetrics.PlanRunEvent) error {
	r.runs++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &runOnlySink{}
	m := NewMultiSink(s1, s2)

	if err := m.RecordPlanRun(coremetrics.PlanRunEvent{}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := m.RecordSchedule(&model.Plan{}); err != nil {
		t.Fatalf("record schedule: %v", err)
	}
	if s1.runs != 1 || s2.runs != 1 {
		t.Fatalf("run event not forwarded to all sinks")
	}
	if s1.schedules != 1 {
		t.Fatalf("schedule not forwarded to supporting sink")
	}
}
