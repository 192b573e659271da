package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/solbatt/solbatt/core/metrics"
	"github.com/solbatt/solbatt/core/model"
	"github.com/solbatt/solbatt/infra/logger"
)

// InfluxSink writes planning runs and schedules to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlanRun writes the run summary as a single point.
func (s *InfluxSink) RecordPlanRun(ev coremetrics.PlanRunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_run").
		AddTag("run_id", ev.RunID).
		AddTag("outcome", outcome(ev.Err)).
		AddTag("component", "planner").
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("slots", ev.Slots).
		AddField("windows", ev.Windows).
		AddField("strategic_windows", ev.StrategicWindows).
		AddField("responsibility_kwh", round3(ev.TotalResponsibilityKWh)).
		AddField("charge_kwh", round3(ev.TotalChargeKWh)).
		AddField("water_heating_kwh", round3(ev.TotalWaterHeatingKWh)).
		AddField("export_kwh", round3(ev.TotalExportKWh)).
		AddField("final_soc_percent", round3(ev.FinalSoCPercent)).
		AddField("warnings", ev.Warnings).
		SetTime(ev.StartedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one point per slot so dashboards can plot the planned
// flows against realized telemetry.
func (s *InfluxSink) RecordSchedule(plan *model.Plan) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, slot := range plan.Slots {
		p := write.NewPointWithMeasurement("schedule_slot").
			AddTag("run_id", plan.RunID).
			AddTag("classification", slot.Classification).
			AddTag("component", "planner").
			AddField("import_price", round3(slot.ImportPrice)).
			AddField("export_price", round3(slot.ExportPrice)).
			AddField("charge_kw", round3(slot.ChargeKW)).
			AddField("discharge_kw", round3(slot.DischargeKW)).
			AddField("grid_import_kw", round3(slot.GridImportKW)).
			AddField("grid_export_kw", round3(slot.GridExportKW)).
			AddField("water_heating_kw", round3(slot.WaterHeatingKW)).
			AddField("soc_target_percent", round3(slot.SoCTargetPercent)).
			AddField("projected_soc_percent", round3(slot.ProjectedSoCPercent)).
			AddField("projected_cost_per_kwh", round3(slot.ProjectedBatteryCostPerKWh)).
			SetTime(slot.SlotStart)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
