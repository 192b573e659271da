// Package app wires the planning engine to its collaborators: the snapshot
// provider, the MQTT publisher, the HTTP API and the metrics sinks.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/solbatt/solbatt/api/schedule"
	"github.com/solbatt/solbatt/config"
	coreinputs "github.com/solbatt/solbatt/core/inputs"
	coremetrics "github.com/solbatt/solbatt/core/metrics"
	"github.com/solbatt/solbatt/core/model"
	"github.com/solbatt/solbatt/core/planner"
	"github.com/solbatt/solbatt/infra/inputs"
	"github.com/solbatt/solbatt/infra/logger"
	"github.com/solbatt/solbatt/infra/metrics"
	"github.com/solbatt/solbatt/infra/mqtt"
	"github.com/solbatt/solbatt/internal/eventbus"
)

// PlanPublisher pushes finalized plans to the executor.
type PlanPublisher interface {
	PublishPlan(plan *model.Plan) error
	Close()
}

// Service runs the planning loop.
type Service struct {
	engine    *planner.Engine
	provider  coreinputs.Provider
	publisher PlanPublisher
	sink      coremetrics.MetricsSink
	store     *schedule.Store
	bus       eventbus.EventBus
	log       logger.Logger

	interval    time.Duration
	apiAddr     string
	promEnabled bool
	promPort    int
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	engine, err := planner.New(cfg.Planner, logger.New("planner"))
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	sink, err := metrics.New(cfg.Metrics, log)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var publisher PlanPublisher
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		publisher = pub
	}

	return &Service{
		engine:      engine,
		provider:    inputs.NewFileProvider(cfg.Service.SnapshotPath),
		publisher:   publisher,
		sink:        sink,
		store:       schedule.NewStore(),
		bus:         eventbus.New(),
		log:         log,
		interval:    time.Duration(cfg.Service.IntervalMinutes) * time.Minute,
		apiAddr:     cfg.Service.APIAddr,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Bus exposes the event bus for in-process consumers.
func (s *Service) Bus() eventbus.EventBus { return s.bus }

// Store exposes the latest-plan store, mainly for tests.
func (s *Service) Store() *schedule.Store { return s.store }

// Run starts the planning loop and the HTTP API and blocks until the context
// is cancelled. The first run happens immediately.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			addr := fmt.Sprintf(":%d", s.promPort)
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go s.serveAPI(ctx)

	s.RunOnce(ctx)
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single planning run: snapshot, plan, publish, record.
func (s *Service) RunOnce(ctx context.Context) {
	started := time.Now()
	s.bus.Publish(eventbus.PlanStarted{At: started})

	snap, err := s.provider.Snapshot(ctx)
	if err != nil {
		s.fail(started, fmt.Errorf("snapshot: %w", err))
		return
	}
	plan, err := s.engine.GenerateSchedule(snap)
	if err != nil {
		s.fail(started, fmt.Errorf("plan: %w", err))
		return
	}

	s.store.Set(plan)
	s.bus.Publish(eventbus.PlanGenerated{Plan: plan})

	if s.publisher != nil {
		if err := s.publisher.PublishPlan(plan); err != nil {
			s.log.Errorf("publish plan %s: %v", plan.RunID, err)
		}
	}

	ev := summarize(plan, started)
	if err := s.sink.RecordPlanRun(ev); err != nil {
		s.log.Errorf("record plan run: %v", err)
	}
	if rec, ok := s.sink.(coremetrics.ScheduleRecorder); ok {
		if err := rec.RecordSchedule(plan); err != nil {
			s.log.Errorf("record schedule: %v", err)
		}
	}
	s.log.Infof("run %s: %d slots, %d warnings in %s",
		plan.RunID, len(plan.Slots), len(plan.Warnings), time.Since(started).Round(time.Millisecond))
}

func (s *Service) fail(started time.Time, err error) {
	s.log.Errorf("planning run failed: %v", err)
	s.bus.Publish(eventbus.PlanFailed{At: started, Err: err})
	if rerr := s.sink.RecordPlanRun(coremetrics.PlanRunEvent{
		StartedAt: started,
		Duration:  time.Since(started),
		Err:       err,
	}); rerr != nil {
		s.log.Errorf("record failed run: %v", rerr)
	}
}

func (s *Service) serveAPI(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/api/schedule", schedule.NewHandler(s.store))
	mux.Handle("/healthz", schedule.NewHealthHandler(s.store))
	srv := &http.Server{Addr: s.apiAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("api server: %v", err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Close()
	}
	s.bus.Close()
	return nil
}

func summarize(plan *model.Plan, started time.Time) coremetrics.PlanRunEvent {
	ev := coremetrics.PlanRunEvent{
		RunID:     plan.RunID,
		StartedAt: started,
		Duration:  time.Since(started),
		Slots:     len(plan.Slots),
		Windows:   len(plan.Windows),
		Warnings:  len(plan.Warnings),
	}
	for _, w := range plan.Windows {
		ev.TotalResponsibilityKWh += w.ResponsibilityKWh
		if w.IsStrategic {
			ev.StrategicWindows++
		}
	}
	for _, s := range plan.Slots {
		hours := s.SlotEnd.Sub(s.SlotStart).Hours()
		ev.TotalChargeKWh += s.ChargeKW * hours
		ev.TotalWaterHeatingKWh += s.WaterHeatingKW * hours
		ev.TotalExportKWh += s.GridExportKW * hours
	}
	if n := len(plan.Slots); n > 0 {
		ev.FinalSoCPercent = plan.Slots[n-1].ProjectedSoCPercent
	}
	return ev
}
