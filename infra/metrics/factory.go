package metrics

import (
	coremetrics "github.com/solbatt/solbatt/core/metrics"
	"github.com/solbatt/solbatt/infra/logger"
)

// New builds the sink stack described by the configuration. Disabled or
// unreachable backends degrade to no-ops; metrics never block planning.
func New(cfg coremetrics.Config, log logger.Logger) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		prom, err := NewPromSink(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		log.Infof("no metrics sinks enabled")
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
