package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/solbatt/solbatt/core/inputs"
	"github.com/solbatt/solbatt/core/model"
)

// buildFrame constructs the ordered slot sequence for the planning horizon
// from the raw price and forecast series and applies the static safety
// margins. It fails with a DataGapError when either series does not span
// the horizon.
func (e *Engine) buildFrame(snap *inputs.Snapshot) (*frame, error) {
	if len(snap.Prices) == 0 {
		return nil, fmt.Errorf("planner: empty price series")
	}
	if len(snap.Forecasts) == 0 {
		return nil, fmt.Errorf("planner: empty forecast series")
	}

	prices := make([]inputs.PriceSlot, len(snap.Prices))
	copy(prices, snap.Prices)
	sort.Slice(prices, func(i, j int) bool { return prices[i].StartTime.Before(prices[j].StartTime) })

	forecastByStart := make(map[time.Time]inputs.ForecastSlot, len(snap.Forecasts))
	var forecastEnd time.Time
	for _, fc := range snap.Forecasts {
		forecastByStart[fc.StartTime.UTC()] = fc
		if fc.EndTime.After(forecastEnd) {
			forecastEnd = fc.EndTime
		}
	}

	slotDur := time.Duration(e.cfg.SlotMinutes) * time.Minute
	horizonStart := prices[0].StartTime
	horizonEnd := horizonStart.Add(time.Duration(e.cfg.HorizonHours) * time.Hour)

	priceEnd := prices[len(prices)-1].EndTime
	if priceEnd.Before(horizonEnd) {
		return nil, &DataGapError{Series: "price", Need: horizonEnd, Covered: priceEnd}
	}
	if forecastEnd.Before(horizonEnd) {
		return nil, &DataGapError{Series: "forecast", Need: horizonEnd, Covered: forecastEnd}
	}

	pvConfidence := e.cfg.Forecast.PVConfidencePercent / 100.0
	loadMargin := 1.0 + e.cfg.Forecast.LoadSafetyMarginPercent/100.0

	var slots []model.Slot
	expected := horizonStart
	for _, p := range prices {
		if !p.StartTime.Before(horizonEnd) {
			break
		}
		if !p.StartTime.Equal(expected) {
			return nil, &DataGapError{Series: "price", Need: horizonEnd, Covered: expected}
		}
		if p.EndTime.Sub(p.StartTime) != slotDur {
			return nil, fmt.Errorf("planner: price slot at %s has duration %s, want %s",
				p.StartTime.Format(time.RFC3339), p.EndTime.Sub(p.StartTime), slotDur)
		}
		fc, ok := forecastByStart[p.StartTime.UTC()]
		if !ok {
			return nil, &DataGapError{Series: "forecast", Need: horizonEnd, Covered: p.StartTime}
		}
		slots = append(slots, model.Slot{
			Start:           p.StartTime.In(e.loc),
			End:             p.EndTime.In(e.loc),
			ImportPrice:     p.ImportPrice,
			ExportPrice:     p.ExportPrice,
			PVForecastKWh:   fc.PVForecastKWh,
			LoadForecastKWh: fc.LoadForecastKWh,
			AdjustedPVKWh:   fc.PVForecastKWh * pvConfidence,
			AdjustedLoadKWh: fc.LoadForecastKWh * loadMargin,
			WindowID:        model.NoWindow,
		})
		expected = expected.Add(slotDur)
	}
	if expected.Before(horizonEnd) {
		return nil, &DataGapError{Series: "price", Need: horizonEnd, Covered: expected}
	}

	return &frame{
		slots:             slots,
		unmetKWh:          make([]float64, len(slots)),
		suppressDischarge: make([]bool, len(slots)),
		suppressExport:    make([]bool, len(slots)),
		sIndexFactor:      1.0,
	}, nil
}
