package planner

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/solbatt/solbatt/core/model"
)

// classifyWindows labels slots cheap or not, groups contiguous cheap slots
// into charging windows and tags strategic periods.
//
// The cheap threshold is derived in two steps: the price at the configured
// percentile selects an initial cheap set, then the tolerance and smoothing
// widen the cutoff to the most expensive initial slot so a naturally
// contiguous cheap period is not fragmented at a hard percentile boundary.
func (e *Engine) classifyWindows(f *frame) {
	if len(f.slots) == 0 {
		f.warn(model.Warning{
			Kind:    model.WarnDegenerateWindowSet,
			Message: "no slots in the planning frame; no grid charging this run",
		})
		return
	}

	xs := make([]float64, len(f.slots))
	for i, s := range f.slots {
		xs[i] = s.ImportPrice
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	percentile := stat.Quantile(e.cfg.Charging.CheapPercentile/100.0, stat.Empirical, sorted, nil)

	maxInitial := percentile
	for _, p := range xs {
		if p <= percentile && p > maxInitial {
			maxInitial = p
		}
	}
	threshold := maxInitial + e.cfg.Charging.PriceTolerance + e.cfg.Charging.PriceSmoothing

	cheapCount := 0
	for i := range f.slots {
		if f.slots[i].ImportPrice <= threshold {
			f.slots[i].IsCheap = true
			cheapCount++
		}
	}

	// A strategic period is active when the horizon forecasts a PV deficit.
	// Within it, slots priced below the strategic floor are charge-eligible
	// even when not classified cheap.
	var totalPV, totalLoad float64
	for _, s := range f.slots {
		totalPV += s.AdjustedPVKWh
		totalLoad += s.AdjustedLoadKWh
	}
	strategicPeriod := e.cfg.Strategic.Enabled && totalPV < totalLoad
	if strategicPeriod {
		for i := range f.slots {
			if f.slots[i].ImportPrice < e.cfg.Strategic.PriceThreshold {
				f.slots[i].IsStrategicPeriod = true
			}
		}
	}

	// Group maximal runs of window-eligible slots. A slot is eligible when
	// cheap or strategic; a single ineligible slot breaks a window.
	for i := 0; i < len(f.slots); {
		if !f.slots[i].IsCheap && !f.slots[i].IsStrategicPeriod {
			i++
			continue
		}
		j := i
		cheapest := f.slots[i].ImportPrice
		strategic := false
		for j < len(f.slots) && (f.slots[j].IsCheap || f.slots[j].IsStrategicPeriod) {
			if f.slots[j].ImportPrice < cheapest {
				cheapest = f.slots[j].ImportPrice
			}
			if f.slots[j].IsStrategicPeriod {
				strategic = true
			}
			j++
		}
		id := len(f.windows)
		f.windows = append(f.windows, model.Window{
			ID:            id,
			From:          i,
			To:            j - 1,
			CheapestPrice: cheapest,
			IsStrategic:   strategic,
		})
		for k := i; k < j; k++ {
			f.slots[k].WindowID = id
		}
		i = j
	}

	// Unreachable for a non-empty frame: the minimum-price slot always
	// clears the widened threshold. The guard keeps the warning contract if
	// the eligibility rules ever tighten.
	if len(f.windows) == 0 {
		f.warn(model.Warning{
			Kind:    model.WarnDegenerateWindowSet,
			Message: "percentile and tolerance produced no cheap windows; no grid charging this run",
		})
		e.log.Warnf("degenerate window set: no cheap slots below threshold %.3f", threshold)
		return
	}
	e.log.Debugw("windows classified", map[string]any{
		"threshold":   threshold,
		"cheap_slots": cheapCount,
		"windows":     len(f.windows),
		"strategic":   strategicPeriod,
	})
}
