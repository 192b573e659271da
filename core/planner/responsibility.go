package planner

import (
	"fmt"

	"github.com/solbatt/solbatt/core/model"
)

// allocateResponsibilities computes, per window, the stored energy it must
// source to cover its own and downstream needs. Windows are processed in
// reverse chronological order so each window sees the already-computed
// shortfall of every later window; a successor's unmet responsibility is
// inherited by its predecessor (cascading inheritance). Parallelizing across
// windows is unsafe for exactly this reason.
func (e *Engine) allocateResponsibilities(f *frame) {
	if len(f.windows) == 0 {
		return
	}

	capacityKWh := e.cfg.Battery.CapacityKWh
	inherited := 0.0

	for i := len(f.windows) - 1; i >= 0; i-- {
		w := &f.windows[i]
		w.RealisticCapacityKWh = e.realisticCapacity(f, w)
		w.InheritedKWh = inherited

		gap := 0.0
		strategicTarget := 0.0
		if w.IsStrategic {
			// Charge to an absolute target regardless of downstream gaps.
			targetKWh := e.cfg.Strategic.TargetSoCPercent / 100.0 * capacityKWh
			strategicTarget = targetKWh - w.SoCAtStartKWh
			if strategicTarget < 0 {
				strategicTarget = 0
			}
		} else {
			gap = e.gapEnergy(f, i)
		}

		resp := gap + inherited
		if strategicTarget > resp {
			resp = strategicTarget
		}
		if resp < 0 {
			resp = 0
		}
		w.ResponsibilityKWh = resp

		if resp > w.RealisticCapacityKWh {
			w.ShortfallKWh = resp - w.RealisticCapacityKWh
			inherited = w.ShortfallKWh
			// Logged and flagged, never silently clamped.
			f.warn(model.Warning{
				Kind:     model.WarnUnattainableResponsibility,
				WindowID: w.ID,
				KWh:      w.ShortfallKWh,
				Message: fmt.Sprintf("window %d responsibility %.2f kWh exceeds realistic capacity %.2f kWh",
					w.ID, resp, w.RealisticCapacityKWh),
			})
			e.log.Warnf("window %d: responsibility %.2f kWh > capacity %.2f kWh, %.2f kWh inherited backward",
				w.ID, resp, w.RealisticCapacityKWh, w.ShortfallKWh)
		} else {
			inherited = 0
		}
	}

	if inherited > 0 {
		// The cascade reached the earliest window and still overflows: the
		// horizon is infeasible. The schedule is emitted best-effort.
		f.warn(model.Warning{
			Kind:    model.WarnUnattainableResponsibility,
			KWh:     inherited,
			Message: fmt.Sprintf("horizon-wide shortfall of %.2f kWh cannot be charged anywhere", inherited),
		})
	}
}

// gapEnergy estimates the stored energy window i must provide for the slots
// between its end and the next window's start (or the horizon end for the
// last window), scaled by the S-index safety factor.
//
// Between windows the baseline simulation already anchors the need at the
// successor's start SoC: only deficits the battery could not serve while
// staying above the floor count. After the last window there is no
// downstream charger, so the full net deficit is restored.
func (e *Engine) gapEnergy(f *frame, i int) float64 {
	w := f.windows[i]
	gapFrom := w.To + 1
	gapTo := len(f.slots) // exclusive
	last := i == len(f.windows)-1
	if !last {
		gapTo = f.windows[i+1].From
	}

	// The portion of the gap priced above the window's economic-use
	// threshold. The threshold derives from the pre-cached cheapest price:
	// energy bought in this window can never cost less than that.
	threshold := w.CheapestPrice + e.cfg.Battery.CycleCostPerKWh + e.cfg.Thresholds.BatteryUseMargin

	var above, below float64
	for j := gapFrom; j < gapTo; j++ {
		s := f.slots[j]
		var deficit float64
		if last {
			deficit = s.AdjustedLoadKWh + s.WaterHeatingKWh() - s.AdjustedPVKWh
			if deficit < 0 {
				deficit = 0
			}
		} else {
			deficit = f.unmetKWh[j]
		}
		if deficit <= 0 {
			continue
		}
		if s.ImportPrice > threshold {
			above += deficit
		} else {
			below += deficit
		}
	}

	if e.dischargeEff > 0 {
		above /= e.dischargeEff
		below /= e.dischargeEff
	}

	if e.cfg.Charging.ResponsibilityOnlyAboveThreshold {
		// The safety factor hedges only the economically forced sub-gap.
		return above*f.sIndexFactor + below
	}
	return (above + below) * f.sIndexFactor
}

// realisticCapacity estimates the stored energy the window can actually
// deliver: the effective charge power net of concurrent water heating and
// household load, summed over the window and reduced by charging losses.
func (e *Engine) realisticCapacity(f *frame, w *model.Window) float64 {
	effKW := e.cfg.Battery.MaxChargePowerKW
	if e.cfg.System.InverterMaxPowerKW < effKW {
		effKW = e.cfg.System.InverterMaxPowerKW
	}
	if e.cfg.System.GridMaxPowerKW < effKW {
		effKW = e.cfg.System.GridMaxPowerKW
	}

	var kwh float64
	for j := w.From; j <= w.To; j++ {
		s := f.slots[j]
		hours := s.Hours()
		if hours <= 0 {
			continue
		}
		netLoadKW := (s.AdjustedLoadKWh - s.AdjustedPVKWh) / hours
		if netLoadKW < 0 {
			netLoadKW = 0
		}
		avail := effKW - s.WaterHeatingKW - netLoadKW
		if avail > 0 {
			kwh += avail * hours
		}
	}
	return kwh * e.chargeEff
}
