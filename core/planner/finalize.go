package planner

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/solbatt/solbatt/core/inputs"
	"github.com/solbatt/solbatt/core/model"
)

// finalize is the authoritative forward simulation. It walks every slot in
// order, resolves the energy flows for the actions assigned by the earlier
// passes, drops the ones the projected battery state cannot support and
// writes the grid flows, the projected SoC and the projected storage cost.
//
// Source priority inside a slot: PV serves water heating first, then the
// household load; the battery never serves water heating. Discharge happens
// only when the import price clears the weighted storage cost plus the cycle
// cost and margin, and never inside the slot's own cheap window: energy
// bought there is for later, more expensive slots.
//
// The returned state carries the end-of-horizon SoC, cost basis and the
// cumulative grid flows.
func (e *Engine) finalize(f *frame, state inputs.InitialState) model.BatterySimulationState {
	minKWh := e.cfg.Battery.MinSoCKWh()
	maxKWh := e.cfg.Battery.MaxSoCKWh()
	capacity := e.cfg.Battery.CapacityKWh
	cycleCost := e.cfg.Battery.CycleCostPerKWh

	socKWh := state.BatterySoCPercent / 100.0 * capacity
	bs := model.NewBatterySimulationState(socKWh, state.BatteryCostPerKWh)
	bs.Clamp(minKWh, maxKWh)
	f.initialSoCPercent = bs.SoCPercent(capacity)

	exportFloor := e.exportPriceFloor(f)

	for i := range f.slots {
		s := &f.slots[i]
		hours := s.Hours()
		if hours <= 0 {
			continue
		}

		// Reset everything a previous finalize run may have written so the
		// hysteresis re-run starts clean. ChargeKW survives: it is owned by
		// the distributor and only the hysteresis pass edits it.
		s.DischargeKW = 0
		s.ExportKWh = 0
		s.GridImportKW = 0
		s.GridExportKW = 0
		s.Classification = model.Hold

		pv := s.AdjustedPVKWh
		load := s.AdjustedLoadKWh
		water := s.WaterHeatingKWh()

		var gridImportKWh, gridExportKWh float64

		// Water heating: PV first, grid second, battery never.
		pvForWater := pv
		if pvForWater > water {
			pvForWater = water
		}
		pv -= pvForWater
		gridImportKWh += water - pvForWater

		pvForLoad := pv
		if pvForLoad > load {
			pvForLoad = load
		}
		pv -= pvForLoad
		load -= pvForLoad
		pvSurplus := pv

		// PV surplus is stored whenever there is room. Its zero price
		// dilutes the weighted storage cost.
		if pvSurplus > 0 {
			stored := pvSurplus * e.chargeEff
			if room := maxKWh - bs.SoCKWh; stored > room {
				stored = room
			}
			if stored > 0 {
				bs.Store(stored, stored/e.chargeEff, 0)
				pvSurplus -= stored / e.chargeEff
			}
			// Surplus beyond the SoC ceiling has nowhere to go but out.
			if pvSurplus > 0 {
				gridExportKWh += pvSurplus
			}
		}

		charging := s.ChargeKW > 0
		if charging {
			stored := s.ChargeKW * hours * e.chargeEff
			if room := maxKWh - bs.SoCKWh; stored > room {
				stored = room
			}
			if stored > 0 {
				source := stored / e.chargeEff
				bs.Store(stored, source, s.ImportPrice)
				gridImportKWh += source
			} else {
				charging = false
				s.ChargeKW = 0
			}
		}

		// Deliberate export: only outside windows, only when the net price
		// beats the storage cost with margin, and only down to the reserve
		// that upcoming deficits need.
		exported := false
		if e.cfg.Export.Enabled && !charging && f.windowOf(i) == nil &&
			(f.suppressExport == nil || !f.suppressExport[i]) {
			netPrice := s.ExportPrice - e.cfg.Export.FeePerKWh
			priceOK := netPrice > bs.CostPerKWh()+cycleCost+e.cfg.Export.ProfitMargin
			if e.cfg.Export.PeakOnly && s.ExportPrice < exportFloor {
				priceOK = false
			}
			if priceOK {
				reserve := e.exportReserveKWh(f, i, minKWh, maxKWh)
				exportable := (bs.SoCKWh - reserve) * e.dischargeEff
				if maxOut := e.maxDischargeKW() * hours; exportable > maxOut {
					exportable = maxOut
				}
				if exportable > 0 {
					bs.Drain(exportable / e.dischargeEff)
					gridExportKWh += exportable
					s.ExportKWh = exportable
					s.DischargeKW = exportable / hours
					exported = true
				}
			}
		}

		// Remaining household load: battery if economical, grid otherwise.
		discharged := false
		if load > 0 {
			margin := e.cfg.Thresholds.BatteryUseMargin
			if water > 0 {
				// Competing with mandatory water heating on the same slot
				// raises the bar for spending stored energy.
				margin = e.cfg.Thresholds.BatteryWaterMargin
			}
			useBattery := !charging && !exported &&
				f.windowOf(i) == nil &&
				(f.suppressDischarge == nil || !f.suppressDischarge[i]) &&
				s.ImportPrice > bs.CostPerKWh()+cycleCost+margin

			if useBattery {
				deliverable := load
				if maxOut := e.cfg.Battery.MaxDischargePowerKW * hours; deliverable > maxOut {
					deliverable = maxOut
				}
				if avail := (bs.SoCKWh - minKWh) * e.dischargeEff; deliverable > avail {
					deliverable = avail
				}
				if deliverable > 0 {
					bs.Drain(deliverable / e.dischargeEff)
					load -= deliverable
					s.DischargeKW += deliverable / hours
					discharged = true
				}
			}
			gridImportKWh += load
		}

		bs.Clamp(minKWh, maxKWh)
		bs.CumulativeGridImportKWh += gridImportKWh
		bs.CumulativeExportKWh += gridExportKWh

		s.GridImportKW = gridImportKWh / hours
		s.GridExportKW = gridExportKWh / hours
		s.ProjectedSoCPercent = bs.SoCPercent(capacity)
		s.ProjectedBatteryCostPerKWh = bs.CostPerKWh()

		switch {
		case water > 0:
			s.Classification = model.WaterHeating
		case charging:
			s.Classification = model.Charge
		case exported:
			s.Classification = model.Export
		case discharged:
			s.Classification = model.Discharge
		default:
			s.Classification = model.Hold
		}
	}
	return bs
}

func (e *Engine) maxDischargeKW() float64 {
	kw := e.cfg.Battery.MaxDischargePowerKW
	if e.cfg.System.InverterMaxPowerKW < kw {
		kw = e.cfg.System.InverterMaxPowerKW
	}
	if e.cfg.System.GridMaxPowerKW < kw {
		kw = e.cfg.System.GridMaxPowerKW
	}
	return kw
}

// exportPriceFloor is the export price at the configured peak percentile.
// With percentile_threshold 20 only the top fifth of the horizon's export
// prices clears the floor.
func (e *Engine) exportPriceFloor(f *frame) float64 {
	if len(f.slots) == 0 {
		return 0
	}
	xs := make([]float64, len(f.slots))
	for i, s := range f.slots {
		xs[i] = s.ExportPrice
	}
	sort.Float64s(xs)
	q := 1.0 - e.cfg.Export.PercentileThreshold/100.0
	if q < 0 {
		q = 0
	}
	return stat.Quantile(q, stat.Empirical, xs, nil)
}

// exportReserveKWh is the SoC the battery must keep when exporting from slot
// i: the floor plus the baseline-unserved deficits up to the next charging
// opportunity, with a tenth on top for forecast error.
func (e *Engine) exportReserveKWh(f *frame, i int, minKWh, maxKWh float64) float64 {
	end := len(f.slots)
	for _, w := range f.windows {
		if w.From > i {
			end = w.From
			break
		}
	}
	need := 0.0
	for j := i + 1; j < end; j++ {
		need += f.unmetKWh[j]
	}
	if e.dischargeEff > 0 {
		need /= e.dischargeEff
	}
	reserve := minKWh + need*1.1
	if reserve > maxKWh {
		reserve = maxKWh
	}
	return reserve
}

// enforceHysteresis suppresses action runs shorter than the configured
// minimums so the inverter is not toggled for a single slot. Charge gaps
// shorter than the off minimum are bridged instead; charging is fully under
// planner control so extending it is always safe for the hardware. For
// discharging, a too-short off gap drops the shorter neighboring run.
// Returns true when anything changed and the finalize simulation must be
// re-run.
func (e *Engine) enforceHysteresis(f *frame) bool {
	sm := e.cfg.Smoothing
	changed := false

	if f.suppressDischarge == nil {
		f.suppressDischarge = make([]bool, len(f.slots))
	}
	if f.suppressExport == nil {
		f.suppressExport = make([]bool, len(f.slots))
	}

	charging := func(i int) bool { return f.slots[i].ChargeKW > 0 }
	runs := slotRuns(len(f.slots), charging)
	for _, r := range runs {
		if r.len() < sm.MinOnSlotsCharge {
			for j := r.from; j <= r.to; j++ {
				f.slots[j].ChargeKW = 0
			}
			changed = true
		}
	}
	runs = slotRuns(len(f.slots), charging)
	for k := 0; k < len(runs)-1; k++ {
		gap := runs[k+1].from - runs[k].to - 1
		if gap > 0 && gap < sm.MinOffSlotsCharge {
			for j := runs[k].to + 1; j < runs[k+1].from; j++ {
				if kw := e.availableChargeKW(f, j); kw > 0 {
					f.slots[j].ChargeKW = kw
					changed = true
				}
			}
		}
	}

	discharging := func(i int) bool {
		return f.slots[i].Classification == model.Discharge && !f.suppressDischarge[i]
	}
	for _, r := range slotRuns(len(f.slots), discharging) {
		if r.len() < sm.MinOnSlotsDischarge {
			for j := r.from; j <= r.to; j++ {
				f.suppressDischarge[j] = true
			}
			changed = true
		}
	}
	druns := slotRuns(len(f.slots), discharging)
	for k := 0; k < len(druns)-1; k++ {
		gap := druns[k+1].from - druns[k].to - 1
		if gap <= 0 || gap >= sm.MinOffSlotsDischarge {
			continue
		}
		victim := druns[k]
		if druns[k+1].len() < victim.len() {
			victim = druns[k+1]
		}
		for j := victim.from; j <= victim.to; j++ {
			f.suppressDischarge[j] = true
		}
		changed = true
	}

	exporting := func(i int) bool {
		return f.slots[i].Classification == model.Export && !f.suppressExport[i]
	}
	for _, r := range slotRuns(len(f.slots), exporting) {
		if r.len() < sm.MinOnSlotsExport {
			for j := r.from; j <= r.to; j++ {
				f.suppressExport[j] = true
			}
			changed = true
		}
	}

	if changed {
		e.log.Debugf("hysteresis adjusted short action runs, re-simulating")
	}
	return changed
}

type slotRun struct{ from, to int }

func (r slotRun) len() int { return r.to - r.from + 1 }

// slotRuns returns the maximal index ranges for which pred holds.
func slotRuns(n int, pred func(int) bool) []slotRun {
	var runs []slotRun
	for i := 0; i < n; {
		if !pred(i) {
			i++
			continue
		}
		j := i
		for j+1 < n && pred(j+1) {
			j++
		}
		runs = append(runs, slotRun{from: i, to: j})
		i = j + 1
	}
	return runs
}

// applySoCTargets annotates every slot with the SoC the executor should steer
// toward: the end of the action block for charging and exporting, the floor
// while discharging, and the entry SoC while holding. Blocks are keyed by the
// battery action, not the displayed classification: a slot that charges while
// water heating runs is labeled water_heating but still belongs to the
// surrounding charge block.
func (e *Engine) applySoCTargets(f *frame) {
	minPct := e.cfg.Battery.MinSoCPercent

	action := func(i int) model.Classification {
		if f.slots[i].ChargeKW > 0 {
			return model.Charge
		}
		return f.slots[i].Classification
	}

	for i := 0; i < len(f.slots); {
		c := action(i)

		j := i
		for j+1 < len(f.slots) && action(j+1) == c {
			j++
		}

		var target float64
		switch c {
		case model.Charge, model.Export:
			target = f.slots[j].ProjectedSoCPercent
		case model.Discharge:
			target = minPct
		default:
			// Hold and water heating keep whatever SoC the block started
			// with; water heating never moves the battery by itself.
			if i == 0 {
				target = f.initialSoCPercent
			} else {
				target = f.slots[i-1].ProjectedSoCPercent
			}
		}
		for k := i; k <= j; k++ {
			f.slots[k].SoCTargetPercent = target
		}
		i = j + 1
	}
}
