package planner

import (
	"sort"
)

// distributeCharging turns each window's responsibility into concrete per-slot
// charge power. Slots inside the window are filled cheapest first; once enough
// are selected, near-priced gap slots are pulled in and short blocks are
// extended onto adjacent window slots so the hardware runs in contiguous
// blocks instead of toggling.
func (e *Engine) distributeCharging(f *frame) {
	for wi := range f.windows {
		w := &f.windows[wi]
		if w.ResponsibilityKWh <= 0 {
			continue
		}

		type candidate struct {
			idx     int
			availKW float64
		}
		var cands []candidate
		for j := w.From; j <= w.To; j++ {
			kw := e.availableChargeKW(f, j)
			if kw > 0 {
				cands = append(cands, candidate{idx: j, availKW: kw})
			}
		}
		sort.SliceStable(cands, func(a, b int) bool {
			sa, sb := f.slots[cands[a].idx], f.slots[cands[b].idx]
			if sa.ImportPrice != sb.ImportPrice {
				return sa.ImportPrice < sb.ImportPrice
			}
			return sa.Start.Before(sb.Start)
		})

		// Fill until the stored energy meets the responsibility. The
		// realistic-capacity check already warned when it cannot.
		storedKWh := 0.0
		for _, c := range cands {
			if storedKWh >= w.ResponsibilityKWh {
				break
			}
			s := &f.slots[c.idx]
			s.ChargeKW = c.availKW
			storedKWh += c.availKW * s.Hours() * e.chargeEff
		}

		e.consolidateChargeBlocks(f, w.From, w.To)
		e.extendChargeBlocks(f, w.From, w.To)
	}
}

// extendChargeBlocks grows each charge run onto adjacent in-window slots. A
// run shorter than the charge hysteresis minimum always extends, cheaper
// neighbor first: charging is fully planner-owned, and a slightly pricier
// window slot beats losing the block to the smoothing pass. Beyond the
// minimum, a neighbor joins only when its price sits within the block
// consolidation tolerance of the run's most expensive selected slot.
func (e *Engine) extendChargeBlocks(f *frame, from, to int) {
	minOn := e.cfg.Smoothing.MinOnSlotsCharge
	tol := e.cfg.Charging.BlockConsolidationTolerance

	charging := func(i int) bool { return i >= from && i <= to && f.slots[i].ChargeKW > 0 }
	for {
		grew := false
		for _, r := range slotRuns(len(f.slots), charging) {
			maxSelected := 0.0
			for j := r.from; j <= r.to; j++ {
				if p := f.slots[j].ImportPrice; p > maxSelected {
					maxSelected = p
				}
			}
			for _, j := range runNeighbors(f, r, from, to) {
				if f.slots[j].ChargeKW > 0 {
					continue
				}
				if r.len() >= minOn && f.slots[j].ImportPrice > maxSelected+tol {
					continue
				}
				if kw := e.availableChargeKW(f, j); kw > 0 {
					f.slots[j].ChargeKW = kw
					grew = true
					break
				}
			}
			if grew {
				break
			}
		}
		if !grew {
			return
		}
	}
}

// runNeighbors returns the in-range slots adjacent to the run, cheaper side
// first.
func runNeighbors(f *frame, r slotRun, from, to int) []int {
	var out []int
	if r.from-1 >= from {
		out = append(out, r.from-1)
	}
	if r.to+1 <= to {
		out = append(out, r.to+1)
	}
	if len(out) == 2 && f.slots[out[1]].ImportPrice < f.slots[out[0]].ImportPrice {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

// availableChargeKW is the charge power slot j can take after the inverter and
// grid limits, concurrent water heating and the net household load.
func (e *Engine) availableChargeKW(f *frame, j int) float64 {
	s := f.slots[j]
	hours := s.Hours()
	if hours <= 0 {
		return 0
	}
	kw := e.cfg.Battery.MaxChargePowerKW
	if e.cfg.System.InverterMaxPowerKW < kw {
		kw = e.cfg.System.InverterMaxPowerKW
	}
	if e.cfg.System.GridMaxPowerKW < kw {
		kw = e.cfg.System.GridMaxPowerKW
	}
	netLoadKW := (s.AdjustedLoadKWh - s.AdjustedPVKWh) / hours
	if netLoadKW < 0 {
		netLoadKW = 0
	}
	kw -= s.WaterHeatingKW + netLoadKW
	if kw < 0 {
		return 0
	}
	return kw
}

// consolidateChargeBlocks fills short gaps between assigned charge slots when
// the gap slots are priced within the consolidation tolerance of the most
// expensive slot already selected. Extra energy from gap filling is accepted;
// fragmentation costs more in inverter wear than the price delta.
func (e *Engine) consolidateChargeBlocks(f *frame, from, to int) {
	tol := e.cfg.Charging.BlockConsolidationTolerance
	maxGap := e.cfg.Charging.ConsolidationMaxGapSlots
	if tol <= 0 || maxGap <= 0 {
		return
	}

	maxSelected := 0.0
	var selected []int
	for j := from; j <= to; j++ {
		if f.slots[j].ChargeKW > 0 {
			selected = append(selected, j)
			if f.slots[j].ImportPrice > maxSelected {
				maxSelected = f.slots[j].ImportPrice
			}
		}
	}
	if len(selected) < 2 {
		return
	}

	for k := 0; k < len(selected)-1; k++ {
		gapFrom, gapTo := selected[k]+1, selected[k+1]
		if gapTo-gapFrom == 0 || gapTo-gapFrom > maxGap {
			continue
		}
		fits := true
		for j := gapFrom; j < gapTo; j++ {
			if f.slots[j].ImportPrice > maxSelected+tol {
				fits = false
				break
			}
		}
		if !fits {
			continue
		}
		for j := gapFrom; j < gapTo; j++ {
			if kw := e.availableChargeKW(f, j); kw > 0 {
				f.slots[j].ChargeKW = kw
			}
		}
	}
}
