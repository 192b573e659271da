package planner

import (
	"github.com/solbatt/solbatt/core/inputs"
)

// simulateBaseline runs the worst-case depletion simulation: no grid
// charging ever happens, the battery covers every deficit until it reaches
// the SoC floor, and only unavoidable PV surplus tops it up. The SoC at the
// start of every window is recorded so the allocator starts from a realistic
// depletion level, and per-slot unmet deficits feed the gap accounting.
func (e *Engine) simulateBaseline(f *frame, state inputs.InitialState) {
	minKWh := e.cfg.Battery.MinSoCKWh()
	maxKWh := e.cfg.Battery.MaxSoCKWh()
	socKWh := state.BatterySoCPercent / 100.0 * e.cfg.Battery.CapacityKWh
	if socKWh > maxKWh {
		socKWh = maxKWh
	}
	if socKWh < minKWh {
		socKWh = minKWh
	}

	windowStart := make(map[int]int, len(f.windows)) // first slot index -> window id
	for _, w := range f.windows {
		windowStart[w.From] = w.ID
	}

	for i := range f.slots {
		if id, ok := windowStart[i]; ok {
			f.windows[id].SoCAtStartKWh = socKWh
		}

		s := &f.slots[i]
		hours := s.Hours()
		deficit := s.AdjustedLoadKWh + s.WaterHeatingKWh() - s.AdjustedPVKWh

		if deficit > 0 {
			deliverable := deficit
			if maxOut := e.cfg.Battery.MaxDischargePowerKW * hours; deliverable > maxOut {
				deliverable = maxOut
			}
			if e.dischargeEff > 0 {
				if avail := (socKWh - minKWh) * e.dischargeEff; deliverable > avail {
					deliverable = avail
				}
			} else {
				deliverable = 0
			}
			if deliverable < 0 {
				deliverable = 0
			}
			if deliverable > 0 {
				socKWh -= deliverable / e.dischargeEff
			}
			// Once the floor is reached the rest of the deficit stays
			// unmet, never a negative SoC.
			f.unmetKWh[i] = deficit - deliverable
		} else if deficit < 0 {
			stored := -deficit * e.chargeEff
			if room := maxKWh - socKWh; stored > room {
				stored = room
			}
			socKWh += stored
		}

		if socKWh < minKWh {
			socKWh = minKWh
		}
		if socKWh > maxKWh {
			socKWh = maxKWh
		}
	}
}
