package planner

import "time"

// sIndexFactor derives the dynamic safety multiplier applied to gap-energy
// estimates. It starts from the configured base factor and adds weighted
// terms for the forecast PV deficit and cold weather over the next
// horizon_days, clamped to [1.0, max_factor].
func (e *Engine) sIndexFactor(f *frame, dailyTempC map[int]float64) float64 {
	cfg := e.cfg.SIndex
	if len(f.slots) == 0 {
		return clampFactor(cfg.BaseFactor, cfg.MaxFactor)
	}

	first := f.slots[0].Start.In(e.loc)
	dayZero := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, e.loc)

	var deficits []float64
	var considered []int
	for offset := 1; offset <= cfg.HorizonDays; offset++ {
		dayStart := dayZero.AddDate(0, 0, offset)
		dayEnd := dayStart.AddDate(0, 0, 1)
		var load, pv float64
		found := false
		for _, s := range f.slots {
			if !s.Start.Before(dayStart) && s.Start.Before(dayEnd) {
				load += s.LoadForecastKWh
				pv += s.PVForecastKWh
				found = true
			}
		}
		if !found {
			continue
		}
		considered = append(considered, offset)
		if load <= 0 {
			deficits = append(deficits, 0)
			continue
		}
		ratio := (load - pv) / load
		if ratio < 0 {
			ratio = 0
		}
		deficits = append(deficits, ratio)
	}

	avgDeficit := 0.0
	for _, d := range deficits {
		avgDeficit += d
	}
	if len(deficits) > 0 {
		avgDeficit /= float64(len(deficits))
	}

	tempAdj := 0.0
	if cfg.TempWeight > 0 && len(dailyTempC) > 0 {
		var sum float64
		n := 0
		for _, offset := range considered {
			if t, ok := dailyTempC[offset]; ok {
				sum += t
				n++
			}
		}
		if n > 0 {
			mean := sum / float64(n)
			span := cfg.TempBaselineC - cfg.TempColdC
			if span <= 0 {
				span = 1.0
			}
			tempAdj = (cfg.TempBaselineC - mean) / span
			if tempAdj < 0 {
				tempAdj = 0
			}
			if tempAdj > 1 {
				tempAdj = 1
			}
		}
	}

	raw := cfg.BaseFactor + cfg.PVDeficitWeight*avgDeficit + cfg.TempWeight*tempAdj
	factor := clampFactor(raw, cfg.MaxFactor)
	e.log.Debugw("s-index", map[string]any{
		"factor":      factor,
		"avg_deficit": avgDeficit,
		"temp_adj":    tempAdj,
	})
	return factor
}

func clampFactor(v, max float64) float64 {
	if v < 1.0 {
		return 1.0
	}
	if v > max {
		return max
	}
	return v
}
