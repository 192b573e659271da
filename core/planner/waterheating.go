package planner

import (
	"math"
	"sort"
	"time"
)

// scheduleWaterHeating reserves slots for mandatory water heating, one day
// boundary at a time. Slots overlapping a forecast PV surplus are preferred
// over grid-sourced ones; selection stays within the deferral horizon and is
// consolidated into at most max_blocks_per_day contiguous blocks.
//
// The energy source itself is resolved by the finalizer: PV first, grid
// second, never the battery.
func (e *Engine) scheduleWaterHeating(f *frame, consumedTodayKWh float64) {
	whc := e.cfg.WaterHeating
	if !whc.Enabled || whc.PowerKW <= 0 || whc.MinKWhPerDay <= 0 || len(f.slots) == 0 {
		return
	}

	slotHours := f.slots[0].Hours()
	slotEnergyKWh := whc.PowerKW * slotHours
	slotsForMinHours := 0
	if whc.MinHoursPerDay > 0 {
		slotsForMinHours = int(math.Ceil(whc.MinHoursPerDay / slotHours))
	}

	first := f.slots[0].Start.In(e.loc)
	dayZero := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, e.loc)

	for offset := 0; offset <= whc.PlanDaysAhead; offset++ {
		dayStart := dayZero.AddDate(0, 0, offset)
		dayEnd := dayStart.AddDate(0, 0, 1)
		deferEnd := dayEnd.Add(time.Duration(whc.DeferUpToHours * float64(time.Hour)))

		consumed := 0.0
		if offset == 0 {
			consumed = consumedTodayKWh
		}
		remaining := whc.MinKWhPerDay - consumed
		if remaining <= 0 {
			continue
		}

		eligible := e.eligibleWaterSlots(f, dayStart, deferEnd)
		if len(eligible) == 0 {
			continue
		}
		// A future day is only planned when its price coverage is complete.
		if offset > 0 && !e.coversFullDay(f, dayStart, dayEnd) {
			continue
		}

		required := slotsForMinHours
		if slotEnergyKWh > 0 {
			if n := int(math.Ceil(remaining / slotEnergyKWh)); n > required {
				required = n
			}
		}
		if required < 1 {
			required = 1
		}

		selected := e.selectWaterSlots(f, eligible, required)
		if len(selected) == 0 {
			continue
		}
		selected = e.consolidateWaterBlocks(f, selected, eligible)

		for _, idx := range selected {
			f.slots[idx].WaterHeatingKW = whc.PowerKW
		}
	}
}

// eligibleWaterSlots returns slot indices inside [dayStart, deferEnd).
func (e *Engine) eligibleWaterSlots(f *frame, dayStart, deferEnd time.Time) []int {
	var out []int
	for i, s := range f.slots {
		if !s.Start.Before(dayStart) && s.Start.Before(deferEnd) {
			out = append(out, i)
		}
	}
	return out
}

func (e *Engine) coversFullDay(f *frame, dayStart, dayEnd time.Time) bool {
	slotDur := time.Duration(e.cfg.SlotMinutes) * time.Minute
	expected := int(dayEnd.Sub(dayStart) / slotDur)
	n := 0
	for _, s := range f.slots {
		if !s.Start.Before(dayStart) && s.Start.Before(dayEnd) {
			n++
		}
	}
	return n >= expected
}

// selectWaterSlots picks the required number of slots: cheap slots first,
// then next-cheapest eligible slots when the cheap set cannot cover the
// daily minimum. PV-surplus slots sort ahead of grid-sourced ones.
func (e *Engine) selectWaterSlots(f *frame, eligible []int, required int) []int {
	byPreference := func(idx []int) {
		sort.SliceStable(idx, func(a, b int) bool {
			sa, sb := f.slots[idx[a]], f.slots[idx[b]]
			surplusA := sa.AdjustedPVKWh > sa.AdjustedLoadKWh
			surplusB := sb.AdjustedPVKWh > sb.AdjustedLoadKWh
			if surplusA != surplusB {
				return surplusA
			}
			if sa.ImportPrice != sb.ImportPrice {
				return sa.ImportPrice < sb.ImportPrice
			}
			return sa.Start.Before(sb.Start)
		})
	}

	var cheap, rest []int
	for _, i := range eligible {
		if f.slots[i].IsCheap {
			cheap = append(cheap, i)
		} else {
			rest = append(rest, i)
		}
	}
	byPreference(cheap)
	byPreference(rest)

	selected := cheap
	if len(selected) > required {
		selected = selected[:required]
	}
	for _, i := range rest {
		if len(selected) >= required {
			break
		}
		selected = append(selected, i)
	}
	sort.Ints(selected)
	return selected
}

// consolidateWaterBlocks groups the selected slots into contiguous blocks
// and, while the count exceeds max_blocks_per_day, merges the adjacent pair
// whose gap is cheapest to fill with eligible slots. The merged block heats
// slightly more than the minimum; comfort beats exactness here.
func (e *Engine) consolidateWaterBlocks(f *frame, selected, eligible []int) []int {
	maxBlocks := e.cfg.WaterHeating.MaxBlocksPerDay
	if maxBlocks < 1 {
		maxBlocks = 1
	}

	blocks := contiguousBlocks(selected)
	for len(blocks) > maxBlocks {
		bi := e.cheapestMerge(f, blocks, eligible)
		if bi < 0 {
			break
		}
		// Fill the gap between blocks bi and bi+1.
		gap := fillRange(blocks[bi][len(blocks[bi])-1]+1, blocks[bi+1][0])
		merged := append(append(append([]int{}, blocks[bi]...), gap...), blocks[bi+1]...)
		next := append([][]int{}, blocks[:bi]...)
		next = append(next, merged)
		next = append(next, blocks[bi+2:]...)
		blocks = next
	}

	var out []int
	for _, b := range blocks {
		out = append(out, b...)
	}
	sort.Ints(out)
	return out
}

// cheapestMerge returns the index of the adjacent block pair whose gap costs
// the least to fill with eligible slots, or -1 when no merge is possible.
func (e *Engine) cheapestMerge(f *frame, blocks [][]int, eligible []int) int {
	inEligible := make(map[int]bool, len(eligible))
	for _, i := range eligible {
		inEligible[i] = true
	}
	best, bestCost := -1, math.Inf(1)
	for i := 0; i < len(blocks)-1; i++ {
		gapStart := blocks[i][len(blocks[i])-1] + 1
		gapEnd := blocks[i+1][0]
		cost := 0.0
		feasible := true
		for j := gapStart; j < gapEnd; j++ {
			if !inEligible[j] {
				feasible = false
				break
			}
			cost += f.slots[j].ImportPrice
		}
		if feasible && cost < bestCost {
			best, bestCost = i, cost
		}
	}
	return best
}

// contiguousBlocks splits sorted slot indices into runs of adjacent indices.
func contiguousBlocks(sorted []int) [][]int {
	var blocks [][]int
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		blocks = append(blocks, sorted[i:j+1])
		i = j + 1
	}
	return blocks
}

func fillRange(from, to int) []int {
	var out []int
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
