package model

// Window is a maximal run of contiguous cheap slots, or a run of strategic
// slots. It references the slot arena by index range instead of owning a
// copy of the slots.
type Window struct {
	ID   int
	From int // index of the first slot, inclusive
	To   int // index of the last slot, inclusive

	// CheapestPrice is the minimum import price inside the window. It is
	// cached during classification and used to pre-compute the projected
	// minimum battery cost for downstream threshold decisions.
	CheapestPrice float64

	IsStrategic bool

	// Filled by the baseline simulation.
	SoCAtStartKWh float64

	// Filled by the responsibility allocator.
	ResponsibilityKWh    float64
	RealisticCapacityKWh float64
	InheritedKWh         float64
	ShortfallKWh         float64
}

// Len returns the number of slots in the window.
func (w Window) Len() int { return w.To - w.From + 1 }

// Contains reports whether the slot index falls inside the window.
func (w Window) Contains(i int) bool { return i >= w.From && i <= w.To }
