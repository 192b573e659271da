package planner

import (
	"fmt"
	"time"
)

// DataGapError reports that price or forecast coverage does not span the
// requested planning horizon. It is fatal to the run; no partial schedule is
// emitted.
type DataGapError struct {
	Series  string // "price" or "forecast"
	Need    time.Time
	Covered time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("planner: %s data gap: horizon requires coverage until %s, have %s",
		e.Series, e.Need.Format(time.RFC3339), e.Covered.Format(time.RFC3339))
}
