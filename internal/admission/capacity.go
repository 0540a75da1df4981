package admission

import (
	"time"

	"berrystand/internal/domain"
)

// LimitSource tells where a daily ceiling came from.
type LimitSource int

const (
	LimitNone LimitSource = iota
	LimitForDate
	LimitDefaultRecord
	LimitConfigured
)

func (s LimitSource) String() string {
	switch s {
	case LimitForDate:
		return "date"
	case LimitDefaultRecord:
		return "default"
	case LimitConfigured:
		return "configured"
	}
	return "none"
}

// Limit is the resolved ceiling for one pickup date. The zero value is unbounded.
type Limit struct {
	Pounds int
	Source LimitSource
}

func (l Limit) Bounded() bool { return l.Source != LimitNone }

// ResolveLimit picks the record for date, then the default record, then the configured
// fallback. Records for other dates are ignored.
func ResolveLimit(date time.Time, records []domain.DailyLimit, configured int) Limit {
	var def *domain.DailyLimit
	for i := range records {
		r := &records[i]
		if r.IsDefault() {
			if def == nil {
				def = r
			}
			continue
		}
		if r.Date.Equal(date) {
			return Limit{Pounds: r.Pounds, Source: LimitForDate}
		}
	}
	if def != nil {
		return Limit{Pounds: def.Pounds, Source: LimitDefaultRecord}
	}
	if configured > 0 {
		return Limit{Pounds: configured, Source: LimitConfigured}
	}
	return Limit{}
}

// Previous is the stored state of an order being edited.
type Previous struct {
	PickupDate time.Time
	Quantity   int
}

// CapacityRequest describes one admission against a day's ceiling.
type CapacityRequest struct {
	Quantity   int
	PickupDate time.Time
	// Committed is the sum over non-canceled orders on PickupDate. It includes the edited
	// order when that order is already booked on PickupDate.
	Committed int
	Previous  *Previous
	Limit     Limit
}

// CheckCapacity returns *CapacityExceededError when the request does not fit.
func CheckCapacity(req CapacityRequest) error {
	charge := req.Quantity
	if req.Previous != nil && req.Previous.PickupDate.Equal(req.PickupDate) {
		charge = req.Quantity - req.Previous.Quantity
		if charge <= 0 {
			// same day, no increase: allowed even when the day is already over
			return nil
		}
	}
	if !req.Limit.Bounded() {
		return nil
	}
	overage := req.Committed + charge - req.Limit.Pounds
	if overage > 0 {
		return &CapacityExceededError{Date: req.PickupDate, Overage: overage}
	}
	return nil
}

