// Package admission decides whether a pickup order may be booked and what it costs.
//
// Everything here is a pure function of its arguments: callers load price tiers, limit
// records and the committed total for the target day, then persist whatever Evaluate accepts.
package admission

import (
	"time"

	"github.com/shopspring/decimal"

	"berrystand/internal/domain"
)

const (
	FieldQuantity   = "quantity"
	FieldPickupDate = "pickup_date"
)

// Candidate is a proposed new order, or an edit when Previous is set.
type Candidate struct {
	PickupDate time.Time
	Quantity   int
	Previous   *Previous
}

// Snapshot is the reference data read for the candidate's pickup date.
type Snapshot struct {
	Committed int
	Tiers     []domain.PriceTier
	Limit     Limit
}

// Decision is either accepted, with a price, or carries the reasons it was not.
type Decision struct {
	PricePerPound decimal.Decimal
	TotalCost     decimal.Decimal
	FieldErrors   map[string][]error
	OrderErrors   []error
}

func (d Decision) Accepted() bool {
	return len(d.FieldErrors) == 0 && len(d.OrderErrors) == 0
}

func (d *Decision) addFieldError(field string, err error) {
	if d.FieldErrors == nil {
		d.FieldErrors = make(map[string][]error)
	}
	d.FieldErrors[field] = append(d.FieldErrors[field], err)
}

// ValidateQuantity rejects zero, negative and non-multiples of ten.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 || quantity%10 != 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Evaluate runs field checks, then capacity, then pricing. Field errors are collected
// together; capacity and pricing only run once the fields are valid. A pricing
// configuration fault is returned as err rather than as a rejection.
func Evaluate(c Candidate, snap Snapshot, today time.Time, rules Rules) (Decision, error) {
	var d Decision

	if err := ValidateQuantity(c.Quantity); err != nil {
		d.addFieldError(FieldQuantity, err)
	}
	if err := ValidatePickupDate(c.PickupDate, today, rules.Season); err != nil {
		d.addFieldError(FieldPickupDate, err)
	}
	if !d.Accepted() {
		return d, nil
	}

	err := CheckCapacity(CapacityRequest{
		Quantity:   c.Quantity,
		PickupDate: c.PickupDate,
		Committed:  snap.Committed,
		Previous:   c.Previous,
		Limit:      snap.Limit,
	})
	if err != nil {
		d.OrderErrors = append(d.OrderErrors, err)
		return d, nil
	}

	rate, err := PricePerPound(c.Quantity, snap.Tiers)
	if err != nil {
		return Decision{}, err
	}
	d.PricePerPound = rate
	d.TotalCost = TotalCost(c.Quantity, rate)
	return d, nil
}
