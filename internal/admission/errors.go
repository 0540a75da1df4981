package admission

import (
	"errors"
	"fmt"
	"time"

	"berrystand/internal/domain"
)

var (
	ErrDateInPast           = errors.New("pickup date is in the past")
	ErrOutOfYear            = errors.New("pickup date must be in the current year")
	ErrOutOfSeason          = errors.New("pickup date is outside the picking season")
	ErrDateRequired         = errors.New("pickup date is required")
	ErrInvalidQuantity      = errors.New("quantity must be a positive multiple of 10")
	ErrPricingConfiguration = errors.New("no price tier matches quantity")
)

// CapacityExceededError reports how many pounds over the daily limit an order would land.
type CapacityExceededError struct {
	Date    time.Time
	Overage int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("this order would put the total requests for %s %d pounds over the limit",
		e.Date.Format(domain.DateLayout), e.Overage)
}
