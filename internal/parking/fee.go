package parking

import (
	"errors"
	"fmt"
	"time"
)

// Money is an amount in minor currency units (cents).
type Money int64

// MoneyPtr returns a pointer to m.
func MoneyPtr(m Money) *Money {
	return &m
}

// FeePolicy turns an elapsed stay into a gross charge.
type FeePolicy interface {
	Gross(elapsed time.Duration) Money
}

// HourlyPolicy bills every started unit at a flat price.
type HourlyPolicy struct {
	Unit      time.Duration
	UnitPrice Money
	// Grace is a free stay window; zero disables it.
	Grace time.Duration
}

// NewHourlyPolicy validates and returns an HourlyPolicy.
func NewHourlyPolicy(unit time.Duration, price Money, grace time.Duration) (HourlyPolicy, error) {
	if unit <= 0 {
		return HourlyPolicy{}, errors.New("parking: fee unit must be positive")
	}
	if price < 0 {
		return HourlyPolicy{}, errors.New("parking: fee unit price must be >= 0")
	}
	if grace < 0 {
		return HourlyPolicy{}, errors.New("parking: grace period must be >= 0")
	}
	return HourlyPolicy{Unit: unit, UnitPrice: price, Grace: grace}, nil
}

// Gross implements FeePolicy.
func (p HourlyPolicy) Gross(elapsed time.Duration) Money {
	if p.Grace > 0 && elapsed <= p.Grace {
		return 0
	}
	return Money(startedUnits(elapsed, p.Unit)) * p.UnitPrice
}

// TieredPolicy charges a flat price for a short first span, a second flat
// price up to the second span and then a price per started step.
type TieredPolicy struct {
	FirstSpan   time.Duration
	FirstPrice  Money
	SecondSpan  time.Duration
	SecondPrice Money
	Step        time.Duration
	StepPrice   Money
}

// Validate checks the tier boundaries.
func (p TieredPolicy) Validate() error {
	if p.FirstSpan <= 0 || p.SecondSpan <= p.FirstSpan {
		return errors.New("parking: tier spans must be positive and increasing")
	}
	if p.Step <= 0 {
		return errors.New("parking: tier step must be positive")
	}
	if p.FirstPrice < 0 || p.SecondPrice < 0 || p.StepPrice < 0 {
		return errors.New("parking: tier prices must be >= 0")
	}
	return nil
}

// Gross implements FeePolicy.
func (p TieredPolicy) Gross(elapsed time.Duration) Money {
	switch {
	case elapsed <= p.FirstSpan:
		return p.FirstPrice
	case elapsed <= p.SecondSpan:
		return p.SecondPrice
	default:
		extra := startedUnits(elapsed-p.SecondSpan, p.Step)
		return p.SecondPrice + Money(extra)*p.StepPrice
	}
}

// startedUnits counts units begun during elapsed, at least one.
func startedUnits(elapsed, unit time.Duration) int64 {
	if elapsed <= 0 {
		return 1
	}
	n := int64(elapsed / unit)
	if elapsed%unit != 0 {
		n++
	}
	return n
}

// DiscountRule decides discount eligibility from the count of the client's
// previously completed sessions.
type DiscountRule interface {
	Eligible(completedSessions int) bool
}

// EveryNthSession grants the discount whenever the completed session count is
// a positive multiple of N. N <= 0 disables discounts.
type EveryNthSession struct {
	N int
}

// Eligible implements DiscountRule.
func (r EveryNthSession) Eligible(completed int) bool {
	if r.N <= 0 || completed <= 0 {
		return false
	}
	return completed%r.N == 0
}

// Charge is the result of a fee computation.
type Charge struct {
	Elapsed  time.Duration
	Gross    Money
	Discount Money
	Total    Money
}

// DiscountApplied reports whether the charge carries a discount.
func (c Charge) DiscountApplied() bool {
	return c.Discount > 0
}

// FeeCalculator is a stateless pricing function.
type FeeCalculator struct {
	policy          FeePolicy
	discountPercent int64
}

// NewFeeCalculator binds a policy and a discount percentage (0-100).
func NewFeeCalculator(policy FeePolicy, discountPercent int) (FeeCalculator, error) {
	if policy == nil {
		return FeeCalculator{}, errors.New("parking: fee policy required")
	}
	if discountPercent < 0 || discountPercent > 100 {
		return FeeCalculator{}, fmt.Errorf("parking: discount percent %d out of range", discountPercent)
	}
	return FeeCalculator{policy: policy, discountPercent: int64(discountPercent)}, nil
}

// ComputeCharge prices the interval [entry, exit].
func (c FeeCalculator) ComputeCharge(entry, exit time.Time, discountEligible bool) (Charge, error) {
	if c.policy == nil {
		return Charge{}, errors.New("parking: fee calculator not configured")
	}
	elapsed := exit.Sub(entry)
	if elapsed < 0 {
		return Charge{}, fmt.Errorf("%w: exit %s before entry %s", ErrInvalidInterval, exit.Format(time.RFC3339), entry.Format(time.RFC3339))
	}
	gross := c.policy.Gross(elapsed)
	var discount Money
	if discountEligible && c.discountPercent > 0 {
		discount = Money(int64(gross) * c.discountPercent / 100)
	}
	return Charge{
		Elapsed:  elapsed,
		Gross:    gross,
		Discount: discount,
		Total:    gross - discount,
	}, nil
}
