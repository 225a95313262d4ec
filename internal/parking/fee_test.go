package parking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func hourly(t *testing.T, price Money, grace time.Duration) FeeCalculator {
	t.Helper()
	policy, err := NewHourlyPolicy(time.Hour, price, grace)
	require.NoError(t, err)
	calc, err := NewFeeCalculator(policy, 30)
	require.NoError(t, err)
	return calc
}

func TestHourlyPolicyBillsStartedHours(t *testing.T) {
	calc := hourly(t, 500, 0)
	entry := time.Date(2024, 8, 15, 6, 52, 17, 0, time.UTC)

	cases := []struct {
		name    string
		elapsed time.Duration
		want    Money
	}{
		{"zero", 0, 500},
		{"one second", time.Second, 500},
		{"exactly one hour", time.Hour, 500},
		{"sixty five minutes", 65 * time.Minute, 1000},
		{"three hours and change", 3*time.Hour + time.Minute, 2000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			charge, err := calc.ComputeCharge(entry, entry.Add(tc.elapsed), false)
			require.NoError(t, err)
			require.Equal(t, tc.want, charge.Total)
			require.Equal(t, tc.want, charge.Gross)
			require.False(t, charge.DiscountApplied())
		})
	}
}

func TestHourlyPolicyGracePeriod(t *testing.T) {
	calc := hourly(t, 500, 10*time.Minute)
	entry := time.Date(2024, 8, 15, 6, 0, 0, 0, time.UTC)

	charge, err := calc.ComputeCharge(entry, entry.Add(10*time.Minute), false)
	require.NoError(t, err)
	require.Equal(t, Money(0), charge.Total)

	charge, err = calc.ComputeCharge(entry, entry.Add(11*time.Minute), false)
	require.NoError(t, err)
	require.Equal(t, Money(500), charge.Total)
}

func TestTieredPolicy(t *testing.T) {
	policy := TieredPolicy{
		FirstSpan: 15 * time.Minute, FirstPrice: 500,
		SecondSpan: time.Hour, SecondPrice: 925,
		Step: 15 * time.Minute, StepPrice: 175,
	}
	require.NoError(t, policy.Validate())

	require.Equal(t, Money(500), policy.Gross(10*time.Minute))
	require.Equal(t, Money(500), policy.Gross(15*time.Minute))
	require.Equal(t, Money(925), policy.Gross(16*time.Minute))
	require.Equal(t, Money(925), policy.Gross(time.Hour))
	require.Equal(t, Money(1100), policy.Gross(61*time.Minute))
	require.Equal(t, Money(1100), policy.Gross(75*time.Minute))
	require.Equal(t, Money(1275), policy.Gross(76*time.Minute))

	require.Error(t, TieredPolicy{FirstSpan: time.Hour, SecondSpan: time.Minute, Step: time.Minute}.Validate())
}

func TestComputeChargeAppliesDiscount(t *testing.T) {
	calc := hourly(t, 500, 0)
	entry := time.Date(2024, 8, 15, 6, 0, 0, 0, time.UTC)

	charge, err := calc.ComputeCharge(entry, entry.Add(90*time.Minute), true)
	require.NoError(t, err)
	require.Equal(t, Money(1000), charge.Gross)
	require.Equal(t, Money(300), charge.Discount)
	require.Equal(t, Money(700), charge.Total)
	require.True(t, charge.DiscountApplied())
}

func TestComputeChargeRejectsNegativeInterval(t *testing.T) {
	calc := hourly(t, 500, 0)
	entry := time.Date(2024, 8, 15, 6, 0, 0, 0, time.UTC)

	_, err := calc.ComputeCharge(entry, entry.Add(-time.Second), false)
	require.ErrorIs(t, err, ErrInvalidInterval)
}

func TestNewFeeCalculatorValidatesInput(t *testing.T) {
	policy, err := NewHourlyPolicy(time.Hour, 500, 0)
	require.NoError(t, err)

	_, err = NewFeeCalculator(policy, 101)
	require.Error(t, err)
	_, err = NewFeeCalculator(nil, 10)
	require.Error(t, err)
	_, err = NewHourlyPolicy(0, 500, 0)
	require.Error(t, err)
}

func TestEveryNthSession(t *testing.T) {
	rule := EveryNthSession{N: 10}
	require.False(t, rule.Eligible(0))
	require.False(t, rule.Eligible(9))
	require.True(t, rule.Eligible(10))
	require.False(t, rule.Eligible(11))
	require.True(t, rule.Eligible(20))
	require.False(t, EveryNthSession{}.Eligible(10))
}
