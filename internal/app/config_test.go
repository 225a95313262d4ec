package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/citypark/citypark/internal/parking"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, []string{"A-01", "A-02", "A-03", "A-04", "A-05"}, cfg.MemorySlots)
	require.Equal(t, 5*time.Minute, cfg.ClientCacheTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "unknown store driver")
}

func TestLoadConfigNormalizesMemorySlots(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("MEMORY_SLOTS", "A-01, a-02")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"A-01", "A-02"}, cfg.MemorySlots)
}

func TestLoadConfigRejectsBadMemorySlots(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")

	t.Setenv("MEMORY_SLOTS", "A-01,A-01")
	_, err := LoadConfig()
	require.ErrorIs(t, err, parking.ErrDuplicateSlot)

	t.Setenv("MEMORY_SLOTS", "A-01, a-01")
	_, err = LoadConfig()
	require.ErrorIs(t, err, parking.ErrDuplicateSlot)

	t.Setenv("MEMORY_SLOTS", "A-01,lot 7")
	_, err = LoadConfig()
	require.ErrorIs(t, err, parking.ErrValidation)
}

func TestConfigHourlyFeeCalculator(t *testing.T) {
	cfg := &Config{FeePolicy: "hourly", FeeUnit: time.Hour, FeeUnitPrice: 500, DiscountPercent: 30}
	fees, err := cfg.FeeCalculator()
	require.NoError(t, err)

	entry := time.Date(2024, 8, 15, 18, 0, 0, 0, time.UTC)
	charge, err := fees.ComputeCharge(entry, entry.Add(65*time.Minute), false)
	require.NoError(t, err)
	require.Equal(t, parking.Money(1000), charge.Total)

	charge, err = fees.ComputeCharge(entry, entry.Add(65*time.Minute), true)
	require.NoError(t, err)
	require.Equal(t, parking.Money(300), charge.Discount)
	require.Equal(t, parking.Money(700), charge.Total)
}

func TestConfigTieredFeeCalculator(t *testing.T) {
	cfg := &Config{
		FeePolicy:      "tiered",
		TierFirstSpan:  15 * time.Minute,
		TierFirst:      500,
		TierSecondSpan: time.Hour,
		TierSecond:     925,
		TierStep:       15 * time.Minute,
		TierStepPrice:  175,
	}
	fees, err := cfg.FeeCalculator()
	require.NoError(t, err)

	entry := time.Date(2024, 8, 15, 18, 0, 0, 0, time.UTC)
	charge, err := fees.ComputeCharge(entry, entry.Add(61*time.Minute), false)
	require.NoError(t, err)
	require.Equal(t, parking.Money(1100), charge.Total)
}

func TestConfigRejectsBadFeeSettings(t *testing.T) {
	_, err := (&Config{FeePolicy: "weekly"}).FeeCalculator()
	require.Error(t, err)

	_, err = (&Config{FeePolicy: "hourly", FeeUnit: 0, FeeUnitPrice: 500}).FeeCalculator()
	require.Error(t, err)

	_, err = (&Config{FeePolicy: "hourly", FeeUnit: time.Hour, DiscountPercent: 120}).FeeCalculator()
	require.Error(t, err)
}

func TestConfigDiscountRule(t *testing.T) {
	rule := (&Config{DiscountEveryN: 10}).DiscountRule()
	require.False(t, rule.Eligible(0))
	require.False(t, rule.Eligible(9))
	require.True(t, rule.Eligible(10))
	require.True(t, rule.Eligible(20))
}

func TestConfigMemoryClientSeed(t *testing.T) {
	cfg := &Config{MemoryClients: []string{"100:94392380033:Ana Silva", "200:59644826000:Bruno: Costa"}}
	seed, err := cfg.MemoryClientSeed()
	require.NoError(t, err)
	require.Len(t, seed, 2)
	require.Equal(t, int64(100), seed[0].UserID)
	require.Equal(t, "94392380033", seed[0].DocumentID)
	require.Equal(t, "Bruno: Costa", seed[1].Name)

	_, err = (&Config{MemoryClients: []string{"abc:1:x"}}).MemoryClientSeed()
	require.Error(t, err)
	_, err = (&Config{MemoryClients: []string{"100-94392380033"}}).MemoryClientSeed()
	require.Error(t, err)
}
