package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/richxcame/courier-dispatch/internal/settings"
)

// Ferry Building to 7th St, San Francisco. Great circle is about 1.63 miles.
var sfQuoteInput = QuoteInput{
	PickupLatitude:   37.7897,
	PickupLongitude:  -122.3972,
	DropoffLatitude:  37.7663,
	DropoffLongitude: -122.4005,
	WeightLbs:        3.5,
	Priority:         PriorityStandard,
}

func smallPackageType() *PackageType {
	return &PackageType{Name: "small", BasePrice: 9.99, MaxWeightLbs: 10, IsActive: true}
}

func TestComputeQuoteStandard(t *testing.T) {
	q := ComputeQuote(sfQuoteInput, smallPackageType(), settings.DefaultSystemSettings())

	assert.Equal(t, 9.99, q.BaseFee)
	assert.Equal(t, 2.03, q.DistanceFee)
	assert.Equal(t, 0.0, q.WeightFee, "3.5 lbs is under half the 10 lb ceiling")
	assert.Equal(t, 0.0, q.PriorityFee)
	assert.Equal(t, 1.05, q.Tax)
	assert.Equal(t, 13.07, q.Total)
	assert.Equal(t, 1.63, q.DistanceMiles)
	assert.Equal(t, 8, q.EstimatedDurationMinutes)
}

func TestComputeQuoteIsPure(t *testing.T) {
	sys := settings.DefaultSystemSettings()
	first := ComputeQuote(sfQuoteInput, smallPackageType(), sys)
	second := ComputeQuote(sfQuoteInput, smallPackageType(), sys)
	assert.Equal(t, first, second)
}

func TestComputeQuoteTable(t *testing.T) {
	sys := settings.DefaultSystemSettings()

	tests := []struct {
		name     string
		mutate   func(*QuoteInput, *PackageType, *settings.SystemSettings)
		validate func(t *testing.T, q Quote)
	}{
		{
			name: "urgent with weight fee",
			mutate: func(in *QuoteInput, _ *PackageType, _ *settings.SystemSettings) {
				in.WeightLbs = 8
				in.Priority = PriorityUrgent
			},
			validate: func(t *testing.T, q Quote) {
				assert.Equal(t, 4.00, q.WeightFee)
				assert.Equal(t, 7.49, q.PriorityFee)
				assert.Equal(t, 2.06, q.Tax)
				assert.Equal(t, 25.57, q.Total)
			},
		},
		{
			name: "express priority fee",
			mutate: func(in *QuoteInput, _ *PackageType, _ *settings.SystemSettings) {
				in.Priority = PriorityExpress
			},
			validate: func(t *testing.T, q Quote) {
				assert.Equal(t, 5.00, q.PriorityFee)
			},
		},
		{
			name: "weight exactly at half the ceiling carries no fee",
			mutate: func(in *QuoteInput, _ *PackageType, _ *settings.SystemSettings) {
				in.WeightLbs = 5.0
			},
			validate: func(t *testing.T, q Quote) {
				assert.Equal(t, 0.0, q.WeightFee)
			},
		},
		{
			name: "weight just over half the ceiling",
			mutate: func(in *QuoteInput, _ *PackageType, _ *settings.SystemSettings) {
				in.WeightLbs = 5.01
			},
			validate: func(t *testing.T, q Quote) {
				assert.Equal(t, 2.51, q.WeightFee)
			},
		},
		{
			name: "base price multiplier scales the base fee",
			mutate: func(_ *QuoteInput, _ *PackageType, sys *settings.SystemSettings) {
				sys.BasePriceMultiplier = 1.2
			},
			validate: func(t *testing.T, q Quote) {
				assert.Equal(t, 11.99, q.BaseFee)
			},
		},
		{
			name: "zero tax rate",
			mutate: func(_ *QuoteInput, _ *PackageType, sys *settings.SystemSettings) {
				sys.TaxRate = 0
			},
			validate: func(t *testing.T, q Quote) {
				assert.Equal(t, 0.0, q.Tax)
				assert.Equal(t, q.BaseFee+q.DistanceFee, q.Total)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sfQuoteInput
			pt := smallPackageType()
			cfg := sys
			tt.mutate(&in, pt, &cfg)
			tt.validate(t, ComputeQuote(in, pt, cfg))
		})
	}
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 5.00, round2(4.995))
	assert.Equal(t, 2.51, round2(2.505))
	assert.Equal(t, -2.51, round2(-2.505))
	assert.Equal(t, 1.05, round2(1.05175))
}
