package pricing

import (
	"math"

	"github.com/richxcame/courier-dispatch/internal/settings"
	"github.com/richxcame/courier-dispatch/pkg/geo"
)

const (
	perMileRate = 1.25

	// weightFeeThreshold is the fraction of the package type's weight ceiling
	// above which the weight fee kicks in.
	weightFeeThreshold = 0.5
	weightFeeScale     = 5.0
)

// ComputeQuote is the deterministic fee formula. Same inputs always produce
// the same breakdown; every monetary component is rounded half-away-from-zero
// to two decimals.
func ComputeQuote(in QuoteInput, pt *PackageType, sys settings.SystemSettings) Quote {
	distanceMiles := geo.Miles(in.PickupLatitude, in.PickupLongitude, in.DropoffLatitude, in.DropoffLongitude)

	baseFee := round2(pt.BasePrice * sys.BasePriceMultiplier)
	distanceFee := round2(distanceMiles * perMileRate)

	var weightFee float64
	if pt.MaxWeightLbs > 0 && in.WeightLbs > weightFeeThreshold*pt.MaxWeightLbs {
		weightFee = round2(in.WeightLbs / pt.MaxWeightLbs * weightFeeScale)
	}

	var priorityFee float64
	switch in.Priority {
	case PriorityUrgent:
		priorityFee = round2(baseFee * (sys.UrgentPriceMultiplier - 1))
	case PriorityExpress:
		priorityFee = round2(baseFee * (sys.ExpressPriceMultiplier - 1))
	}

	subtotal := baseFee + distanceFee + weightFee + priorityFee
	tax := round2(subtotal * sys.TaxRate)

	return Quote{
		BaseFee:                  baseFee,
		DistanceFee:              distanceFee,
		WeightFee:                weightFee,
		PriorityFee:              priorityFee,
		Tax:                      tax,
		Total:                    round2(subtotal + tax),
		DistanceMiles:            round2(distanceMiles),
		EstimatedDurationMinutes: geo.EstimateDurationMinutes(distanceMiles),
	}
}

// round2 rounds half away from zero to two decimals, matching how the
// monetary columns are stored.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
