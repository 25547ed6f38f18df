package settings

import (
	"strconv"
	"time"
)

// Setting keys used by the dispatch pipeline.
const (
	KeyBasePriceMultiplier    = "base_price_multiplier"
	KeyUrgentPriceMultiplier  = "urgent_price_multiplier"
	KeyExpressPriceMultiplier = "express_price_multiplier"
	KeyTaxRate                = "tax_rate"
	KeyCourierCommissionRate  = "courier_commission_rate"
	KeyMaxDeliveryDistance    = "max_delivery_distance"
	KeyMinCourierRating       = "min_courier_rating"
	KeyMaxSearchTime          = "max_search_time"
	KeyCourierIdleTimeout     = "courier_idle_timeout"
)

// Setting is a single key/value row. Values are stored as text and parsed by
// the consumers that know their type.
type Setting struct {
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	Description *string   `json:"description,omitempty" db:"description"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SystemSettings is the typed snapshot consumed by pricing, dispatch and the
// lifecycle engine. Missing or malformed values fall back to defaults.
type SystemSettings struct {
	BasePriceMultiplier       float64 `json:"base_price_multiplier"`
	UrgentPriceMultiplier     float64 `json:"urgent_price_multiplier"`
	ExpressPriceMultiplier    float64 `json:"express_price_multiplier"`
	TaxRate                   float64 `json:"tax_rate"`
	CourierCommissionRate     float64 `json:"courier_commission_rate"`
	MaxDeliveryDistanceMiles  float64 `json:"max_delivery_distance"`
	MinCourierRating          float64 `json:"min_courier_rating"`
	MaxSearchTimeMinutes      int     `json:"max_search_time"`
	CourierIdleTimeoutMinutes int     `json:"courier_idle_timeout"`
}

// DefaultSystemSettings returns the values seeded at install time.
func DefaultSystemSettings() SystemSettings {
	return SystemSettings{
		BasePriceMultiplier:       1.0,
		UrgentPriceMultiplier:     1.75,
		ExpressPriceMultiplier:    1.5,
		TaxRate:                   0.0875,
		CourierCommissionRate:     0.8,
		MaxDeliveryDistanceMiles:  30,
		MinCourierRating:          4.0,
		MaxSearchTimeMinutes:      30,
		CourierIdleTimeoutMinutes: 15,
	}
}

// fromRows builds a typed snapshot from raw rows, keeping defaults for any
// key that is absent or unparsable.
func fromRows(rows []*Setting) SystemSettings {
	s := DefaultSystemSettings()
	for _, row := range rows {
		switch row.Key {
		case KeyBasePriceMultiplier:
			parseFloat(row.Value, &s.BasePriceMultiplier)
		case KeyUrgentPriceMultiplier:
			parseFloat(row.Value, &s.UrgentPriceMultiplier)
		case KeyExpressPriceMultiplier:
			parseFloat(row.Value, &s.ExpressPriceMultiplier)
		case KeyTaxRate:
			parseFloat(row.Value, &s.TaxRate)
		case KeyCourierCommissionRate:
			parseFloat(row.Value, &s.CourierCommissionRate)
		case KeyMaxDeliveryDistance:
			parseFloat(row.Value, &s.MaxDeliveryDistanceMiles)
		case KeyMinCourierRating:
			parseFloat(row.Value, &s.MinCourierRating)
		case KeyMaxSearchTime:
			parseInt(row.Value, &s.MaxSearchTimeMinutes)
		case KeyCourierIdleTimeout:
			parseInt(row.Value, &s.CourierIdleTimeoutMinutes)
		}
	}
	return s
}

func parseFloat(value string, dst *float64) {
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		*dst = v
	}
}

func parseInt(value string, dst *int) {
	if v, err := strconv.Atoi(value); err == nil {
		*dst = v
	}
}
