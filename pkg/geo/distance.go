package geo

import "math"

const (
	earthRadiusKm = 6371.0
	milesPerKm    = 0.621371
	metersPerMile = 1609.344

	// minutesPerMile assumes a 12 mph city courier average.
	minutesPerMile = 5.0
)

// Haversine calculates the great-circle distance in kilometres between two
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Miles calculates the great-circle distance in miles between two coordinates.
// All courier-facing distances (pricing, service radius, receipts) are in miles.
func Miles(lat1, lon1, lat2, lon2 float64) float64 {
	return Haversine(lat1, lon1, lat2, lon2) * milesPerKm
}

// Meters calculates the great-circle distance in meters between two
// coordinates. Proximity checks (approach detection) work in meters.
func Meters(lat1, lon1, lat2, lon2 float64) float64 {
	return Haversine(lat1, lon1, lat2, lon2) * 1000.0
}

// KmToMiles converts a metric distance to miles.
func KmToMiles(km float64) float64 {
	return km * milesPerKm
}

// MilesToMeters converts miles to meters.
func MilesToMeters(miles float64) float64 {
	return miles * metersPerMile
}

// EstimateDurationMinutes returns the estimated travel time in minutes for a
// distance in miles.
func EstimateDurationMinutes(distanceMiles float64) int {
	return int(math.Round(distanceMiles * minutesPerMile))
}
