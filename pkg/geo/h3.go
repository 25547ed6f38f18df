package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3ResolutionPresence is the resolution courier positions are indexed at
// (~175m hex edge). See: https://h3geo.org/docs/core-library/restable
const H3ResolutionPresence = 9

// Cell returns the H3 cell of a coordinate at the given resolution as a hex
// string. Out-of-range coordinates yield an empty string.
func Cell(lat, lng float64, resolution int) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), resolution)
	if err != nil {
		return ""
	}
	return cell.String()
}

// PresenceCell returns the H3 cell string a courier position is indexed under.
func PresenceCell(lat, lng float64) string {
	return Cell(lat, lng, H3ResolutionPresence)
}
