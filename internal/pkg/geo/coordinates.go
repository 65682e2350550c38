package geo

// ValidateCoordinates checks if latitude and longitude are valid.
// Latitude must be between -90 and 90, longitude between -180 and 180.
func ValidateCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 && lat != 0 && lng != 0
}

// HasValidCoordinates reports whether a lat/lng pair looks like real data.
// A zero pair almost always means the field was never populated.
func HasValidCoordinates(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	return ValidateCoordinates(lat, lng)
}
