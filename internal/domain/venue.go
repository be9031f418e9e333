package domain

import "errors"

// ErrInvalidCandidate is returned when a candidate carries neither a name
// nor a place id. This is a programming contract violation, not an expected
// failure mode: search results always have at least one of the two.
var ErrInvalidCandidate = errors.New("candidate venue has no name and no place id")

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are inside their WGS-84 ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Venue is a real-world place a diary entry can be associated with.
//
// PlaceID is the external provider's stable, opaque identifier. It is empty
// for free-typed venues that were never matched against the provider.
// Location is nil until the venue has been resolved to full detail; text
// search predictions in particular arrive without one.
type Venue struct {
	PlaceID  string      `json:"place_id,omitempty"`
	Name     string      `json:"name"`
	Address  string      `json:"address,omitempty"`
	Location *Coordinate `json:"location,omitempty"`
}

// Valid reports whether the venue is structurally usable as a candidate.
func (v Venue) Valid() bool {
	return v.Name != "" || v.PlaceID != ""
}

// Merge overlays the non-empty detail fields of other onto v, keeping v's
// place id when both are set. Used when a details lookup completes a
// text-search prediction.
func (v Venue) Merge(other Venue) Venue {
	if v.PlaceID == "" {
		v.PlaceID = other.PlaceID
	}
	if other.Name != "" {
		v.Name = other.Name
	}
	if other.Address != "" {
		v.Address = other.Address
	}
	if v.Location == nil && other.Location != nil {
		loc := *other.Location
		v.Location = &loc
	}
	return v
}
