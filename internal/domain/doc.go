// Package domain models venues and the geometric matching used to
// deduplicate them.
//
// # Venue Lifecycle
//
// A venue starts as a lightweight candidate: a name, usually a provider
// place id, and sometimes a coordinate. Candidates come from two sources
// with different shapes:
//
//	Nearby search:  place id + name + address + coordinate
//	Text search:    place id + name + secondary text, NO coordinate
//
// Selecting a candidate promotes it to a confirmed venue. If the candidate
// lacks a coordinate it is completed via a provider details lookup before
// being upserted into the user's known-venues store, keyed by
// (user id, place id) so re-selecting the same real-world place never
// creates a duplicate record. Confirmed venues with a coordinate become
// eligible for proximity matching on later visits.
//
// # Proximity Matching
//
// [Distance] computes great-circle distance with the haversine formula on a
// sphere of radius 6,371,000 m. [FindNearest] scans known venues in input
// order and returns the first one within the radius, not the globally
// closest one. Callers list venues newest-first, so when two saved
// venues share a doorway the most recently confirmed one wins the
// tie-break. The standard match radius for "back at this place?" prompts is
// 50 m; candidates without a coordinate are skipped rather than erroring.
//
// Coordinate validation is the caller's job: out-of-range input is rejected
// before the distance math, never inside it.
package domain
