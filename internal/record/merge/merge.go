// Package merge implements the pure patch-merge step: an owned copy of the
// stored record with unset then set applied. It is independent of any store
// library's update-operator semantics.
package merge

import "contactdir/internal/record/models"

// Apply clones existing, removes every permitted key in unset, then
// overwrites every permitted key in set. Set is applied after unset, so set
// wins when a key appears in both. The stored original is never mutated.
//
// Keys outside the allowed set/unset vocabularies are ignored rather than
// rejected, mirroring how the engine filters patch input.
func Apply(existing models.Record, set map[models.Field]string, unset map[models.Field]bool) models.Record {
	candidate := existing

	for _, f := range models.UnsetFields {
		if !unset[f] {
			continue
		}
		switch f {
		case models.FieldState:
			candidate.State = ""
		case models.FieldCity:
			candidate.City = ""
		}
	}

	for _, f := range models.SetFields {
		value, ok := set[f]
		if !ok {
			continue
		}
		switch f {
		case models.FieldName:
			candidate.Name = value
		case models.FieldPhone:
			candidate.Phone = value
		case models.FieldEmail:
			candidate.Email = value
		case models.FieldCountry:
			candidate.Country = value
		case models.FieldState:
			candidate.State = value
		case models.FieldCity:
			candidate.City = value
		}
	}

	return candidate
}
