package validate

import (
	"fmt"

	"contactdir/internal/geo"
	"contactdir/internal/record/models"
	dErrors "contactdir/pkg/domain-errors"
)

// Location enforces the country→state→city consistency matrix. Whether state
// and city are required is decided by catalog cardinalities, not a fixed
// field list:
//
//   - country has subdivisions: state is required and must belong to the
//     country; city is then required iff the (country, state) pair has
//     cities. A state with zero cities leaves city optional.
//   - country has no subdivisions: city is required iff the country has any
//     cities; otherwise neither state nor city is checked.
//
// Country must already be known-valid when this runs.
func (v *Validator) Location(f models.RecordFields) error {
	if f.Country == "" {
		return dErrors.New(dErrors.CodeCompleteness, "country", "you must select your country")
	}
	if _, ok := v.catalog.Country(f.Country); !ok {
		return dErrors.New(dErrors.CodeReference, "country", fmt.Sprintf("unknown country: %s", f.Country))
	}

	states := v.catalog.StatesOf(f.Country)
	if len(states) > 0 {
		if f.State == "" {
			return dErrors.New(dErrors.CodeCompleteness, "state", "you must select your state")
		}
		if !v.stateOf(f.Country, f.State) {
			return dErrors.New(dErrors.CodeReference, "state",
				fmt.Sprintf("no such state [%s] for country [%s]", f.State, f.Country))
		}
		return v.requireCity(f, v.catalog.CitiesOf(f.Country, f.State))
	}

	// No subdivisions: the country's own city list decides.
	return v.requireCity(f, v.catalog.CitiesOf(f.Country, ""))
}

func (v *Validator) requireCity(f models.RecordFields, cities []geo.City) error {
	if len(cities) == 0 {
		// Nothing to choose from: city is optional and any value is ignored.
		return nil
	}
	if f.City == "" {
		return dErrors.New(dErrors.CodeCompleteness, "city", "you must select your city")
	}
	if !cityIn(cities, f.City) {
		return dErrors.New(dErrors.CodeReference, "city",
			fmt.Sprintf("no such city in country %s, state %s", f.Country, f.State))
	}
	return nil
}
