// Package validate implements the per-field, location, and phone rules for
// contact records. Validation is a pure function of (candidate, catalog) and
// is fail-fast: the first violated field aborts the check.
package validate

import (
	"fmt"
	"regexp"

	"github.com/asaskevich/govalidator"

	"contactdir/internal/geo"
	"contactdir/internal/record/models"
	dErrors "contactdir/pkg/domain-errors"
)

// Mode selects the presence rules applied during validation.
type Mode int

const (
	// Lenient checks only fields that are actually supplied; absence is not
	// an error. Used for incremental client-side feedback.
	Lenient Mode = iota
	// Strict requires every applicable field before a record is committed.
	Strict
)

var nameRE = regexp.MustCompile(`^[a-zA-Z ]+$`)

// Validator holds the geo catalog the rules depend on. The catalog is
// injected explicitly so the validator carries no hidden process-wide state.
type Validator struct {
	catalog *geo.Catalog
}

func New(catalog *geo.Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Record validates a candidate's fields in a fixed order: name, phone,
// email, country, then state and city. The first violation is returned and
// later fields are not inspected.
func (v *Validator) Record(f models.RecordFields, mode Mode) error {
	if err := v.name(f.Name, mode); err != nil {
		return err
	}
	if err := v.phoneField(f, mode); err != nil {
		return err
	}
	if err := v.email(f.Email, mode); err != nil {
		return err
	}
	if err := v.country(f.Country, mode); err != nil {
		return err
	}
	if mode == Strict {
		return v.Location(f)
	}
	return v.lenientLocation(f)
}

func (v *Validator) name(name string, mode Mode) error {
	if name == "" {
		if mode == Strict {
			return dErrors.New(dErrors.CodeCompleteness, "name", "name is required")
		}
		return nil
	}
	if len(name) > 100 || !nameRE.MatchString(name) {
		return dErrors.New(dErrors.CodeFormat, "name", "name must be 1-100 letters and spaces")
	}
	return nil
}

func (v *Validator) phoneField(f models.RecordFields, mode Mode) error {
	if f.Phone == "" {
		if mode == Strict {
			return dErrors.New(dErrors.CodeCompleteness, "phone", "phone is required")
		}
		return nil
	}
	return v.Phone(f.Phone, f.Country)
}

func (v *Validator) email(email string, mode Mode) error {
	if email == "" {
		if mode == Strict {
			return dErrors.New(dErrors.CodeCompleteness, "email", "email is required")
		}
		return nil
	}
	if !govalidator.StringLength(email, "4", "150") || !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeFormat, "email", "email must be a valid address of 4-150 characters")
	}
	return nil
}

func (v *Validator) country(country string, mode Mode) error {
	if country == "" {
		if mode == Strict {
			return dErrors.New(dErrors.CodeCompleteness, "country", "you must select your country")
		}
		return nil
	}
	if _, ok := v.catalog.Country(country); !ok {
		return dErrors.New(dErrors.CodeReference, "country", fmt.Sprintf("unknown country: %s", country))
	}
	return nil
}

// lenientLocation checks state and city membership only when the fields are
// supplied. Presence requirements belong to Location.
func (v *Validator) lenientLocation(f models.RecordFields) error {
	if f.State != "" {
		if f.Country == "" {
			return dErrors.New(dErrors.CodeCompleteness, "state", "select a country before a state")
		}
		if !v.stateOf(f.Country, f.State) {
			return dErrors.New(dErrors.CodeReference, "state",
				fmt.Sprintf("no such state [%s] for country [%s]", f.State, f.Country))
		}
	}
	if f.City != "" {
		if f.Country == "" {
			return dErrors.New(dErrors.CodeCompleteness, "city", "select a country before a city")
		}
		cities := v.catalog.CitiesOf(f.Country, f.State)
		// No cities known for the pair: the value is accepted and ignored.
		if len(cities) > 0 && !cityIn(cities, f.City) {
			return dErrors.New(dErrors.CodeReference, "city",
				fmt.Sprintf("no such city in country %s, state %s", f.Country, f.State))
		}
	}
	return nil
}

func (v *Validator) stateOf(country, state string) bool {
	for _, s := range v.catalog.StatesOf(country) {
		if s.Code == state {
			return true
		}
	}
	return false
}

func cityIn(cities []geo.City, name string) bool {
	for _, c := range cities {
		if c.Name == name {
			return true
		}
	}
	return false
}
