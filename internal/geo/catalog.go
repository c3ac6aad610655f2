// Package geo holds the static reference data for countries, their
// subdivisions, and cities. The catalog is loaded once at startup and never
// mutated, so it is shared across concurrent validations without locking.
package geo

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed data/countries.json
var rawCountries []byte

// Country is a catalog entry keyed by ISO 3166-1 alpha-2 code. The code
// doubles as the telephony region used by phone validation.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// State is a subdivision of a country, keyed by its subdivision code.
type State struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// City belongs to a country and, when the country has subdivisions, to one
// state. Cities of countries without subdivisions carry an empty state code.
type City struct {
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

type countryEntry struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	States []State `json:"states"`
	Cities []City  `json:"cities"`
}

// Catalog is the immutable lookup structure built from the embedded dataset.
type Catalog struct {
	countries map[string]Country
	states    map[string][]State
	cities    map[string][]City
	order     []string
}

// Load parses the embedded reference dataset into a Catalog.
func Load() (*Catalog, error) {
	var data struct {
		Countries []countryEntry `json:"countries"`
	}
	if err := json.Unmarshal(rawCountries, &data); err != nil {
		return nil, fmt.Errorf("parse geo dataset: %w", err)
	}

	c := &Catalog{
		countries: make(map[string]Country, len(data.Countries)),
		states:    make(map[string][]State, len(data.Countries)),
		cities:    make(map[string][]City, len(data.Countries)),
	}
	for _, entry := range data.Countries {
		if _, dup := c.countries[entry.Code]; dup {
			return nil, fmt.Errorf("duplicate country code %q in geo dataset", entry.Code)
		}
		c.countries[entry.Code] = Country{Code: entry.Code, Name: entry.Name}
		c.states[entry.Code] = entry.States
		c.cities[entry.Code] = entry.Cities
		c.order = append(c.order, entry.Code)
	}
	sort.Strings(c.order)
	return c, nil
}

// Country looks up a country by ISO code.
func (c *Catalog) Country(code string) (Country, bool) {
	country, ok := c.countries[code]
	return country, ok
}

// Countries returns all countries ordered by ISO code.
func (c *Catalog) Countries() []Country {
	out := make([]Country, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.countries[code])
	}
	return out
}

// StatesOf returns the subdivisions of a country in dataset order. An empty
// slice means the country has no subdivisions.
func (c *Catalog) StatesOf(country string) []State {
	return c.states[country]
}

// CitiesOf returns the cities of a country in dataset order. A non-empty
// state narrows the result to cities of that subdivision; an empty state
// returns every city of the country.
func (c *Catalog) CitiesOf(country, state string) []City {
	all := c.cities[country]
	if state == "" {
		return all
	}
	var out []City
	for _, city := range all {
		if city.State == state {
			out = append(out, city)
		}
	}
	return out
}
