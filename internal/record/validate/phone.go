package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"

	dErrors "contactdir/pkg/domain-errors"
)

// International format: a leading plus, then digits and common separators.
// Embedded letters or a second plus are rejected before any parsing.
var phoneFormatRE = regexp.MustCompile(`^\+[0-9\-/ ()]+$`)

// Phone checks a raw phone number against the declared country.
//
// When the country resolves in the catalog, the number is parsed with the
// country's ISO code as region hint and the parsed number's inferred region
// must equal that code. When the country does not resolve (lenient
// validation may see a not-yet-validated country), the number is parsed
// generically and accepted iff it is valid for at least one region.
func (v *Validator) Phone(raw, country string) error {
	if !phoneFormatRE.MatchString(raw) {
		return dErrors.New(dErrors.CodeFormat, "phone",
			"phone must start with + followed by digits and separators")
	}

	c, ok := v.catalog.Country(country)
	if !ok {
		num, err := phonenumbers.Parse(raw, "")
		if err != nil {
			return dErrors.New(dErrors.CodeFormat, "phone", "could not parse phone number")
		}
		if !phonenumbers.IsValidNumber(num) {
			return dErrors.New(dErrors.CodeFormat, "phone", "phone is not valid for any region")
		}
		return nil
	}

	region := ""
	if phonenumbers.GetSupportedRegions()[c.Code] {
		region = c.Code
	}
	num, err := phonenumbers.Parse(strings.TrimPrefix(raw, "+"), region)
	if err != nil {
		return dErrors.New(dErrors.CodeFormat, "phone", "could not parse phone number")
	}
	inferred := phonenumbers.GetRegionCodeForNumber(num)
	if inferred != c.Code {
		return dErrors.New(dErrors.CodeRegionMismatch, "phone",
			fmt.Sprintf("phone is assigned to region %s but the record is from %s", inferred, c.Code))
	}
	return nil
}
