// Package models defines the contact record shape and the request types the
// record engine accepts. The engine owns no persistent state; records live in
// the store and these types only describe transitions.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Field names a record attribute. Used for patch maps, filters, and error
// paths so that field identity is one vocabulary across layers.
type Field string

const (
	FieldID      Field = "id"
	FieldName    Field = "name"
	FieldPhone   Field = "phone"
	FieldEmail   Field = "email"
	FieldCountry Field = "country"
	FieldState   Field = "state"
	FieldCity    Field = "city"
)

// PKFields identify a unique record: email and phone carry unique indexes,
// id is the store-assigned identity.
var PKFields = []Field{FieldPhone, FieldEmail, FieldID}

// SetFields are the only attributes a patch may overwrite.
var SetFields = []Field{FieldPhone, FieldName, FieldEmail, FieldCountry, FieldState, FieldCity}

// UnsetFields are the only attributes a patch may remove. Name, phone, email
// and country are always required, so they can never be unset.
var UnsetFields = []Field{FieldState, FieldCity}

// Record is a stored contact. State and City are optional depending on the
// geography of Country; an empty string means the field is absent.
//
// Invariants:
//   - Email and Phone are each globally unique among stored records
//   - State is required iff the country has subdivisions in the catalog,
//     and must be a code belonging to that country
//   - City is required iff cities exist for the resolved (country, state)
//   - Created is immutable after insertion; every accepted patch advances
//     Updated and leaves Created untouched
type Record struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone"`
	Email   string    `json:"email"`
	Country string    `json:"country"`
	State   string    `json:"state,omitempty"`
	City    string    `json:"city,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Fields returns the validatable portion of the record.
func (r Record) Fields() RecordFields {
	return RecordFields{
		Name:    r.Name,
		Phone:   r.Phone,
		Email:   r.Email,
		Country: r.Country,
		State:   r.State,
		City:    r.City,
	}
}

// Value returns the record's value for a settable or primary-key field.
func (r Record) Value(f Field) string {
	switch f {
	case FieldID:
		if r.ID == uuid.Nil {
			return ""
		}
		return r.ID.String()
	case FieldName:
		return r.Name
	case FieldPhone:
		return r.Phone
	case FieldEmail:
		return r.Email
	case FieldCountry:
		return r.Country
	case FieldState:
		return r.State
	case FieldCity:
		return r.City
	}
	return ""
}

// RecordFields is the client-suppliable subset of a record. An empty string
// means the field was not supplied, which lenient validation skips.
type RecordFields struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}

// CreateRequest is a full candidate record plus the ephemeral email
// confirmation used for double-entry checks. The confirmation is never
// persisted.
type CreateRequest struct {
	RecordFields
	EmailConfirmation string `json:"email_confirmation,omitempty"`
}

// Selector is the subset of primary-key fields used to locate exactly one
// stored record for patch and delete.
type Selector struct {
	ID    uuid.UUID `json:"id,omitempty"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

// IsEmpty reports whether no primary-key field was supplied.
func (s Selector) IsEmpty() bool {
	return s.ID == uuid.Nil && s.Email == "" && s.Phone == ""
}

// PatchRequest is a partial edit: the selector locates the record, Set
// overwrites fields, and Unset removes them. Set wins when a key appears in
// both.
type PatchRequest struct {
	Selector Selector         `json:"selector"`
	Set      map[Field]string `json:"set,omitempty"`
	Unset    map[Field]bool   `json:"unset,omitempty"`
}

// EditCheckRequest is the incremental-feedback shape: the stored record's
// current PK values plus the edited candidate fields.
type EditCheckRequest struct {
	Old struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"old"`
	Upd RecordFields `json:"upd"`
}
