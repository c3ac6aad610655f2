package sentinel

import "errors"

// ErrConflict marks a write rejected by a unique index (email, phone).
// Stores wrap it in their duplicate-key errors so callers can classify
// duplicates with errors.Is without depending on a concrete store.
//
// Validation failures (bad input, missing fields) are not conflicts; those
// use pkg/domain-errors.
var ErrConflict = errors.New("conflict")
