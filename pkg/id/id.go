// Package id generates the ULID identifiers used for orders and fills.
package id

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string. ULIDs sort by generation time, which
// keeps order and fill IDs naturally ordered in the history store; the
// default entropy source is monotonic within a millisecond and safe for
// concurrent use.
func New() string {
	return ulid.Make().String()
}
