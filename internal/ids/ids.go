// Package ids generates the identifiers used for audit rows and request
// correlation.
package ids

import "github.com/oklog/ulid/v2"

// New returns a ULID. Time-ordered, so audit rows keyed by it scan in
// insertion order without a separate sequence column.
func New() string {
	return ulid.Make().String()
}
