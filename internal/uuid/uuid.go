// Package uuid allocates the identifiers used to key upload sessions
// (spec §3 "Upload Session ... a UUID").
package uuid

import "github.com/google/uuid"

// NewString returns a new V7 UUID string. V7 UUIDs are time-ordered, so
// session IDs sort roughly in creation order, which would keep any
// future on-disk journal keyed by them (spec §9) roughly insertion-ordered.
func NewString() string {
	return uuid.Must(uuid.NewV7()).String()
}
