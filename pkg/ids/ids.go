// Package ids generates time-ordered, globally unique identifiers.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a UUIDv7 string. UUIDv7 embeds a millisecond timestamp in the
// most significant bits, so ids sort lexicographically by creation time.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source is broken; fall back to v4
		// rather than propagate an error through every caller.
		return uuid.NewString()
	}
	return id.String()
}

// NewPrefixed returns an id of the form "<prefix>_<uuidv7>". Prefixes make
// entity ids self-describing in logs and key listings.
func NewPrefixed(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, New())
}

// Entity id prefixes.
const (
	PrefixOrganizer  = "org"
	PrefixHackathon  = "hack"
	PrefixSubmission = "sub"
	PrefixJob        = "job"
)

// NewOrganizerID returns a new organizer id.
func NewOrganizerID() string { return NewPrefixed(PrefixOrganizer) }

// NewHackathonID returns a new hackathon id.
func NewHackathonID() string { return NewPrefixed(PrefixHackathon) }

// NewSubmissionID returns a new submission id.
func NewSubmissionID() string { return NewPrefixed(PrefixSubmission) }

// NewJobID returns a new analysis job id.
func NewJobID() string { return NewPrefixed(PrefixJob) }
