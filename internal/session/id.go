package session

import "github.com/oklog/ulid/v2"

// GenerateID returns a new ULID, the same scheme the teacher's
// session.Service used for session and message ids: lexically sortable by
// creation time, path-safe, and accepted by ValidateID.
func GenerateID() string {
	return ulid.Make().String()
}
