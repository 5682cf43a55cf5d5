package xid

import "github.com/google/uuid"

// New returns a random (v4) UUID string. Rows use it as their primary key.
func New() string {
	return uuid.NewString()
}

// Short returns the first 8 characters of id, used for human-facing references
// such as "Sale #1a2b3c4d".
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
