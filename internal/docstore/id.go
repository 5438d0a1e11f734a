package docstore

import "github.com/google/uuid"

// newID generates a document identifier for collections that don't derive
// their identity from a natural key (path), mirroring the uuid.New
// idiom used across the retrieved corpus for session and document ids.
func newID() string {
	return uuid.New().String()
}
