package storage

import (
	"errors"
	"fmt"
)

var errEmptyHandle = errors.New("handle requires a database and a collection name")

// Handle identifies a (database, collection) pair. It is an immutable value
// passed per call; collections are created implicitly on first write, so a
// Handle never needs to be declared against the store before use.
type Handle struct {
	Database   string
	Collection string
}

// NewHandle creates a Handle after checking both names are non-empty.
func NewHandle(database, collection string) (Handle, error) {
	if database == "" || collection == "" {
		return Handle{}, fmt.Errorf("%w, got %q.%q", errEmptyHandle, database, collection)
	}

	return Handle{Database: database, Collection: collection}, nil
}

// String renders the handle as "database.collection".
func (h Handle) String() string {
	return h.Database + "." + h.Collection
}
