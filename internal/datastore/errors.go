package datastore

import "fmt"

// PersistError wraps a failure from a Datastore call. It is always
// non-fatal: the caller logs it and discards the record, with no
// retry inside the core proxy path.
type PersistError struct {
	Op  string // "add_traffic" or "add_auth"
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("datastore: %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
