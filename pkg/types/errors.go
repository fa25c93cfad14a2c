package types

import (
	"errors"
	"fmt"
	"strings"
)

// AliasNotFoundError is returned when an alias has no bound index generation,
// which means the logical index was never created.
type AliasNotFoundError struct {
	Alias string
}

func (e *AliasNotFoundError) Error() string {
	return fmt.Sprintf("alias not found: %s", e.Alias)
}

// From checks if the given error is an AliasNotFoundError
func (e *AliasNotFoundError) From(err error) bool {
	var notFound *AliasNotFoundError
	return errors.As(err, &notFound)
}

// DocumentNotFoundError is returned when no document exists for the given id
type DocumentNotFoundError struct {
	Index string
	ID    string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s/%s", e.Index, e.ID)
}

// From checks if the given error is a DocumentNotFoundError
func (e *DocumentNotFoundError) From(err error) bool {
	var notFound *DocumentNotFoundError
	return errors.As(err, &notFound)
}

// LockUnavailableError is returned when a migration lock is already held
// by another worker and the caller did not want to wait.
type LockUnavailableError struct {
	Key string
}

func (e *LockUnavailableError) Error() string {
	return fmt.Sprintf("lock unavailable: %s", e.Key)
}

// From checks if the given error is a LockUnavailableError
func (e *LockUnavailableError) From(err error) bool {
	var unavailable *LockUnavailableError
	return errors.As(err, &unavailable)
}

// BulkItemError describes one failed document in a bulk index call
type BulkItemError struct {
	ID     string
	Status int
	Reason string
}

func (e BulkItemError) String() string {
	return fmt.Sprintf("%s (status %d): %s", e.ID, e.Status, e.Reason)
}

// BulkIndexError aggregates every per-document failure of a bulk call.
// Callers must treat the whole batch as failed, partial success is not
// reported as success.
type BulkIndexError struct {
	Failures []BulkItemError
}

func (e *BulkIndexError) Error() string {
	items := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		items = append(items, f.String())
	}
	return fmt.Sprintf("bulk index failed for %d document(s): %s", len(e.Failures), strings.Join(items, "; "))
}

// From checks if the given error is a BulkIndexError
func (e *BulkIndexError) From(err error) bool {
	var bulkErr *BulkIndexError
	return errors.As(err, &bulkErr)
}

// AliasRebindError is returned when the backing index rejected an atomic
// alias update. Mid-migration this is fatal and triggers the abort path.
type AliasRebindError struct {
	Err error
}

func (e *AliasRebindError) Error() string {
	return fmt.Sprintf("alias rebind failed: %v", e.Err)
}

func (e *AliasRebindError) Unwrap() error {
	return e.Err
}
