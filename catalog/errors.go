package catalog

import (
	"errors"
	"fmt"

	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/catalog/placement"
)

var (
	// ErrNotFound is returned when a tablet or table does not exist or
	// when a tablet was already replaced. It is not retryable as is.
	ErrNotFound = errors.New("not found")
	// ErrIllegalState is returned when a tablet exists but is not
	// eligible for the operation right now. Callers may retry later.
	ErrIllegalState = errors.New("illegal state")
	// ErrConflict is returned when a concurrent update of the same
	// tablet won a race. Callers should re-read before retrying.
	ErrConflict = errors.New("conflict")
	// ErrResourceExhausted is returned when there are not enough live
	// tablet servers to satisfy the replication factor
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrInvalidArgument is returned for malformed requests
	ErrInvalidArgument = errors.New("invalid argument")
)

// wrapError translates metastore and placement errors
// into the catalog's error taxonomy
func wrapError(wrap string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, metastore.ErrNoSuchTablet), errors.Is(err, metastore.ErrNoSuchTable):
		return fmt.Errorf("%s: %w: %s", wrap, ErrNotFound, err)
	case errors.Is(err, metastore.ErrVersionConflict):
		return fmt.Errorf("%s: %w: %s", wrap, ErrConflict, err)
	case errors.Is(err, metastore.ErrIllegalTransition):
		return fmt.Errorf("%s: %w: %s", wrap, ErrIllegalState, err)
	case errors.Is(err, metastore.ErrInvalidRecord):
		return fmt.Errorf("%s: %w: %s", wrap, ErrInvalidArgument, err)
	case errors.Is(err, placement.ErrResourceExhausted):
		return fmt.Errorf("%s: %w: %s", wrap, ErrResourceExhausted, err)
	case errors.Is(err, placement.ErrInvalidReplicationFactor):
		return fmt.Errorf("%s: %w: %s", wrap, ErrInvalidArgument, err)
	}

	return fmt.Errorf("%s: %w", wrap, err)
}
