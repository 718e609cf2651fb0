package metastore

import (
	"errors"
	"fmt"

	"github.com/jrife/tablets/storage/kv"
)

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("store was closed")
	// ErrNoSuchTablet is returned when a tablet record does not exist
	ErrNoSuchTablet = errors.New("tablet does not exist")
	// ErrNoSuchTable is returned when a table record does not exist
	ErrNoSuchTable = errors.New("table does not exist")
	// ErrTableExists is returned when creating a table whose id is taken
	ErrTableExists = errors.New("table already exists")
	// ErrVersionConflict is returned by a compare-and-swap whose expected
	// version does not match the stored version. An expected version of 0
	// conflicts with any existing record.
	ErrVersionConflict = errors.New("version conflict")
	// ErrIllegalTransition is returned when an update would move
	// a tablet to a state it cannot reach from its current state
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrRangeOverlap is returned when an update would leave two live
	// tablets of the same table with overlapping partition ranges
	ErrRangeOverlap = errors.New("partition range overlaps a live tablet")
	// ErrInvalidRecord is returned when a record is malformed or an
	// update tries to change an immutable field
	ErrInvalidRecord = errors.New("invalid record")
)

func wrapError(wrap string, err error) error {
	switch err {
	case kv.ErrClosed:
		return ErrClosed
	case ErrClosed:
		fallthrough
	case nil:
		return err
	}

	return fmt.Errorf("%s: %w", wrap, err)
}
