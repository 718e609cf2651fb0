package kv

import (
	"errors"

	"github.com/jrife/tablets/storage/kv/keys"
)

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("store was closed")
	// ErrReadOnly indicates that an update was attempted
	// in a read-only transaction
	ErrReadOnly = errors.New("transaction is read-only")
	// ErrTxDone indicates that the transaction was already
	// committed or rolled back
	ErrTxDone = errors.New("transaction is done")
	// ErrEmptyKey is returned when a caller passes a nil
	// or empty key
	ErrEmptyKey = errors.New("key must not be empty")
	// ErrNilValue is returned when a caller passes a nil value
	ErrNilValue = errors.New("value must not be nil")
)

// SortOrder describes the order in which
// keys are iterated
type SortOrder int

const (
	// SortOrderAsc iterates keys in ascending
	// lexicographical order
	SortOrderAsc SortOrder = iota
	// SortOrderDesc iterates keys in descending
	// lexicographical order
	SortOrderDesc
)

// PluginOptions are driver-specific options passed
// to a plugin when opening a store
type PluginOptions map[string]interface{}

// Plugin represents a kv storage plugin
type Plugin interface {
	// Name returns the name of the storage plugin
	Name() string
	// NewStore returns an instance of the plugin store
	NewStore(options PluginOptions) (Store, error)
	// NewTempStore returns an instance of the plugin store
	// initialized with some sane defaults. It is meant for
	// tests that need an initialized instance of the plugin's
	// store without knowing how to initialize it
	NewTempStore() (Store, error)
}

// Store is a sorted key-value map. Transactions on a store
// are strictly serializable: a transaction that begins after
// another one commits observes its effects. A committed
// read-write transaction must be durable, according to the
// guarantees of the driver, before Commit returns.
//
// Drivers may serialize read-write transactions. Consumers must
// not begin a read-write transaction while holding another
// transaction open on the same goroutine.
type Store interface {
	// Begin starts a transaction. writable should be true
	// for read-write transactions and false for read-only
	// transactions. It returns ErrClosed if the store was
	// closed.
	Begin(writable bool) (Transaction, error)
	// Close closes the store. It must not return until all
	// transactions have either rolled back or committed.
	Close() error
	// Delete closes then deletes this store and all its contents.
	Delete() error
}

// MapUpdater is an interface for updating a sorted
// key-value map
type MapUpdater interface {
	// Put puts a key. Put must return an error
	// if key is nil or empty or if value is nil.
	Put(key, value []byte) error
	// Delete deletes a key. It must return an error if the key
	// is nil or empty. If the key doesn't exist it has no effect
	// and returns nil.
	Delete(key []byte) error
}

// MapReader is an interface for reading a sorted
// key-value map
type MapReader interface {
	// Get gets a key. It must observe updates to that key made
	// previously by this transation. It returns nil if the
	// requested key does not exist. The returned slice is owned
	// by the caller.
	Get(key []byte) ([]byte, error)
	// Keys creates an iterator that iterates over the range
	// of keys
	Keys(keys keys.Range, order SortOrder) (Iterator, error)
}

// Transaction is a transaction for a store. It must only be
// used by one goroutine at a time.
type Transaction interface {
	MapUpdater
	MapReader
	// OnCommit registers a callback that runs after
	// the transaction commits successfully
	OnCommit(cb func())
	// Commit commits the transaction
	Commit() error
	// Rollback rolls back the transaction. Calling Rollback
	// after Commit has no effect.
	Rollback() error
}

// Iterator iterates over a set of keys. It must only be
// used by one goroutine at a time. Consumers should not
// attempt to use an iterator once its parent transaction
// has been rolled back.
type Iterator interface {
	// Next advances the iterator to the next key
	// A fresh iterator must call Next once to
	// advance to the first key. Next returns false
	// if there is no next key or if it encounters an
	// error.
	Next() bool
	// Key returns the current key
	Key() []byte
	// Value returns the current value
	Value() []byte
	// Error returns the error, if any.
	Error() error
}

// Values drains the iterator and returns up to limit values.
// limit < 0 means no limit.
func Values(iter Iterator, limit int) ([][]byte, error) {
	values := [][]byte{}

	for (limit < 0 || len(values) < limit) && iter.Next() {
		values = append(values, iter.Value())
	}

	if iter.Error() != nil {
		return nil, iter.Error()
	}

	return values, nil
}

// CheckPut validates the arguments to Put
func CheckPut(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	if value == nil {
		return ErrNilValue
	}

	return nil
}

// CheckDelete validates the arguments to Delete
func CheckDelete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	return nil
}
