package bbolt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jrife/tablets/storage/kv"
	"github.com/jrife/tablets/storage/kv/keys"
	"github.com/jrife/tablets/utils/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	// DriverName is the name of this kv plugin
	DriverName = "bbolt"
)

var rootBucket = []byte{0}

// Plugins returns the kv plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&BBoltPlugin{},
	}
}

// BBoltPlugin is a kv plugin backed by bbolt
type BBoltPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *BBoltPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore
func (plugin *BBoltPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config BBoltStoreConfig

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok {
		return nil, fmt.Errorf("\"path\" must be a string")
	} else {
		config.Path = pathString
	}

	if noSync, ok := options["no_sync"]; ok {
		if noSyncBool, ok := noSync.(bool); !ok {
			return nil, fmt.Errorf("\"no_sync\" must be a bool")
		} else {
			config.NoSync = noSyncBool
		}
	}

	return New(config)
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *BBoltPlugin) NewTempStore() (kv.Store, error) {
	return plugin.NewStore(kv.PluginOptions{
		"path": filepath.Join(os.TempDir(), fmt.Sprintf("bbolt-%s", uuid.MustUUID())),
	})
}

// BBoltStoreConfig configures a bbolt store
type BBoltStoreConfig struct {
	Path   string
	NoSync bool
}

var _ kv.Store = (*BBoltStore)(nil)

// New opens a bbolt store at the configured path,
// creating it if it doesn't exist
func New(config BBoltStoreConfig) (*BBoltStore, error) {
	if dir := filepath.Dir(config.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %s", dir, err)
		}
	}

	db, err := bolt.Open(config.Path, 0666, &bolt.Options{Timeout: time.Second, NoSync: config.NoSync})

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %s", config.Path, err)
	}

	if err := db.Update(func(txn *bolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists(rootBucket)

		return err
	}); err != nil {
		db.Close()

		return nil, fmt.Errorf("could not ensure root bucket exists: %s", err)
	}

	return &BBoltStore{db: db}, nil
}

// BBoltStore implements kv.Store
type BBoltStore struct {
	db *bolt.DB
}

// Begin implements kv.Store.Begin
func (store *BBoltStore) Begin(writable bool) (kv.Transaction, error) {
	transaction, err := store.db.Begin(writable)

	if err == bolt.ErrDatabaseNotOpen {
		return nil, kv.ErrClosed
	} else if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %s", err)
	}

	return &BBoltTransaction{transaction: transaction, writable: writable}, nil
}

// Close implements kv.Store.Close
func (store *BBoltStore) Close() error {
	return store.db.Close()
}

// Delete implements kv.Store.Delete
func (store *BBoltStore) Delete() error {
	path := store.db.Path()

	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %s", err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("could not remove path %s: %s", path, err)
	}

	return nil
}

var _ kv.Transaction = (*BBoltTransaction)(nil)

// BBoltTransaction implements kv.Transaction
type BBoltTransaction struct {
	transaction *bolt.Tx
	writable    bool
}

func (transaction *BBoltTransaction) bucket() *bolt.Bucket {
	return transaction.transaction.Bucket(rootBucket)
}

// Get implements kv.Transaction.Get
func (transaction *BBoltTransaction) Get(key []byte) ([]byte, error) {
	if transaction.transaction.DB() == nil {
		return nil, kv.ErrTxDone
	}

	value := transaction.bucket().Get(key)

	if value == nil {
		return nil, nil
	}

	return copyBytes(value), nil
}

// Put implements kv.Transaction.Put
func (transaction *BBoltTransaction) Put(key []byte, value []byte) error {
	if err := kv.CheckPut(key, value); err != nil {
		return err
	}

	if !transaction.writable {
		return kv.ErrReadOnly
	}

	if transaction.transaction.DB() == nil {
		return kv.ErrTxDone
	}

	return transaction.bucket().Put(key, value)
}

// Delete implements kv.Transaction.Delete
func (transaction *BBoltTransaction) Delete(key []byte) error {
	if err := kv.CheckDelete(key); err != nil {
		return err
	}

	if !transaction.writable {
		return kv.ErrReadOnly
	}

	if transaction.transaction.DB() == nil {
		return kv.ErrTxDone
	}

	return transaction.bucket().Delete(key)
}

// Keys implements kv.Transaction.Keys
func (transaction *BBoltTransaction) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	if transaction.transaction.DB() == nil {
		return nil, kv.ErrTxDone
	}

	return &BBoltIterator{
		cursor: transaction.bucket().Cursor(),
		keys:   keys,
		order:  order,
	}, nil
}

// OnCommit implements kv.Transaction.OnCommit
func (transaction *BBoltTransaction) OnCommit(cb func()) {
	transaction.transaction.OnCommit(cb)
}

// Commit implements kv.Transaction.Commit
func (transaction *BBoltTransaction) Commit() error {
	if !transaction.writable {
		return transaction.Rollback()
	}

	if err := transaction.transaction.Commit(); err == bolt.ErrTxClosed {
		return kv.ErrTxDone
	} else if err != nil {
		return err
	}

	return nil
}

// Rollback implements kv.Transaction.Rollback
func (transaction *BBoltTransaction) Rollback() error {
	if err := transaction.transaction.Rollback(); err != nil && err != bolt.ErrTxClosed {
		return err
	}

	return nil
}

var _ kv.Iterator = (*BBoltIterator)(nil)

// BBoltIterator implements kv.Iterator on top
// of a bbolt cursor
type BBoltIterator struct {
	cursor  *bolt.Cursor
	keys    keys.Range
	order   kv.SortOrder
	started bool
	done    bool
	key     []byte
	value   []byte
}

func (iter *BBoltIterator) first() ([]byte, []byte) {
	if iter.order == kv.SortOrderDesc {
		if iter.keys.Max == nil {
			return iter.cursor.Last()
		}

		// Max is exclusive so the first key in
		// descending order comes before it
		if k, _ := iter.cursor.Seek(iter.keys.Max); k == nil {
			return iter.cursor.Last()
		}

		return iter.cursor.Prev()
	}

	if iter.keys.Min == nil {
		return iter.cursor.First()
	}

	return iter.cursor.Seek(iter.keys.Min)
}

func (iter *BBoltIterator) next() ([]byte, []byte) {
	if iter.order == kv.SortOrderDesc {
		return iter.cursor.Prev()
	}

	return iter.cursor.Next()
}

func (iter *BBoltIterator) inRange(k []byte) bool {
	if iter.keys.Min != nil && bytes.Compare(k, iter.keys.Min) < 0 {
		return false
	}

	if iter.keys.Max != nil && bytes.Compare(k, iter.keys.Max) >= 0 {
		return false
	}

	return true
}

// Next implements kv.Iterator.Next
func (iter *BBoltIterator) Next() bool {
	if iter.done {
		return false
	}

	var k, v []byte

	if !iter.started {
		iter.started = true
		k, v = iter.first()
	} else {
		k, v = iter.next()
	}

	// Nested buckets have nil values. None are created
	// by this driver but skip them regardless.
	for k != nil && v == nil {
		k, v = iter.next()
	}

	if k == nil || !iter.inRange(k) {
		iter.done = true
		iter.key = nil
		iter.value = nil

		return false
	}

	iter.key = copyBytes(k)
	iter.value = copyBytes(v)

	return true
}

// Key implements kv.Iterator.Key
func (iter *BBoltIterator) Key() []byte {
	return iter.key
}

// Value implements kv.Iterator.Value
func (iter *BBoltIterator) Value() []byte {
	return iter.value
}

// Error implements kv.Iterator.Error
func (iter *BBoltIterator) Error() error {
	return nil
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)

	return c
}
