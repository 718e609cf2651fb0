package memory

import (
	"sort"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/jrife/tablets/storage/kv"
	"github.com/jrife/tablets/storage/kv/keys"
)

const (
	// DriverName is the name of this kv plugin
	DriverName = "memory"
)

// Plugins returns the kv plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&MemoryPlugin{},
	}
}

// MemoryPlugin is a kv plugin whose stores
// live only in memory
type MemoryPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *MemoryPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore
func (plugin *MemoryPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	return New(), nil
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *MemoryPlugin) NewTempStore() (kv.Store, error) {
	return New(), nil
}

var _ kv.Store = (*MemoryStore)(nil)

// MemoryStore is an ordered in-memory store. Read-write
// transactions are serialized by writerMu and buffer their
// writes until commit. Commit applies the buffer while holding
// mu exclusively, so read-only transactions, which hold mu in
// shared mode for their lifetime, never see a partial commit.
type MemoryStore struct {
	writerMu sync.Mutex
	mu       sync.RWMutex
	data     *treemap.Map
	closed   bool
}

// New creates an empty memory store
func New() *MemoryStore {
	return &MemoryStore{data: treemap.NewWith(utils.StringComparator)}
}

// Begin implements kv.Store.Begin
func (store *MemoryStore) Begin(writable bool) (kv.Transaction, error) {
	if writable {
		store.writerMu.Lock()
	} else {
		store.mu.RLock()
	}

	if store.isClosed(writable) {
		if writable {
			store.writerMu.Unlock()
		} else {
			store.mu.RUnlock()
		}

		return nil, kv.ErrClosed
	}

	return &MemoryTransaction{
		store:    store,
		writable: writable,
		pending:  map[string][]byte{},
	}, nil
}

func (store *MemoryStore) isClosed(writable bool) bool {
	if writable {
		store.mu.RLock()
		defer store.mu.RUnlock()
	}

	return store.closed
}

// Close implements kv.Store.Close
func (store *MemoryStore) Close() error {
	store.writerMu.Lock()
	defer store.writerMu.Unlock()
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true

	return nil
}

// Delete implements kv.Store.Delete
func (store *MemoryStore) Delete() error {
	if err := store.Close(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	store.data.Clear()

	return nil
}

var _ kv.Transaction = (*MemoryTransaction)(nil)

// MemoryTransaction implements kv.Transaction. A nil
// value in pending marks a deleted key.
type MemoryTransaction struct {
	store    *MemoryStore
	writable bool
	done     bool
	pending  map[string][]byte
	onCommit []func()
}

// get reads a key from the committed state. Writable
// transactions don't hold mu so they take it briefly.
func (transaction *MemoryTransaction) get(key string) ([]byte, bool) {
	if transaction.writable {
		transaction.store.mu.RLock()
		defer transaction.store.mu.RUnlock()
	}

	value, ok := transaction.store.data.Get(key)

	if !ok {
		return nil, false
	}

	return value.([]byte), true
}

// Get implements kv.Transaction.Get
func (transaction *MemoryTransaction) Get(key []byte) ([]byte, error) {
	if transaction.done {
		return nil, kv.ErrTxDone
	}

	if value, ok := transaction.pending[string(key)]; ok {
		return copyBytes(value), nil
	}

	value, ok := transaction.get(string(key))

	if !ok {
		return nil, nil
	}

	return copyBytes(value), nil
}

// Put implements kv.Transaction.Put
func (transaction *MemoryTransaction) Put(key []byte, value []byte) error {
	if err := kv.CheckPut(key, value); err != nil {
		return err
	}

	if !transaction.writable {
		return kv.ErrReadOnly
	}

	if transaction.done {
		return kv.ErrTxDone
	}

	transaction.pending[string(key)] = copyBytes(value)

	return nil
}

// Delete implements kv.Transaction.Delete
func (transaction *MemoryTransaction) Delete(key []byte) error {
	if err := kv.CheckDelete(key); err != nil {
		return err
	}

	if !transaction.writable {
		return kv.ErrReadOnly
	}

	if transaction.done {
		return kv.ErrTxDone
	}

	transaction.pending[string(key)] = nil

	return nil
}

// Keys implements kv.Transaction.Keys. The iterator is
// materialized up front so it remains valid even if the
// transaction writes to the keys it covers.
func (transaction *MemoryTransaction) Keys(r keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	if transaction.done {
		return nil, kv.ErrTxDone
	}

	merged := map[string][]byte{}

	transaction.scan(r, func(key string, value []byte) {
		merged[key] = value
	})

	for key, value := range transaction.pending {
		if !r.Contains([]byte(key)) {
			continue
		}

		if value == nil {
			delete(merged, key)
		} else {
			merged[key] = value
		}
	}

	sortedKeys := make([]string, 0, len(merged))

	for key := range merged {
		sortedKeys = append(sortedKeys, key)
	}

	if order == kv.SortOrderDesc {
		sort.Sort(sort.Reverse(sort.StringSlice(sortedKeys)))
	} else {
		sort.Strings(sortedKeys)
	}

	iter := &MemoryIterator{pos: -1}

	for _, key := range sortedKeys {
		iter.keys = append(iter.keys, []byte(key))
		iter.values = append(iter.values, copyBytes(merged[key]))
	}

	return iter, nil
}

func (transaction *MemoryTransaction) scan(r keys.Range, fn func(key string, value []byte)) {
	if transaction.writable {
		transaction.store.mu.RLock()
		defer transaction.store.mu.RUnlock()
	}

	iter := transaction.store.data.Iterator()

	for iter.Next() {
		key := iter.Key().(string)

		if r.Max != nil && key >= string(r.Max) {
			break
		}

		if !r.Contains([]byte(key)) {
			continue
		}

		fn(key, iter.Value().([]byte))
	}
}

// OnCommit implements kv.Transaction.OnCommit
func (transaction *MemoryTransaction) OnCommit(cb func()) {
	transaction.onCommit = append(transaction.onCommit, cb)
}

// Commit implements kv.Transaction.Commit
func (transaction *MemoryTransaction) Commit() error {
	if transaction.done {
		return kv.ErrTxDone
	}

	if !transaction.writable {
		return transaction.Rollback()
	}

	transaction.store.mu.Lock()

	if transaction.store.closed {
		transaction.store.mu.Unlock()
		transaction.finish()

		return kv.ErrClosed
	}

	for key, value := range transaction.pending {
		if value == nil {
			transaction.store.data.Remove(key)
		} else {
			transaction.store.data.Put(key, value)
		}
	}

	transaction.store.mu.Unlock()
	transaction.finish()

	for _, cb := range transaction.onCommit {
		cb()
	}

	return nil
}

// Rollback implements kv.Transaction.Rollback
func (transaction *MemoryTransaction) Rollback() error {
	if transaction.done {
		return nil
	}

	transaction.finish()

	return nil
}

func (transaction *MemoryTransaction) finish() {
	transaction.done = true
	transaction.pending = nil

	if transaction.writable {
		transaction.store.writerMu.Unlock()
	} else {
		transaction.store.mu.RUnlock()
	}
}

var _ kv.Iterator = (*MemoryIterator)(nil)

// MemoryIterator implements kv.Iterator over
// a materialized set of keys
type MemoryIterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
}

// Next implements kv.Iterator.Next
func (iter *MemoryIterator) Next() bool {
	if iter.pos+1 >= len(iter.keys) {
		iter.pos = len(iter.keys)

		return false
	}

	iter.pos++

	return true
}

// Key implements kv.Iterator.Key
func (iter *MemoryIterator) Key() []byte {
	if iter.pos < 0 || iter.pos >= len(iter.keys) {
		return nil
	}

	return iter.keys[iter.pos]
}

// Value implements kv.Iterator.Value
func (iter *MemoryIterator) Value() []byte {
	if iter.pos < 0 || iter.pos >= len(iter.values) {
		return nil
	}

	return iter.values[iter.pos]
}

// Error implements kv.Iterator.Error
func (iter *MemoryIterator) Error() error {
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)

	return c
}
