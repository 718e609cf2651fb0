// Package metastore implements the tablet metadata store: the
// authoritative, versioned record of every table and tablet. Every
// mutation is a compare-and-swap on a record's version and is durable,
// according to the guarantees of the kv driver, before it is visible.
package metastore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gogo/protobuf/proto"
	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/storage/kv"
	"github.com/jrife/tablets/storage/kv/keys"
	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
)

var (
	recordsPrefix = []byte("r/")
	indexPrefix   = []byte("t/")
	tablesPrefix  = []byte("m/")
	indexValue    = []byte{1}
)

func recordKey(tabletID string) []byte {
	return keys.Join(recordsPrefix, []byte(tabletID))
}

func indexKey(tableID string, tabletID string) []byte {
	return keys.Join(indexPrefix, []byte(tableID), []byte("/"), []byte(tabletID))
}

func indexRange(tableID string) keys.Range {
	return keys.All().Prefix(keys.Join(indexPrefix, []byte(tableID), []byte("/")))
}

func tableKey(tableID string) []byte {
	return keys.Join(tablesPrefix, []byte(tableID))
}

// Store is the tablet metadata store. It is safe for
// concurrent use. Readers see committed state only.
type Store struct {
	kv     kv.Store
	logger *zap.Logger
}

// New creates a metadata store on top of a kv store
func New(store kv.Store, logger *zap.Logger) *Store {
	return &Store{
		kv:     store,
		logger: log.OrNop(logger).With(zap.String("component", "metastore")),
	}
}

// Close closes the underlying kv store
func (store *Store) Close() error {
	return wrapError("could not close kv store", store.kv.Close())
}

// Get returns the tablet record with this id
func (store *Store) Get(ctx context.Context, tabletID string) (*catalogpb.TabletRecord, error) {
	var record *catalogpb.TabletRecord

	err := store.read(ctx, func(transaction kv.Transaction) error {
		var err error

		record, err = getTablet(transaction, tabletID)

		return err
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

// CompareAndSwap replaces the record for tabletID if its stored version
// equals expectedVersion. An expectedVersion of 0 creates the record and
// fails if it already exists. The stored record, whose version is
// expectedVersion + 1, is returned.
func (store *Store) CompareAndSwap(ctx context.Context, tabletID string, expectedVersion int64, record *catalogpb.TabletRecord) (*catalogpb.TabletRecord, error) {
	if record == nil || record.TabletId != tabletID {
		return nil, fmt.Errorf("%w: record does not match tablet id %s", ErrInvalidRecord, tabletID)
	}

	if err := store.Commit(ctx, Swap(expectedVersion, record)); err != nil {
		return nil, err
	}

	stored := record.Clone()
	stored.Version = expectedVersion + 1

	return stored, nil
}

// Commit applies all the operations in a single transaction.
// Either all of them take effect or none do.
func (store *Store) Commit(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	transaction, err := store.kv.Begin(true)

	if err != nil {
		return wrapError("could not begin transaction", err)
	}

	defer transaction.Rollback()

	txn := &commitTxn{kv: transaction, touched: map[string]bool{}}

	for _, op := range ops {
		if err := op.apply(txn); err != nil {
			return err
		}
	}

	for tableID := range txn.touched {
		if err := checkOverlaps(transaction, tableID); err != nil {
			return err
		}
	}

	if err := transaction.Commit(); err != nil {
		return wrapError("could not commit transaction", err)
	}

	if ce := store.logger.Check(zap.DebugLevel, "committed metadata"); ce != nil {
		ce.Write(zap.Strings("ops", describe(ops)))
	}

	return nil
}

// ListByTable returns every tablet record of a table,
// ordered by partition lower bound then tablet id
func (store *Store) ListByTable(ctx context.Context, tableID string) ([]*catalogpb.TabletRecord, error) {
	var records []*catalogpb.TabletRecord

	err := store.read(ctx, func(transaction kv.Transaction) error {
		var err error

		records, err = listByTable(transaction, tableID)

		return err
	})

	if err != nil {
		return nil, err
	}

	return records, nil
}

// List returns every tablet record in the store ordered
// by table id, partition lower bound then tablet id
func (store *Store) List(ctx context.Context) ([]*catalogpb.TabletRecord, error) {
	records := []*catalogpb.TabletRecord{}

	err := store.read(ctx, func(transaction kv.Transaction) error {
		iter, err := transaction.Keys(keys.All().Prefix(recordsPrefix), kv.SortOrderAsc)

		if err != nil {
			return err
		}

		for iter.Next() {
			record, err := decodeTablet(iter.Value())

			if err != nil {
				return err
			}

			records = append(records, record)
		}

		return iter.Error()
	})

	if err != nil {
		return nil, wrapError("could not list tablets", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].TableId != records[j].TableId {
			return records[i].TableId < records[j].TableId
		}

		return lessRecord(records[i], records[j])
	})

	return records, nil
}

// Purge removes the record of a DELETED tablet
func (store *Store) Purge(ctx context.Context, tabletID string, expectedVersion int64) error {
	return store.Commit(ctx, Purge(tabletID, expectedVersion))
}

// PutTable creates a table record
func (store *Store) PutTable(ctx context.Context, table *catalogpb.TableRecord) error {
	return store.Commit(ctx, CreateTable(table))
}

// GetTable returns the table record with this id
func (store *Store) GetTable(ctx context.Context, tableID string) (*catalogpb.TableRecord, error) {
	var table *catalogpb.TableRecord

	err := store.read(ctx, func(transaction kv.Transaction) error {
		var err error

		table, err = getTable(transaction, tableID)

		return err
	})

	if err != nil {
		return nil, err
	}

	return table, nil
}

// ListTables returns all table records ordered by id
func (store *Store) ListTables(ctx context.Context) ([]*catalogpb.TableRecord, error) {
	tables := []*catalogpb.TableRecord{}

	err := store.read(ctx, func(transaction kv.Transaction) error {
		iter, err := transaction.Keys(keys.All().Prefix(tablesPrefix), kv.SortOrderAsc)

		if err != nil {
			return err
		}

		for iter.Next() {
			var table catalogpb.TableRecord

			if err := proto.Unmarshal(iter.Value(), &table); err != nil {
				return fmt.Errorf("could not decode table record %s: %w", iter.Key(), err)
			}

			tables = append(tables, &table)
		}

		return iter.Error()
	})

	if err != nil {
		return nil, wrapError("could not list tables", err)
	}

	return tables, nil
}

func (store *Store) read(ctx context.Context, fn func(transaction kv.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	transaction, err := store.kv.Begin(false)

	if err != nil {
		return wrapError("could not begin transaction", err)
	}

	defer transaction.Rollback()

	return fn(transaction)
}

func getTablet(transaction kv.Transaction, tabletID string) (*catalogpb.TabletRecord, error) {
	raw, err := transaction.Get(recordKey(tabletID))

	if err != nil {
		return nil, wrapError("could not read tablet record", err)
	}

	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTablet, tabletID)
	}

	return decodeTablet(raw)
}

func getTable(transaction kv.Transaction, tableID string) (*catalogpb.TableRecord, error) {
	raw, err := transaction.Get(tableKey(tableID))

	if err != nil {
		return nil, wrapError("could not read table record", err)
	}

	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, tableID)
	}

	var table catalogpb.TableRecord

	if err := proto.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("could not decode table record %s: %w", tableID, err)
	}

	return &table, nil
}

func listByTable(transaction kv.Transaction, tableID string) ([]*catalogpb.TabletRecord, error) {
	iter, err := transaction.Keys(indexRange(tableID), kv.SortOrderAsc)

	if err != nil {
		return nil, wrapError("could not scan tablet index", err)
	}

	prefixLength := len(indexPrefix) + len(tableID) + 1
	records := []*catalogpb.TabletRecord{}

	for iter.Next() {
		record, err := getTablet(transaction, string(iter.Key()[prefixLength:]))

		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	if iter.Error() != nil {
		return nil, wrapError("could not scan tablet index", iter.Error())
	}

	sort.Slice(records, func(i, j int) bool { return lessRecord(records[i], records[j]) })

	return records, nil
}

// checkOverlaps makes sure no two live tablets of a
// table cover overlapping partition ranges
func checkOverlaps(transaction kv.Transaction, tableID string) error {
	records, err := listByTable(transaction, tableID)

	if err != nil {
		return err
	}

	var previous *catalogpb.TabletRecord

	for _, record := range records {
		if !record.Live() {
			continue
		}

		if previous != nil && previous.PartitionRange.Overlaps(record.PartitionRange) {
			return fmt.Errorf("%w: tablets %s and %s", ErrRangeOverlap, previous.TabletId, record.TabletId)
		}

		if previous == nil || len(record.PartitionRange.Upper) == 0 || (len(previous.PartitionRange.Upper) != 0 && bytes.Compare(record.PartitionRange.Upper, previous.PartitionRange.Upper) > 0) {
			previous = record
		}
	}

	return nil
}

func lessRecord(a, b *catalogpb.TabletRecord) bool {
	if c := bytes.Compare(a.PartitionRange.Lower, b.PartitionRange.Lower); c != 0 {
		return c < 0
	}

	return a.TabletId < b.TabletId
}

func decodeTablet(raw []byte) (*catalogpb.TabletRecord, error) {
	var record catalogpb.TabletRecord

	if err := proto.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("could not decode tablet record: %w", err)
	}

	if record.PartitionRange == nil {
		record.PartitionRange = &catalogpb.PartitionRange{}
	}

	return &record, nil
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}
