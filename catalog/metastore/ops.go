package metastore

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/storage/kv"
)

// Op is one operation inside a Commit
type Op interface {
	apply(txn *commitTxn) error
	describe() string
}

type commitTxn struct {
	kv      kv.Transaction
	touched map[string]bool
}

type swapOp struct {
	expectedVersion int64
	record          *catalogpb.TabletRecord
}

// Swap writes record if the stored version of the record
// equals expectedVersion. An expectedVersion of 0 means the
// record must not exist yet. The record is written with
// version expectedVersion + 1.
func Swap(expectedVersion int64, record *catalogpb.TabletRecord) Op {
	return &swapOp{expectedVersion: expectedVersion, record: record}
}

func (op *swapOp) describe() string {
	return fmt.Sprintf("swap(%s@%d -> %s)", op.record.GetTabletId(), op.expectedVersion, op.record.GetState())
}

func (op *swapOp) apply(txn *commitTxn) error {
	record := op.record

	if err := validateTablet(record); err != nil {
		return err
	}

	if op.expectedVersion < 0 {
		return fmt.Errorf("%w: expected version must not be negative", ErrInvalidRecord)
	}

	if _, err := getTable(txn.kv, record.TableId); err != nil {
		return err
	}

	raw, err := txn.kv.Get(recordKey(record.TabletId))

	if err != nil {
		return wrapError("could not read tablet record", err)
	}

	if op.expectedVersion == 0 {
		if raw != nil {
			return fmt.Errorf("%w: tablet %s already exists", ErrVersionConflict, record.TabletId)
		}

		if record.State != catalogpb.CREATING && record.State != catalogpb.RUNNING {
			return fmt.Errorf("%w: tablet %s cannot be created in state %s", ErrIllegalTransition, record.TabletId, record.State)
		}
	} else {
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrNoSuchTablet, record.TabletId)
		}

		current, err := decodeTablet(raw)

		if err != nil {
			return err
		}

		if current.Version != op.expectedVersion {
			return fmt.Errorf("%w: tablet %s is at version %d, expected %d", ErrVersionConflict, record.TabletId, current.Version, op.expectedVersion)
		}

		if !current.State.CanTransitionTo(record.State) {
			return fmt.Errorf("%w: tablet %s cannot move from %s to %s", ErrIllegalTransition, record.TabletId, current.State, record.State)
		}

		if current.TableId != record.TableId || !current.PartitionRange.Equal(record.PartitionRange) {
			return fmt.Errorf("%w: table and partition range of tablet %s are immutable", ErrInvalidRecord, record.TabletId)
		}
	}

	stored := record.Clone()
	stored.Version = op.expectedVersion + 1
	encoded, err := proto.Marshal(stored)

	if err != nil {
		return fmt.Errorf("could not encode tablet record %s: %w", record.TabletId, err)
	}

	if err := txn.kv.Put(recordKey(stored.TabletId), encoded); err != nil {
		return wrapError("could not write tablet record", err)
	}

	if err := txn.kv.Put(indexKey(stored.TableId, stored.TabletId), indexValue); err != nil {
		return wrapError("could not write tablet index", err)
	}

	txn.touched[stored.TableId] = true

	return nil
}

type purgeOp struct {
	tabletID        string
	expectedVersion int64
}

// Purge removes a DELETED tablet record if its
// stored version equals expectedVersion
func Purge(tabletID string, expectedVersion int64) Op {
	return &purgeOp{tabletID: tabletID, expectedVersion: expectedVersion}
}

func (op *purgeOp) describe() string {
	return fmt.Sprintf("purge(%s@%d)", op.tabletID, op.expectedVersion)
}

func (op *purgeOp) apply(txn *commitTxn) error {
	current, err := getTablet(txn.kv, op.tabletID)

	if err != nil {
		return err
	}

	if current.Version != op.expectedVersion {
		return fmt.Errorf("%w: tablet %s is at version %d, expected %d", ErrVersionConflict, op.tabletID, current.Version, op.expectedVersion)
	}

	if current.State != catalogpb.DELETED {
		return fmt.Errorf("%w: tablet %s must be %s to be purged, is %s", ErrIllegalTransition, op.tabletID, catalogpb.DELETED, current.State)
	}

	if err := txn.kv.Delete(recordKey(op.tabletID)); err != nil {
		return wrapError("could not delete tablet record", err)
	}

	if err := txn.kv.Delete(indexKey(current.TableId, op.tabletID)); err != nil {
		return wrapError("could not delete tablet index", err)
	}

	return nil
}

type createTableOp struct {
	table *catalogpb.TableRecord
}

// CreateTable creates a table record. It fails with
// ErrTableExists if the table id is taken.
func CreateTable(table *catalogpb.TableRecord) Op {
	return &createTableOp{table: table}
}

func (op *createTableOp) describe() string {
	return fmt.Sprintf("create-table(%s)", op.table.GetTableId())
}

func (op *createTableOp) apply(txn *commitTxn) error {
	if op.table == nil || !validID(op.table.TableId) {
		return fmt.Errorf("%w: table id must be non-empty and must not contain '/'", ErrInvalidRecord)
	}

	if op.table.ReplicationFactor < 1 {
		return fmt.Errorf("%w: replication factor must be at least 1", ErrInvalidRecord)
	}

	raw, err := txn.kv.Get(tableKey(op.table.TableId))

	if err != nil {
		return wrapError("could not read table record", err)
	}

	if raw != nil {
		return fmt.Errorf("%w: %s", ErrTableExists, op.table.TableId)
	}

	encoded, err := proto.Marshal(op.table)

	if err != nil {
		return fmt.Errorf("could not encode table record %s: %w", op.table.TableId, err)
	}

	if err := txn.kv.Put(tableKey(op.table.TableId), encoded); err != nil {
		return wrapError("could not write table record", err)
	}

	return nil
}

func validateTablet(record *catalogpb.TabletRecord) error {
	switch {
	case record == nil:
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	case !validID(record.TabletId):
		return fmt.Errorf("%w: tablet id must be non-empty and must not contain '/'", ErrInvalidRecord)
	case !validID(record.TableId):
		return fmt.Errorf("%w: table id must be non-empty and must not contain '/'", ErrInvalidRecord)
	case !record.PartitionRange.Valid():
		return fmt.Errorf("%w: tablet %s has an empty partition range", ErrInvalidRecord, record.TabletId)
	case !record.State.Valid():
		return fmt.Errorf("%w: tablet %s has unknown state %d", ErrInvalidRecord, record.TabletId, record.State)
	}

	return nil
}

func describe(ops []Op) []string {
	descriptions := make([]string, len(ops))

	for i, op := range ops {
		descriptions[i] = op.describe()
	}

	return descriptions
}
