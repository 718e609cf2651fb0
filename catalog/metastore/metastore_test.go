package metastore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/storage/kv"
	"github.com/jrife/tablets/storage/kv/plugins"
)

func tablet(id string, lower, upper string, state catalogpb.TabletState) *catalogpb.TabletRecord {
	r := &catalogpb.PartitionRange{}

	if lower != "" {
		r.Lower = []byte(lower)
	}

	if upper != "" {
		r.Upper = []byte(upper)
	}

	return &catalogpb.TabletRecord{
		TabletId:       id,
		TableId:        "table",
		PartitionRange: r,
		State:          state,
		ReplicaSet:     []string{"ts-1", "ts-2", "ts-3"},
	}
}

func newStore(t *testing.T, plugin kv.Plugin) (*metastore.Store, func()) {
	kvStore, err := plugin.NewTempStore()

	if err != nil {
		t.Fatalf("could not create %s store: %s", plugin.Name(), err)
	}

	store := metastore.New(kvStore, nil)

	if err := store.PutTable(context.Background(), &catalogpb.TableRecord{TableId: "table", Name: "t", ReplicationFactor: 3}); err != nil {
		kvStore.Delete()
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return store, func() { kvStore.Delete() }
}

func ids(records []*catalogpb.TabletRecord) []string {
	result := []string{}

	for _, record := range records {
		result = append(result, record.TabletId)
	}

	return result
}

func TestMetastore(t *testing.T) {
	for _, plugin := range plugins.Plugins() {
		plugin := plugin

		t.Run(plugin.Name(), func(t *testing.T) {
			t.Run("compare-and-swap", func(t *testing.T) { testCompareAndSwap(t, plugin) })
			t.Run("commit", func(t *testing.T) { testCommit(t, plugin) })
			t.Run("purge", func(t *testing.T) { testPurge(t, plugin) })
			t.Run("tables", func(t *testing.T) { testTables(t, plugin) })
		})
	}
}

func testCompareAndSwap(t *testing.T, plugin kv.Plugin) {
	ctx := context.Background()
	store, cleanup := newStore(t, plugin)
	defer cleanup()

	created, err := store.CompareAndSwap(ctx, "a", 0, tablet("a", "", "m", catalogpb.CREATING))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	read, err := store.Get(ctx, "a")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(created, read, cmpopts.EquateEmpty()); diff != "" {
		t.Fatal(diff)
	}

	testCases := map[string]struct {
		expectedVersion int64
		record          *catalogpb.TabletRecord
		err             error
	}{
		"create-existing": {
			expectedVersion: 0,
			record:          tablet("a", "", "m", catalogpb.CREATING),
			err:             metastore.ErrVersionConflict,
		},
		"stale-version": {
			expectedVersion: 7,
			record:          tablet("a", "", "m", catalogpb.RUNNING),
			err:             metastore.ErrVersionConflict,
		},
		"missing": {
			expectedVersion: 1,
			record:          tablet("b", "m", "", catalogpb.RUNNING),
			err:             metastore.ErrNoSuchTablet,
		},
		"create-in-terminal-state": {
			expectedVersion: 0,
			record:          tablet("c", "m", "", catalogpb.REPLACED),
			err:             metastore.ErrIllegalTransition,
		},
		"overlapping-live-range": {
			expectedVersion: 0,
			record:          tablet("d", "a", "z", catalogpb.CREATING),
			err:             metastore.ErrRangeOverlap,
		},
		"empty-range": {
			expectedVersion: 0,
			record:          tablet("e", "q", "q", catalogpb.CREATING),
			err:             metastore.ErrInvalidRecord,
		},
		"unknown-table": {
			expectedVersion: 0,
			record: &catalogpb.TabletRecord{
				TabletId:       "f",
				TableId:        "nope",
				PartitionRange: &catalogpb.PartitionRange{},
			},
			err: metastore.ErrNoSuchTable,
		},
	}

	// None of these may mutate the store
	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := store.CompareAndSwap(ctx, testCase.record.TabletId, testCase.expectedVersion, testCase.record)

			if !errors.Is(err, testCase.err) {
				t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
			}

			after, err := store.Get(ctx, "a")

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(created, after, cmpopts.EquateEmpty()); diff != "" {
				t.Fatal(diff)
			}
		})
	}

	running := created.Clone()
	running.State = catalogpb.RUNNING

	if _, err := store.CompareAndSwap(ctx, "a", 1, running); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	creating := created.Clone()
	creating.State = catalogpb.CREATING

	if _, err := store.CompareAndSwap(ctx, "a", 2, creating); !errors.Is(err, metastore.ErrIllegalTransition) {
		t.Fatalf("expected err to be ErrIllegalTransition, got %#v", err)
	}

	moved := running.Clone()
	moved.PartitionRange = &catalogpb.PartitionRange{Upper: []byte("n")}

	if _, err := store.CompareAndSwap(ctx, "a", 2, moved); !errors.Is(err, metastore.ErrInvalidRecord) {
		t.Fatalf("expected err to be ErrInvalidRecord, got %#v", err)
	}

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, metastore.ErrNoSuchTablet) {
		t.Fatalf("expected err to be ErrNoSuchTablet, got %#v", err)
	}
}

func testCommit(t *testing.T, plugin kv.Plugin) {
	ctx := context.Background()
	store, cleanup := newStore(t, plugin)
	defer cleanup()

	for _, record := range []*catalogpb.TabletRecord{
		tablet("a", "", "g", catalogpb.RUNNING),
		tablet("b", "g", "p", catalogpb.RUNNING),
		tablet("c", "p", "", catalogpb.RUNNING),
	} {
		if _, err := store.CompareAndSwap(ctx, record.TabletId, 0, record); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	// A failing operation aborts the whole commit
	replaced := tablet("b", "g", "p", catalogpb.REPLACED)
	replaced.SuccessorId = "b2"
	successor := tablet("b2", "g", "p", catalogpb.CREATING)
	successor.PredecessorId = "b"

	err := store.Commit(ctx, metastore.Swap(1, replaced), metastore.Swap(0, successor), metastore.Swap(5, tablet("c", "p", "", catalogpb.DELETED)))

	if !errors.Is(err, metastore.ErrVersionConflict) {
		t.Fatalf("expected err to be ErrVersionConflict, got %#v", err)
	}

	records, err := store.ListByTable(ctx, "table")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(records)); diff != "" {
		t.Fatal(diff)
	}

	// Creating the successor without retiring the original overlaps
	if err := store.Commit(ctx, metastore.Swap(0, successor)); !errors.Is(err, metastore.ErrRangeOverlap) {
		t.Fatalf("expected err to be ErrRangeOverlap, got %#v", err)
	}

	if err := store.Commit(ctx, metastore.Swap(1, replaced), metastore.Swap(0, successor)); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	records, err = store.ListByTable(ctx, "table")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]string{"a", "b", "b2", "c"}, ids(records)); diff != "" {
		t.Fatal(diff)
	}

	old, err := store.Get(ctx, "b")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if old.State != catalogpb.REPLACED || old.Version != 2 || old.SuccessorId != "b2" {
		t.Fatalf("expected b to be REPLACED at version 2 with successor b2, got %s", old)
	}

	all, err := store.List(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]string{"a", "b", "b2", "c"}, ids(all)); diff != "" {
		t.Fatal(diff)
	}
}

func testPurge(t *testing.T, plugin kv.Plugin) {
	ctx := context.Background()
	store, cleanup := newStore(t, plugin)
	defer cleanup()

	record, err := store.CompareAndSwap(ctx, "a", 0, tablet("a", "", "", catalogpb.RUNNING))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := store.Purge(ctx, "a", record.Version); !errors.Is(err, metastore.ErrIllegalTransition) {
		t.Fatalf("expected err to be ErrIllegalTransition, got %#v", err)
	}

	deleted := record.Clone()
	deleted.State = catalogpb.DELETED

	if deleted, err = store.CompareAndSwap(ctx, "a", record.Version, deleted); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := store.Purge(ctx, "a", record.Version); !errors.Is(err, metastore.ErrVersionConflict) {
		t.Fatalf("expected err to be ErrVersionConflict, got %#v", err)
	}

	if err := store.Purge(ctx, "a", deleted.Version); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := store.Get(ctx, "a"); !errors.Is(err, metastore.ErrNoSuchTablet) {
		t.Fatalf("expected err to be ErrNoSuchTablet, got %#v", err)
	}

	records, err := store.ListByTable(ctx, "table")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(records) != 0 {
		t.Fatalf("expected no records, got %v", ids(records))
	}
}

func testTables(t *testing.T, plugin kv.Plugin) {
	ctx := context.Background()
	store, cleanup := newStore(t, plugin)
	defer cleanup()

	if err := store.PutTable(ctx, &catalogpb.TableRecord{TableId: "table", ReplicationFactor: 3}); !errors.Is(err, metastore.ErrTableExists) {
		t.Fatalf("expected err to be ErrTableExists, got %#v", err)
	}

	if err := store.PutTable(ctx, &catalogpb.TableRecord{TableId: "other", ReplicationFactor: 0}); !errors.Is(err, metastore.ErrInvalidRecord) {
		t.Fatalf("expected err to be ErrInvalidRecord, got %#v", err)
	}

	if err := store.PutTable(ctx, &catalogpb.TableRecord{TableId: "other", Name: "o", ReplicationFactor: 1}); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	table, err := store.GetTable(ctx, "other")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if table.Name != "o" || table.ReplicationFactor != 1 {
		t.Fatalf("expected table other, got %s", table)
	}

	if _, err := store.GetTable(ctx, "missing"); !errors.Is(err, metastore.ErrNoSuchTable) {
		t.Fatalf("expected err to be ErrNoSuchTable, got %#v", err)
	}

	tables, err := store.ListTables(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(tables) != 2 || tables[0].TableId != "other" || tables[1].TableId != "table" {
		t.Fatalf("expected tables other and table, got %v", tables)
	}
}
