package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/tablets/catalog"
	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/storage/kv/plugins/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()

	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()

	clock.now = clock.now.Add(d)
}

var servers = []string{"ts-1", "ts-2", "ts-3"}

func newCatalog(t *testing.T) (*catalog.Catalog, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c, err := catalog.New(catalog.Config{
		Store:            metastore.New(memory.New(), nil),
		HeartbeatTimeout: 3 * time.Second,
		Clock:            clock.Now,
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return c, clock
}

// heartbeatAll lets every server start the replicas assigned
// to it and report them RUNNING
func heartbeatAll(t *testing.T, c *catalog.Catalog) {
	ctx := context.Background()

	for _, server := range servers {
		response, err := c.Heartbeat(ctx, &catalogpb.HeartbeatRequest{ServerId: server})

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		reports := []*catalogpb.TabletReport{}

		for _, tablet := range response.TabletsToCreate {
			reports = append(reports, &catalogpb.TabletReport{TabletId: tablet.TabletId, State: catalogpb.RUNNING})
		}

		if _, err := c.Heartbeat(ctx, &catalogpb.HeartbeatRequest{ServerId: server, Reports: reports}); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}
}

func createTable(t *testing.T, c *catalog.Catalog) (*catalogpb.TableRecord, []*catalogpb.TabletRecord) {
	heartbeatAll(t, c)

	table, tablets, err := c.CreateTable(context.Background(), "test", [][]byte{[]byte("g"), []byte("n"), []byte("t")}, 3)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	heartbeatAll(t, c)

	return table, tablets
}

func TestCreateTable(t *testing.T) {
	c, _ := newCatalog(t)
	table, tablets := createTable(t, c)

	if len(tablets) != 4 {
		t.Fatalf("expected 4 tablets, got %d", len(tablets))
	}

	listed, err := c.ListTablets(context.Background(), table.TableId, false)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	bounds := []string{}

	for _, tablet := range listed {
		if tablet.State != catalogpb.RUNNING {
			t.Fatalf("expected tablet %s to be RUNNING, got %s", tablet.TabletId, tablet.State)
		}

		if len(tablet.ReplicaSet) != 3 {
			t.Fatalf("expected 3 replicas, got %v", tablet.ReplicaSet)
		}

		bounds = append(bounds, string(tablet.PartitionRange.Lower)+"-"+string(tablet.PartitionRange.Upper))
	}

	if diff := cmp.Diff([]string{"-g", "g-n", "n-t", "t-"}, bounds); diff != "" {
		t.Fatal(diff)
	}

	testCases := map[string]struct {
		splitPoints       [][]byte
		replicationFactor int
		err               error
	}{
		"unsorted-splits": {
			splitPoints: [][]byte{[]byte("b"), []byte("a")},
			err:         catalog.ErrInvalidArgument,
		},
		"duplicate-splits": {
			splitPoints: [][]byte{[]byte("b"), []byte("b")},
			err:         catalog.ErrInvalidArgument,
		},
		"empty-split": {
			splitPoints: [][]byte{{}},
			err:         catalog.ErrInvalidArgument,
		},
		"too-few-servers": {
			replicationFactor: 4,
			err:               catalog.ErrResourceExhausted,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := c.CreateTable(context.Background(), name, testCase.splitPoints, testCase.replicationFactor); !errors.Is(err, testCase.err) {
				t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
			}
		})
	}

	tables, err := c.ListTables(context.Background())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(tables) != 1 {
		t.Fatalf("expected failed creations to leave one table, got %d", len(tables))
	}
}

func TestReplaceTablet(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	table, tablets := createTable(t, c)
	target := tablets[1]

	newTabletID, err := c.ReplaceTablet(ctx, target.TabletId)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	old, err := c.GetTablet(ctx, target.TabletId)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if old.State != catalogpb.REPLACED || old.SuccessorId != newTabletID {
		t.Fatalf("expected old tablet to be REPLACED by %s, got %s", newTabletID, old)
	}

	successor, err := c.GetTablet(ctx, newTabletID)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if successor.State != catalogpb.CREATING || successor.PredecessorId != target.TabletId || !successor.PartitionRange.Equal(target.PartitionRange) {
		t.Fatalf("expected a CREATING successor of %s over the same range, got %s", target.TabletId, successor)
	}

	if len(successor.ReplicaSet) != 3 {
		t.Fatalf("expected 3 replicas, got %v", successor.ReplicaSet)
	}

	resolved, err := c.ResolveKey(ctx, table.TableId, []byte("h"))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if resolved.TabletId != newTabletID {
		t.Fatalf("expected key to resolve to %s, got %s", newTabletID, resolved.TabletId)
	}

	listed, err := c.ListTablets(ctx, table.TableId, false)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	for _, tablet := range listed {
		if tablet.TabletId == target.TabletId {
			t.Fatalf("expected replaced tablet to be absent from listings")
		}
	}

	if len(listed) != 4 {
		t.Fatalf("expected 4 live tablets, got %d", len(listed))
	}

	// A second request for the same id finds nothing to do
	if _, err := c.ReplaceTablet(ctx, target.TabletId); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected err to be ErrNotFound, got %#v", err)
	}

	status, err := c.ReplacementStatus(ctx, target.TabletId)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if status.Outcome != catalogpb.SUCCEEDED || status.NewTabletId != newTabletID {
		t.Fatalf("expected request to have succeeded with %s, got %s", newTabletID, status)
	}

	// Once its record expires the request falls through to the
	// state machine, which sees the tablet is REPLACED
	c.ExpireRequests(c.Now().Add(time.Second))

	if _, err := c.ReplaceTablet(ctx, target.TabletId); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected err to be ErrNotFound, got %#v", err)
	}

	if _, err := c.ReplacementStatus(ctx, target.TabletId); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected err to be ErrNotFound, got %#v", err)
	}

	// The successor can't be replaced until it runs
	if _, err := c.ReplaceTablet(ctx, newTabletID); !errors.Is(err, catalog.ErrIllegalState) {
		t.Fatalf("expected err to be ErrIllegalState, got %#v", err)
	}

	heartbeatAll(t, c)

	if _, err := c.ReplaceTablet(ctx, newTabletID); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestReplaceTabletFailuresDoNotMutate(t *testing.T) {
	ctx := context.Background()
	c, clock := newCatalog(t)
	table, tablets := createTable(t, c)

	before, err := c.ListTablets(ctx, table.TableId, true)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := c.ReplaceTablet(ctx, "does-not-exist"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected err to be ErrNotFound, got %#v", err)
	}

	if status, err := c.ReplacementStatus(ctx, "does-not-exist"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected err to be ErrNotFound, got %s, %#v", status, err)
	}

	if _, err := c.ReplaceTablet(ctx, ""); !errors.Is(err, catalog.ErrInvalidArgument) {
		t.Fatalf("expected err to be ErrInvalidArgument, got %#v", err)
	}

	// All servers stop heartbeating
	clock.Advance(time.Minute)

	if _, err := c.ReplaceTablet(ctx, tablets[0].TabletId); !errors.Is(err, catalog.ErrResourceExhausted) {
		t.Fatalf("expected err to be ErrResourceExhausted, got %#v", err)
	}

	status, err := c.ReplacementStatus(ctx, tablets[0].TabletId)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if status.Outcome != catalogpb.FAILED {
		t.Fatalf("expected request to have failed, got %s", status)
	}

	after, err := c.ListTablets(ctx, table.TableId, true)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatal(diff)
	}

	// A failed request doesn't block a later one
	heartbeatAll(t, c)

	if _, err := c.ReplaceTablet(ctx, tablets[0].TabletId); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestConcurrentReplaceSameTablet(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	_, tablets := createTable(t, c)

	var wg sync.WaitGroup
	results := make([]string, 16)
	errs := make([]error, 16)

	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i], errs[i] = c.ReplaceTablet(ctx, tablets[2].TabletId)
		}(i)
	}

	wg.Wait()

	successes := map[string]bool{}

	for i, err := range errs {
		if err == nil {
			successes[results[i]] = true

			continue
		}

		if !errors.Is(err, catalog.ErrConflict) && !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("expected err to be ErrConflict or ErrNotFound, got %#v", err)
		}
	}

	if len(successes) != 1 {
		t.Fatalf("expected exactly one replacement, got %d", len(successes))
	}

	successors := 0
	records, err := c.Store().List(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	for _, record := range records {
		if record.PredecessorId == tablets[2].TabletId {
			successors++
		}
	}

	if successors != 1 {
		t.Fatalf("expected exactly one successor, got %d", successors)
	}
}

func TestConcurrentReplaceDifferentTablets(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	table, tablets := createTable(t, c)

	var wg sync.WaitGroup
	errs := make([]error, len(tablets))

	for i, tablet := range tablets {
		wg.Add(1)

		go func(i int, tabletID string) {
			defer wg.Done()

			_, errs[i] = c.ReplaceTablet(ctx, tabletID)
		}(i, tablet.TabletId)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	listed, err := c.ListTablets(ctx, table.TableId, false)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	for i, tablet := range listed {
		if tablet.PredecessorId != tablets[i].TabletId {
			t.Fatalf("expected tablet %d to succeed %s, got %s", i, tablets[i].TabletId, tablet.PredecessorId)
		}
	}
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()
	c, _ := newCatalog(t)
	_, tablets := createTable(t, c)

	newTabletID, err := c.ReplaceTablet(ctx, tablets[0].TabletId)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	reports := []*catalogpb.TabletReport{{TabletId: "unknown", State: catalogpb.RUNNING}}

	for _, tablet := range tablets {
		reports = append(reports, &catalogpb.TabletReport{TabletId: tablet.TabletId, State: catalogpb.RUNNING})
	}

	response, err := c.Heartbeat(ctx, &catalogpb.HeartbeatRequest{ServerId: "ts-1", Reports: reports})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	toDelete := []string{tablets[0].TabletId, "unknown"}

	if toDelete[0] > toDelete[1] {
		toDelete[0], toDelete[1] = toDelete[1], toDelete[0]
	}

	if diff := cmp.Diff(toDelete, response.TabletsToDelete); diff != "" {
		t.Fatal(diff)
	}

	if len(response.TabletsToCreate) != 1 || response.TabletsToCreate[0].TabletId != newTabletID {
		t.Fatalf("expected ts-1 to be told to create %s, got %v", newTabletID, response.TabletsToCreate)
	}

	if _, err := c.Heartbeat(ctx, &catalogpb.HeartbeatRequest{}); !errors.Is(err, catalog.ErrInvalidArgument) {
		t.Fatalf("expected err to be ErrInvalidArgument, got %#v", err)
	}

	live, dead := c.TabletServers().LiveServers(c.Now())

	if diff := cmp.Diff(servers, live); diff != "" {
		t.Fatal(diff)
	}

	if len(dead) != 0 {
		t.Fatalf("expected no dead servers, got %v", dead)
	}
}

func TestResolveKeyUnknownTable(t *testing.T) {
	c, _ := newCatalog(t)

	if _, err := c.ResolveKey(context.Background(), "missing", []byte("a")); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected err to be ErrNotFound, got %#v", err)
	}
}
