package tserver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/tablets/catalog"
	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/catalog/metastore"
	"github.com/jrife/tablets/storage/kv/plugins/memory"
	"github.com/jrife/tablets/tserver"
)

func TestServer(t *testing.T) {
	ctx := context.Background()
	server := tserver.New("ts-1", nil)
	record := &catalogpb.TabletRecord{
		TabletId:       "a",
		TableId:        "table",
		PartitionRange: &catalogpb.PartitionRange{Lower: []byte("b"), Upper: []byte("m")},
	}

	if err := server.CreateTablet(record); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	testCases := map[string]struct {
		tabletID string
		key      string
		err      error
	}{
		"in-range":     {tabletID: "a", key: "c"},
		"lower-bound":  {tabletID: "a", key: "b"},
		"upper-bound":  {tabletID: "a", key: "m", err: tserver.ErrKeyOutOfRange},
		"below-range":  {tabletID: "a", key: "a", err: tserver.ErrKeyOutOfRange},
		"unknown":      {tabletID: "z", key: "c", err: tserver.ErrTabletNotFound},
		"another-key":  {tabletID: "a", key: "d"},
		"rewrite-same": {tabletID: "a", key: "c"},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if err := server.Write(ctx, testCase.tabletID, []byte(testCase.key), []byte("v")); !errors.Is(err, testCase.err) {
				t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
			}
		})
	}

	count, err := server.Count("a")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if count != 3 {
		t.Fatalf("expected 3 rows, got %d", count)
	}

	value, err := server.Read(ctx, "a", []byte("c"))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if string(value) != "v" {
		t.Fatalf("expected value v, got %q", value)
	}

	if diff := cmp.Diff([]*catalogpb.TabletReport{{TabletId: "a", State: catalogpb.RUNNING}}, server.Tablets()); diff != "" {
		t.Fatal(diff)
	}

	if err := server.DeleteTablet("a"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := server.Write(ctx, "a", []byte("c"), []byte("v")); !errors.Is(err, tserver.ErrTabletNotFound) {
		t.Fatalf("expected err to be ErrTabletNotFound, got %#v", err)
	}

	if _, err := server.Count("a"); !errors.Is(err, tserver.ErrTabletNotFound) {
		t.Fatalf("expected err to be ErrTabletNotFound, got %#v", err)
	}

	server.Stop()

	if err := server.CreateTablet(record); !errors.Is(err, tserver.ErrServerStopped) {
		t.Fatalf("expected err to be ErrServerStopped, got %#v", err)
	}
}

func TestHeartbeater(t *testing.T) {
	ctx := context.Background()
	c, err := catalog.New(catalog.Config{Store: metastore.New(memory.New(), nil), ReplicationFactor: 1})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	server := tserver.New("ts-1", nil)
	heartbeater := &tserver.Heartbeater{Server: server, Catalog: c}

	if err := heartbeater.Beat(ctx); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	table, tablets, err := c.CreateTable(ctx, "test", [][]byte{[]byte("m")}, 0)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := heartbeater.Beat(ctx); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(server.Tablets()) != 2 {
		t.Fatalf("expected 2 replicas, got %v", server.Tablets())
	}

	listed, err := c.ListTablets(ctx, table.TableId, false)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	for _, tablet := range listed {
		if tablet.State != catalogpb.RUNNING {
			t.Fatalf("expected tablet %s to be RUNNING after one heartbeat, got %s", tablet.TabletId, tablet.State)
		}
	}

	if err := server.Write(ctx, tablets[0].TabletId, []byte("a"), []byte("v")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	newTabletID, err := c.ReplaceTablet(ctx, tablets[0].TabletId)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := heartbeater.Beat(ctx); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	// The replaced tablet is gone from the server
	if err := server.Write(ctx, tablets[0].TabletId, []byte("a"), []byte("v")); !errors.Is(err, tserver.ErrTabletNotFound) {
		t.Fatalf("expected err to be ErrTabletNotFound, got %#v", err)
	}

	count, err := server.Count(newTabletID)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if count != 0 {
		t.Fatalf("expected the successor to start empty, got %d rows", count)
	}

	successor, err := c.GetTablet(ctx, newTabletID)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if successor.State != catalogpb.RUNNING {
		t.Fatalf("expected successor to be RUNNING, got %s", successor.State)
	}
}
