package catalogpb_test

import (
	"strings"
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/google/go-cmp/cmp"
	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCanTransitionTo(t *testing.T) {
	testCases := map[string]struct {
		from     catalogpb.TabletState
		to       catalogpb.TabletState
		expected bool
	}{
		"creating-running":   {from: catalogpb.CREATING, to: catalogpb.RUNNING, expected: true},
		"running-replaced":   {from: catalogpb.RUNNING, to: catalogpb.REPLACED, expected: true},
		"running-replacing":  {from: catalogpb.RUNNING, to: catalogpb.REPLACING, expected: true},
		"replacing-replaced": {from: catalogpb.REPLACING, to: catalogpb.REPLACED, expected: true},
		"replaced-deleted":   {from: catalogpb.REPLACED, to: catalogpb.DELETED, expected: true},
		"running-deleted":    {from: catalogpb.RUNNING, to: catalogpb.DELETED, expected: true},
		"running-running":    {from: catalogpb.RUNNING, to: catalogpb.RUNNING, expected: true},
		"running-creating":   {from: catalogpb.RUNNING, to: catalogpb.CREATING, expected: false},
		"replaced-running":   {from: catalogpb.REPLACED, to: catalogpb.RUNNING, expected: false},
		"deleted-replaced":   {from: catalogpb.DELETED, to: catalogpb.REPLACED, expected: false},
		"creating-replaced":  {from: catalogpb.CREATING, to: catalogpb.REPLACED, expected: false},
		"invalid":            {from: catalogpb.RUNNING, to: catalogpb.TabletState(42), expected: false},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if result := testCase.from.CanTransitionTo(testCase.to); result != testCase.expected {
				t.Fatalf("expected %s -> %s to be %t, got %t", testCase.from, testCase.to, testCase.expected, result)
			}
		})
	}
}

func TestTransitionsOnlyMoveForward(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("allowed transitions never decrease the state", prop.ForAll(
		func(from, to int32) bool {
			a := catalogpb.TabletState(from)
			b := catalogpb.TabletState(to)

			if !a.CanTransitionTo(b) {
				return true
			}

			return b >= a
		},
		gen.Int32Range(-1, 6),
		gen.Int32Range(-1, 6),
	))

	properties.Property("a non-live state never becomes live again", prop.ForAll(
		func(from, to int32) bool {
			a := catalogpb.TabletState(from)
			b := catalogpb.TabletState(to)

			if a.IsLive() || !a.CanTransitionTo(b) {
				return true
			}

			return !b.IsLive()
		},
		gen.Int32Range(0, 4),
		gen.Int32Range(0, 4),
	))

	properties.TestingRun(t)
}

func TestPartitionRange(t *testing.T) {
	r := &catalogpb.PartitionRange{Lower: []byte("b"), Upper: []byte("d")}
	unbounded := &catalogpb.PartitionRange{Lower: []byte("d")}
	whole := &catalogpb.PartitionRange{}

	testCases := map[string]struct {
		check    bool
		expected bool
	}{
		"contains-lower":          {check: r.Contains([]byte("b")), expected: true},
		"contains-middle":         {check: r.Contains([]byte("c")), expected: true},
		"excludes-upper":          {check: r.Contains([]byte("d")), expected: false},
		"excludes-below":          {check: r.Contains([]byte("a")), expected: false},
		"unbounded-contains":      {check: unbounded.Contains([]byte("zzzz")), expected: true},
		"whole-contains-empty":    {check: whole.Contains([]byte{}), expected: true},
		"adjacent-no-overlap":     {check: r.Overlaps(unbounded), expected: false},
		"whole-overlaps":          {check: whole.Overlaps(r), expected: true},
		"overlap-symmetric":       {check: unbounded.Overlaps(&catalogpb.PartitionRange{Lower: []byte("c"), Upper: []byte("e")}), expected: true},
		"equal":                   {check: r.Equal(&catalogpb.PartitionRange{Lower: []byte("b"), Upper: []byte("d")}), expected: true},
		"not-equal":               {check: r.Equal(unbounded), expected: false},
		"valid":                   {check: r.Valid(), expected: true},
		"invalid-empty-range":     {check: (&catalogpb.PartitionRange{Lower: []byte("b"), Upper: []byte("b")}).Valid(), expected: false},
		"nil-range-contains-none": {check: (*catalogpb.PartitionRange)(nil).Contains([]byte("a")), expected: false},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if testCase.check != testCase.expected {
				t.Fatalf("expected %t, got %t", testCase.expected, testCase.check)
			}
		})
	}
}

func TestTabletRecordEncoding(t *testing.T) {
	record := &catalogpb.TabletRecord{
		TabletId:       "abc",
		TableId:        "table",
		PartitionRange: &catalogpb.PartitionRange{Lower: []byte("a"), Upper: []byte("m")},
		State:          catalogpb.REPLACED,
		ReplicaSet:     []string{"ts-1", "ts-2", "ts-3"},
		Version:        7,
		PredecessorId:  "xyz",
		SuccessorId:    "def",
		StateTime:      1234,
	}

	encoded, err := proto.Marshal(record)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	var decoded catalogpb.TabletRecord

	if err := proto.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(record, &decoded); diff != "" {
		t.Fatal(diff)
	}
}

func TestClone(t *testing.T) {
	record := &catalogpb.TabletRecord{
		TabletId:       "abc",
		PartitionRange: &catalogpb.PartitionRange{Lower: []byte("a")},
		ReplicaSet:     []string{"ts-1"},
	}

	clone := record.Clone()
	clone.ReplicaSet[0] = "ts-2"
	clone.PartitionRange.Lower[0] = 'b'

	if record.ReplicaSet[0] != "ts-1" {
		t.Fatalf("expected original replica set to be unchanged, got %v", record.ReplicaSet)
	}

	if string(record.PartitionRange.Lower) != "a" {
		t.Fatalf("expected original range to be unchanged, got %q", record.PartitionRange.Lower)
	}
}

func TestEnumText(t *testing.T) {
	record := &catalogpb.TabletRecord{TabletId: "abc", State: catalogpb.REPLACED}
	text := record.String()

	if !strings.Contains(text, "state:REPLACED") || strings.Contains(text, "REPLACEDREPLACED") {
		t.Fatalf("expected state to be rendered once, got %q", text)
	}

	var decoded catalogpb.TabletRecord

	if err := proto.UnmarshalText(text, &decoded); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(record, &decoded); diff != "" {
		t.Fatal(diff)
	}

	request := &catalogpb.ReplacementRequest{TabletId: "abc", Outcome: catalogpb.SUCCEEDED}
	text = request.String()

	if !strings.Contains(text, "outcome:SUCCEEDED") || strings.Contains(text, "SUCCEEDEDSUCCEEDED") {
		t.Fatalf("expected outcome to be rendered once, got %q", text)
	}
}
