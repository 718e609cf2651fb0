// Package verifier checks the health of a cluster's tablet metadata.
// It is the acceptance oracle for replacements: every table's key space
// must be covered by exactly one live tablet at every key, and replacement
// links between tablets must be consistent.
package verifier

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jrife/tablets/catalog/catalogpb"
)

// Kind classifies a problem
type Kind string

const (
	// Gap means some keys of a table are not covered by a live tablet
	Gap Kind = "gap"
	// Overlap means some keys are covered by more than one live tablet
	Overlap Kind = "overlap"
	// Orphan means a tablet belongs to a table that does not exist
	Orphan Kind = "orphan"
	// ReplicaCount means a live tablet does not have exactly one
	// replica per unit of its table's replication factor
	ReplicaCount Kind = "replica-count"
	// BrokenLink means a predecessor and successor do not point at each other
	BrokenLink Kind = "broken-link"
	// NoSuccessor means a REPLACED tablet's range is not
	// covered by a live descendant
	NoSuccessor Kind = "no-successor"
	// NotHosted means a RUNNING tablet is not hosted by its leader replica
	NotHosted Kind = "not-hosted"
)

// Problem is one inconsistency found by a check
type Problem struct {
	Kind     Kind
	TableID  string
	TabletID string
	Detail   string
}

func (problem Problem) String() string {
	return fmt.Sprintf("%s: table=%s tablet=%s: %s", problem.Kind, problem.TableID, problem.TabletID, problem.Detail)
}

// Report lists the problems found by a check
type Report struct {
	Problems []Problem
}

// OK returns true if no problems were found
func (report Report) OK() bool {
	return len(report.Problems) == 0
}

// Err returns nil if no problems were found and an
// error describing all problems otherwise
func (report Report) Err() error {
	if report.OK() {
		return nil
	}

	lines := make([]string, 0, len(report.Problems))

	for _, problem := range report.Problems {
		lines = append(lines, problem.String())
	}

	return fmt.Errorf("cluster is inconsistent: %d problems:\n%s", len(report.Problems), strings.Join(lines, "\n"))
}

// Count returns the number of problems of a kind
func (report Report) Count(kind Kind) int {
	count := 0

	for _, problem := range report.Problems {
		if problem.Kind == kind {
			count++
		}
	}

	return count
}

func (report *Report) add(kind Kind, tableID string, tabletID string, format string, args ...interface{}) {
	report.Problems = append(report.Problems, Problem{Kind: kind, TableID: tableID, TabletID: tabletID, Detail: fmt.Sprintf(format, args...)})
}

// CheckCatalog checks a snapshot of every tablet record, live or
// not, and every table record. A missing predecessor is tolerated
// since it may have been purged.
func CheckCatalog(records []*catalogpb.TabletRecord, tables []*catalogpb.TableRecord) Report {
	report := Report{Problems: []Problem{}}
	tablesByID := make(map[string]*catalogpb.TableRecord, len(tables))
	recordsByID := make(map[string]*catalogpb.TabletRecord, len(records))
	liveByTable := map[string][]*catalogpb.TabletRecord{}

	for _, table := range tables {
		tablesByID[table.TableId] = table
		liveByTable[table.TableId] = []*catalogpb.TabletRecord{}
	}

	for _, record := range records {
		recordsByID[record.TabletId] = record
	}

	for _, record := range records {
		table, ok := tablesByID[record.TableId]

		if !ok {
			report.add(Orphan, record.TableId, record.TabletId, "table does not exist")

			continue
		}

		if record.Live() {
			liveByTable[record.TableId] = append(liveByTable[record.TableId], record)
			checkReplicas(&report, table, record)
		}

		checkLinks(&report, recordsByID, record)
	}

	tableIDs := make([]string, 0, len(liveByTable))

	for tableID := range liveByTable {
		tableIDs = append(tableIDs, tableID)
	}

	sort.Strings(tableIDs)

	for _, tableID := range tableIDs {
		checkCoverage(&report, tableID, liveByTable[tableID])
	}

	return report
}

func checkReplicas(report *Report, table *catalogpb.TableRecord, record *catalogpb.TabletRecord) {
	if len(record.ReplicaSet) != int(table.ReplicationFactor) {
		report.add(ReplicaCount, record.TableId, record.TabletId, "expected %d replicas, got %d", table.ReplicationFactor, len(record.ReplicaSet))
	}

	seen := map[string]bool{}

	for _, replica := range record.ReplicaSet {
		if seen[replica] {
			report.add(ReplicaCount, record.TableId, record.TabletId, "server %s hosts more than one replica", replica)
		}

		seen[replica] = true
	}
}

func checkLinks(report *Report, recordsByID map[string]*catalogpb.TabletRecord, record *catalogpb.TabletRecord) {
	if record.PredecessorId != "" {
		if predecessor, ok := recordsByID[record.PredecessorId]; ok && predecessor.SuccessorId != record.TabletId {
			report.add(BrokenLink, record.TableId, record.TabletId, "predecessor %s names successor %q", predecessor.TabletId, predecessor.SuccessorId)
		}
	}

	if record.State != catalogpb.REPLACED {
		return
	}

	// Follow the successor chain to the live tablet covering the range
	visited := map[string]bool{record.TabletId: true}
	current := record

	for current.State == catalogpb.REPLACED {
		successor, ok := recordsByID[current.SuccessorId]

		if !ok || visited[successor.TabletId] {
			report.add(NoSuccessor, record.TableId, record.TabletId, "successor chain ends at %q", current.SuccessorId)

			return
		}

		if successor.PredecessorId != current.TabletId {
			report.add(BrokenLink, record.TableId, current.TabletId, "successor %s names predecessor %q", successor.TabletId, successor.PredecessorId)

			return
		}

		visited[successor.TabletId] = true
		current = successor
	}

	if !current.Live() {
		report.add(NoSuccessor, record.TableId, record.TabletId, "descendant %s is %s", current.TabletId, current.State)

		return
	}

	if !current.PartitionRange.Equal(record.PartitionRange) {
		report.add(NoSuccessor, record.TableId, record.TabletId, "descendant %s covers %s instead of %s", current.TabletId, current.PartitionRange.Format(), record.PartitionRange.Format())
	}
}

// checkCoverage checks that the live tablets of a
// table cover its key space exactly once
func checkCoverage(report *Report, tableID string, live []*catalogpb.TabletRecord) {
	if len(live) == 0 {
		report.add(Gap, tableID, "", "table has no live tablets")

		return
	}

	sort.Slice(live, func(i, j int) bool {
		if c := bytes.Compare(live[i].PartitionRange.Lower, live[j].PartitionRange.Lower); c != 0 {
			return c < 0
		}

		return live[i].TabletId < live[j].TabletId
	})

	if first := live[0]; len(first.PartitionRange.Lower) != 0 {
		report.add(Gap, tableID, first.TabletId, "keys below %q are not covered", first.PartitionRange.Lower)
	}

	for i := 1; i < len(live); i++ {
		prev, next := live[i-1], live[i]

		if len(prev.PartitionRange.Upper) == 0 {
			report.add(Overlap, tableID, next.TabletId, "overlaps unbounded tablet %s", prev.TabletId)

			continue
		}

		switch c := bytes.Compare(prev.PartitionRange.Upper, next.PartitionRange.Lower); {
		case c < 0:
			report.add(Gap, tableID, next.TabletId, "keys in [%q, %q) are not covered", prev.PartitionRange.Upper, next.PartitionRange.Lower)
		case c > 0:
			report.add(Overlap, tableID, next.TabletId, "overlaps tablet %s", prev.TabletId)
		}
	}

	if last := live[len(live)-1]; len(last.PartitionRange.Upper) != 0 {
		report.add(Gap, tableID, last.TabletId, "keys at or above %q are not covered", last.PartitionRange.Upper)
	}
}

// Catalog is the part of the catalog the verifier reads
type Catalog interface {
	ListTables(ctx context.Context) ([]*catalogpb.TableRecord, error)
	ListTablets(ctx context.Context, tableID string, includeInactive bool) ([]*catalogpb.TabletRecord, error)
}

// TabletHost is a tablet server as seen by the verifier
type TabletHost interface {
	ID() string
	Tablets() []*catalogpb.TabletReport
}

// CheckCluster reads every table and tablet from the catalog, runs
// CheckCatalog over them and additionally checks that every RUNNING
// tablet is hosted by its leader replica.
func CheckCluster(ctx context.Context, catalog Catalog, hosts []TabletHost) (Report, error) {
	tables, err := catalog.ListTables(ctx)

	if err != nil {
		return Report{}, fmt.Errorf("could not list tables: %w", err)
	}

	records := []*catalogpb.TabletRecord{}

	for _, table := range tables {
		tablets, err := catalog.ListTablets(ctx, table.TableId, true)

		if err != nil {
			return Report{}, fmt.Errorf("could not list tablets of table %s: %w", table.TableId, err)
		}

		records = append(records, tablets...)
	}

	report := CheckCatalog(records, tables)
	hosted := map[string]map[string]bool{}

	for _, host := range hosts {
		tablets := map[string]bool{}

		for _, tablet := range host.Tablets() {
			tablets[tablet.TabletId] = true
		}

		hosted[host.ID()] = tablets
	}

	for _, record := range records {
		if record.State != catalogpb.RUNNING {
			continue
		}

		if !hosted[record.Leader()][record.TabletId] {
			report.add(NotHosted, record.TableId, record.TabletId, "leader %q does not host the tablet", record.Leader())
		}
	}

	return report, nil
}
