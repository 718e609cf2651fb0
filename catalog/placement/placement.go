// Package placement chooses the tablet servers that host the
// replicas of a new tablet.
package placement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jrife/tablets/catalog/catalogpb"
)

var (
	// ErrResourceExhausted is returned when there are fewer eligible
	// tablet servers than the replication factor requires
	ErrResourceExhausted = errors.New("not enough eligible tablet servers")
	// ErrInvalidReplicationFactor is returned when the replication
	// factor is less than 1
	ErrInvalidReplicationFactor = errors.New("replication factor must be at least 1")
)

// ServerLoad is the number of live tablet replicas
// hosted by a tablet server
type ServerLoad struct {
	ID      string
	Tablets int
}

// LoadSnapshot is the load of every live tablet server
type LoadSnapshot []ServerLoad

type options struct {
	avoid map[string]bool
}

// Option modifies a placement request
type Option func(*options)

// WithAvoid de-prioritizes the given servers. They are only
// chosen when there are not enough other eligible servers. Use
// it for servers hosting replicas of the tablet being replaced.
func WithAvoid(ids ...string) Option {
	return func(o *options) {
		for _, id := range ids {
			o.avoid[id] = true
		}
	}
}

type candidate struct {
	ServerLoad
	avoided bool
}

type byAvoidedLoadAndID []candidate

func (c byAvoidedLoadAndID) Len() int { return len(c) }
func (c byAvoidedLoadAndID) Less(i, j int) bool {
	if c[i].avoided != c[j].avoided {
		return !c[i].avoided
	}

	if c[i].Tablets != c[j].Tablets {
		return c[i].Tablets < c[j].Tablets
	}

	return c[i].ID < c[j].ID
}
func (c byAvoidedLoadAndID) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

// Planner places tablet replicas given a snapshot of
// server load. It is not safe for concurrent use.
type Planner struct {
	loads map[string]int
}

// NewPlanner creates a planner for this load snapshot. Servers
// appearing more than once in the snapshot are counted once.
func NewPlanner(snapshot LoadSnapshot) *Planner {
	planner := &Planner{loads: make(map[string]int, len(snapshot))}

	for _, load := range snapshot {
		planner.loads[load.ID] = load.Tablets
	}

	return planner
}

// PlanReplicas returns replicationFactor distinct servers for a tablet
// covering r. No server in excluded is ever returned. Among the rest,
// servers hosting the fewest tablets are preferred and ties go to the
// lowest server id, which keeps the maximum load as low as possible.
// The first server in the result is the tablet's leader.
func (planner *Planner) PlanReplicas(r *catalogpb.PartitionRange, replicationFactor int, excluded []string, opts ...Option) ([]string, error) {
	if replicationFactor < 1 {
		return nil, ErrInvalidReplicationFactor
	}

	o := options{avoid: map[string]bool{}}

	for _, opt := range opts {
		opt(&o)
	}

	isExcluded := make(map[string]bool, len(excluded))

	for _, id := range excluded {
		isExcluded[id] = true
	}

	candidates := make([]candidate, 0, len(planner.loads))

	for id, tablets := range planner.loads {
		if isExcluded[id] {
			continue
		}

		candidates = append(candidates, candidate{
			ServerLoad: ServerLoad{ID: id, Tablets: tablets},
			avoided:    o.avoid[id],
		})
	}

	if len(candidates) < replicationFactor {
		return nil, fmt.Errorf("%w: range %s needs %d replicas, %d eligible servers", ErrResourceExhausted, r.Format(), replicationFactor, len(candidates))
	}

	sort.Sort(byAvoidedLoadAndID(candidates))

	replicas := make([]string, replicationFactor)

	for i := range replicas {
		replicas[i] = candidates[i].ID
	}

	return replicas, nil
}

// Assign records that a tablet was placed on these servers so
// subsequent plans from this planner account for it
func (planner *Planner) Assign(replicas []string) {
	for _, id := range replicas {
		if _, ok := planner.loads[id]; ok {
			planner.loads[id]++
		}
	}
}

// Load returns the number of tablets the planner
// currently attributes to a server
func (planner *Planner) Load(id string) int {
	return planner.loads[id]
}
