package catalogpb

import (
	"strconv"

	"github.com/gogo/protobuf/proto"
)

func init() {
	proto.RegisterEnum("tablets.TabletState", TabletState_name, TabletState_value)
	proto.RegisterEnum("tablets.ReplacementOutcome", ReplacementOutcome_name, ReplacementOutcome_value)
}

// TabletState is the lifecycle state of a tablet.
// It is a closed set. Values outside of it are invalid.
type TabletState int32

const (
	// CREATING means the tablet record exists and its
	// replicas are being started by tablet servers
	CREATING TabletState = 0
	// RUNNING means a tablet server reported the tablet
	// started and the tablet serves reads and writes
	RUNNING TabletState = 1
	// REPLACING means the tablet is mid-transition
	REPLACING TabletState = 2
	// REPLACED means the tablet was retired and a successor
	// covers its partition range
	REPLACED TabletState = 3
	// DELETED means the tablet is waiting to be purged
	DELETED TabletState = 4
)

// TabletState_name maps state values to names
var TabletState_name = map[int32]string{
	0: "CREATING",
	1: "RUNNING",
	2: "REPLACING",
	3: "REPLACED",
	4: "DELETED",
}

// TabletState_value maps state names to values
var TabletState_value = map[string]int32{
	"CREATING":  0,
	"RUNNING":   1,
	"REPLACING": 2,
	"REPLACED":  3,
	"DELETED":   4,
}

// transitions lists the states each state may move to.
// States only ever move forward.
var transitions = map[TabletState][]TabletState{
	CREATING:  {RUNNING, DELETED},
	RUNNING:   {REPLACING, REPLACED, DELETED},
	REPLACING: {REPLACED, DELETED},
	REPLACED:  {DELETED},
	DELETED:   {},
}

func (s TabletState) String() string {
	if name, ok := TabletState_name[int32(s)]; ok {
		return name
	}

	return "TabletState(" + strconv.Itoa(int(s)) + ")"
}

// Valid returns true if s is one of the defined states
func (s TabletState) Valid() bool {
	_, ok := transitions[s]

	return ok
}

// IsLive returns true for states in which a tablet
// owns its partition range
func (s TabletState) IsLive() bool {
	return s == CREATING || s == RUNNING || s == REPLACING
}

// CanTransitionTo returns true if a tablet in state s
// may move to state next. Staying in the same state is
// not a transition and is always allowed for valid states.
func (s TabletState) CanTransitionTo(next TabletState) bool {
	allowed, ok := transitions[s]

	if !ok || !next.Valid() {
		return false
	}

	if s == next {
		return true
	}

	for _, state := range allowed {
		if state == next {
			return true
		}
	}

	return false
}

// ParseTabletState parses a state name
func ParseTabletState(name string) (TabletState, bool) {
	value, ok := TabletState_value[name]

	return TabletState(value), ok
}

// ReplacementOutcome is the outcome of a replacement request
type ReplacementOutcome int32

const (
	// PENDING means the replacement has not committed or failed yet
	PENDING ReplacementOutcome = 0
	// SUCCEEDED means the replacement committed
	SUCCEEDED ReplacementOutcome = 1
	// FAILED means the replacement did not commit
	FAILED ReplacementOutcome = 2
)

// ReplacementOutcome_name maps outcome values to names
var ReplacementOutcome_name = map[int32]string{
	0: "PENDING",
	1: "SUCCEEDED",
	2: "FAILED",
}

// ReplacementOutcome_value maps outcome names to values
var ReplacementOutcome_value = map[string]int32{
	"PENDING":   0,
	"SUCCEEDED": 1,
	"FAILED":    2,
}

func (o ReplacementOutcome) String() string {
	if name, ok := ReplacementOutcome_name[int32(o)]; ok {
		return name
	}

	return "ReplacementOutcome(" + strconv.Itoa(int(o)) + ")"
}
