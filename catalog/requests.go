package catalog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrife/tablets/catalog/catalogpb"
)

// requestRegistry tracks replacement requests by tablet id. Its
// mutex guards only map bookkeeping and is never held while a
// replacement runs, so requests for different tablets never wait
// on each other.
type requestRegistry struct {
	mu       sync.Mutex
	requests map[string]*catalogpb.ReplacementRequest
}

func newRequestRegistry() *requestRegistry {
	return &requestRegistry{requests: map[string]*catalogpb.ReplacementRequest{}}
}

// begin registers a pending request for tabletID. It fails with
// ErrConflict if a request for the same tablet is pending and with
// ErrNotFound if a previous request already replaced the tablet.
// It returns the finished request it displaced, if any.
func (registry *requestRegistry) begin(tabletID string, now time.Time) (*catalogpb.ReplacementRequest, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	existing, ok := registry.requests[tabletID]

	if ok {
		switch existing.Outcome {
		case catalogpb.PENDING:
			return nil, fmt.Errorf("%w: a replacement of tablet %s is already in flight", ErrConflict, tabletID)
		case catalogpb.SUCCEEDED:
			return nil, fmt.Errorf("%w: tablet %s was already replaced by %s", ErrNotFound, tabletID, existing.NewTabletId)
		}
	}

	registry.requests[tabletID] = &catalogpb.ReplacementRequest{
		TabletId:    tabletID,
		RequestTime: now.UnixNano(),
		Outcome:     catalogpb.PENDING,
	}

	return existing, nil
}

// finish records the outcome of the pending request for tabletID.
// A request that failed with ErrNotFound leaves no trace: the entry
// reverts to previous, or is dropped if there was none.
func (registry *requestRegistry) finish(tabletID string, newTabletID string, err error, now time.Time, previous *catalogpb.ReplacementRequest) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	request, ok := registry.requests[tabletID]

	if !ok {
		return
	}

	if errors.Is(err, ErrNotFound) {
		if previous != nil {
			registry.requests[tabletID] = previous
		} else {
			delete(registry.requests, tabletID)
		}

		return
	}

	request.FinishTime = now.UnixNano()

	if err != nil {
		request.Outcome = catalogpb.FAILED
		request.Error = err.Error()

		return
	}

	request.Outcome = catalogpb.SUCCEEDED
	request.NewTabletId = newTabletID
}

func (registry *requestRegistry) get(tabletID string) (*catalogpb.ReplacementRequest, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	request, ok := registry.requests[tabletID]

	return request.Clone(), ok
}

// expire drops finished requests that finished before the deadline
// and returns how many were dropped. Pending requests are kept.
func (registry *requestRegistry) expire(deadline time.Time) int {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	expired := 0

	for tabletID, request := range registry.requests {
		if request.Outcome != catalogpb.PENDING && request.FinishTime < deadline.UnixNano() {
			delete(registry.requests, tabletID)
			expired++
		}
	}

	return expired
}
