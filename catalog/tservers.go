package catalog

import (
	"sort"
	"sync"
	"time"
)

// TabletServerRegistry tracks the last heartbeat of
// every tablet server that ever contacted the catalog
type TabletServerRegistry struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	timeout  time.Duration
}

// NewTabletServerRegistry creates a registry in which servers are
// live for timeout after their last heartbeat
func NewTabletServerRegistry(timeout time.Duration) *TabletServerRegistry {
	return &TabletServerRegistry{
		lastSeen: map[string]time.Time{},
		timeout:  timeout,
	}
}

// Touch records a heartbeat from serverID
func (registry *TabletServerRegistry) Touch(serverID string, now time.Time) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.lastSeen[serverID] = now
}

// LiveServers returns the sorted ids of servers that heartbeated
// within the timeout and the sorted ids of those that did not
func (registry *TabletServerRegistry) LiveServers(now time.Time) (live []string, dead []string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	live = []string{}
	dead = []string{}

	for id, lastSeen := range registry.lastSeen {
		if now.Sub(lastSeen) <= registry.timeout {
			live = append(live, id)
		} else {
			dead = append(dead, id)
		}
	}

	sort.Strings(live)
	sort.Strings(dead)

	return live, dead
}
