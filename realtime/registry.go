package realtime

import (
	"log/slog"
	"sync"

	"duochat/domain"
)

// Member is one live connection registered in a broadcast group. Deliver
// must never block: a member whose buffer is full reports failure and the
// registry evicts it instead of stalling the rest of the group.
type Member interface {
	Key() string
	Identity() domain.Identity
	Deliver(payload []byte) error
}

// Registry is the process-wide mapping from conversation group key to the
// set of active sessions subscribed to it. Join, Leave, and Broadcast on
// the same key are linearizable with respect to each other: a broadcast
// observes a consistent snapshot of membership, never a partial view.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]Member
	log    *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		groups: make(map[string]map[string]Member),
		log:    log.With(slog.String("component", "registry")),
	}
}

// Join adds a member to a group, creating the group entry lazily.
// Re-adding an already-present member is a no-op, not an error.
func (r *Registry) Join(groupKey string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[groupKey]
	if !ok {
		members = make(map[string]Member)
		r.groups[groupKey] = members
	}
	if _, present := members[m.Key()]; present {
		return
	}
	members[m.Key()] = m
	r.log.Debug("member joined group", "groupKey", groupKey, "member", m.Key())
}

// Leave removes a member; no-op if absent. The group entry is pruned when
// its last member leaves so empty entries never accumulate.
func (r *Registry) Leave(groupKey string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[groupKey]
	if !ok {
		return
	}
	if _, present := members[m.Key()]; !present {
		return
	}
	delete(members, m.Key())
	if len(members) == 0 {
		delete(r.groups, groupKey)
		r.log.Debug("removed empty group", "groupKey", groupKey)
	}
	r.log.Debug("member left group", "groupKey", groupKey, "member", m.Key())
}

// Members returns a snapshot of the group's current member set.
func (r *Registry) Members(groupKey string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.groups[groupKey]
	if !ok {
		return nil
	}
	snapshot := make([]Member, 0, len(members))
	for _, m := range members {
		snapshot = append(snapshot, m)
	}
	return snapshot
}

// Size returns the number of members currently in a group.
func (r *Registry) Size(groupKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[groupKey])
}

// Broadcast delivers the payload to every member currently in the group.
// The membership snapshot is taken under the lock; delivery happens
// outside it so a member's send path can never hold up join/leave, and a
// delivery failure to one member never blocks delivery to the others.
// Failed members are evicted from the group.
func (r *Registry) Broadcast(groupKey string, payload []byte) {
	members := r.Members(groupKey)

	var failed []Member
	for _, m := range members {
		if err := m.Deliver(payload); err != nil {
			r.log.Warn("delivery failed, scheduling member removal",
				"groupKey", groupKey, "member", m.Key(), "error", err)
			failed = append(failed, m)
		}
	}
	for _, m := range failed {
		r.Leave(groupKey, m)
	}
}

// AllMembers returns a snapshot of every registered member across all
// groups. Used by the graceful shutdown path.
func (r *Registry) AllMembers() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []Member
	for _, members := range r.groups {
		for _, m := range members {
			all = append(all, m)
		}
	}
	return all
}

// GroupCount returns the number of live group entries.
func (r *Registry) GroupCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}
