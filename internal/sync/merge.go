// Package sync keeps independent devices eventually consistent through a
// shared remote document collection. There is no coordinator: every device
// uploads what it has, subscribes to the remote, and folds each snapshot back
// into its local store under a remote-wins merge rule.
package sync

// Entity is anything addressable by a stable id across devices.
type Entity interface {
	EntityID() string
}

// Reconcile merges a remote snapshot with the local collection:
//
//	result = remote ∪ { l ∈ local : id(l) ∉ ids(remote) }
//
// Remote entities win on id conflicts. Local entities absent from the remote
// set are retained as pending uploads, never treated as remote deletions.
// An empty remote snapshot is authoritative for what it says (nothing is
// confirmed remote) but still keeps every local entity pending.
func Reconcile[T Entity](remote, local []T) []T {
	seen := make(map[string]struct{}, len(remote))
	merged := make([]T, 0, len(remote)+len(local))

	for _, e := range remote {
		seen[e.EntityID()] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range local {
		if _, ok := seen[e.EntityID()]; !ok {
			merged = append(merged, e)
		}
	}
	return merged
}

// Pending returns the local entities not yet confirmed present remotely.
func Pending[T Entity](remote, local []T) []T {
	seen := make(map[string]struct{}, len(remote))
	for _, e := range remote {
		seen[e.EntityID()] = struct{}{}
	}
	var pending []T
	for _, e := range local {
		if _, ok := seen[e.EntityID()]; !ok {
			pending = append(pending, e)
		}
	}
	return pending
}
