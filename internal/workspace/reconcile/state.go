package reconcile

import "time"

// Status is the sync state of the active project against its remote mirror.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

type event string

const (
	eventMutated       event = "mutated"
	eventPushStarted   event = "push-started"
	eventPushSucceeded event = "push-succeeded"
	eventPushFailed    event = "push-failed"
)

// transitions lists every legal move. Events missing for a status leave it
// unchanged; dry runs are not events and never move the status.
var transitions = map[Status]map[event]Status{
	StatusSynced: {
		eventMutated:     StatusPending,
		eventPushStarted: StatusSyncing,
	},
	StatusPending: {
		eventMutated:     StatusPending,
		eventPushStarted: StatusSyncing,
	},
	StatusSyncing: {
		eventMutated:       StatusPending,
		eventPushStarted:   StatusSyncing,
		eventPushSucceeded: StatusSynced,
		eventPushFailed:    StatusError,
	},
	StatusError: {
		eventMutated:     StatusPending,
		eventPushStarted: StatusSyncing,
	},
}

func next(from Status, ev event) (Status, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// State is a point-in-time view of the reconciler.
type State struct {
	Status       Status    `json:"status"`
	HasChanges   bool      `json:"has_changes"`
	LastError    string    `json:"last_error,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at,omitzero"`
}
