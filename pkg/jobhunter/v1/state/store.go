package state

import "time"

// Metadata is the bookkeeping attached to every stored value. A store always
// sets MetaTimestamp and MetaApplicationID; callers may add their own entries
// (for example "source").
type Metadata map[string]interface{}

// Reserved metadata keys maintained by the store.
const (
	MetaTimestamp     = "timestamp"
	MetaApplicationID = "application_id"
)

// Listener is notified synchronously after a value is written to the key it
// was registered for. A returned error (or a panic) is reported by the store
// but never propagated to the writer.
type Listener interface {
	OnStateChanged(key string, value interface{}, applicationID string) error
}

// ListenerFunc adapts an ordinary function to the Listener interface.
//
// Func values are not comparable in Go, so register a *ListenerFunc when the
// listener needs to be unregistered later:
//
//	fn := state.ListenerFunc(func(k string, v interface{}, app string) error { ... })
//	store.RegisterListener("career_profile_output", &fn, "")
//	store.UnregisterListener("career_profile_output", &fn, "")
type ListenerFunc func(key string, value interface{}, applicationID string) error

// OnStateChanged calls f(key, value, applicationID).
func (f ListenerFunc) OnStateChanged(key string, value interface{}, applicationID string) error {
	return f(key, value, applicationID)
}

// StateReader is the read-only view of a StateStore handed to workers.
// Every value returned is a deep copy; mutating it never affects the store.
type StateReader interface {
	// Retrieve returns the value stored under key in the given namespace.
	// An empty applicationID addresses the global namespace.
	Retrieve(key, applicationID string) (interface{}, bool)

	// RetrieveOr returns the stored value, or def when the key is absent.
	RetrieveOr(key, applicationID string, def interface{}) interface{}

	// GetApplicationState returns a copy of every key/value pair in the
	// application namespace. Unknown applications yield an empty map.
	GetApplicationState(applicationID string) map[string]interface{}

	// ListApplications returns the ids of all existing application
	// namespaces in sorted order.
	ListApplications() []string

	// GetMetadata returns a copy of the metadata recorded for key.
	GetMetadata(key, applicationID string) (Metadata, bool)
}

// StateStore is the namespaced key/value store shared by the career pipeline
// stages. Implementations must be safe for concurrent use. No operation
// returns an error: misuse yields sentinel results and listener failures are
// isolated from the writer.
type StateStore interface {
	StateReader

	// Store writes value under key, stamps metadata, and notifies listeners
	// registered for (key, applicationID) followed by global listeners for key
	// when applicationID is not empty.
	Store(key string, value interface{}, applicationID string, metadata Metadata)

	// Update overwrites value under key. When notify is false listeners are
	// not invoked; metadata is refreshed either way.
	Update(key string, value interface{}, applicationID string, notify bool)

	// Delete removes a single key and its metadata without notifying
	// listeners. It reports whether the key existed.
	Delete(key, applicationID string) bool

	// DeleteApplicationState drops the namespace with its values, metadata
	// and namespace-scoped listeners. Reports whether it existed.
	DeleteApplicationState(applicationID string) bool

	// RegisterListener appends l to the listeners of (key, applicationID).
	RegisterListener(key string, l Listener, applicationID string)

	// UnregisterListener removes the first registration of l for
	// (key, applicationID). Absent registrations are ignored.
	UnregisterListener(key string, l Listener, applicationID string)

	// Clear with a non-empty applicationID is DeleteApplicationState. With an
	// empty applicationID it wipes global values, every application namespace
	// and all metadata; registered listeners are kept.
	Clear(applicationID string)

	// SaveSession returns a deep copy of the complete store contents.
	SaveSession() *Snapshot

	// RestoreSession replaces the complete store contents with a deep copy of
	// s. Listeners are kept.
	RestoreSession(s *Snapshot)
}

// Snapshot is a point-in-time copy of a StateStore. Metadata is keyed by
// namespace ("" for global) and then by state key.
//
// Persisted snapshots are JSON: values come back as the JSON data model
// (map[string]interface{}, []interface{}, string, bool, nil), with whole
// numbers as int and other numbers as float64.
type Snapshot struct {
	State             map[string]interface{}            `json:"state"`
	ApplicationStates map[string]map[string]interface{} `json:"application_states"`
	Metadata          map[string]map[string]Metadata    `json:"metadata"`
	Timestamp         time.Time                         `json:"timestamp"`
}
