package state

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/jobhunter-labs/jobhunter/internal/events"
	"github.com/jobhunter-labs/jobhunter/internal/logger"
	"github.com/jobhunter-labs/jobhunter/internal/util"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	jhevents "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
)

// globalNamespace is the metadata and listener scope of the global namespace.
const globalNamespace = ""

type listenerKey struct {
	key           string
	applicationID string
}

// MemoryStateStore is the in-memory StateStore. All maps are guarded by a
// single RWMutex. Values are deep-copied on the way in and on the way out, so
// neither writers nor readers can reach the stored data through references.
//
// Listeners run on the writer's goroutine after the lock has been released;
// they may read from or write to the store.
type MemoryStateStore struct {
	mu sync.RWMutex

	global    map[string]interface{}
	apps      map[string]map[string]interface{}
	metadata  map[string]map[string]state.Metadata
	listeners map[listenerKey][]state.Listener

	log jhlog.Logger
	bus jhevents.Bus
	now func() time.Time
}

// Option configures a MemoryStateStore.
type Option func(*MemoryStateStore)

// WithLogger sets the logger used to report listener failures.
func WithLogger(l jhlog.Logger) Option {
	return func(s *MemoryStateStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEventBus sets the bus receiving store events.
func WithEventBus(b jhevents.Bus) Option {
	return func(s *MemoryStateStore) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithClock overrides time.Now for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStateStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStateStore creates an empty store.
func NewMemoryStateStore(opts ...Option) *MemoryStateStore {
	s := &MemoryStateStore{
		global:    make(map[string]interface{}),
		apps:      make(map[string]map[string]interface{}),
		metadata:  make(map[string]map[string]state.Metadata),
		listeners: make(map[listenerKey][]state.Listener),
		log:       logger.NewDiscardLogger(),
		bus:       events.NewNoOpEventBus(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "StateStore")
	return s
}

// Store implements state.StateStore.
func (s *MemoryStateStore) Store(key string, value interface{}, applicationID string, metadata state.Metadata) {
	s.write(key, value, applicationID, metadata, true)
}

// Update implements state.StateStore. With notify set it is Store without
// caller metadata.
func (s *MemoryStateStore) Update(key string, value interface{}, applicationID string, notify bool) {
	s.write(key, value, applicationID, nil, notify)
}

func (s *MemoryStateStore) write(key string, value interface{}, applicationID string, metadata state.Metadata, notify bool) {
	stored := util.DeepCopy(value)
	ts := s.now()

	md := state.Metadata{
		state.MetaTimestamp:     ts.Format(time.RFC3339Nano),
		state.MetaApplicationID: applicationID,
	}
	for k, v := range metadata {
		md[k] = util.DeepCopy(v)
	}

	s.mu.Lock()
	if applicationID == globalNamespace {
		s.global[key] = stored
	} else {
		ns, ok := s.apps[applicationID]
		if !ok {
			ns = make(map[string]interface{})
			s.apps[applicationID] = ns
		}
		ns[key] = stored
	}
	mdNS, ok := s.metadata[applicationID]
	if !ok {
		mdNS = make(map[string]state.Metadata)
		s.metadata[applicationID] = mdNS
	}
	mdNS[key] = md

	var targets []state.Listener
	if notify {
		targets = s.matchingListenersLocked(key, applicationID)
	}
	s.mu.Unlock()

	s.emit(jhevents.StateStored, key, applicationID, map[string]interface{}{
		"value_type": valueType(value),
		"notified":   len(targets),
	})

	for _, l := range targets {
		s.notify(l, key, value, applicationID)
	}
}

// matchingListenersLocked returns a copy of the listeners to call for a write
// to (key, applicationID): exact registrations first, then global ones when
// the write is application scoped.
func (s *MemoryStateStore) matchingListenersLocked(key, applicationID string) []state.Listener {
	exact := s.listeners[listenerKey{key, applicationID}]
	var global []state.Listener
	if applicationID != globalNamespace {
		global = s.listeners[listenerKey{key, globalNamespace}]
	}
	if len(exact)+len(global) == 0 {
		return nil
	}
	out := make([]state.Listener, 0, len(exact)+len(global))
	out = append(out, exact...)
	return append(out, global...)
}

// notify calls one listener, converting a returned error or a panic into a
// ListenerError that is logged and published but never propagated.
func (s *MemoryStateStore) notify(l state.Listener, key string, value interface{}, applicationID string) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return l.OnStateChanged(key, util.DeepCopy(value), applicationID)
	}()
	if err == nil {
		return
	}

	lerr := jherrors.NewListenerError(key, applicationID, fmt.Sprintf("%T", l), err)
	s.log.Errorf("Error notifying listener for key '%s': %v", key, lerr)
	s.emit(jhevents.ListenerFailed, key, applicationID, map[string]interface{}{
		"listener": lerr.Listener,
		"error":    err.Error(),
	})
}

// Retrieve implements state.StateReader.
func (s *MemoryStateStore) Retrieve(key, applicationID string) (interface{}, bool) {
	s.mu.RLock()
	var (
		val interface{}
		ok  bool
	)
	if applicationID == globalNamespace {
		val, ok = s.global[key]
	} else if ns, exists := s.apps[applicationID]; exists {
		val, ok = ns[key]
	}
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return util.DeepCopy(val), true
}

// RetrieveOr implements state.StateReader.
func (s *MemoryStateStore) RetrieveOr(key, applicationID string, def interface{}) interface{} {
	if val, ok := s.Retrieve(key, applicationID); ok {
		return val
	}
	return def
}

// GetApplicationState implements state.StateReader.
func (s *MemoryStateStore) GetApplicationState(applicationID string) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if applicationID == globalNamespace {
		return make(map[string]interface{})
	}
	return util.DeepCopyMap(s.apps[applicationID])
}

// ListApplications implements state.StateReader.
func (s *MemoryStateStore) ListApplications() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.apps))
	for id := range s.apps {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// GetMetadata implements state.StateReader.
func (s *MemoryStateStore) GetMetadata(key, applicationID string) (state.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.metadata[applicationID][key]
	if !ok {
		return nil, false
	}
	return copyMetadata(md), true
}

// Delete implements state.StateStore.
func (s *MemoryStateStore) Delete(key, applicationID string) bool {
	s.mu.Lock()
	var existed bool
	if applicationID == globalNamespace {
		_, existed = s.global[key]
		delete(s.global, key)
	} else if ns, ok := s.apps[applicationID]; ok {
		_, existed = ns[key]
		delete(ns, key)
	}
	if mdNS, ok := s.metadata[applicationID]; ok {
		delete(mdNS, key)
		if len(mdNS) == 0 {
			delete(s.metadata, applicationID)
		}
	}
	s.mu.Unlock()

	if existed {
		s.emit(jhevents.StateDeleted, key, applicationID, nil)
	}
	return existed
}

// DeleteApplicationState implements state.StateStore.
func (s *MemoryStateStore) DeleteApplicationState(applicationID string) bool {
	if applicationID == globalNamespace {
		return false
	}
	s.mu.Lock()
	_, existed := s.apps[applicationID]
	if existed {
		delete(s.apps, applicationID)
		delete(s.metadata, applicationID)
		for lk := range s.listeners {
			if lk.applicationID == applicationID {
				delete(s.listeners, lk)
			}
		}
	}
	s.mu.Unlock()

	if existed {
		s.emit(jhevents.ApplicationDeleted, "", applicationID, nil)
	}
	return existed
}

// RegisterListener implements state.StateStore. A nil listener is ignored.
func (s *MemoryStateStore) RegisterListener(key string, l state.Listener, applicationID string) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lk := listenerKey{key, applicationID}
	s.listeners[lk] = append(s.listeners[lk], l)
}

// UnregisterListener implements state.StateStore.
func (s *MemoryStateStore) UnregisterListener(key string, l state.Listener, applicationID string) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lk := listenerKey{key, applicationID}
	list := s.listeners[lk]
	for i, registered := range list {
		if sameListener(registered, l) {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.listeners, lk)
	} else {
		s.listeners[lk] = list
	}
}

// sameListener compares listeners without panicking on uncomparable dynamic
// types (a ListenerFunc value, a struct holding a map). A comparable struct
// can still panic when an interface field holds a map, slice or func; that
// counts as not equal. Such listeners can only be unregistered through a
// pointer.
func sameListener(a, b state.Listener) (same bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// Clear implements state.StateStore.
func (s *MemoryStateStore) Clear(applicationID string) {
	if applicationID != globalNamespace {
		s.DeleteApplicationState(applicationID)
		return
	}
	s.mu.Lock()
	s.global = make(map[string]interface{})
	s.apps = make(map[string]map[string]interface{})
	s.metadata = make(map[string]map[string]state.Metadata)
	s.mu.Unlock()

	s.emit(jhevents.StateCleared, "", "", nil)
}

// SaveSession implements state.StateStore.
func (s *MemoryStateStore) SaveSession() *state.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &state.Snapshot{
		State:             util.DeepCopyMap(s.global),
		ApplicationStates: make(map[string]map[string]interface{}, len(s.apps)),
		Metadata:          make(map[string]map[string]state.Metadata, len(s.metadata)),
		Timestamp:         s.now(),
	}
	for id, ns := range s.apps {
		snap.ApplicationStates[id] = util.DeepCopyMap(ns)
	}
	for id, mdNS := range s.metadata {
		snap.Metadata[id] = copyMetadataNamespace(mdNS)
	}
	return snap
}

// RestoreSession implements state.StateStore. A nil snapshot empties the
// store, the same as restoring an empty one.
func (s *MemoryStateStore) RestoreSession(snap *state.Snapshot) {
	global := make(map[string]interface{})
	apps := make(map[string]map[string]interface{})
	metadata := make(map[string]map[string]state.Metadata)
	if snap != nil {
		global = util.DeepCopyMap(snap.State)
		for id, ns := range snap.ApplicationStates {
			if id == globalNamespace {
				continue
			}
			apps[id] = util.DeepCopyMap(ns)
		}
		for id, mdNS := range snap.Metadata {
			metadata[id] = copyMetadataNamespace(mdNS)
		}
	}

	s.mu.Lock()
	s.global = global
	s.apps = apps
	s.metadata = metadata
	s.mu.Unlock()

	s.emit(jhevents.SessionRestored, "", "", map[string]interface{}{
		"applications": len(apps),
		"global_keys":  len(global),
	})
}

func (s *MemoryStateStore) emit(t jhevents.EventType, key, applicationID string, payload map[string]interface{}) {
	s.bus.Emit(jhevents.Event{
		Type:          t,
		Timestamp:     s.now(),
		ApplicationID: applicationID,
		Key:           key,
		Payload:       payload,
	})
}

func copyMetadata(md state.Metadata) state.Metadata {
	if md == nil {
		return nil
	}
	return state.Metadata(util.DeepCopyMap(md))
}

func copyMetadataNamespace(ns map[string]state.Metadata) map[string]state.Metadata {
	out := make(map[string]state.Metadata, len(ns))
	for k, md := range ns {
		out[k] = copyMetadata(md)
	}
	return out
}

func valueType(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

var _ state.StateStore = (*MemoryStateStore)(nil)
