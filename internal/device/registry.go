package device

import (
	"sort"
	"sync"
	"time"

	"brood-flow/internal/broodminder"
)

// Identity sentinels. A record carrying either never receives publications.
const (
	UnknownID    = "(unknown)"
	UnresolvedID = "00:00:00"
)

// Record is the registry's state for one device.
type Record struct {
	DeviceID string              `json:"device_id"`
	Reading  broodminder.Reading `json:"reading"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Sightings uint64    `json:"sightings"`

	// Zero means never sent.
	LastConfigSent time.Time `json:"last_config_sent"`
	LastStateSent  time.Time `json:"last_state_sent"`
}

// Resolved reports whether the record has a usable identity.
func (r *Record) Resolved() bool {
	return r.DeviceID != "" && r.DeviceID != UnresolvedID && r.DeviceID != UnknownID
}

// ConfigDue reports whether more than interval has passed since the last config publication.
func (r *Record) ConfigDue(now time.Time, interval time.Duration) bool {
	return r.LastConfigSent.IsZero() || now.Sub(r.LastConfigSent) > interval
}

// StateDue reports whether more than interval has passed since the last state publication.
func (r *Record) StateDue(now time.Time, interval time.Duration) bool {
	return r.LastStateSent.IsZero() || now.Sub(r.LastStateSent) > interval
}

// MarkConfigSent advances the config timestamp; it never moves backwards.
func (r *Record) MarkConfigSent(now time.Time) {
	if now.After(r.LastConfigSent) {
		r.LastConfigSent = now
	}
}

// MarkStateSent advances the state timestamp; it never moves backwards.
func (r *Record) MarkStateSent(now time.Time) {
	if now.After(r.LastStateSent) {
		r.LastStateSent = now
	}
}

// Registry holds one Record per device identity for the lifetime of the process.
// All methods are safe for concurrent use; mutations of a record are serialized.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Record),
	}
}

// Upsert stores reading for id. A new record starts with zero publication timestamps;
// an existing record only has its reading and sighting bookkeeping replaced.
// The returned bool is true when the record was created by this call.
func (r *Registry) Upsert(id string, reading broodminder.Reading, seenAt time.Time) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		rec = &Record{
			DeviceID:  id,
			FirstSeen: seenAt,
		}
		r.devices[id] = rec
	}
	rec.Reading = reading
	rec.LastSeen = seenAt
	rec.Sightings++

	return *rec, !ok
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Update runs fn against the stored record for id while holding the registry lock.
// fn must not call back into the registry. Returns false if id is unknown.
func (r *Registry) Update(id string, fn func(rec *Record)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Snapshot returns copies of all records ordered by device ID.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.devices))
	for _, rec := range r.devices {
		out = append(out, *rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}
