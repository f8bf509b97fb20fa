// Package datamodel holds the live data models published by extensions and
// resolves dotted property paths against them.
package datamodel

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/solatis/lumen/internal/notify"
	"github.com/solatis/lumen/internal/types"
)

// DataModel is a schema instance published by an extension.
// Schema must be stable until the owner reports a change through
// Registry.Changed; Data may change at any time and is read through the
// schema getters.
type DataModel interface {
	ID() types.DataModelID
	Schema() *types.Schema
	Data() any
}

// snapshot is an immutable view of the registry.
type snapshot struct {
	version uint64
	models  map[types.DataModelID]DataModel
	order   []types.DataModelID
}

// Registry tracks live data models.
//
// Writers (extension enable/disable) serialize on a mutex and publish a new
// snapshot; readers load the current snapshot without locking. Change
// notifications are queued and delivered by Dispatch on the update goroutine.
type Registry struct {
	mu     sync.Mutex
	snap   atomic.Pointer[snapshot]
	hub    *notify.Hub[types.DataModelID]
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		hub:    notify.New[types.DataModelID](),
		logger: logger,
	}
	r.snap.Store(&snapshot{models: map[types.DataModelID]DataModel{}})
	return r
}

// Add registers a data model. Returns ErrDataModelExists if the id is taken.
func (r *Registry) Add(m DataModel) error {
	id := m.ID()
	if id.IsZero() {
		return fmt.Errorf("add data model: %w", types.ErrInvalidEntity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, ok := cur.models[id]; ok {
		return fmt.Errorf("add data model %s: %w", id, types.ErrDataModelExists)
	}

	next := cur.clone()
	next.models[id] = m
	next.order = append(next.order, id)
	r.publish(next, id, notify.Added)
	return nil
}

// Remove unregisters a data model.
func (r *Registry) Remove(id types.DataModelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, ok := cur.models[id]; !ok {
		return fmt.Errorf("remove data model %s: %w", id, types.ErrDataModelNotFound)
	}

	next := cur.clone()
	delete(next.models, id)
	for i, o := range next.order {
		if o == id {
			next.order = append(next.order[:i:i], next.order[i+1:]...)
			break
		}
	}
	r.publish(next, id, notify.Removed)
	return nil
}

// RemoveExtension unregisters every data model owned by extensionID and
// returns how many were removed.
func (r *Registry) RemoveExtension(extensionID string) int {
	var ids []types.DataModelID
	for _, id := range r.snap.Load().order {
		if id.ExtensionID == extensionID {
			ids = append(ids, id)
		}
	}
	n := 0
	for _, id := range ids {
		if r.Remove(id) == nil {
			n++
		}
	}
	return n
}

// Changed reports that a registered model published a new schema.
func (r *Registry) Changed(id types.DataModelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if _, ok := cur.models[id]; !ok {
		return fmt.Errorf("change data model %s: %w", id, types.ErrDataModelNotFound)
	}
	r.publish(cur.clone(), id, notify.Changed)
	return nil
}

// publish bumps the version, swaps the snapshot and queues the change.
// Caller holds r.mu.
func (r *Registry) publish(next *snapshot, id types.DataModelID, op notify.Op) {
	next.version++
	r.snap.Store(next)
	r.hub.Publish(notify.Change[types.DataModelID]{Key: id, Op: op, Version: next.version})
	r.logger.Debug("data model registry changed",
		"data_model", id.String(),
		"op", op.String(),
		"version", next.version,
	)
}

// Get returns the live model for id.
func (r *Registry) Get(id types.DataModelID) (DataModel, bool) {
	m, ok := r.snap.Load().models[id]
	return m, ok
}

// List returns the live models in registration order.
func (r *Registry) List() []DataModel {
	s := r.snap.Load()
	out := make([]DataModel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.models[id])
	}
	return out
}

// Version increases on every add, remove and change.
func (r *Registry) Version() uint64 {
	return r.snap.Load().version
}

// Subscribe registers fn for changes to id. Callbacks run inside Dispatch.
func (r *Registry) Subscribe(id types.DataModelID, fn func(notify.Change[types.DataModelID])) func() {
	return r.hub.Subscribe(id, fn)
}

// SubscribeAll registers fn for every change.
func (r *Registry) SubscribeAll(fn func(notify.Change[types.DataModelID])) func() {
	return r.hub.SubscribeAll(fn)
}

// Dispatch delivers queued changes. Must be called from the update goroutine.
func (r *Registry) Dispatch() int {
	return r.hub.Dispatch()
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		version: s.version,
		models:  make(map[types.DataModelID]DataModel, len(s.models)+1),
		order:   make([]types.DataModelID, len(s.order), len(s.order)+1),
	}
	for k, v := range s.models {
		next.models[k] = v
	}
	copy(next.order, s.order)
	return next
}
