// internal/engine/models.go
package engine

import (
	"fmt"
	"time"

	"github.com/solatis/lumen/internal/datamodel"
	"github.com/solatis/lumen/internal/types"
)

/*
 * Extension data models.
 *
 * Extensions publish map-shaped models over the plugin API. The first
 * publication registers a datamodel.Dynamic; later ones update it in place
 * and report a layout change to the registry only when the inferred schema
 * changed, so paths re-resolve exactly when needed. Extensions cannot touch
 * models of the built-in extension.
 */

// PublishDataModel creates or updates the model id with values and declares
// events by name.
func (e *Engine) PublishDataModel(id types.DataModelID, values map[string]any, events []string) error {
	if id.ExtensionID == "" || id.Key == "" {
		return fmt.Errorf("publish data model %s: empty id", id)
	}
	if id.ExtensionID == types.BuiltinExtensionID {
		return fmt.Errorf("publish data model %s: %w", id, types.ErrDataModelExists)
	}

	e.pluginsMu.Lock()
	defer e.pluginsMu.Unlock()

	m, ok := e.plugins[id]
	if !ok {
		m = datamodel.NewDynamic(id, values)
		for _, name := range events {
			m.DefineEvent(name, nil)
		}
		if err := e.env.DataModels.Add(m); err != nil {
			return err
		}
		e.plugins[id] = m
		return nil
	}

	changed := m.Update(values)
	for _, name := range events {
		if _, c := m.DefineEvent(name, nil); c {
			changed = true
		}
	}
	if changed {
		return e.env.DataModels.Changed(id)
	}
	return nil
}

// TriggerEvent fires the event name of model id and returns the trigger time.
func (e *Engine) TriggerEvent(id types.DataModelID, name string, args map[string]any) (time.Time, error) {
	e.pluginsMu.Lock()
	m, ok := e.plugins[id]
	e.pluginsMu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("trigger %s on %s: %w", name, id, types.ErrDataModelNotFound)
	}
	at := e.clock()
	return at, m.Trigger(name, args, at)
}

// RemoveDataModel unregisters model id.
func (e *Engine) RemoveDataModel(id types.DataModelID) error {
	e.pluginsMu.Lock()
	defer e.pluginsMu.Unlock()
	if _, ok := e.plugins[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, types.ErrDataModelNotFound)
	}
	delete(e.plugins, id)
	return e.env.DataModels.Remove(id)
}

// RemoveExtension unregisters every model and operator of extensionID.
func (e *Engine) RemoveExtension(extensionID string) int {
	e.pluginsMu.Lock()
	defer e.pluginsMu.Unlock()
	for id := range e.plugins {
		if id.ExtensionID == extensionID {
			delete(e.plugins, id)
		}
	}
	n := e.env.DataModels.RemoveExtension(extensionID)
	return n + e.env.Operators.UnregisterExtension(extensionID)
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time { return e.clock() }
