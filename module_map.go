// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

// ModuleMap is an insertion-ordered map from specifier to module-table
// entry (*ModuleData, *ModuleRedirect or *NpmSpecifierEntry). Order is
// preserved across Insert, and InsertFront lets import maps jump to the
// front so Specifiers() reports them first (§3: "Import-map ordering").
type ModuleMap struct {
	order []string
	data  map[string]interface{}
}

// NewModuleMap creates an empty ModuleMap.
func NewModuleMap() *ModuleMap {
	return &ModuleMap{data: make(map[string]interface{})}
}

// Insert adds or replaces key's entry. A new key is appended to the end
// of the iteration order; replacing an existing key leaves its position
// unchanged.
func (m *ModuleMap) Insert(key string, val interface{}) {
	if _, exists := m.data[key]; !exists {
		m.order = append(m.order, key)
	}
	m.data[key] = val
}

// InsertFront adds or replaces key's entry and moves it to the front of
// the iteration order, used for import maps which must resolve before
// any other specifier.
func (m *ModuleMap) InsertFront(key string, val interface{}) {
	m.removeFromOrder(key)
	m.order = append([]string{key}, m.order...)
	m.data[key] = val
}

// Remove deletes key's entry, returning its value and whether it was
// present.
func (m *ModuleMap) Remove(key string) (interface{}, bool) {
	val, ok := m.data[key]
	if !ok {
		return nil, false
	}
	delete(m.data, key)
	m.removeFromOrder(key)
	return val, true
}

// Get returns key's entry and whether it was present.
func (m *ModuleMap) Get(key string) (interface{}, bool) {
	val, ok := m.data[key]
	return val, ok
}

// Keys returns every key in insertion order.
func (m *ModuleMap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of entries.
func (m *ModuleMap) Len() int {
	return len(m.order)
}

func (m *ModuleMap) removeFromOrder(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
