// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

import "sync"

// EszipV2 is an in-memory V2 archive: either freshly built via the
// Add* methods, or the result of a ParseV2/ParseBytes call. modules
// holds every module-table entry (source modules, redirects, and npm
// specifiers) in wire order.
type EszipV2 struct {
	mu          sync.Mutex
	modules     *ModuleMap
	npmSnapshot *NpmResolutionSnapshot
	options     Options
	version     EszipVersion
}

// AddModule inserts a source module, wrapping source/sourceMap in
// already-Ready slots since a freshly built archive never streams.
func (e *EszipV2) AddModule(specifier string, kind ModuleKind, source []byte, sourceMap []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modules.Insert(specifier, &ModuleData{
		Kind:      kind,
		Source:    NewReadySourceSlot(source),
		SourceMap: NewReadySourceSlot(sourceMap),
	})
}

// AddOpaqueData is a convenience for AddModule with ModuleKindOpaqueData
// and no source map.
func (e *EszipV2) AddOpaqueData(specifier string, data []byte) {
	e.AddModule(specifier, ModuleKindOpaqueData, data, nil)
}

// AddRedirect inserts a redirect from specifier to target.
func (e *EszipV2) AddRedirect(specifier, target string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modules.Insert(specifier, &ModuleRedirect{Target: target})
}

// AddImportMap inserts a module and moves it to the front of iteration
// order, so it resolves before any other specifier (§3: "Import-map
// ordering").
func (e *EszipV2) AddImportMap(kind ModuleKind, specifier string, source []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modules.InsertFront(specifier, &ModuleData{
		Kind:      kind,
		Source:    NewReadySourceSlot(source),
		SourceMap: NewEmptySourceSlot(),
	})
}

// SetChecksum changes the checksum algorithm IntoBytes will use.
func (e *EszipV2) SetChecksum(checksum ChecksumType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.options.Checksum = checksum
	e.options.ChecksumSize = checksum.DigestSize()
}

// SetVersion changes the wire version IntoBytes will target.
func (e *EszipV2) SetVersion(version EszipVersion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.version = version
}

// GetModule resolves specifier to a Module, chasing redirects with a
// visited-set cycle guard (§4.5/§9). It returns nil for Jsonc modules
// (those are import-map-only, see GetImportMap), npm specifier entries,
// cyclic redirect chains, and unknown specifiers.
func (e *EszipV2) GetModule(specifier string) *Module {
	e.mu.Lock()
	defer e.mu.Unlock()

	visited := make(map[string]bool)
	cur := specifier
	for {
		if visited[cur] {
			return nil
		}
		visited[cur] = true

		entry, ok := e.modules.Get(cur)
		if !ok {
			return nil
		}

		switch v := entry.(type) {
		case *ModuleRedirect:
			cur = v.Target
			continue
		case *ModuleData:
			if v.Kind == ModuleKindJsonc {
				return nil
			}
			return &Module{
				Specifier: cur,
				Kind:      v.Kind,
				source:    v.Source,
				sourceMap: v.SourceMap,
			}
		default:
			return nil
		}
	}
}

// GetImportMap is GetModule's dual for import-map-only entries: it
// resolves Jsonc (and any other non-JavaScript kind) that GetModule
// hides, and hides JavaScript in turn (§4.5: an import map is never
// plain JavaScript).
func (e *EszipV2) GetImportMap(specifier string) *Module {
	e.mu.Lock()
	defer e.mu.Unlock()

	visited := make(map[string]bool)
	cur := specifier
	for {
		if visited[cur] {
			return nil
		}
		visited[cur] = true

		entry, ok := e.modules.Get(cur)
		if !ok {
			return nil
		}

		switch v := entry.(type) {
		case *ModuleRedirect:
			cur = v.Target
			continue
		case *ModuleData:
			if v.Kind == ModuleKindJavaScript {
				return nil
			}
			return &Module{
				Specifier: specifier,
				Kind:      v.Kind,
				source:    v.Source,
				sourceMap: v.SourceMap,
			}
		default:
			return nil
		}
	}
}

// Specifiers returns every module-table key in wire order.
func (e *EszipV2) Specifiers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modules.Keys()
}

// Iterate returns every source module (Modules only, not redirects or
// npm specifiers) as Module facades, in wire order.
func (e *EszipV2) Iterate() []*Module {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Module
	for _, specifier := range e.modules.Keys() {
		entry, ok := e.modules.Get(specifier)
		if !ok {
			continue
		}
		data, ok := entry.(*ModuleData)
		if !ok {
			continue
		}
		out = append(out, &Module{
			Specifier: specifier,
			Kind:      data.Kind,
			source:    data.Source,
			sourceMap: data.SourceMap,
		})
	}
	return out
}

// NpmSnapshot returns the archive's npm resolution snapshot without
// transferring ownership of it.
func (e *EszipV2) NpmSnapshot() *NpmResolutionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.npmSnapshot
}

// TakeNpmSnapshot transfers ownership of the npm resolution snapshot to
// the caller, nilling the archive's own reference. A second call
// returns nil.
func (e *EszipV2) TakeNpmSnapshot() *NpmResolutionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.npmSnapshot
	e.npmSnapshot = nil
	return snapshot
}
