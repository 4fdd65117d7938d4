// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

import "context"

// ModuleKind discriminates the payload a module-table Module entry
// carries (§3; Wasm is the teacher's supplemental V2.3 extension, see
// SPEC_FULL.md §1.1).
type ModuleKind uint8

const (
	ModuleKindJavaScript ModuleKind = 0
	ModuleKindJson       ModuleKind = 1
	ModuleKindJsonc      ModuleKind = 2
	ModuleKindOpaqueData ModuleKind = 3
	ModuleKindWasm       ModuleKind = 4
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleKindJavaScript:
		return "javascript"
	case ModuleKindJson:
		return "json"
	case ModuleKindJsonc:
		return "jsonc"
	case ModuleKindOpaqueData:
		return "opaque_data"
	case ModuleKindWasm:
		return "wasm"
	default:
		return "unknown"
	}
}

// Module-table entry-kind discriminants (§4.3's specifier_len|specifier|
// entry_kind records).
const (
	HeaderFrameModule       = 0
	HeaderFrameRedirect     = 1
	HeaderFrameNpmSpecifier = 2
)

// ModuleData is a module-table Module entry: a source slot, an optional
// source-map slot, and the kind that tells a consumer how to interpret
// the source bytes.
type ModuleData struct {
	Kind      ModuleKind
	Source    *SourceSlot
	SourceMap *SourceSlot
}

// ModuleRedirect is a module-table Redirect entry: the specifier it
// actually resolves to.
type ModuleRedirect struct {
	Target string
}

// NpmSpecifierEntry is a module-table NpmSpecifier entry: an index into
// the archive's npm resolution snapshot's package list.
type NpmSpecifierEntry struct {
	PackageID uint32
}

// NpmPackageIndex is the same index recovered from the header before
// the npm snapshot section itself has been parsed (§4.3's two-pass npm
// read: specifiers first, snapshot second).
type NpmPackageIndex struct {
	Index uint32
}

// sourceOffsetEntry records the length and owning specifier for a
// pending source (or source-map) slot, keyed by declared offset, while
// the sources/source-maps region is being streamed in declared order.
type sourceOffsetEntry struct {
	length    int
	specifier string
}

// Module is the read-facing facade GetModule hands back to callers,
// independent of whether the archive backing it is V1 or V2.
type Module struct {
	Specifier string
	Kind      ModuleKind

	source    *SourceSlot
	sourceMap *SourceSlot

	// takeSource overrides TakeSource's default slot-based behavior. V1
	// archives use it to remove the module from the archive entirely
	// (§9/DESIGN.md: V1's take-removes-the-module semantics, unlike V2
	// where the module entry survives and only its source is taken).
	takeSource func(ctx context.Context) ([]byte, error)
}

// Source returns the module's source bytes, blocking if they are still
// Pending in a streaming parse.
func (m *Module) Source(ctx context.Context) ([]byte, error) {
	if m.source == nil {
		return nil, nil
	}
	return m.source.Get(ctx)
}

// SourceMap returns the module's source-map bytes, or nil if it has
// none (V1 archives never carry one; see SPEC_FULL.md/DESIGN.md §9).
func (m *Module) SourceMap(ctx context.Context) ([]byte, error) {
	if m.sourceMap == nil {
		return nil, nil
	}
	return m.sourceMap.Get(ctx)
}

// TakeSource returns the module's source bytes and releases the slot's
// hold on them, same as SourceSlot.Take.
func (m *Module) TakeSource(ctx context.Context) ([]byte, error) {
	if m.takeSource != nil {
		return m.takeSource(ctx)
	}
	if m.source == nil {
		return nil, nil
	}
	return m.source.Take(ctx)
}

// TakeSourceMap returns the module's source-map bytes and releases the
// slot's hold on them, same as SourceSlot.Take.
func (m *Module) TakeSourceMap(ctx context.Context) ([]byte, error) {
	if m.sourceMap == nil {
		return nil, nil
	}
	return m.sourceMap.Take(ctx)
}
