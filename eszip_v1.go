// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// eszipV1GraphVersion is the only version number a V1 archive may
// declare (§4.3's version discriminant for the no-magic JSON format).
const eszipV1GraphVersion = 1

// EszipV1 is the original JSON-encoded archive format: a flat map from
// specifier to either a redirect or an inline module source. It has no
// source maps or import map of its own and, unlike V2, removes a module
// from the archive entirely once its source is taken (§9/DESIGN.md).
type EszipV1 struct {
	mu      sync.Mutex
	version int
	modules map[string]*v1ModuleInfo
}

type v1ModuleInfo struct {
	isRedirect bool
	redirect   string

	source        string
	transpiled    string
	hasTranspiled bool
	contentType   string
	deps          []string
}

type v1Wire struct {
	Version int                        `json:"version"`
	Modules map[string]v1ModuleInfoWire `json:"modules"`
}

// v1ModuleInfoWire mirrors original_source/src/v1.rs's externally
// tagged `ModuleInfo` enum: exactly one of Redirect/Source is present
// on the wire.
type v1ModuleInfoWire struct {
	Redirect *string             `json:"Redirect,omitempty"`
	Source   *v1ModuleSourceWire `json:"Source,omitempty"`
}

type v1ModuleSourceWire struct {
	Source      string   `json:"source"`
	Transpiled  *string  `json:"transpiled"`
	ContentType *string  `json:"content_type"`
	Deps        []string `json:"deps"`
}

// ParseV1 decodes a V1 JSON archive.
func ParseV1(data []byte) (*EszipV1, error) {
	var wire v1Wire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &ParseError{Type: ErrInvalidV1Json, Cause: err}
	}
	if wire.Version != eszipV1GraphVersion {
		return nil, &ParseError{
			Type:    ErrInvalidV1Version,
			Message: fmt.Sprintf("expected version %d, got %d", eszipV1GraphVersion, wire.Version),
		}
	}

	modules := make(map[string]*v1ModuleInfo, len(wire.Modules))
	for specifier, info := range wire.Modules {
		switch {
		case info.Redirect != nil:
			modules[specifier] = &v1ModuleInfo{isRedirect: true, redirect: *info.Redirect}
		case info.Source != nil:
			m := &v1ModuleInfo{
				source: info.Source.Source,
				deps:   info.Source.Deps,
			}
			if info.Source.Transpiled != nil {
				m.hasTranspiled = true
				m.transpiled = *info.Source.Transpiled
			}
			if info.Source.ContentType != nil {
				m.contentType = *info.Source.ContentType
			}
			modules[specifier] = m
		}
	}

	return &EszipV1{version: wire.Version, modules: modules}, nil
}

// IntoBytes serializes the archive back to V1 JSON.
func (e *EszipV1) IntoBytes() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wire := v1Wire{
		Version: e.version,
		Modules: make(map[string]v1ModuleInfoWire, len(e.modules)),
	}
	for specifier, info := range e.modules {
		if info.isRedirect {
			target := info.redirect
			wire.Modules[specifier] = v1ModuleInfoWire{Redirect: &target}
			continue
		}
		src := &v1ModuleSourceWire{Source: info.source, Deps: info.deps}
		if info.hasTranspiled {
			t := info.transpiled
			src.Transpiled = &t
		}
		if info.contentType != "" {
			ct := info.contentType
			src.ContentType = &ct
		}
		wire.Modules[specifier] = v1ModuleInfoWire{Source: src}
	}

	return json.Marshal(wire)
}

// GetModule resolves specifier, chasing redirects with a visited-set
// cycle guard, same contract as EszipV2.GetModule. V1 modules are
// always reported as JavaScript (§9: the format predates module kinds).
func (e *EszipV1) GetModule(specifier string) *Module {
	e.mu.Lock()
	defer e.mu.Unlock()

	visited := make(map[string]bool)
	cur := specifier
	for {
		if visited[cur] {
			return nil
		}
		visited[cur] = true

		info, ok := e.modules[cur]
		if !ok {
			return nil
		}
		if info.isRedirect {
			cur = info.redirect
			continue
		}

		resolved := cur
		return &Module{
			Specifier: resolved,
			Kind:      ModuleKindJavaScript,
			source:    NewReadySourceSlot([]byte(e.preferredSource(info))),
			sourceMap: NewEmptySourceSlot(),
			takeSource: func(ctx context.Context) ([]byte, error) {
				return e.take(resolved), nil
			},
		}
	}
}

// GetImportMap always returns nil: V1 archives never carry an import
// map of their own.
func (e *EszipV1) GetImportMap(_ string) *Module {
	return nil
}

// Specifiers returns every specifier in the archive, in map order (V1
// has no wire-order concept -- it was always a JSON object).
func (e *EszipV1) Specifiers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.modules))
	for specifier := range e.modules {
		out = append(out, specifier)
	}
	return out
}

// Iterate returns every non-redirect module as a Module facade.
func (e *EszipV1) Iterate() []*Module {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Module
	for specifier, info := range e.modules {
		if info.isRedirect {
			continue
		}
		resolved := specifier
		out = append(out, &Module{
			Specifier: specifier,
			Kind:      ModuleKindJavaScript,
			source:    NewReadySourceSlot([]byte(e.preferredSource(info))),
			sourceMap: NewEmptySourceSlot(),
			takeSource: func(ctx context.Context) ([]byte, error) {
				return e.take(resolved), nil
			},
		})
	}
	return out
}

// preferredSource returns the transpiled source when present, falling
// back to the original source otherwise (original_source/src/v1.rs's
// get_module_source). This preference is read-only: IntoBytes never
// synthesizes a transpiled field, since this system never produces V1
// archives itself (DESIGN.md Open Question decision #3).
func (e *EszipV1) preferredSource(info *v1ModuleInfo) string {
	if info.hasTranspiled {
		return info.transpiled
	}
	return info.source
}

// take removes specifier from the archive entirely and returns its
// preferred source bytes, matching V1's removal-on-take semantics.
func (e *EszipV1) take(specifier string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.modules[specifier]
	if !ok {
		return nil
	}
	delete(e.modules, specifier)
	return []byte(e.preferredSource(info))
}
