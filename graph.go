// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

import "context"

// MediaType classifies a graph module's source so BuildFromGraph knows
// whether to store it as-is or hand it to a Parser/Emitter first (§4.5's
// transpile dispatch table).
type MediaType int

const (
	MediaTypeJavaScript MediaType = iota
	MediaTypeMjs
	MediaTypeJsx
	MediaTypeTypeScript
	MediaTypeMts
	MediaTypeTsx
	MediaTypeDts
	MediaTypeDmts
	MediaTypeJson
)

// GraphModuleKind mirrors deno_graph's module classification closely
// enough for BuildFromGraph's dispatch: Esm/Json modules are embedded,
// External/BuiltIn/Node/Npm modules are not (they resolve outside the
// archive at load time).
type GraphModuleKind int

const (
	GraphModuleKindEsm GraphModuleKind = iota
	GraphModuleKindJson
	GraphModuleKindExternal
	GraphModuleKindBuiltIn
	GraphModuleKindNode
	GraphModuleKindNpm
)

// Parser turns source bytes into a form Emitter can transpile. Supplied
// by the caller; this package never parses or type-checks JS/TS itself.
type Parser interface {
	ParseModule(ctx context.Context, specifier string, source []byte, mediaType MediaType) (ParsedModule, error)
}

// ParsedModule is a parsed-but-not-yet-emitted module, handed back by a
// Parser.
type ParsedModule interface {
	Transpile(opts EmitOptions) (TranspiledSource, error)
}

// TranspiledSource is the output of transpiling a ParsedModule.
type TranspiledSource struct {
	Text      []byte
	SourceMap []byte // nil when the parser/emitter produced none
}

// EmitOptions controls how a ParsedModule is transpiled. BuildFromGraph
// always requests InlineSources=true, SourceMap=true, matching
// original_source/src/v2.rs's from_graph (inline_sources=true,
// inline_source_map=false, source_map=true).
type EmitOptions struct {
	InlineSources bool
	SourceMap     bool
}

// Graph is the resolved module graph BuildFromGraph walks. Supplied by
// the caller -- a real implementation would wrap something like
// deno_graph's Go equivalent; this package only walks the interface.
type Graph interface {
	Roots() []string
	Redirects() map[string]string
	Module(specifier string) (GraphModule, bool)
}

// GraphModule is one resolved node in a Graph.
type GraphModule struct {
	Specifier    string
	MediaType    MediaType
	Source       []byte
	Dependencies []GraphDependency
	Kind         GraphModuleKind
}

// GraphDependency is one edge out of a GraphModule. Dynamic edges are
// never followed by BuildFromGraph (original_source/src/v2.rs's
// visit_module: "if dep.is_dynamic { continue }").
type GraphDependency struct {
	Specifier string
	Dynamic   bool
}

// BuildFromGraph walks graph depth-first from its roots, embedding each
// Esm module (JavaScript/Mjs as-is, every other media type transpiled
// through parser/emitOptions) and each Json module verbatim, and returns
// the resulting archive. External, BuiltIn, Node and Npm modules are not
// embedded -- they resolve outside the archive at load time -- and
// dynamic dependencies are never followed. A root or static dependency
// the graph does not contain fails with a FromGraphError, matching
// spec.md §4.5 and
// original_source/src/v2.rs's from_graph/visit_module.
func BuildFromGraph(ctx context.Context, graph Graph, parser Parser, emitOptions EmitOptions) (*EszipV2, error) {
	emitOptions.InlineSources = true
	emitOptions.SourceMap = true

	eszip := NewV2()
	visited := make(map[string]bool)

	var visit func(specifier string) error
	visit = func(specifier string) error {
		mod, ok := graph.Module(specifier)
		if !ok {
			return &FromGraphError{Specifier: specifier, Reason: "module not found"}
		}
		specifier = mod.Specifier
		if visited[specifier] {
			return nil
		}

		switch mod.Kind {
		case GraphModuleKindEsm:
			source, sourceMap, err := renderEsmModule(ctx, parser, mod, emitOptions)
			if err != nil {
				return err
			}
			visited[specifier] = true
			eszip.AddModule(specifier, ModuleKindJavaScript, source, sourceMap)
		case GraphModuleKindJson:
			visited[specifier] = true
			eszip.AddModule(specifier, ModuleKindJson, mod.Source, nil)
		case GraphModuleKindExternal, GraphModuleKindBuiltIn, GraphModuleKindNode, GraphModuleKindNpm:
			return nil
		default:
			return nil
		}

		for _, dep := range mod.Dependencies {
			if dep.Dynamic {
				continue
			}
			if err := visit(dep.Specifier); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range graph.Roots() {
		if err := visit(root); err != nil {
			return nil, err
		}
	}

	for from, to := range graph.Redirects() {
		eszip.AddRedirect(from, to)
	}

	return eszip, nil
}

func renderEsmModule(ctx context.Context, parser Parser, mod GraphModule, emitOptions EmitOptions) (source, sourceMap []byte, err error) {
	switch mod.MediaType {
	case MediaTypeJavaScript, MediaTypeMjs:
		return mod.Source, nil, nil
	case MediaTypeJsx, MediaTypeTypeScript, MediaTypeMts, MediaTypeTsx, MediaTypeDts, MediaTypeDmts:
		parsed, err := parser.ParseModule(ctx, mod.Specifier, mod.Source, mod.MediaType)
		if err != nil {
			return nil, nil, &FromGraphError{Specifier: mod.Specifier, Reason: "parse", Cause: err}
		}
		transpiled, err := parsed.Transpile(emitOptions)
		if err != nil {
			return nil, nil, &FromGraphError{Specifier: mod.Specifier, Reason: "transpile", Cause: err}
		}
		return transpiled.Text, transpiled.SourceMap, nil
	default:
		return nil, nil, &FromGraphError{Specifier: mod.Specifier, Reason: "unsupported media type"}
	}
}
