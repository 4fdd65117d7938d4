// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// NpmPackageID identifies a resolved npm package by name and version
// (§3; V2.1+ only).
type NpmPackageID struct {
	Name    string
	Version string
}

// String renders the ID the way it appears on the wire: "name@version".
func (id *NpmPackageID) String() string {
	return id.Name + "@" + id.Version
}

// ParseNpmPackageID splits a wire-format "name@version" string back
// into its parts. Scoped names (e.g. "@types/node") contain a leading
// '@' that is not the name/version separator, so the split happens at
// the last '@' in the string, not the first.
func ParseNpmPackageID(s string) (*NpmPackageID, error) {
	idx := strings.LastIndex(s, "@")
	if idx <= 0 {
		return nil, fmt.Errorf("invalid npm package id %q: missing name@version separator", s)
	}
	name := s[:idx]
	version := s[idx+1:]
	if version == "" {
		return nil, fmt.Errorf("invalid npm package id %q: missing version", s)
	}
	return &NpmPackageID{Name: name, Version: version}, nil
}

// NpmPackage is one entry in an npm resolution snapshot: the package's
// own identity plus its dependencies, keyed by the requirement string
// the importing package asked for.
type NpmPackage struct {
	ID           *NpmPackageID
	Dependencies map[string]*NpmPackageID
}

// NpmResolutionSnapshot is the full npm dependency graph embedded in a
// V2.1+ archive: every resolved package, plus the root requirement
// strings (what the module graph's npm: specifiers actually asked for)
// mapped to the package they resolved to.
type NpmResolutionSnapshot struct {
	Packages     []*NpmPackage
	RootPackages map[string]*NpmPackageID
}

type rawNpmPackage struct {
	id   *NpmPackageID
	deps []rawNpmDep
}

type rawNpmDep struct {
	req string
	idx uint32
}

// parseNpmSection reads the npm snapshot section (§4.3) and resolves it
// against the NpmSpecifier entries already recovered from the module
// table header (npmSpecifiers: requirement string -> package index).
func parseNpmSection(br *bufio.Reader, options Options, npmSpecifiers map[string]NpmPackageIndex) (*NpmResolutionSnapshot, error) {
	section, err := readSection(br, options)
	if err != nil {
		return nil, err
	}
	if !section.IsChecksumValid() {
		return nil, errInvalidV2NpmSnapshotHash()
	}

	content := section.Content()
	if len(npmSpecifiers) == 0 && len(content) == 0 {
		return nil, nil
	}

	read := 0
	var raw []rawNpmPackage

	for read < len(content) {
		idStr, n, err := readLenPrefixedString(content[read:])
		if err != nil {
			return nil, errInvalidV2Header("npm package id")
		}
		read += n

		id, err := ParseNpmPackageID(idStr)
		if err != nil {
			return nil, errInvalidV2NpmPackage(idStr, err)
		}

		if read+4 > len(content) {
			return nil, errInvalidV2NpmPackage(idStr, fmt.Errorf("truncated dependency count"))
		}
		depCount := binary.BigEndian.Uint32(content[read : read+4])
		read += 4

		deps := make([]rawNpmDep, 0, depCount)
		for i := uint32(0); i < depCount; i++ {
			req, n, err := readLenPrefixedString(content[read:])
			if err != nil {
				return nil, errInvalidV2NpmPackageReq(idStr, err)
			}
			read += n

			if read+4 > len(content) {
				return nil, errInvalidV2NpmPackageReq(idStr, fmt.Errorf("truncated dependency index"))
			}
			idx := binary.BigEndian.Uint32(content[read : read+4])
			read += 4

			deps = append(deps, rawNpmDep{req: req, idx: idx})
		}

		raw = append(raw, rawNpmPackage{id: id, deps: deps})
	}

	packages := make([]*NpmPackage, len(raw))
	for i, r := range raw {
		packages[i] = &NpmPackage{ID: r.id, Dependencies: make(map[string]*NpmPackageID, len(r.deps))}
	}
	for i, r := range raw {
		for _, dep := range r.deps {
			if int(dep.idx) >= len(packages) {
				return nil, errInvalidV2NpmPackageOffset(int(dep.idx), fmt.Errorf("dependency %q of %q references unknown package", dep.req, r.id.String()))
			}
			packages[i].Dependencies[dep.req] = packages[dep.idx].ID
		}
	}

	rootPackages := make(map[string]*NpmPackageID, len(npmSpecifiers))
	for req, pkgIdx := range npmSpecifiers {
		if int(pkgIdx.Index) >= len(packages) {
			return nil, errInvalidV2NpmPackageOffset(int(pkgIdx.Index), fmt.Errorf("root package %q references unknown package", req))
		}
		rootPackages[req] = packages[pkgIdx.Index].ID
	}

	return &NpmResolutionSnapshot{Packages: packages, RootPackages: rootPackages}, nil
}

func readLenPrefixedString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, io.ErrUnexpectedEOF
	}
	length := binary.BigEndian.Uint32(b[:4])
	if uint64(length) > uint64(len(b)-4) {
		return "", 0, io.ErrUnexpectedEOF
	}
	return string(b[4 : 4+length]), 4 + int(length), nil
}
