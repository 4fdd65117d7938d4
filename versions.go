// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

// EszipVersion identifies which V2 wire revision an archive uses.
type EszipVersion uint8

const (
	VersionV2 EszipVersion = iota
	VersionV2_1
	VersionV2_2
	VersionV2_3
)

// LatestVersion is the version IntoBytes writes by default.
const LatestVersion = VersionV2_2

var (
	MagicV2   = [8]byte{'E', 'S', 'Z', 'I', 'P', '_', 'V', '2'}
	MagicV2_1 = [8]byte{'E', 'S', 'Z', 'I', 'P', '2', '.', '1'}
	MagicV2_2 = [8]byte{'E', 'S', 'Z', 'I', 'P', '2', '.', '2'}
	MagicV2_3 = [8]byte{'E', 'S', 'Z', 'I', 'P', '2', '.', '3'}
)

// VersionFromMagic identifies the V2 revision a magic prefix declares.
// It returns false for anything shorter than 8 bytes or not matching a
// known magic (including absent magic, i.e. a V1 JSON document).
func VersionFromMagic(magic []byte) (EszipVersion, bool) {
	if len(magic) < 8 {
		return 0, false
	}
	switch {
	case bytesEqual8(magic, MagicV2):
		return VersionV2, true
	case bytesEqual8(magic, MagicV2_1):
		return VersionV2_1, true
	case bytesEqual8(magic, MagicV2_2):
		return VersionV2_2, true
	case bytesEqual8(magic, MagicV2_3):
		return VersionV2_3, true
	default:
		return 0, false
	}
}

// ToMagic returns the 8-byte magic for v. An unrecognised version value
// defaults to the latest known magic.
func (v EszipVersion) ToMagic() [8]byte {
	switch v {
	case VersionV2:
		return MagicV2
	case VersionV2_1:
		return MagicV2_1
	case VersionV2_2:
		return MagicV2_2
	case VersionV2_3:
		return MagicV2_3
	default:
		return MagicV2_3
	}
}

// HasMagic reports whether data begins with any known V2 magic.
func HasMagic(data []byte) bool {
	_, ok := VersionFromMagic(data)
	return ok
}

// SupportsNpm reports whether v's module table may carry NpmSpecifier
// entries and the archive may carry an npm snapshot section (V2.1+).
func (v EszipVersion) SupportsNpm() bool {
	return v >= VersionV2_1
}

// SupportsOptions reports whether v's stream carries the options section
// introduced in V2.2 (tuneable checksum selector/size).
func (v EszipVersion) SupportsOptions() bool {
	return v >= VersionV2_2
}

// SupportsWasm reports whether v is V2.3 or later, the revision that
// introduced the Wasm module kind (the teacher's supplemental extension;
// see SPEC_FULL.md §1.1). The parser and IntoBytes do not consult it: the
// Wasm kind byte is read and written under every V2 revision.
func (v EszipVersion) SupportsWasm() bool {
	return v >= VersionV2_3
}

func bytesEqual8(b []byte, magic [8]byte) bool {
	for i := 0; i < 8; i++ {
		if b[i] != magic[i] {
			return false
		}
	}
	return true
}
