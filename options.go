// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

// Options carries the tunable checksum selector and digest size
// introduced by the V2.2 options header (§4.3).
type Options struct {
	Checksum     ChecksumType
	ChecksumSize uint8
}

// GetChecksumSize returns the digest size to use for this archive's
// sections. A zero ChecksumSize (the options header's "use the
// checksum's own size" shorthand) falls back to Checksum.DigestSize.
func (o Options) GetChecksumSize() uint8 {
	if o.ChecksumSize != 0 {
		return o.ChecksumSize
	}
	return o.Checksum.DigestSize()
}

// DefaultOptionsForVersion returns the options an archive of version v
// carries when no explicit options header is present (pre-V2.2) or when
// a freshly built archive hasn't had SetChecksum called. V2/V2.1 always
// hashed with SHA-256; V2.2+ defaults to no checksum since the options
// header makes the choice explicit per-archive.
func DefaultOptionsForVersion(v EszipVersion) Options {
	if v.SupportsOptions() {
		return Options{Checksum: ChecksumNone}
	}
	return Options{Checksum: ChecksumSha256}
}
