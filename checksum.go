// Copyright 2018-2024 the Deno authors. All rights reserved. MIT license.

package eszip

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// ChecksumType selects the hash function used to verify a Section's body.
// The discriminant values are part of the wire format (§4.1) and must not
// change.
type ChecksumType uint8

const (
	ChecksumNone   ChecksumType = 0
	ChecksumSha256 ChecksumType = 1
	ChecksumXxh3   ChecksumType = 2
)

// DigestSize returns the number of bytes a digest produced by c occupies.
// ChecksumType values outside the known set report a size of 0. They only
// arise from converting an arbitrary uint8: ChecksumFromU8 maps an unknown
// discriminant to ChecksumNone, and the parser then takes the digest size
// from the options header instead.
func (c ChecksumType) DigestSize() uint8 {
	switch c {
	case ChecksumNone:
		return 0
	case ChecksumSha256:
		return 32
	case ChecksumXxh3:
		return 8
	default:
		return 0
	}
}

// Hash computes the big-endian digest of data under c. None always yields
// nil; an unrecognised checksum type also yields nil, since there is no
// function to run.
func (c ChecksumType) Hash(data []byte) []byte {
	switch c {
	case ChecksumNone:
		return nil
	case ChecksumSha256:
		sum := sha256.Sum256(data)
		return sum[:]
	case ChecksumXxh3:
		sum := xxh3.Hash(data)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, sum)
		return buf
	default:
		return nil
	}
}

// Verify reports whether expected is the correct digest of data under c.
// None always verifies (there is nothing to check); an unrecognised
// checksum type also verifies trivially -- the caller has no function to
// run and must treat the stream as unverifiable, not corrupt.
func (c ChecksumType) Verify(data, expected []byte) bool {
	switch c {
	case ChecksumNone:
		return true
	case ChecksumSha256, ChecksumXxh3:
		got := c.Hash(data)
		if len(got) != len(expected) {
			return false
		}
		for i := range got {
			if got[i] != expected[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// ChecksumFromU8 parses a checksum discriminant read off the wire. Unknown
// discriminants return (None, false) so a caller can still learn the
// archive's declared digest size separately and skip the right number of
// bytes without verifying them.
func ChecksumFromU8(b uint8) (ChecksumType, bool) {
	switch b {
	case 0:
		return ChecksumNone, true
	case 1:
		return ChecksumSha256, true
	case 2:
		return ChecksumXxh3, true
	default:
		return ChecksumNone, false
	}
}
