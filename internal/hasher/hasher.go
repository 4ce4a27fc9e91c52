// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hasher computes content fingerprints used to address assets in
// the blob store. Fingerprints are pure functions of the payload bytes.
package hasher

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"
)

// Algorithm names a fingerprint function.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
	CID    Algorithm = "cid"
)

// Hasher produces hex (or CID string) fingerprints for byte payloads. The
// zero value uses SHA-1, which matches stores populated by earlier runs.
type Hasher struct {
	Algorithm Algorithm
}

// Parse returns the Hasher for name. An empty name selects the default.
func Parse(name string) (Hasher, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case "", SHA1:
		return Hasher{Algorithm: SHA1}, nil
	case SHA256, BLAKE3, CID:
		return Hasher{Algorithm: a}, nil
	default:
		return Hasher{}, fmt.Errorf("unknown hash algorithm %q (want sha1, sha256, blake3, or cid)", name)
	}
}

// Fingerprint returns the default SHA-1 hex fingerprint of b.
func Fingerprint(b []byte) string {
	return Hasher{}.Sum(b)
}

// Sum returns the fingerprint of b.
func (h Hasher) Sum(b []byte) string {
	if h.Algorithm == CID {
		sum, err := multihash.Sum(b, multihash.SHA2_256, -1)
		if err != nil {
			// unreachable for SHA2_256 with default length
			return ""
		}
		return cid.NewCidV1(cid.Raw, sum).String()
	}
	d := h.newHash()
	d.Write(b)
	return hex.EncodeToString(d.Sum(nil))
}

// Stream hashes everything read from r. It returns the fingerprint and the
// number of bytes consumed.
func (h Hasher) Stream(r io.Reader) (string, int64, error) {
	if h.Algorithm == CID {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", int64(len(b)), err
		}
		return h.Sum(b), int64(len(b)), nil
	}
	d := h.newHash()
	n, err := io.Copy(d, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(d.Sum(nil)), n, nil
}

func (h Hasher) newHash() hash.Hash {
	switch h.Algorithm {
	case SHA256:
		return sha256.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}
