// Package digest provides the content-addressing scheme used to identify
// every op in an LLB graph. It is a thin wrapper over go-digest, the same
// digest type the container ecosystem (buildkit, containerd, moby) uses
// for this exact purpose, so that Digest values printed by this module are
// directly comparable to ones logged by the daemon.
package digest

import (
	"crypto/sha256"

	godigest "github.com/opencontainers/go-digest"
)

// A Digest is a string of the form "sha256:" + 64 lowercase hex characters.
type Digest = godigest.Digest

// Of computes the digest of a byte slice: the canonical wire encoding of
// some op, in this module's usage.
func Of(b []byte) Digest {
	sum := sha256.Sum256(b)
	return godigest.NewDigestFromBytes(godigest.SHA256, sum[:])
}

// FromSum wraps an already-computed sha256 sum (32 bytes) as a Digest,
// without hashing it again. Used where the caller holds a running
// hash.Hash and just needs its final Sum formatted, e.g. fsscan's context
// hash.
func FromSum(sum []byte) Digest {
	return godigest.NewDigestFromBytes(godigest.SHA256, sum)
}

// Validate returns an error if d is not a well-formed sha256 digest.
func Validate(d Digest) error {
	return d.Validate()
}
