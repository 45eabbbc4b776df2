// Package fingerprint implements the 64-bit locality-sensitive hash used to
// detect near-duplicate memory statements.
//
// The token hash reproduces 32-bit signed JavaScript arithmetic
// (h = h*31 + charCode, wrapping) bit for bit, because fingerprints are
// compared against values stored by earlier client implementations.
package fingerprint

import (
	"strings"
)

// SimilarityThreshold is the default Hamming distance at or below which two
// fingerprints are considered near-duplicates.
const SimilarityThreshold = 3

// maxDistance is returned when two fingerprints cannot be compared.
const maxDistance = 64

// Tokenize canonicalizes text into a token set: lower-cased, split on
// non-alphanumeric runs, tokens of length <= 2 discarded. Duplicates
// collapse; order is irrelevant.
func Tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 2 {
			tokens[b.String()] = true
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// tokenHash computes the 32-bit rolling hash of a single token. Signed int32
// multiplication wraps in Go exactly like the `(h << 5) - h + code` sequence
// it mirrors.
func tokenHash(token string) uint32 {
	var h int32
	for _, r := range token {
		h = h*31 + int32(r)
	}
	return uint32(h)
}

// Compute returns the 64-bit simhash of text encoded as 16 hex nibbles.
// Bit i of the fingerprint is set iff, summed over all tokens, more token
// hashes had bit (i mod 32) set than clear. The low 32 bits of each token
// hash are reused for bits 32-63.
func Compute(text string) string {
	var vec [64]int
	for token := range Tokenize(text) {
		h := tokenHash(token)
		for i := 0; i < 64; i++ {
			if h&(1<<(i%32)) != 0 {
				vec[i]++
			} else {
				vec[i]--
			}
		}
	}

	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, 16)
	for i := 0; i < 64; i += 4 {
		nibble := 0
		if vec[i] > 0 {
			nibble += 8
		}
		if vec[i+1] > 0 {
			nibble += 4
		}
		if vec[i+2] > 0 {
			nibble += 2
		}
		if vec[i+3] > 0 {
			nibble += 1
		}
		out = append(out, hexDigits[nibble])
	}
	return string(out)
}

// HammingDistance counts differing bits between two hex-encoded
// fingerprints. Mismatched lengths (or an undecodable nibble) return the
// maximum possible distance instead of erroring.
func HammingDistance(f1, f2 string) int {
	if len(f1) != len(f2) {
		return maxDistance
	}
	dist := 0
	for i := 0; i < len(f1); i++ {
		a, ok1 := hexNibble(f1[i])
		b, ok2 := hexNibble(f2[i])
		if !ok1 || !ok2 {
			return maxDistance
		}
		x := a ^ b
		for x != 0 {
			dist += int(x & 1)
			x >>= 1
		}
	}
	return dist
}

// IsSimilar reports whether two fingerprints are within threshold Hamming
// distance of each other. A non-positive threshold falls back to the default.
func IsSimilar(f1, f2 string, threshold int) bool {
	if threshold <= 0 {
		threshold = SimilarityThreshold
	}
	return HammingDistance(f1, f2) <= threshold
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
