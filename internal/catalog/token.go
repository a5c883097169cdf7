package catalog

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenLength is the number of hex characters kept from the digest. The
// resulting 64 bits of entropy keep the collision probability across a
// realistically sized catalog negligible while fitting comfortably inside
// a size-capped button payload.
const TokenLength = 16

// EncodeTitle derives the short opaque token for a title. Deterministic:
// the same title always yields the same token, so no issued-token table is
// needed anywhere.
func EncodeTitle(title string) string {
	sum := sha256.Sum256([]byte(title))
	return hex.EncodeToString(sum[:])[:TokenLength]
}

// DecodeTitle finds the candidate title whose token matches. This is a
// linear scan, not an inverse hash: it only works because the caller hands
// over the closed set of live titles. On a collision the first match in
// slice order wins.
func DecodeTitle(token string, titles []string) (string, bool) {
	for _, title := range titles {
		if EncodeTitle(title) == token {
			return title, true
		}
	}
	return "", false
}
