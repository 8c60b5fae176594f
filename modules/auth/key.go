package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	publicKeyPrefix  = "maple_pk_"
	privateKeyPrefix = "maple_sk_"

	// Length of the short identifier carried into logs. Long enough to
	// correlate, far too short to reverse.
	keyIDLen = 16
)

// KeyType distinguishes public from private ingest keys.
type KeyType int

const (
	KeyTypePublic KeyType = iota
	KeyTypePrivate
)

func (t KeyType) String() string {
	if t == KeyTypePrivate {
		return "private"
	}
	return "public"
}

// hashColumn is the org_ingest_keys column holding hashes for this key type.
func (t KeyType) hashColumn() string {
	if t == KeyTypePrivate {
		return "private_key_hash"
	}
	return "public_key_hash"
}

// ResolvedKey is the trusted identity produced by a successful key lookup.
// It is scoped to the request that presented the key and is never cached.
type ResolvedKey struct {
	OrgID   string
	KeyType KeyType

	// KeyID is the first 16 characters of the lookup hash, safe for logs.
	KeyID string
}

// InferKeyType determines the key type from the opaque key's prefix. ok is
// false for unrecognized prefixes; such keys never reach the store.
func InferKeyType(raw string) (KeyType, bool) {
	switch {
	case strings.HasPrefix(raw, publicKeyPrefix):
		return KeyTypePublic, true
	case strings.HasPrefix(raw, privateKeyPrefix):
		return KeyTypePrivate, true
	}
	return 0, false
}

// HashKey computes the keyed lookup hash of a raw ingest key:
// base64url (no padding) of HMAC-SHA256(secret, raw). The store only ever
// sees this hash, so a dump of org_ingest_keys is unusable without the
// process secret.
func HashKey(raw, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
