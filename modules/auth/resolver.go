package auth

import (
	"context"
)

// Resolver authenticates raw ingest keys against the org key store.
type Resolver struct {
	store  *Store
	secret string
}

// NewResolver builds a resolver around the store and the process-wide lookup
// HMAC secret.
func NewResolver(store *Store, lookupHMACKey string) *Resolver {
	return &Resolver{
		store:  store,
		secret: lookupHMACKey,
	}
}

// Resolve maps a presented key to its owning org. A nil, nil return means
// the key is unknown (or carries an unrecognized prefix, which short-circuits
// without touching the store); an error means the store itself failed and the
// caller should surface a retryable condition.
func (r *Resolver) Resolve(ctx context.Context, rawKey string) (*ResolvedKey, error) {
	keyType, ok := InferKeyType(rawKey)
	if !ok {
		return nil, nil
	}

	hash := HashKey(rawKey, r.secret)

	orgID, found, err := r.store.LookupOrgID(ctx, keyType, hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return &ResolvedKey{
		OrgID:   orgID,
		KeyType: keyType,
		KeyID:   hash[:keyIDLen],
	}, nil
}
