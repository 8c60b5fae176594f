package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	// database/sql drivers: "libsql" for remote urls, "sqlite" for local files.
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// StoreConfig selects and authenticates the org_ingest_keys backend.
type StoreConfig struct {
	// URL is a file: path or a remote libsql://, https:// or http:// url.
	URL string

	// AuthToken is required for remote urls.
	AuthToken string
}

// Store is the org_ingest_keys lookup backend. database/sql pools and
// serializes connections internally, so one Store serves all request
// handlers concurrently.
type Store struct {
	db *sql.DB
}

// IsRemoteURL reports whether dbURL requires the remote libsql driver and a
// bearer auth token.
func IsRemoteURL(dbURL string) bool {
	return strings.HasPrefix(dbURL, "libsql://") ||
		strings.HasPrefix(dbURL, "https://") ||
		strings.HasPrefix(dbURL, "http://")
}

// OpenStore opens the key store and verifies connectivity.
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)

	if IsRemoteURL(cfg.URL) {
		if cfg.AuthToken == "" {
			return nil, errors.New("MAPLE_DB_AUTH_TOKEN is required for remote MAPLE_DB_URL")
		}

		dsn, derr := remoteDSN(cfg.URL, cfg.AuthToken)
		if derr != nil {
			return nil, derr
		}
		db, err = sql.Open("libsql", dsn)
	} else {
		path, perr := resolveLocalPath(cfg.URL)
		if perr != nil {
			return nil, perr
		}
		if dir := filepath.Dir(path); dir != "." {
			if merr := os.MkdirAll(dir, 0o755); merr != nil {
				return nil, errors.Wrap(merr, "create db directory")
			}
		}
		db, err = sql.Open("sqlite", "file:"+path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open key store")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping key store")
	}

	return &Store{db: db}, nil
}

// LookupOrgID finds the org owning the key hash. found is false when no row
// matches; errors indicate a store/transport failure.
func (s *Store) LookupOrgID(ctx context.Context, keyType KeyType, hash string) (string, bool, error) {
	query := fmt.Sprintf("SELECT org_id FROM org_ingest_keys WHERE %s = ? LIMIT 1", keyType.hashColumn())

	var orgID string
	err := s.db.QueryRowContext(ctx, query, hash).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "query org_ingest_keys")
	}

	return orgID, true, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func remoteDSN(dbURL, authToken string) (string, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid MAPLE_DB_URL")
	}

	q := u.Query()
	q.Set("authToken", authToken)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func resolveLocalPath(dbURL string) (string, error) {
	if strings.HasPrefix(dbURL, "file://") {
		u, err := url.Parse(dbURL)
		if err != nil || u.Path == "" {
			return "", errors.New("invalid MAPLE_DB_URL file path")
		}
		return u.Path, nil
	}

	if raw, ok := strings.CutPrefix(dbURL, "file:"); ok {
		path := strings.TrimSpace(raw)
		if path == "" {
			return "", errors.New("invalid MAPLE_DB_URL file path")
		}
		return path, nil
	}

	return dbURL, nil
}
