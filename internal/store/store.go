// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts the pgxpool.Pool so the store can be exercised against
// pgxmock in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL persistence layer: session states, encrypted
// credentials and normalized resume data, one row per platform each.
type Store struct {
	pool DBPool
	log  *zap.Logger
	// encryptionKey is the shared pgcrypto key for credentials at rest.
	encryptionKey string
}

// Compile-time contract checks.
var (
	_ schemas.SessionStore    = (*Store)(nil)
	_ schemas.CredentialStore = (*Store)(nil)
	_ schemas.ResumeDataStore = (*Store)(nil)
)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, encryptionKey string, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool:          pool,
		log:           logger.Named("store"),
		encryptionKey: encryptionKey,
	}, nil
}

// serviceID resolves a platform name against the streaming_service catalog.
// An unknown platform is an operator error, not a soft miss.
func (s *Store) serviceID(ctx context.Context, platform schemas.Platform) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM streaming_service WHERE name = $1`, platform.String(),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("streaming service %q does not exist in streaming_service table", platform)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve streaming service %q: %w", platform, err)
	}
	return id, nil
}

// LoadSessionState returns the saved session for a platform, or (nil, nil)
// when none is stored. Absence is a normal first-run outcome.
func (s *Store) LoadSessionState(ctx context.Context, platform schemas.Platform) (*schemas.SessionState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
        SELECT ss.json_state
        FROM session_states ss
        JOIN streaming_service s ON ss.streaming_service_id = s.id
        WHERE s.name = $1`, platform.String(),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		s.log.Info("No session state stored", zap.String("platform", platform.String()))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state for %s: %w", platform, err)
	}

	var state schemas.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session state for %s: %w", platform, err)
	}
	return &state, nil
}

// SaveSessionState replaces the platform's session row wholesale. The
// advisory expiry passed to the persistence layer is the earliest positive
// cookie expiration; a stale session is not pre-filtered here, it is simply
// retried at the next login check.
func (s *Store) SaveSessionState(ctx context.Context, platform schemas.Platform, state *schemas.SessionState) error {
	id, err := s.serviceID(ctx, platform)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session state for %s: %w", platform, err)
	}

	var expires *int64
	if epoch, ok := state.EarliestExpiry(); ok {
		expires = &epoch
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO session_states (streaming_service_id, json_state, expires)
        VALUES ($1, $2, to_timestamp($3))
        ON CONFLICT (streaming_service_id) DO UPDATE
          SET json_state = $2, expires = to_timestamp($3), updated_at = now()`,
		id, raw, expires)
	if err != nil {
		return fmt.Errorf("failed to save session state for %s: %w", platform, err)
	}

	s.log.Info("Session state saved",
		zap.String("platform", platform.String()),
		zap.Int("cookies", len(state.Cookies)),
		zap.Bool("has_expiry", expires != nil),
	)
	return nil
}

// LoadCredentials returns the stored login for a platform, decrypted, or
// (nil, nil) when none is stored.
func (s *Store) LoadCredentials(ctx context.Context, platform schemas.Platform) (*schemas.Credentials, error) {
	var creds schemas.Credentials
	err := s.pool.QueryRow(ctx, `
        SELECT sa.email, pgp_sym_decrypt(sa.encrypted_password, $1)
        FROM streaming_accounts sa
        JOIN streaming_service s ON sa.streaming_service_id = s.id
        WHERE s.name = $2`, s.encryptionKey, platform.String(),
	).Scan(&creds.Email, &creds.Password)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials for %s: %w", platform, err)
	}
	return &creds, nil
}

// SaveCredentials upserts the platform's login, encrypted with the shared
// key. Last write wins.
func (s *Store) SaveCredentials(ctx context.Context, platform schemas.Platform, email, password string) error {
	id, err := s.serviceID(ctx, platform)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO streaming_accounts (streaming_service_id, email, encrypted_password)
        VALUES ($1, $2, pgp_sym_encrypt($3, $4))
        ON CONFLICT (streaming_service_id) DO UPDATE
          SET email = $2, encrypted_password = pgp_sym_encrypt($3, $4)`,
		id, email, password, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to save credentials for %s: %w", platform, err)
	}

	s.log.Info("Credentials saved", zap.String("platform", platform.String()), zap.String("email", email))
	return nil
}

// SaveResumeData upserts the normalized continue-watching output for a
// platform under the 'resume' data type.
func (s *Store) SaveResumeData(ctx context.Context, platform schemas.Platform, data schemas.ContinueWatchingData) error {
	id, err := s.serviceID(ctx, platform)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode resume data for %s: %w", platform, err)
	}

	_, err = s.pool.Exec(ctx, `
        INSERT INTO streaming_service_data (streaming_service_id, data_type, json_data)
        VALUES ($1, 'resume', $2)
        ON CONFLICT (streaming_service_id, data_type) DO UPDATE
          SET json_data = $2`,
		id, raw)
	if err != nil {
		return fmt.Errorf("failed to save resume data for %s: %w", platform, err)
	}

	s.log.Info("Resume data saved", zap.String("platform", platform.String()), zap.Int("items", len(data)))
	return nil
}
