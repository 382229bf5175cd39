// file: tokenstore/postgres.go

package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-dine-api/logger"

	"github.com/sirupsen/logrus"
)

// PostgresStore keeps tokens in a client_tokens table, one row per
// (namespace, key).
type PostgresStore struct {
	DB        *sql.DB
	namespace string
}

func NewPostgresStore(db *sql.DB, namespace string) *PostgresStore {
	return &PostgresStore{DB: db, namespace: namespace}
}

// EnsureSchema creates the client_tokens table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS client_tokens (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (namespace, key)
	)`
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		logger.Log.WithError(err).Error("Failed to create client_tokens table")
		return fmt.Errorf("failed to create client_tokens table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	query := `SELECT value FROM client_tokens WHERE namespace = $1 AND key = $2`
	err := s.DB.QueryRowContext(ctx, query, s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"namespace": s.namespace,
			"key":       key,
		}).WithError(err).Error("Failed to execute get token query")
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO client_tokens (namespace, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.DB.ExecContext(ctx, query, s.namespace, key, value); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"namespace": s.namespace,
			"key":       key,
		}).WithError(err).Error("Failed to execute upsert token query")
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	query := `DELETE FROM client_tokens WHERE namespace = $1 AND key = $2`
	if _, err := s.DB.ExecContext(ctx, query, s.namespace, key); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"namespace": s.namespace,
			"key":       key,
		}).WithError(err).Error("Failed to execute delete token query")
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
