package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"go-dine-api/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTokenRepository(db)
	hash := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	expires := time.Now().Add(time.Hour)

	t.Run("create", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO refresh_tokens`)).
			WithArgs(3, hash, expires).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, time.Now()))

		token := &model.RefreshToken{UserID: 3, TokenHash: hash, ExpiresAt: expires}
		require.NoError(t, repo.Create(token))
		assert.Equal(t, 11, token.ID)
	})

	t.Run("get by hash", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM refresh_tokens WHERE token_hash = $1`)).
			WithArgs(hash).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).
				AddRow(11, 3, hash, expires, time.Now()))

		token, err := repo.GetByTokenHash(hash)
		require.NoError(t, err)
		assert.Equal(t, 3, token.UserID)
		assert.Equal(t, expires, token.ExpiresAt)
	})

	t.Run("get by hash missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM refresh_tokens WHERE token_hash = $1`)).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByTokenHash("nope")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("delete by hash", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE token_hash = $1`)).
			WithArgs(hash).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE token_hash = $1`)).
			WithArgs(hash).
			WillReturnResult(sqlmock.NewResult(0, 0))

		deleted, err := repo.DeleteByTokenHash(hash)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.DeleteByTokenHash(hash)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("delete by user", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM refresh_tokens WHERE user_id = $1`)).
			WithArgs(3).
			WillReturnError(errors.New("connection lost"))

		assert.Error(t, repo.DeleteByUserID(3))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
