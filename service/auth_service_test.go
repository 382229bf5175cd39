// file: service/auth_service_test.go

package service

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"go-dine-api/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestAuthService_HashAndCheckPassword ensures that password hashing and verification methods work correctly.
func TestAuthService_HashAndCheckPassword(t *testing.T) {
	// HashPassword and CheckPasswordHash don't touch the repositories.
	authService := NewAuthService(nil, nil)
	password := "mySecretPassword123"

	hashedPassword, err := authService.HashPassword(password)
	require.NoError(t, err)
	assert.NotEqual(t, password, hashedPassword)

	assert.True(t, authService.CheckPasswordHash(password, hashedPassword))
	assert.False(t, authService.CheckPasswordHash("notMyPassword", hashedPassword))
}

func TestAuthService_Register(t *testing.T) {
	req := model.RegisterRequest{Username: "mika", Email: "mika@example.com", Password: "password123"}

	t.Run("success", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("GetUserByEmail", req.Email).Return(nil, sql.ErrNoRows).Once()
		users.On("CreateUser", mock.MatchedBy(func(u *model.User) bool {
			return u.Email == req.Email && u.Password != req.Password && u.Role == model.RoleUser
		})).Run(func(args mock.Arguments) {
			args.Get(0).(*model.User).ID = 12
		}).Return(nil).Once()

		user, err := NewAuthService(users, nil).Register(req)
		require.NoError(t, err)
		assert.Equal(t, 12, user.ID)
		users.AssertExpectations(t)
	})

	t.Run("email taken", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("GetUserByEmail", req.Email).Return(&model.User{ID: 1}, nil).Once()

		_, err := NewAuthService(users, nil).Register(req)
		assert.ErrorIs(t, err, ErrEmailTaken)
		users.AssertNotCalled(t, "CreateUser", mock.Anything)
	})

	t.Run("unique violation race", func(t *testing.T) {
		users := new(mockUserRepo)
		users.On("GetUserByEmail", req.Email).Return(nil, sql.ErrNoRows).Once()
		users.On("CreateUser", mock.Anything).Return(&pq.Error{Code: "23505"}).Once()

		_, err := NewAuthService(users, nil).Register(req)
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("lookup error", func(t *testing.T) {
		users := new(mockUserRepo)
		dbErr := errors.New("db down")
		users.On("GetUserByEmail", req.Email).Return(nil, dbErr).Once()

		_, err := NewAuthService(users, nil).Register(req)
		assert.ErrorIs(t, err, dbErr)
	})
}

func newTestUser(t *testing.T, svc *AuthService, role model.Role) *model.User {
	t.Helper()
	hashed, err := svc.HashPassword("password123")
	require.NoError(t, err)
	return &model.User{ID: 3, Username: "chef", Email: "chef@example.com", Password: hashed, Role: role}
}

func TestAuthService_LoginAndRefresh(t *testing.T) {
	users := new(mockUserRepo)
	tokens := new(mockTokenRepo)
	svc := NewAuthService(users, tokens)
	user := newTestUser(t, svc, model.RoleAdmin)

	var stored *model.RefreshToken
	users.On("GetUserByEmail", user.Email).Return(user, nil).Once()
	tokens.On("Create", mock.MatchedBy(func(rt *model.RefreshToken) bool {
		return rt.UserID == user.ID && len(rt.TokenHash) == 64 && rt.ExpiresAt.After(time.Now())
	})).Run(func(args mock.Arguments) {
		stored = args.Get(0).(*model.RefreshToken)
	}).Return(nil).Once()

	pair, err := svc.Login(user.Email, "password123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)
	assert.Equal(t, hashToken(pair.Refresh), stored.TokenHash)
	assert.NotEqual(t, pair.Refresh, stored.TokenHash, "refresh tokens are stored hashed")

	claims, err := svc.ParseAccessToken(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)

	tokens.On("GetByTokenHash", stored.TokenHash).Return(stored, nil).Once()
	users.On("GetUserByID", user.ID).Return(user, nil).Once()

	refreshed, err := svc.Refresh(pair.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Access)
	assert.Empty(t, refreshed.Refresh)

	newClaims, err := svc.ParseAccessToken(refreshed.Access)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, newClaims.ID)

	users.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestAuthService_LoginFailures(t *testing.T) {
	users := new(mockUserRepo)
	svc := NewAuthService(users, new(mockTokenRepo))
	user := newTestUser(t, svc, model.RoleUser)

	users.On("GetUserByEmail", "ghost@example.com").Return(nil, sql.ErrNoRows).Once()
	users.On("GetUserByEmail", user.Email).Return(user, nil).Once()

	_, err := svc.Login("ghost@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(user.Email, "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RefreshRejects(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		tokens := new(mockTokenRepo)
		tokens.On("GetByTokenHash", hashToken("nope")).Return(nil, sql.ErrNoRows).Once()

		_, err := NewAuthService(new(mockUserRepo), tokens).Refresh("nope")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("expired token is deleted", func(t *testing.T) {
		tokens := new(mockTokenRepo)
		hash := hashToken("old")
		tokens.On("GetByTokenHash", hash).Return(&model.RefreshToken{
			UserID:    3,
			TokenHash: hash,
			ExpiresAt: time.Now().Add(-time.Minute),
		}, nil).Once()
		tokens.On("DeleteByTokenHash", hash).Return(true, nil).Once()

		_, err := NewAuthService(new(mockUserRepo), tokens).Refresh("old")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		tokens.AssertExpectations(t)
	})

	t.Run("user gone", func(t *testing.T) {
		tokens := new(mockTokenRepo)
		users := new(mockUserRepo)
		hash := hashToken("orphan")
		tokens.On("GetByTokenHash", hash).Return(&model.RefreshToken{
			UserID:    9,
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil).Once()
		users.On("GetUserByID", 9).Return(nil, sql.ErrNoRows).Once()

		_, err := NewAuthService(users, tokens).Refresh("orphan")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})
}

func TestAuthService_Revoke(t *testing.T) {
	tokens := new(mockTokenRepo)
	svc := NewAuthService(new(mockUserRepo), tokens)

	tokens.On("DeleteByTokenHash", hashToken("r1")).Return(false, nil).Once()
	tokens.On("DeleteByUserID", 3).Return(nil).Once()

	assert.NoError(t, svc.Revoke("r1"))
	assert.NoError(t, svc.RevokeAll(3))
	tokens.AssertExpectations(t)
}

func TestAuthService_ParseAccessTokenRejects(t *testing.T) {
	svc := NewAuthService(nil, nil)
	user := &model.User{ID: 1, Role: model.RoleUser}

	t.Run("expired", func(t *testing.T) {
		past := NewAuthService(nil, nil)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := past.GenerateAccessToken(user)
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidAccessToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		claims := &model.AppClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidAccessToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &model.AppClaims{UserID: 1}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidAccessToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ParseAccessToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidAccessToken)
	})
}
