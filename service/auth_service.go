package service

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-dine-api/config"
	"go-dine-api/logger"
	"go-dine-api/model"
	"go-dine-api/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrInvalidAccessToken  = errors.New("invalid or expired access token")
	ErrEmailTaken          = errors.New("email is already registered")
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// uniqueViolation is the Postgres error code for a unique constraint failure.
const uniqueViolation = "23505"

type AuthService struct {
	userRepo  repository.IUserRepository
	tokenRepo repository.ITokenRepository
	now       func() time.Time
}

func NewAuthService(userRepo repository.IUserRepository, tokenRepo repository.ITokenRepository) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		now:       time.Now,
	}
}

func getJwtKey() []byte {
	return []byte(config.AppConfig.JWT.SecretKey)
}

func accessTTL() time.Duration {
	if ttl := config.AppConfig.JWT.AccessTTL; ttl > 0 {
		return ttl
	}
	return defaultAccessTTL
}

func refreshTTL() time.Duration {
	if ttl := config.AppConfig.JWT.RefreshTTL; ttl > 0 {
		return ttl
	}
	return defaultRefreshTTL
}

func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}

func (s *AuthService) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Register creates a user with the default role.
func (s *AuthService) Register(req model.RegisterRequest) (*model.User, error) {
	log := logger.Log.WithField("email", req.Email)

	if _, err := s.userRepo.GetUserByEmail(req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hashed, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hashed,
		Role:     model.RoleUser,
	}
	if err := s.userRepo.CreateUser(user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login checks the credentials and issues a new token pair.
func (s *AuthService) Login(email, password string) (*model.TokenPair, error) {
	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.CheckPasswordHash(password, user.Password) {
		logger.Log.WithField("user_id", user.ID).Warn("Login attempt with wrong password")
		return nil, ErrInvalidCredentials
	}

	access, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &model.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// itself stays valid until it expires or is revoked.
func (s *AuthService) Refresh(refreshToken string) (*model.AccessResponse, error) {
	hash := hashToken(refreshToken)

	stored, err := s.tokenRepo.GetByTokenHash(hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	log := logger.Log.WithField("user_id", stored.UserID)

	if !s.now().Before(stored.ExpiresAt) {
		log.Info("Refresh token expired")
		if _, err := s.tokenRepo.DeleteByTokenHash(hash); err != nil {
			log.WithError(err).Warn("Failed to delete expired refresh token")
		}
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetUserByID(stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	access, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	log.Debug("Access token refreshed")
	return &model.AccessResponse{Access: access}, nil
}

// Revoke invalidates a single refresh token. Revoking an unknown token is not
// an error.
func (s *AuthService) Revoke(refreshToken string) error {
	deleted, err := s.tokenRepo.DeleteByTokenHash(hashToken(refreshToken))
	if err != nil {
		return err
	}
	logger.Log.WithField("found", deleted).Info("Refresh token revoked")
	return nil
}

// RevokeAll invalidates every refresh token of a user.
func (s *AuthService) RevokeAll(userID int) error {
	return s.tokenRepo.DeleteByUserID(userID)
}

func (s *AuthService) GenerateAccessToken(user *model.User) (string, error) {
	now := s.now()
	claims := &model.AppClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(getJwtKey())
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return tokenString, nil
}

// ParseAccessToken validates an access token and returns its claims.
func (s *AuthService) ParseAccessToken(tokenString string) (*model.AppClaims, error) {
	claims := &model.AppClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return getJwtKey(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		logger.Log.WithFields(logrus.Fields{"reason": err}).Debug("Rejected access token")
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

func (s *AuthService) issueRefreshToken(userID int) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	record := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(token),
		ExpiresAt: s.now().Add(refreshTTL()),
	}
	if err := s.tokenRepo.Create(record); err != nil {
		return "", err
	}
	return token, nil
}

// hashToken returns the hex SHA-256 of a refresh token, the form it is stored in.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
