package model

import "github.com/golang-jwt/jwt/v5"

// AppClaims are the claims carried by an access token. The token id lives in
// RegisteredClaims.ID.
type AppClaims struct {
	UserID int    `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}
