package model

import "github.com/golang-jwt/jwt/v5"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type AccessClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
