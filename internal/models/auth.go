package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the roles accepted by this service. Authentication
// happens upstream in the host platform; we only verify the token it minted.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleViewer  UserRole = "VIEWER"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	// CanEditGrades mirrors the host platform's editgrades capability.
	CanEditGrades bool `json:"can_edit_grades"`
	jwt.RegisteredClaims
}
