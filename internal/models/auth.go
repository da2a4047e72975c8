package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the roles issued by the gateway.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims are the gateway-issued token claims trusted by this service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	SchoolID string   `json:"school_id"`
	jwt.RegisteredClaims
}

// Pagination describes list response metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
