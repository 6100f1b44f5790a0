package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Caller is the resolved identity of whoever invokes a domain operation.
type Caller struct {
	UserID uuid.UUID
	Role   Role
}

// SystemCaller acts for background workers.
var SystemCaller = Caller{Role: RoleAdmin}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

func (c Caller) Owns(userID uuid.UUID) bool {
	return c.UserID != uuid.Nil && c.UserID == userID
}

func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

type PageRequest struct {
	Page  int
	Limit int
}

// Offset is zero when Limit is zero, i.e. the whole result set is requested.
func (p PageRequest) Offset() int {
	if p.Limit <= 0 || p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

type Page[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}
