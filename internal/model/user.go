package model

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleWorker     Role = "WORKER"
	RoleSupervisor Role = "SUPERVISOR"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleWorker, RoleSupervisor:
		return r, nil
	}
	return "", fmt.Errorf("invalid role %q: must be WORKER or SUPERVISOR", s)
}

// HomeRoute is where a freshly logged-in user lands.
func (r Role) HomeRoute() string {
	if r == RoleWorker {
		return "/worker"
	}
	return "/supervisor"
}

type User struct {
	UserID       int    `gorm:"primaryKey;column:user_id" json:"userId"`
	Name         string `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Role         Role   `gorm:"type:varchar(32);index;not null" json:"role"`
	PasswordHash string `gorm:"column:password_hash" json:"-"`
}

func (User) TableName() string { return "users" }

// UserFilter is the canonical contract of GET /users?id=&role=&name=.
type UserFilter struct {
	ID   *int
	Role Role
	Name string
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Password string `json:"password,omitempty"`
}
