package models

import "time"

// Role определяет роль пользователя в платформе
type Role string

const (
	RoleUser         Role = "USER"
	RoleDriver       Role = "DRIVER"
	RoleOwnerVehicle Role = "OWNER_VEHICLE"
	RoleAdmin        Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDriver, RoleOwnerVehicle, RoleAdmin:
		return true
	}
	return false
}

// Status определяет состояние учетной записи
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusBanned   Status = "BANNED"
)

// CanLogin reports whether an account in this status may authenticate.
// PENDING accounts are allowed: email verification is not a login precondition
// unless the server is configured to require it.
func (s Status) CanLogin() bool {
	return s == StatusPending || s == StatusActive
}

// User представляет учетную запись (credential record)
type User struct {
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	LastLogoutAt  *time.Time `json:"lastLogoutAt,omitempty"`
	Name          string     `json:"name"`
	LastName      string     `json:"lastName,omitempty"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	PasswordHash  string     `json:"-"` // bcrypt хеш, никогда не plaintext
	Role          Role       `json:"role"`
	Status        Status     `json:"status"`
	ID            int64      `json:"id"`
	EmailVerified bool       `json:"emailVerified"`
}

// DisplayName returns "Name LastName" trimmed to what is set.
func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.Name
	}
	return u.Name + " " + u.LastName
}
