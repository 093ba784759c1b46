package auth

import (
	"net/mail"
	"strings"
	"time"
)

// Identity is the user snapshot embedded in access tokens and carried
// through a request. It never holds credential material.
type Identity struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	FirstName   string          `json:"firstName,omitempty"`
	LastName    string          `json:"lastName,omitempty"`
	Permissions []PermissionKey `json:"permissions"`
}

// User is a persisted account as returned by a UserLookup.
type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Phone        string          `json:"phone,omitempty"`
	PasswordHash string          `json:"-"` // never serialised
	Status       bool            `json:"status"`
	Permissions  []PermissionKey `json:"permissions"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ToIdentity builds the token snapshot for u.
func (u *User) ToIdentity() Identity {
	perms := make([]PermissionKey, len(u.Permissions))
	copy(perms, u.Permissions)
	return Identity{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Permissions: perms,
	}
}

// NewUser is the signup payload.
type NewUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

const (
	minPasswordLength = 8
	maxNameLength     = 128
)

// Validate checks the signup payload shape.
func (n *NewUser) Validate() error {
	n.Email = strings.TrimSpace(strings.ToLower(n.Email))
	if n.Email == "" || n.Password == "" {
		return BadRequest("email and password are required", nil)
	}
	if _, err := mail.ParseAddress(n.Email); err != nil {
		return BadRequest("email is not a valid address", err)
	}
	if len(n.Password) < minPasswordLength {
		return BadRequest("password must be at least 8 characters", nil)
	}
	if len(n.FirstName) > maxNameLength || len(n.LastName) > maxNameLength {
		return BadRequest("name fields must be at most 128 characters", nil)
	}
	return nil
}

// RefreshToken is the persisted refresh-token record. There is at most one
// per UserID.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"-"` // never serialised
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TokenObject is the login and refresh response body. ExpiresIn is the
// access token lifetime in seconds.
type TokenObject struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}
