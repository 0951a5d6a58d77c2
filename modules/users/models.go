package users

import (
	"time"

	"github.com/google/uuid"
)

// User is an account row as stored. PasswordHash stays out of JSON responses
// and cached payloads: the login path reads it through GetByEmail, which
// bypasses the cache, so credentials never sit in Redis.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-" cbor:"-"`
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the public account representation returned by the API.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile converts the stored row to its public representation.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// RegisterRequest creates an account. The password cap matches bcrypt's
// 72-byte input limit.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
}

// LoginRequest verifies credentials and issues a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// GetProfileRequest carries no input; the user comes from the bearer token.
type GetProfileRequest struct{}

// UpdateProfileRequest changes profile fields. Absent fields are left as-is.
type UpdateProfileRequest struct {
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	DisplayName string `json:"display_name" validate:"omitempty,min=1,max=100"`
}

// DeleteAccountRequest carries no input; the user comes from the bearer token.
type DeleteAccountRequest struct{}

// AuthResponse is returned by login: a signed bearer token plus the account
// it belongs to.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}
