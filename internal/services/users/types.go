package users

import "time"

type User struct {
	Id        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type SignupRequest struct {
	Name            string `json:"name" validate:"required,min=3,max=40"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateMeRequest only changes profile data. Password and Role are decoded so
// that sending them can be rejected instead of silently ignored.
type UpdateMeRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=3,max=40"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// AuthResult is returned by every operation that issues a token.
type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
	User      User      `json:"user"`
}
