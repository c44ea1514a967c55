package users

import (
	"time"

	"github.com/lealre/natours-backend/internal/mongodb"
)

func MapDbUserToApiUser(userDb mongodb.UserDb) User {
	return User{
		Id:        userDb.Id,
		Name:      userDb.Name,
		Email:     userDb.Email,
		Role:      userDb.Role,
		CreatedAt: timestamp(userDb.CreatedAt),
		UpdatedAt: timestamp(userDb.UpdatedAt),
	}
}

// timestamp is nil for a zero time, which only happens when a projection
// left the field out.
func timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
