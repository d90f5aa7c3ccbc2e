package users

import (
	"context"
	"time"
)

// UserRepo stores accounts. Create wraps autherrors.ErrAlreadyExists when the
// username or email is taken; lookups wrap autherrors.ErrNotFound.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uint) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	SetLastLogin(ctx context.Context, id uint, at time.Time) error
}
