package ports

import (
	"context"

	"github.com/layer-3/warden/core"
)

// UserRepository stores user accounts.
// Lookups return core.ErrUserNotFound when nothing matches.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*core.User, error)
	FindByEmail(ctx context.Context, email string) (*core.User, error)

	// Insert adds the user unless the email is taken, in which case it
	// returns core.ErrDuplicateUser. The check and the write are atomic.
	Insert(ctx context.Context, user *core.User) error
}
