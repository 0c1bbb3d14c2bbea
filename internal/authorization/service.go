package authorization

import (
	"context"
	"errors"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

type Service interface {
	// Authorize returns ErrForbidden unless the caller's role grants action on object.
	Authorize(ctx context.Context, caller principal.Session, object string, action string) error
}
