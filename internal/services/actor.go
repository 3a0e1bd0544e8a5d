package services

import (
	"errors"

	"github.com/taskboard-dev/taskboard/internal/apperr"
	"gorm.io/gorm"
)

// Actor is the authenticated user performing a mutation.
type Actor struct {
	ID       uint
	Username string
	Email    string
}

// translate maps store errors onto the API taxonomy. Errors that already
// carry a kind pass through untouched.
func translate(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict("Resource already exists")
	default:
		return err
	}
}

func uintPtr(v uint) *uint {
	return &v
}
