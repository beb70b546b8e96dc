package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream provider failure")
	ErrTemporary    = errors.New("temporary failure")
	ErrNotOwned     = errors.New("photo not owned by requester")

	errExactlyOne  = errors.New("exactly one of query text or image is required")
	errMissingUser = errors.New("user id is required")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
