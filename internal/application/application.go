package application

import (
	"context"
	"errors"
	"fmt"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// IDGenerator issues opaque unique identifiers.
type IDGenerator interface {
	NewID() string
}

// ErrValidation marks caller input that was rejected before reaching a store.
var ErrValidation = errors.New("validation")

func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
