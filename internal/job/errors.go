package job

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyDispatched = errors.New("job already dispatched")
	ErrExtNotAllowed     = errors.New("extension not allowed")
)

func NewErrExtNotAllowed(ext string) error { return fmt.Errorf("%w: %q", ErrExtNotAllowed, ext) }
