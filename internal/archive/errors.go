package archive

import "errors"

var (
	// ErrOpen marks an input archive that cannot be opened or is not a zip container.
	ErrOpen = errors.New("open archive")
	// ErrCreate marks an output archive that cannot be created.
	ErrCreate = errors.New("create archive")
)
