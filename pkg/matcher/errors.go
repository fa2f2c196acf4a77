package matcher

import (
	"errors"
	"fmt"
)

// ErrSourceRead is matched by every error produced while pulling chunks
// from a Source. A scan that ends with it is inconclusive.
var ErrSourceRead = errors.New("source read failed")

// SourceError records where in the logical stream a read failed.
type SourceError struct {
	Offset int64
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%v at offset %d: %v", ErrSourceRead, e.Offset, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSourceRead) hold for any SourceError.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceRead
}
