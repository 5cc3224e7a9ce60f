package repair

import (
	"errors"
	"fmt"
)

var (
	// ErrEncodingRepair matches every *EncodingError.
	ErrEncodingRepair = errors.New("encoding repair failed")
	// ErrUnrepairable signals a script whose legacy export destroyed the
	// information needed to restore it.
	ErrUnrepairable = errors.New("unrepairable legacy corruption")

	errInvalidCESU8 = errors.New("invalid CESU-8 sequence")
	errInvalidUTF8  = errors.New("invalid UTF-8 sequence")
)

// EncodingError carries the value that could not be transcoded. Callers keep
// Value in place of the failed repair.
type EncodingError struct {
	Value string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrEncodingRepair, e.Value, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrEncodingRepair) hold for any EncodingError.
func (e *EncodingError) Is(target error) bool { return target == ErrEncodingRepair }
