package models

import (
	"errors"
	"fmt"
)

// Error kinds returned by the row source and the loaders.
var (
	ErrIO           = errors.New("io error")
	ErrRowDecode    = errors.New("row decode error")
	ErrFieldParse   = errors.New("field parse error")
	ErrInvalidValue = errors.New("invalid value")
)

// RowError attaches the 1-based data row position to a load failure.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
