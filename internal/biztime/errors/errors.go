package errors

import (
	"fmt"
)

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicateCode = fmt.Errorf("duplicate code")
	ErrForeignKey    = fmt.Errorf("referenced record does not exist")
	ErrInvalidInput  = fmt.Errorf("invalid input")
)
