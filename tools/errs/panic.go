package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPanic turns a recovered value into a ServerInternalError.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return errors.WithStack(&CodeError{
		Code:   ServerInternalError,
		Msg:    "panic error",
		Detail: fmt.Sprint(r),
	})
}
