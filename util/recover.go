package util

import (
	"errors"
	"fmt"
)

// RecoveredToError turns a value returned by recover() into an error. Errors are wrapped so errors.Is still
// matches them.
func RecoveredToError(recovered any) error {
	switch value := recovered.(type) {
	case nil:
		return nil
	case error:
		return fmt.Errorf("panic: %w", value)
	case string:
		return errors.New("panic: " + value)
	case fmt.Stringer:
		return errors.New("panic: " + value.String())
	default:
		return fmt.Errorf("panic: %v (%T)", value, value)
	}
}
