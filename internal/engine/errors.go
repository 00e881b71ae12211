package engine

import (
	"errors"
	"fmt"
)

// MachineError is the single error type a terminal Failed state carries:
// a human-readable reason, nothing structured beyond the stagnation
// marker.
type MachineError struct {
	Reason     string
	Stagnation bool
}

func (e *MachineError) Error() string { return e.Reason }

// NewMachineError builds a terminal failure reason.
func NewMachineError(format string, args ...any) *MachineError {
	return &MachineError{Reason: fmt.Sprintf(format, args...)}
}

// IsStagnation reports whether err is a stagnation stop. Stagnation is
// always fatal; there is no fallback path out of it.
func IsStagnation(err error) bool {
	var me *MachineError
	return errors.As(err, &me) && me.Stagnation
}
