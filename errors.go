package arrow

import "log/slog"

// ErrorCode describes the outcome of the last fallible operation on a
// container. Operations never panic on a failed precondition; in checked
// builds they record a code and return a safe default instead. Callers poll
// the code through Error, which also clears it.
type ErrorCode uint16

const (
	ErrNone               ErrorCode = 0
	ErrDuplicateComponent ErrorCode = 1
	ErrMissingComponent   ErrorCode = 2
	ErrUnknownFunction    ErrorCode = 5
	ErrUnknownEntity      ErrorCode = 6
)

func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "no error"
	case ErrDuplicateComponent:
		return "component already attached"
	case ErrMissingComponent:
		return "component not attached"
	case ErrUnknownFunction:
		return "unknown system function"
	case ErrUnknownEntity:
		return "unknown entity"
	default:
		return "unrecognized error"
	}
}

// Error returns the pending error code and clears it.
func (c *ECS) Error() ErrorCode {
	err := c.err
	c.err = ErrNone
	return err
}

// LogError polls the error code and, if one is pending, reports it through
// the default slog logger. The code is cleared either way.
func (c *ECS) LogError() {
	if err := c.Error(); err != ErrNone {
		slog.Error(
			"Operation on ECS container failed",
			slog.Int("code", int(err)),
			slog.String("reason", err.String()),
		)
	}
}
