package trading

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidShares      = errors.New("invalid shares")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDuplicateUsername  = errors.New("duplicate username")
)

// Error carries the message shown to the user alongside the sentinel it matches.
type Error struct {
	Msg  string
	Kind error
	// Cause is an additional sentinel the error matches, e.g. ErrInvalidShares.
	Cause error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind || (e.Cause != nil && target == e.Cause)
}

func validationError(msg string) error {
	return &Error{Msg: msg, Kind: ErrValidation}
}

func newError(kind error, msg string) error {
	return &Error{Msg: msg, Kind: kind}
}

// Message returns the user facing message for err, or "" when err is not a
// trading error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
