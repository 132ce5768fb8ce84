package gateway

import "errors"

// Error kinds let the API layer map gateway failures to HTTP codes
// without string matching.
const (
	KindValidation   = "validation"
	KindNotFound     = "not_found"
	KindNotConnected = "not_connected"
	KindTransient    = "transient"
	KindLoggedOut    = "logged_out"
	KindPersistence  = "persistence"
)

// Error is the gateway error type. Kind classifies the failure, Token
// and InstanceID identify the session it concerns.
type Error struct {
	Kind       string
	Message    string
	Token      string
	InstanceID string
	Err        error
}

func NewError(kind, message, token, instanceID string, err error) *Error {
	return &Error{Kind: kind, Message: message, Token: token, InstanceID: instanceID, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a gateway error, or empty string for any
// other error.
func KindOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
