package gateway

import "context"

// Connection states reported by a transport
const (
	StateConnecting = "connecting"
	StateOpen       = "open"
	StateClose      = "close"
)

// CloseCodeLoggedOut marks a close caused by manual logout on the
// phone. Sessions closed this way must not be redialed.
const CloseCodeLoggedOut = 401

// CloseReason carries the disconnect status code of a close event
type CloseReason struct {
	Code    int
	Message string
}

// Terminal reports whether this close forbids reconnection
func (r *CloseReason) Terminal() bool {
	return r != nil && r.Code == CloseCodeLoggedOut
}

// Identity is the account bound to an open connection
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ConnectionEvent is one state transition emitted by a transport.
// Exactly one of QR / State is meaningful per event: a non-empty QR
// carries a fresh pairing code, otherwise State describes the change.
type ConnectionEvent struct {
	QR       string
	State    string
	Reason   *CloseReason
	Identity *Identity
}

// Transport is one live upstream connection
type Transport interface {
	// Events yields connection events until the transport terminates.
	// The channel is closed when no further events will arrive.
	Events() <-chan ConnectionEvent

	// Send delivers a text payload to a destination address
	Send(ctx context.Context, dest, payload string) error

	// Logout invalidates the credentials upstream and closes
	Logout(ctx context.Context) error

	// Terminate closes the connection without touching credentials
	Terminate()
}

// SaveCredentials flushes session credentials to the credential store
type SaveCredentials func() error

// Dialer opens transports. The credential directory holds everything
// needed to resume a previously paired session.
type Dialer interface {
	Open(ctx context.Context, credentialDir string) (Transport, SaveCredentials, error)
}
