package policy

import "errors"

var (
	// ErrServer carries an error message sent by the policy server.
	ErrServer = errors.New("policy: server error")

	// ErrBadResponse indicates a response that does not decode into actions.
	ErrBadResponse = errors.New("policy: malformed response")

	ErrClosed = errors.New("policy: client closed")
)
