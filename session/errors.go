package session

import "errors"

var (
	// ErrSessionNotFound is returned when an operation names a session
	// id that is not in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAlreadyExists is returned when creating a session under an id
	// that is already taken. The store is left untouched.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrNotAuthenticated is returned by operations that require an
	// authorized session.
	ErrNotAuthenticated = errors.New("session is not authenticated")

	// ErrMissingCredentials is returned when the gateway instance id or
	// API token is absent from the environment.
	ErrMissingCredentials = errors.New("provider credentials are not configured")

	// ErrQRTimeout is returned when the QR poll ceiling is exhausted
	// before the gateway hands out a code or reports authorized.
	ErrQRTimeout = errors.New("timed out waiting for a QR code")

	// ErrAuthTimeout is returned when the authorization poll ceiling is
	// exhausted before the gateway reaches a terminal state.
	ErrAuthTimeout = errors.New("timed out waiting for authorization")
)
