package session

import "errors"

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
	ErrManagerStopped  = errors.New("session manager has been stopped")
	ErrSessionClosed   = errors.New("session has been closed")
	ErrUnknownCommand  = errors.New("unknown playback command")
)

// IsNotFound checks if err reports a missing session
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsTooManySessions checks if err reports the session limit
func IsTooManySessions(err error) bool {
	return errors.Is(err, ErrTooManySessions)
}

// IsClosed checks if err reports a stopped session or manager
func IsClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrManagerStopped)
}
