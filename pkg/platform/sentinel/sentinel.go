package sentinel

import "errors"

// Infrastructure facts returned by stores, optionally wrapped with fmt.Errorf("%w").
// Services translate them into coded domain errors; they never reach clients as-is.
//
//   - ErrNotFound: the record does not exist
//   - ErrAlreadyUsed: a unique key (email, username) is already taken
//   - ErrUnavailable: the backing system could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
