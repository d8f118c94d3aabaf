package domain

import "errors"

// Sentinel errors for catalog operations
var (
	// ErrNotFound indicates the requested video or channel does not exist
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the catalog answered "too many requests"
	ErrRateLimited = errors.New("rate limited by catalog server")

	// ErrNetworkFailure indicates the catalog server could not be reached
	ErrNetworkFailure = errors.New("catalog server is unreachable")

	// ErrInvalidInput indicates an empty identifier or query
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated indicates the operation requires a signed-in viewer
	ErrUnauthenticated = errors.New("sign-in required")

	// ErrAuthFailed indicates the authentication token is invalid
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrFetchInProgress indicates a fetch of the same kind is already running
	ErrFetchInProgress = errors.New("fetch already in progress")
)

// IsWarning reports whether err should be surfaced as a transient warning
// rather than a hard error.
func IsWarning(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrFetchInProgress)
}
