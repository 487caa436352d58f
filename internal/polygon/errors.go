package polygon

import "errors"

var (
	ErrSymbolNotFound = errors.New("no data found for this symbol")
	ErrNoOptions      = errors.New("no options contracts available for this symbol")
	ErrRateLimited    = errors.New("rate limited by upstream API")
	ErrAuthFailed     = errors.New("authentication failed")
)

// IsDataUnavailable reports whether err is an expected upstream condition
// rather than an unexpected failure. Callers use this to pick a log level;
// either way the analysis layer degrades to an all-null result.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrSymbolNotFound) ||
		errors.Is(err, ErrNoOptions) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrAuthFailed)
}
