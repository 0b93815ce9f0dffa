package limiter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// windowKey derives the counter key for (clientID, window containing now).
//
// The key depends only on the client id and the window index, never on any
// per-request value. Two requests from the same client in the same window
// must share a counter; a request-scoped component in the key would give
// every request its own counter and disable the quota entirely.
func windowKey(prefix, clientID string, now time.Time, window time.Duration) (string, error) {
	// The trimmed id is what ends up in the key: " abc" and "abc" must share
	// a counter no matter which caller derived the key.
	clientID = strings.TrimSpace(clientID)
	if err := validateClientID(clientID); err != nil {
		return "", err
	}
	idx := now.UnixMilli() / window.Milliseconds()
	return prefix + clientID + ":" + strconv.FormatInt(idx, 10), nil
}

func validateClientID(clientID string) error {
	if clientID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidClientID)
	}
	if len(clientID) < MinClientIDLength {
		return fmt.Errorf("%w: %q shorter than %d characters", ErrInvalidClientID, clientID, MinClientIDLength)
	}
	return nil
}
